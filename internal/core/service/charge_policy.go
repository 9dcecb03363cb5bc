package service

import (
	"time"

	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/core/port"
	"sunnyisland2mqtt/internal/util/clock"

	"go.uber.org/zap"
)

// DefaultChargePolicy picks the requested bulk current for each control tick.
// The result is passed to ChargeController.UpdateRequestedBulkCurrent.
type DefaultChargePolicy struct {
	Config domain.ChargePolicyConfig
	Clock  clock.Clock
	Logger *zap.Logger
}

func (p *DefaultChargePolicy) RequestedBulkCurrent(input domain.ChargePolicyInput) *float64 {
	var amps *float64

	if input.ManualLimit != nil && *input.ManualLimit > 0 {
		v := *input.ManualLimit
		amps = &v
	} else if p.Config.Mode == domain.CHARGE_POLICY_MODE_GRID {
		v := p.gridCurrent(input)
		amps = &v
	}

	if amps == nil {
		return nil
	}

	// requested targets include solar, so remove what PV already supplies
	if input.PVCurrent > 0 {
		*amps -= input.PVCurrent
		if *amps < 0 {
			*amps = p.Config.PVFloorCurrent
		}
	}

	if p.Logger != nil {
		p.Logger.Sugar().Debugf("charge_policy: soc %.1f%%, pv %.1fA => requested %.2fA", input.SOC, input.PVCurrent, *amps)
	}
	return amps
}

func (p *DefaultChargePolicy) gridCurrent(input domain.ChargePolicyInput) float64 {
	grid := p.Config.GridLogic
	hour := p.now().Hour()

	var amps float64
	if hour >= grid.StartHour && hour <= grid.EndHour {
		if hour >= grid.MidHour && input.SOCAvailable && input.SOC < grid.MidHourSOC {
			amps = grid.MidHourCurrent
		} else {
			amps = grid.Current
		}
	} else {
		amps = grid.OfftimeCurrent
	}

	// recovering from a blackout, charge fast
	safety := p.Config.SafetyLogic
	if input.SOCAvailable && input.SOC < safety.AfterBlackoutMinSOC {
		amps = safety.AfterBlackoutChargeAmps
	}
	return amps
}

func (p *DefaultChargePolicy) now() time.Time {
	if p.Clock == nil {
		return clock.NewReal().Now()
	}
	return p.Clock.Now()
}

// ensure interface compliance
var _ port.ChargeCurrentPolicy = (*DefaultChargePolicy)(nil)
