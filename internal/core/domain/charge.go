package domain

import (
	"time"

	"github.com/pkg/errors"
)

// ChargeState is the charge profile stage of the battery controller.
type ChargeState int

const (
	ChargeStateIdle ChargeState = iota
	ChargeStateBulk
	ChargeStateAbsorb
	ChargeStateFloat
	ChargeStateCanceled
)

func (s ChargeState) String() string {
	switch s {
	case ChargeStateIdle:
		return "idle"
	case ChargeStateBulk:
		return "bulk"
	case ChargeStateAbsorb:
		return "absorb"
	case ChargeStateFloat:
		return "float"
	case ChargeStateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// IsCharging reports whether the state is one of the active charge stages.
func (s ChargeState) IsCharging() bool {
	return s == ChargeStateBulk || s == ChargeStateAbsorb || s == ChargeStateFloat
}

// VebusChargeState maps the state to the Victron VE.Bus charge state code
// (1 bulk, 2 absorption, 3 float, 0 otherwise).
func (s ChargeState) VebusChargeState() int {
	switch s {
	case ChargeStateBulk:
		return 1
	case ChargeStateAbsorb:
		return 2
	case ChargeStateFloat:
		return 3
	default:
		return 0
	}
}

// SystemStateCode maps the state to the Victron system state code
// (3 bulk, 4 absorption, 5 float, 0 off).
func (s ChargeState) SystemStateCode() int {
	switch s {
	case ChargeStateBulk:
		return 3
	case ChargeStateAbsorb:
		return 4
	case ChargeStateFloat:
		return 5
	default:
		return 0
	}
}

// TransitionResult is returned by every battery sample update.
type TransitionResult int

const (
	NoChange TransitionResult = iota
	Advanced
	Rebulked
)

func (r TransitionResult) String() string {
	switch r {
	case Advanced:
		return "advanced"
	case Rebulked:
		return "rebulked"
	default:
		return "no_change"
	}
}

type ChargeConfig struct {
	BulkCurrent    float64       `mapstructure:"bulk_current"`
	AbsorbVoltage  float64       `mapstructure:"absorb_voltage"`
	FloatVoltage   float64       `mapstructure:"float_voltage"`
	AbsorbDuration time.Duration `mapstructure:"absorb_duration"`
	RebulkVoltage  float64       `mapstructure:"rebulk_voltage"`
}

func (c ChargeConfig) Validate() error {
	if c.BulkCurrent <= 0 {
		return errors.Errorf("bulk_current must be > 0, got %.2f", c.BulkCurrent)
	}
	if c.AbsorbVoltage <= 0 || c.FloatVoltage <= 0 || c.RebulkVoltage <= 0 {
		return errors.New("absorb_voltage, float_voltage and rebulk_voltage must be > 0")
	}
	if c.AbsorbDuration <= 0 {
		return errors.Errorf("absorb_duration must be > 0, got %s", c.AbsorbDuration)
	}
	if c.FloatVoltage > c.AbsorbVoltage {
		return errors.Errorf("float_voltage (%.2f) must be <= absorb_voltage (%.2f)", c.FloatVoltage, c.AbsorbVoltage)
	}
	if c.RebulkVoltage > c.FloatVoltage {
		return errors.Errorf("rebulk_voltage (%.2f) must be <= float_voltage (%.2f)", c.RebulkVoltage, c.FloatVoltage)
	}
	return nil
}

// BatterySample is one reading of the battery shunt.
// Current is positive when flowing into the battery.
type BatterySample struct {
	Voltage float64
	Current float64
}

// ChargeStatus is an immutable snapshot of a controller after a tick.
type ChargeStatus struct {
	State           ChargeState
	ChargeCurrent   float64
	BulkCurrent     float64
	ActualVoltage   float64
	ActualCurrent   float64
	AbsorbEnteredAt *time.Time
	LastResult      TransitionResult
	StateEnteredAt  time.Time
}
