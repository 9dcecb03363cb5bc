package service

import (
	"math"
	"time"

	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/core/port"
	"sunnyisland2mqtt/internal/util/clock"
)

// ChargeController drives the bulk/absorb/float charge profile.
//
// Not safe for concurrent use: the owner must serialize all calls, which the
// charge_control actor does through its mailbox.
type ChargeController struct {
	config         domain.ChargeConfig
	clock          clock.Clock
	state          domain.ChargeState
	model          chargeModel
	stateEnteredAt time.Time
	lastResult     domain.TransitionResult
}

func NewChargeController(config domain.ChargeConfig, clk clock.Clock) *ChargeController {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &ChargeController{
		config:         config,
		clock:          clk,
		state:          domain.ChargeStateIdle,
		model:          newChargeModel(config),
		stateEnteredAt: clk.Now(),
	}
}

// Start begins a charge cycle. It only succeeds from Idle.
func (c *ChargeController) Start() bool {
	if c.state != domain.ChargeStateIdle {
		return false
	}
	c.setState(domain.ChargeStateBulk)
	c.model.enterBulk()
	return true
}

// Stop cancels an active charge cycle. Canceled is terminal.
func (c *ChargeController) Stop() {
	if !c.state.IsCharging() {
		return
	}
	c.setState(domain.ChargeStateCanceled)
	c.model.absorbEnteredAt = nil
	c.model.commandedCurrent = 0
}

// UpdateBatterySample feeds one battery reading and runs the evaluator of the
// current state. Non-finite readings and negative voltages are ignored.
func (c *ChargeController) UpdateBatterySample(voltage, current float64) domain.TransitionResult {
	if !validSample(voltage, current) || !c.state.IsCharging() {
		c.lastResult = domain.NoChange
		return domain.NoChange
	}

	c.model.actualVoltage = roundTo(voltage, 2)
	c.model.actualCurrent = roundTo(current, 1)

	now := c.clock.Now()
	result := domain.NoChange
	switch c.model.evaluate(c.state, now) {
	case evalAdvance:
		switch c.state {
		case domain.ChargeStateBulk:
			c.setState(domain.ChargeStateAbsorb)
			c.model.enterAbsorb(now)
			result = domain.Advanced
		case domain.ChargeStateAbsorb:
			c.setState(domain.ChargeStateFloat)
			c.model.enterFloat()
			result = domain.Advanced
		}
	case evalRebulk:
		if c.state == domain.ChargeStateAbsorb || c.state == domain.ChargeStateFloat {
			c.setState(domain.ChargeStateBulk)
			c.model.enterBulk()
			result = domain.Rebulked
		}
	}
	c.lastResult = result
	return result
}

// UpdateRequestedBulkCurrent overrides the bulk current used by the next
// evaluations. nil restores the configured value; negatives clamp to zero.
func (c *ChargeController) UpdateRequestedBulkCurrent(current *float64) {
	if current == nil || math.IsNaN(*current) || math.IsInf(*current, 0) {
		c.model.setBulkCurrent(c.config.BulkCurrent)
		return
	}
	c.model.setBulkCurrent(math.Max(0, *current))
}

func (c *ChargeController) ChargeCurrent() float64 {
	return c.model.commandedCurrent
}

func (c *ChargeController) State() domain.ChargeState {
	return c.state
}

func (c *ChargeController) IsCharging() bool {
	return c.state.IsCharging()
}

func (c *ChargeController) BulkCurrent() float64 {
	return c.model.bulkCurrent
}

func (c *ChargeController) Config() domain.ChargeConfig {
	return c.config
}

func (c *ChargeController) Status() domain.ChargeStatus {
	status := domain.ChargeStatus{
		State:          c.state,
		ChargeCurrent:  c.model.commandedCurrent,
		BulkCurrent:    c.model.bulkCurrent,
		ActualVoltage:  c.model.actualVoltage,
		ActualCurrent:  c.model.actualCurrent,
		LastResult:     c.lastResult,
		StateEnteredAt: c.stateEnteredAt,
	}
	if c.model.absorbEnteredAt != nil {
		t := *c.model.absorbEnteredAt
		status.AbsorbEnteredAt = &t
	}
	return status
}

func (c *ChargeController) setState(state domain.ChargeState) {
	c.state = state
	c.stateEnteredAt = c.clock.Now()
}

func validSample(voltage, current float64) bool {
	if math.IsNaN(voltage) || math.IsInf(voltage, 0) || voltage < 0 {
		return false
	}
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return false
	}
	return true
}

// ensure interface compliance
var _ port.ChargeController = (*ChargeController)(nil)
