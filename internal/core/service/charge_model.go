package service

import (
	"math"
	"time"

	"sunnyisland2mqtt/internal/core/domain"
)

const (
	RegulationGainP     = 100.0
	RegulationGainD     = 20.0
	MinRegulatedCurrent = 0.6
)

type evaluation int

const (
	evalContinue evaluation = iota
	evalAdvance
	evalRebulk
)

// chargeModel holds the runtime of one controller and the per-state
// evaluators. It performs no I/O; time is passed in by the controller.
type chargeModel struct {
	config domain.ChargeConfig

	bulkCurrent      float64
	actualVoltage    float64
	actualCurrent    float64
	commandedCurrent float64
	absorbEnteredAt  *time.Time
	lastVoltage      float64
	lastError        float64
	stateEntered     bool
}

func newChargeModel(config domain.ChargeConfig) chargeModel {
	return chargeModel{
		config:      config,
		bulkCurrent: config.BulkCurrent,
	}
}

func (m *chargeModel) evaluate(state domain.ChargeState, now time.Time) evaluation {
	switch state {
	case domain.ChargeStateBulk:
		return m.evaluateBulk()
	case domain.ChargeStateAbsorb:
		return m.evaluateAbsorb(now)
	case domain.ChargeStateFloat:
		return m.evaluateFloat()
	default:
		return evalContinue
	}
}

func (m *chargeModel) evaluateBulk() evaluation {
	m.commandedCurrent = m.bulkCurrent
	if m.actualVoltage >= m.config.AbsorbVoltage {
		return evalAdvance
	}
	return evalContinue
}

func (m *chargeModel) evaluateAbsorb(now time.Time) evaluation {
	if m.actualVoltage < m.config.RebulkVoltage {
		return evalRebulk
	}
	if m.absorbEnteredAt != nil && now.Sub(*m.absorbEnteredAt) >= m.config.AbsorbDuration {
		return evalAdvance
	}
	// readings of the entry tick still reflect bulk charging
	if m.stateEntered {
		m.stateEntered = false
		return evalContinue
	}
	m.regulate(m.config.AbsorbVoltage)
	return evalContinue
}

func (m *chargeModel) evaluateFloat() evaluation {
	if m.actualVoltage < m.config.RebulkVoltage {
		return evalRebulk
	}
	m.regulate(m.config.FloatVoltage)
	return evalContinue
}

func (m *chargeModel) regulate(target float64) {
	m.commandedCurrent, m.lastError = RegulateCurrent(m.commandedCurrent, m.actualCurrent,
		m.actualVoltage, m.lastError, target, m.bulkCurrent)
	m.lastVoltage = m.actualVoltage
}

func (m *chargeModel) enterBulk() {
	m.absorbEnteredAt = nil
	m.stateEntered = false
}

func (m *chargeModel) enterAbsorb(now time.Time) {
	m.absorbEnteredAt = &now
	m.stateEntered = true
	m.lastError = m.config.AbsorbVoltage - m.actualVoltage
	m.lastVoltage = m.actualVoltage
}

func (m *chargeModel) enterFloat() {
	m.absorbEnteredAt = nil
	m.stateEntered = false
	m.lastError = m.config.FloatVoltage - m.actualVoltage
	m.lastVoltage = m.actualVoltage
}

func (m *chargeModel) setBulkCurrent(current float64) {
	m.bulkCurrent = current
	if m.commandedCurrent > current {
		m.commandedCurrent = current
	}
}

// RegulateCurrent applies the proportional-derivative law on the voltage
// error and returns the new commanded current and the error to keep for the
// next derivative term. It has no hidden state.
func RegulateCurrent(commanded, actualCurrent, actualVoltage, lastError, target, bulkCurrent float64) (float64, float64) {
	// never command a jump above what the battery is drawing
	if commanded > actualCurrent {
		commanded = actualCurrent
	}
	errV := target - actualVoltage
	delta := RegulationGainP*errV + RegulationGainD*(errV-lastError)
	commanded += delta
	return clampCurrent(commanded, bulkCurrent), errV
}

func clampCurrent(current, bulkCurrent float64) float64 {
	current = math.Min(current, bulkCurrent)
	return math.Max(current, math.Min(MinRegulatedCurrent, bulkCurrent))
}

func roundTo(value float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(value*p) / p
}
