package port

import (
	"sunnyisland2mqtt/internal/core/domain"
)

type ChargeController interface {
	Start() bool
	Stop()
	UpdateBatterySample(voltage, current float64) domain.TransitionResult
	UpdateRequestedBulkCurrent(current *float64)
	ChargeCurrent() float64
	State() domain.ChargeState
	Status() domain.ChargeStatus
}

type ChargeCurrentPolicy interface {
	RequestedBulkCurrent(input domain.ChargePolicyInput) *float64
}
