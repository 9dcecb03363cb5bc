package domain

import "fmt"

// ChargeControlRequest

type ChargeControlRequest interface {
	ActorRequest
	ChargeControlCommand() string
}

type ChargeControlRequestMixIn struct {
	ActorRequestMixIn
}

func (r ChargeControlRequestMixIn) ChargeControlCommand() string {
	return fmt.Sprintf("%T", r)
}

// ChargeControl commands

// ChargeControlEnableRequest starts (or restarts after a cancel) or stops the
// charge cycle.
type ChargeControlEnableRequest struct {
	ChargeControlRequestMixIn
	Enable bool
}

// ChargeControlSetCurrentLimitRequest sets a manual bulk current limit.
// Zero returns to the charge policy.
type ChargeControlSetCurrentLimitRequest struct {
	ChargeControlRequestMixIn
	Amps float64
}

// ChargeControlBusStateRequest reports the inverter CAN bus liveness.
type ChargeControlBusStateRequest struct {
	ChargeControlRequestMixIn
	Alive bool
}

type ChargeStatusRequest struct {
	ChargeControlRequestMixIn
}

type ChargeStatusResponse struct {
	ActorResponseMixIn
	Status  ChargeStatus
	Enabled bool
	// manual limit, 0 when automatic
	CurrentLimit float64
}

// ensure interface compliance
var _ ChargeControlRequest = (*ChargeControlEnableRequest)(nil)
var _ ChargeControlRequest = (*ChargeControlSetCurrentLimitRequest)(nil)
var _ ChargeControlRequest = (*ChargeControlBusStateRequest)(nil)
var _ ChargeControlRequest = (*ChargeStatusRequest)(nil)
