package domain

import "sunnyisland2mqtt/pkg/gxmodbus"

const (
	ACTOR_ID_MASTER         = "master"
	ACTOR_ID_MODBUS         = "modbus"
	ACTOR_ID_MONITOR        = "monitor"
	ACTOR_ID_MQTT           = "mqtt"
	ACTOR_ID_CHARGE_CONTROL = "charge_control"
	ACTOR_ID_CANBUS         = "canbus"
	ACTOR_ID_HA_DISCOVERY   = "hadiscovery"
)

type GetBatteryStateRequest struct {
	ActorRequestMixIn
}

type GetBatteryStateResponse struct {
	ActorResponseMixIn
	BatteryState *gxmodbus.BatteryState
}

type PublishMessageRequest struct {
	ActorRequestMixIn
	Topic   string
	Payload string
	Retain  bool
}

type PublishMessageResponse struct {
	ActorResponseMixIn
}

type PublishSensorUpdateRequest struct {
	ActorRequestMixIn
	Retain bool
	Event  SensorUpdateEvent
}

type PublishSensorUpdateResponse struct {
	ActorResponseMixIn
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
