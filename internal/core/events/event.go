package events

import (
	. "sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/pkg/gxmodbus"
)

func ChargeStatusToUpdateEvents(status ChargeStatus) []any {
	var events []any

	// Charge state
	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CHARGE_STATE,
		},
		Value: status.State.String(),
	})
	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CHARGE_STATE_CODE,
		},
		Value: status.State.SystemStateCode(),
	})
	events = append(events, IntSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_VEBUS_CHARGE_STATE,
		},
		Value: status.State.VebusChargeState(),
	})
	// Currents
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CHARGE_CURRENT,
		},
		Value:    status.ChargeCurrent,
		Decimals: 1,
	})
	events = append(events, FloatSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_REQUESTED_BULK_CURRENT,
		},
		Value:    status.BulkCurrent,
		Decimals: 1,
	})

	return events
}

// BatteryStateToUpdateEvents skips values the GX reported as not available.
func BatteryStateToUpdateEvents(bs *gxmodbus.BatteryState) []any {
	var events []any
	if bs == nil {
		return events
	}

	if bs.VoltageAvailable {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_VOLTAGE,
			},
			Value:    bs.Voltage,
			Decimals: 2,
		})
	}
	if bs.CurrentAvailable {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_CURRENT,
			},
			Value:    bs.Current,
			Decimals: 1,
		})
	}
	if bs.SOCAvailable {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_BATTERY_SOC,
			},
			Value:    bs.SOC,
			Decimals: 0,
		})
	}
	if bs.PVAvailable {
		events = append(events, FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{
				Id: SENSOR_ID_PV_CURRENT,
			},
			Value:    bs.PVCurrent,
			Decimals: 1,
		})
	}

	return events
}

func ChargeEnableSwitchUpdateEvent(enabled bool) any {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SWITCH_ID_CHARGE_ENABLE,
		},
		Value: enabled,
	}
}

func CurrentLimitUpdateEvent(amps float64) any {
	return InputNumberSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: INPUT_NUMBER_ID_CURRENT_LIMIT,
		},
		Value:    amps,
		Decimals: 0,
	}
}

func CanBusUpdateEvent(alive bool) any {
	return BinarySensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CAN_BUS,
		},
		Value: alive,
	}
}
