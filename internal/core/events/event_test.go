package events

import (
	"testing"
	"time"

	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/pkg/gxmodbus"

	"github.com/stretchr/testify/assert"
)

func TestChargeStatusToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	evs := ChargeStatusToUpdateEvents(domain.ChargeStatus{
		State:          domain.ChargeStateAbsorb,
		ChargeCurrent:  32.4,
		BulkCurrent:    160,
		StateEnteredAt: time.Now(),
	})
	assert.Len(evs, 5)

	byId := map[string]any{}
	for _, ev := range evs {
		byId[ev.(domain.SensorUpdateEvent).SensorId()] = ev
	}
	assert.Equal("absorb", byId[domain.SENSOR_ID_CHARGE_STATE].(domain.TextSensorUpdateEvent).Value)
	assert.Equal(4, byId[domain.SENSOR_ID_CHARGE_STATE_CODE].(domain.IntSensorUpdateEvent).Value)
	assert.Equal(2, byId[domain.SENSOR_ID_VEBUS_CHARGE_STATE].(domain.IntSensorUpdateEvent).Value)
	assert.Equal(32.4, byId[domain.SENSOR_ID_CHARGE_CURRENT].(domain.FloatSensorUpdateEvent).Value)
	assert.Equal(160.0, byId[domain.SENSOR_ID_REQUESTED_BULK_CURRENT].(domain.FloatSensorUpdateEvent).Value)
}

func TestBatteryStateToUpdateEventsSkipsMissing(t *testing.T) {

	assert := assert.New(t)

	assert.Empty(BatteryStateToUpdateEvents(nil))

	evs := BatteryStateToUpdateEvents(&gxmodbus.BatteryState{
		Voltage:          53.1,
		Current:          -4.2,
		VoltageAvailable: true,
		CurrentAvailable: true,
	})
	assert.Len(evs, 2)
	assert.Equal(domain.SENSOR_ID_BATTERY_VOLTAGE, evs[0].(domain.SensorUpdateEvent).SensorId())
	assert.Equal(domain.SENSOR_ID_BATTERY_CURRENT, evs[1].(domain.SensorUpdateEvent).SensorId())
}

func TestSwitchAndNumberEvents(t *testing.T) {

	assert := assert.New(t)

	sw := ChargeEnableSwitchUpdateEvent(true).(domain.SwitchSensorUpdateEvent)
	assert.Equal(domain.SWITCH_ID_CHARGE_ENABLE, sw.Id)
	assert.True(sw.Value)

	num := CurrentLimitUpdateEvent(45).(domain.InputNumberSensorUpdateEvent)
	assert.Equal(domain.INPUT_NUMBER_ID_CURRENT_LIMIT, num.Id)
	assert.Equal(45.0, num.Value)

	can := CanBusUpdateEvent(false).(domain.BinarySensorUpdateEvent)
	assert.Equal(domain.SENSOR_ID_CAN_BUS, can.Id)
	assert.False(can.Value)
}
