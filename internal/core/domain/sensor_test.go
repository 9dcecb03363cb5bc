package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensorCatalogUniqueIds(t *testing.T) {

	assert := assert.New(t)

	bridge := BridgeDevice("sunnyisland")
	charger := ChargerDevice("sunnyisland", bridge)
	assert.Equal(bridge.Id, charger.ViaDevice)
	assert.NotEqual(bridge.Id, charger.Id)

	var sensors []GenericSensor
	sensors = append(sensors, BridgeSensors(bridge, true)...)
	sensors = append(sensors, ChargeSensors(charger)...)
	sensors = append(sensors, BatterySensors(charger)...)
	assert.Len(sensors, 11)

	seen := map[string]bool{}
	for _, s := range sensors {
		assert.False(seen[s.UniqueId], "duplicate unique id %s", s.UniqueId)
		seen[s.UniqueId] = true
		assert.NotEmpty(s.SensorType, s.Id)
	}

	numbers := ChargeControlInputNumbers(charger, 160)
	assert.Equal(160.0, numbers[0].Max)
	assert.Equal(0.0, numbers[0].Min)
}

func TestBridgeSensorsWithoutCAN(t *testing.T) {

	sensors := BridgeSensors(BridgeDevice("x"), false)
	assert.Len(t, sensors, 1)
	assert.Equal(t, SENSOR_ID_BRIDGE_STATE, sensors[0].Id)
}

func TestDeviceIdsDependOnTopic(t *testing.T) {

	assert.NotEqual(t, BridgeDevice("a").Id, BridgeDevice("b").Id)
	assert.Equal(t, BridgeDevice("a").Id, BridgeDevice("a").Id)
}
