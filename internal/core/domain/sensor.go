package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE           = "bridge"
	SENSOR_ID_CHARGE_STATE           = "charge_state"
	SENSOR_ID_CHARGE_STATE_CODE      = "charge_state_code"
	SENSOR_ID_VEBUS_CHARGE_STATE     = "vebus_charge_state"
	SENSOR_ID_CHARGE_CURRENT         = "charge_current"
	SENSOR_ID_REQUESTED_BULK_CURRENT = "requested_bulk_current"
	SENSOR_ID_BATTERY_VOLTAGE        = "battery_voltage"
	SENSOR_ID_BATTERY_CURRENT        = "battery_current"
	SENSOR_ID_BATTERY_SOC            = "battery_soc"
	SENSOR_ID_PV_CURRENT             = "pv_current"
	SENSOR_ID_CAN_BUS                = "can_bus"
	SWITCH_ID_CHARGE_ENABLE          = "charge_enable"
	INPUT_NUMBER_ID_CURRENT_LIMIT    = "charge_current_limit"
	STATE_CLASS_MEASUREMENT          = "measurement"
	DEVICE_CLASS_BATTERY             = "battery"
	DEVICE_CLASS_CURRENT             = "current"
	DEVICE_CLASS_VOLTAGE             = "voltage"
	DEVICE_CLASS_CONNECTIVITY        = "connectivity"
	DEVICE_CLASS_ENUM                = "enum"
	ENTITY_CLASS_DIAGNOSTIC          = "diagnostic"
	ENTITY_CLASS_CONFIG              = "config"
	SENSOR_TYPE_SENSOR               = "sensor"
	SENSOR_TYPE_BINARY               = "binary_sensor"
	INPUT_NUMBER_MODE_BOX            = "box"
	INPUT_NUMBER_MODE_SLIDER         = "slider"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement
	DeviceClass       string // voltage, current, battery, connectivity
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

type GenericSwitch struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

type GenericInputNumber struct {
	Device            Device
	Id                string
	Name              string
	UniqueId          string
	Icon              string
	UnitOfMeasurement string
	Max               float64
	Min               float64
	Step              float64
	Mode              string
	InitialValue      float64
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("sunnyisland_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "sunnyisland2mqtt",
		Model:        "Charge controller bridge",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Sunny Island bridge %s", md5HashShort(baseTopic)),
	}
}

func ChargerDevice(baseTopic string, bridge Device) Device {
	return Device{
		Id:           fmt.Sprintf("sunnyisland_charger_%s", md5HashShort(baseTopic)),
		Manufacturer: "SMA",
		Model:        "Sunny Island",
		Name:         fmt.Sprintf("Sunny Island charger %s", md5HashShort(baseTopic)),
		ViaDevice:    bridge.Id,
	}
}

// IdDevice strips a device down to its identity. Home Assistant only needs
// the full description on one entity.
func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridgeDevice Device, canEnabled bool) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	if canEnabled {
		sensors = append(sensors, GenericSensor{
			Device:         IdDevice(bridgeDevice),
			Id:             SENSOR_ID_CAN_BUS,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Inverter CAN bus",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_CAN_BUS),
		})
	}

	return sensors
}

func ChargeSensors(chargerDevice Device) []GenericSensor {

	var sensors []GenericSensor
	idDevice := IdDevice(chargerDevice)

	// Charge state
	sensors = append(sensors, GenericSensor{
		Device:     chargerDevice,
		Id:         SENSOR_ID_CHARGE_STATE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Charge state",
		Icon:       "mdi:battery-charging",
		UniqueId:   uniqueId(chargerDevice.Id, SENSOR_ID_CHARGE_STATE),
	})

	// Victron system state code
	sensors = append(sensors, GenericSensor{
		Device:           idDevice,
		Id:               SENSOR_ID_CHARGE_STATE_CODE,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "System state code",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(chargerDevice.Id, SENSOR_ID_CHARGE_STATE_CODE),
	})

	// VE.Bus charge state
	sensors = append(sensors, GenericSensor{
		Device:           idDevice,
		Id:               SENSOR_ID_VEBUS_CHARGE_STATE,
		SensorType:       SENSOR_TYPE_SENSOR,
		Name:             "VE.Bus charge state",
		EntityCategory:   ENTITY_CLASS_DIAGNOSTIC,
		EnabledByDefault: optionalBool(false),
		UniqueId:         uniqueId(chargerDevice.Id, SENSOR_ID_VEBUS_CHARGE_STATE),
	})

	// Commanded charge current
	sensors = append(sensors, GenericSensor{
		Device:            idDevice,
		Id:                SENSOR_ID_CHARGE_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Charge current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_CHARGE_CURRENT),
	})

	// Bulk current in effect
	sensors = append(sensors, GenericSensor{
		Device:            idDevice,
		Id:                SENSOR_ID_REQUESTED_BULK_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Bulk current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_REQUESTED_BULK_CURRENT),
	})

	return sensors
}

func BatterySensors(chargerDevice Device) []GenericSensor {

	var sensors []GenericSensor
	idDevice := IdDevice(chargerDevice)

	sensors = append(sensors, GenericSensor{
		Device:            idDevice,
		Id:                SENSOR_ID_BATTERY_VOLTAGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery voltage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_VOLTAGE,
		UnitOfMeasurement: "V",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_BATTERY_VOLTAGE),
	})
	sensors = append(sensors, GenericSensor{
		Device:            idDevice,
		Id:                SENSOR_ID_BATTERY_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_BATTERY_CURRENT),
	})
	sensors = append(sensors, GenericSensor{
		Device:            idDevice,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_BATTERY_SOC),
	})
	sensors = append(sensors, GenericSensor{
		Device:            idDevice,
		Id:                SENSOR_ID_PV_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "PV DC current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(chargerDevice.Id, SENSOR_ID_PV_CURRENT),
	})

	return sensors
}

func ChargeControlSwitches(chargerDevice Device) []GenericSwitch {
	return []GenericSwitch{{
		Device:   IdDevice(chargerDevice),
		Id:       SWITCH_ID_CHARGE_ENABLE,
		Name:     "Charge enable",
		UniqueId: uniqueId(chargerDevice.Id, SWITCH_ID_CHARGE_ENABLE),
		Icon:     "mdi:battery-plus",
	}}
}

func ChargeControlInputNumbers(chargerDevice Device, bulkCurrent float64) []GenericInputNumber {
	return []GenericInputNumber{{
		Device:            IdDevice(chargerDevice),
		Id:                INPUT_NUMBER_ID_CURRENT_LIMIT,
		Name:              "Charge current limit",
		UniqueId:          uniqueId(chargerDevice.Id, INPUT_NUMBER_ID_CURRENT_LIMIT),
		Icon:              "mdi:current-dc",
		UnitOfMeasurement: "A",
		Max:               bulkCurrent,
		Min:               0,
		Step:              1,
		Mode:              INPUT_NUMBER_MODE_BOX,
		InitialValue:      0,
	}}
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
