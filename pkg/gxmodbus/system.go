package gxmodbus

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// Victron GX system service (com.victronenergy.system), input registers.
const (
	DEFAULT_SYSTEM_UNIT_ID = 100

	REG_BATTERY_VOLTAGE = 840 // uint16, V x10
	REG_BATTERY_CURRENT = 841 // int16, A x10, positive = charging
	REG_BATTERY_SOC     = 843 // uint16, %
	REG_PV_DC_CURRENT   = 851 // int16, A x10

	regBlockStart = REG_BATTERY_VOLTAGE
	regBlockSize  = REG_PV_DC_CURRENT - REG_BATTERY_VOLTAGE + 1

	notAvailableUint16 uint16 = 0xFFFF
	notAvailableInt16  uint16 = 0x7FFF
)

type BatteryState struct {
	Voltage          float64
	Current          float64
	SOC              float64
	PVCurrent        float64
	VoltageAvailable bool
	CurrentAvailable bool
	SOCAvailable     bool
	PVAvailable      bool
}

// Valid reports whether the state carries a usable voltage/current pair.
func (s BatteryState) Valid() bool {
	return s.VoltageAvailable && s.CurrentAvailable
}

type SystemReader interface {
	Open() error
	Close() error
	GetBatteryState() (*BatteryState, error)
}

type SystemModbusReader struct {
	ModbusClient

	url    string
	unitId uint8
}

func CreateSystemModbusReader(ip string, port uint, unitId uint8, timeout time.Duration,
	logger *zap.Logger, instrumentation *ModbusInstrument) (SystemReader, error) {
	url := fmt.Sprintf("tcp://%s:%d", ip, port)
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "gxmodbus: create client for %s", url)
	}
	// instrumentation
	var inst []ModbusInstrument
	if logger != nil {
		logInst := traceLoggerInstrumentation(logger.With(zap.String("target", "gx")).With(zap.Uint8("unit", unitId)))
		if logInst != nil {
			inst = append(inst, *logInst)
		}
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	err = client.SetUnitId(unitId)
	if err != nil {
		return nil, errors.Wrapf(err, "gxmodbus: set unit id %d", unitId)
	}
	return &SystemModbusReader{
		ModbusClient: ModbusClient{
			client:     client,
			instrument: inst,
		},
		url:    url,
		unitId: unitId,
	}, nil
}

func (r *SystemModbusReader) Open() error {
	if err := r.client.Open(); err != nil {
		return errors.Wrapf(err, "gxmodbus: open %s", r.url)
	}
	return nil
}

func (r *SystemModbusReader) Close() error {
	return r.client.Close()
}

func (r *SystemModbusReader) GetBatteryState() (*BatteryState, error) {
	regs, err := r.readRegisters(regBlockStart, regBlockSize, modbus.INPUT_REGISTER)
	if err != nil {
		return nil, errors.Wrapf(err, "gxmodbus: read registers %d..%d from unit %d", regBlockStart, REG_PV_DC_CURRENT, r.unitId)
	}
	return DecodeBatteryState(regs)
}

// DecodeBatteryState maps the 840..851 register block into a BatteryState.
// GX "not available" sentinels leave the value unset.
func DecodeBatteryState(regs []uint16) (*BatteryState, error) {
	if len(regs) < regBlockSize {
		return nil, errors.Errorf("gxmodbus: expected %d registers, got %d", regBlockSize, len(regs))
	}
	reg := func(addr uint16) uint16 {
		return regs[addr-regBlockStart]
	}

	state := &BatteryState{}
	if v := reg(REG_BATTERY_VOLTAGE); v != notAvailableUint16 {
		state.Voltage = float64(v) / 10
		state.VoltageAvailable = true
	}
	if v := reg(REG_BATTERY_CURRENT); v != notAvailableInt16 {
		state.Current = float64(int16(v)) / 10
		state.CurrentAvailable = true
	}
	if v := reg(REG_BATTERY_SOC); v != notAvailableUint16 {
		state.SOC = float64(v)
		state.SOCAvailable = true
	}
	if v := reg(REG_PV_DC_CURRENT); v != notAvailableInt16 {
		state.PVCurrent = float64(int16(v)) / 10
		state.PVAvailable = true
	}
	return state, nil
}
