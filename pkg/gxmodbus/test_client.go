package gxmodbus

import (
	"sync"
)

func CreateTestSystemReader() (SystemReader, error) {
	return NewTestSystemReader(BatteryState{
		Voltage:          52.3,
		Current:          42.5,
		SOC:              63,
		PVCurrent:        12.4,
		VoltageAvailable: true,
		CurrentAvailable: true,
		SOCAvailable:     true,
		PVAvailable:      true,
	}, 0), nil
}

// TestSystemReader returns a fixed battery state. When VoltageStep is set the
// voltage grows on every read, which is enough to walk a charge cycle.
type TestSystemReader struct {
	mu          sync.Mutex
	state       BatteryState
	VoltageStep float64
	Err         error
	reads       int
}

func NewTestSystemReader(state BatteryState, voltageStep float64) *TestSystemReader {
	return &TestSystemReader{
		state:       state,
		VoltageStep: voltageStep,
	}
}

func (reader *TestSystemReader) Open() error {
	return nil
}

func (reader *TestSystemReader) Close() error {
	return nil
}

func (reader *TestSystemReader) GetBatteryState() (*BatteryState, error) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if reader.Err != nil {
		return nil, reader.Err
	}
	reader.reads++
	state := reader.state
	reader.state.Voltage += reader.VoltageStep
	return &state, nil
}

func (reader *TestSystemReader) SetState(state BatteryState) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.state = state
}

func (reader *TestSystemReader) SetErr(err error) {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	reader.Err = err
}

func (reader *TestSystemReader) Reads() int {
	reader.mu.Lock()
	defer reader.mu.Unlock()
	return reader.reads
}
