package actor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	adactor "sunnyisland2mqtt/internal/adapter/actor"
	"sunnyisland2mqtt/internal/config"
	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/metrics"
	"sunnyisland2mqtt/internal/util"
	"sunnyisland2mqtt/internal/util/actorutil"
	"sunnyisland2mqtt/pkg/gxmodbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var bulkBatteryState = gxmodbus.BatteryState{
	Voltage:          52.0,
	Current:          100,
	SOC:              55,
	VoltageAvailable: true,
	CurrentAvailable: true,
	SOCAvailable:     true,
}

func testChargeConfig() *config.Config {
	cfg := util.LoadTestConfig()
	cfg.Charge.ControlIntervalMillis = 100
	return &cfg
}

func spawnChargeControl(context *actor.RootContext, cfg *config.Config, reader gxmodbus.SystemReader,
	es *eventstream.EventStream, logger *zap.Logger) *actor.PID {
	modbusPID := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewModbusActor(reader, logger)
	}))
	return context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewChargeControlActor(cfg, modbusPID, es, metrics.NewCollector(), nil, logger)
	}))
}

func TestChargeControlFlow(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	reader := gxmodbus.NewTestSystemReader(bulkBatteryState, 0)
	pid := spawnChargeControl(context, testChargeConfig(), reader, &eventstream.EventStream{}, logger)

	requireState(t, context, pid, "running", "awaitSample")

	// samples are taken every tick
	require.Eventually(func() bool {
		return reader.Reads() >= 3
	}, 2*time.Second, 20*time.Millisecond)

	status, err := chargeStatus(context, pid)
	require.NoError(err)
	fmt.Printf("status: %+v\n", status)
	require.True(status.Enabled)
	require.Equal(domain.ChargeStateBulk, status.Status.State)
	require.Equal(160.0, status.Status.BulkCurrent)
	require.InDelta(52.0, status.Status.ActualVoltage, 0.001)

	// stop
	context.Send(pid, domain.ChargeControlEnableRequest{Enable: false})
	requireState(t, context, pid, "canceled")

	status, err = chargeStatus(context, pid)
	require.NoError(err)
	require.False(status.Enabled)
	require.Equal(domain.ChargeStateCanceled, status.Status.State)
	require.Equal(0.0, status.Status.ChargeCurrent)

	// no more samples while canceled
	reads := reader.Reads()
	time.Sleep(400 * time.Millisecond)
	require.LessOrEqual(reader.Reads(), reads+1)

	// restart on a fresh cycle
	context.Send(pid, domain.ChargeControlEnableRequest{Enable: true})
	requireState(t, context, pid, "running", "awaitSample")
	status, err = chargeStatus(context, pid)
	require.NoError(err)
	require.True(status.Enabled)
	require.Equal(domain.ChargeStateBulk, status.Status.State)

	context.Stop(pid)
	as.Shutdown()
}

func TestChargeControlCurrentLimit(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	reader := gxmodbus.NewTestSystemReader(bulkBatteryState, 0)
	pid := spawnChargeControl(context, testChargeConfig(), reader, &eventstream.EventStream{}, logger)
	requireState(t, context, pid, "running", "awaitSample")

	context.Send(pid, domain.ChargeControlSetCurrentLimitRequest{Amps: 40})

	require.Eventually(func() bool {
		status, err := chargeStatus(context, pid)
		return err == nil && status.CurrentLimit == 40 && status.Status.BulkCurrent == 40
	}, 2*time.Second, 50*time.Millisecond)

	// above the configured bulk current
	context.Send(pid, domain.ChargeControlSetCurrentLimitRequest{Amps: 500})
	require.Eventually(func() bool {
		status, err := chargeStatus(context, pid)
		return err == nil && status.CurrentLimit == 160
	}, 2*time.Second, 50*time.Millisecond)

	// back to automatic
	context.Send(pid, domain.ChargeControlSetCurrentLimitRequest{Amps: 0})
	require.Eventually(func() bool {
		status, err := chargeStatus(context, pid)
		return err == nil && status.CurrentLimit == 0 && status.Status.BulkCurrent == 160
	}, 2*time.Second, 50*time.Millisecond)

	context.Stop(pid)
	as.Shutdown()
}

func TestChargeControlBusWatchdog(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	reader := gxmodbus.NewTestSystemReader(bulkBatteryState, 0)
	pid := spawnChargeControl(context, testChargeConfig(), reader, &eventstream.EventStream{}, logger)
	requireState(t, context, pid, "running", "awaitSample")

	context.Send(pid, domain.ChargeControlBusStateRequest{Alive: false})
	requireState(t, context, pid, "canceled")

	// enable is kept, charge waits for the bus
	context.Send(pid, domain.ChargeControlEnableRequest{Enable: true})
	time.Sleep(200 * time.Millisecond)
	requireState(t, context, pid, "canceled")
	status, err := chargeStatus(context, pid)
	require.NoError(err)
	require.True(status.Enabled)

	context.Send(pid, domain.ChargeControlBusStateRequest{Alive: true})
	requireState(t, context, pid, "running", "awaitSample")

	// bus back while disabled does not start a cycle
	context.Send(pid, domain.ChargeControlEnableRequest{Enable: false})
	requireState(t, context, pid, "canceled")
	context.Send(pid, domain.ChargeControlBusStateRequest{Alive: false})
	context.Send(pid, domain.ChargeControlBusStateRequest{Alive: true})
	time.Sleep(200 * time.Millisecond)
	requireState(t, context, pid, "canceled")

	context.Stop(pid)
	as.Shutdown()
}

func TestChargeControlDisabledAtStart(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	cfg := testChargeConfig()
	cfg.Charge.AutoStart = false
	reader := gxmodbus.NewTestSystemReader(bulkBatteryState, 0)
	pid := spawnChargeControl(context, cfg, reader, nil, logger)

	requireState(t, context, pid, "canceled")
	time.Sleep(300 * time.Millisecond)
	require.Equal(0, reader.Reads())

	context.Stop(pid)
	as.Shutdown()
}

func TestChargeControlSampleErrors(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	reader := gxmodbus.NewTestSystemReader(bulkBatteryState, 0)
	reader.SetErr(errors.New("connection reset"))
	pid := spawnChargeControl(context, testChargeConfig(), reader, nil, logger)

	// failed reads keep the last state and the tick going
	time.Sleep(500 * time.Millisecond)
	requireState(t, context, pid, "running", "awaitSample")
	status, err := chargeStatus(context, pid)
	require.NoError(err)
	require.Equal(domain.ChargeStateBulk, status.Status.State)
	require.Equal(0.0, status.Status.ActualVoltage)

	context.Stop(pid)
	as.Shutdown()
}

func requireState(t *testing.T, context *actor.RootContext, pid *actor.PID, states ...string) {
	require.Eventually(t, func() bool {
		hc, err := healthCheck(context, pid)
		if err != nil || !hc.Healthy {
			return false
		}
		for _, s := range states {
			if hc.State == s {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond, "expected state in %v", states)
}

func chargeStatus(ctx *actor.RootContext, pid *actor.PID) (*domain.ChargeStatusResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ChargeStatusRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	csr, ok := resp.(domain.ChargeStatusResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &csr, nil
}

func healthCheck(ctx *actor.RootContext, pid *actor.PID) (*domain.ActorHealthResponse, error) {
	resp, err := ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	if err != nil {
		return nil, err
	}
	hcr, ok := resp.(domain.ActorHealthResponse)
	if !ok {
		return nil, errors.New("unexpected response type")
	}
	return &hcr, nil
}
