package actor

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"sunnyisland2mqtt/internal/config"
	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/brutella/can"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testCANConfig = config.CANConfig{
	Enable:               true,
	Interface:            "vcan0",
	SilenceTimeoutMillis: 400,
}

func TestCANBusWatchdog(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	bus := NewTestFrameBus()
	reports := make(chan bool, 16)
	notifyPID := context.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if msg, ok := ctx.Message().(domain.ChargeControlBusStateRequest); ok {
			reports <- msg.Alive
		}
	}))

	var busEvents atomic.Int32
	es := &eventstream.EventStream{}
	es.Subscribe(func(evt any) {
		if _, ok := evt.(domain.BinarySensorUpdateEvent); ok {
			busEvents.Add(1)
		}
	})

	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewCANBusActor(testCANConfig, func(string) (FrameBus, error) { return bus, nil }, es, notifyPID, logger)
	}))

	require.Eventually(func() bool {
		hc, err := healthCheck(context, pid)
		return err == nil && hc.Healthy
	}, time.Second, 20*time.Millisecond)
	hc, err := healthCheck(context, pid)
	require.NoError(err)
	require.Equal("waiting", hc.State)

	// frames outside the inverter range are not counted
	bus.Publish(can.Frame{ID: 0x351, Length: 8})
	// inverter frame
	bus.Publish(can.Frame{ID: 0x305, Length: 8})

	require.True(waitReport(reports, 2*time.Second, true), "bus should be reported alive")

	// no more frames, watchdog fires
	require.True(waitReport(reports, 2*time.Second, false), "bus should be reported silent")

	hc, err = healthCheck(context, pid)
	require.NoError(err)
	require.Equal("silent", hc.State)

	bus.Publish(can.Frame{ID: 0x300, Length: 8})
	require.True(waitReport(reports, 2*time.Second, true), "bus should be reported alive again")
	require.Equal(int32(3), busEvents.Load())

	context.Stop(pid)
	as.Shutdown()
}

func TestCANBusSilentFromStart(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	reports := make(chan bool, 16)
	notifyPID := context.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		if msg, ok := ctx.Message().(domain.ChargeControlBusStateRequest); ok {
			reports <- msg.Alive
		}
	}))

	bus := NewTestFrameBus()
	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewCANBusActor(testCANConfig, func(string) (FrameBus, error) { return bus, nil }, nil, notifyPID, logger)
	}))

	require.True(waitReport(reports, 2*time.Second, false), "bus without frames should be reported silent")

	context.Stop(pid)
	as.Shutdown()
}

func TestCANBusConnectRetries(t *testing.T) {

	require := require.New(t)

	logger := zap.Must(zap.NewDevelopment())
	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	var attempts atomic.Int32
	bus := NewTestFrameBus()
	provider := func(string) (FrameBus, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("no such device")
		}
		return bus, nil
	}

	pid := context.Spawn(actor.PropsFromProducer(func() actor.Actor {
		return NewCANBusActor(testCANConfig, provider, nil, nil, logger)
	}))

	require.Eventually(func() bool {
		hc, err := healthCheck(context, pid)
		return err == nil && hc.Healthy
	}, 5*time.Second, 100*time.Millisecond)
	require.GreaterOrEqual(attempts.Load(), int32(3))

	context.Stop(pid)
	as.Shutdown()
}

func waitReport(reports chan bool, timeout time.Duration, want bool) bool {
	deadline := time.After(timeout)
	for {
		select {
		case got := <-reports:
			if got == want {
				return true
			}
		case <-deadline:
			return false
		}
	}
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
