package actor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sunnyisland2mqtt/internal/config"
	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/core/events"
	"sunnyisland2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/brutella/can"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Sunny Island broadcast range. Frames are counted, never decoded.
const (
	INVERTER_FRAME_ID_MIN = 0x300
	INVERTER_FRAME_ID_MAX = 0x30F

	CAN_CONNECT_MAX_ELAPSED = 2 * time.Minute
)

// FrameBus is the part of *can.Bus the watchdog needs.
type FrameBus interface {
	SubscribeFunc(fn can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
}

type FrameBusProvider func(iface string) (FrameBus, error)

func SocketCANBusProvider(iface string) (FrameBus, error) {
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, errors.Wrapf(err, "canbus: open interface %s", iface)
	}
	return bus, nil
}

// CANBusActor watches the inverter CAN bus and reports when it goes silent or
// comes back. Reports go to notify as domain.ChargeControlBusStateRequest.
type CANBusActor struct {
	behavior    actor.Behavior
	stash       *actorutil.Stash
	scheduler   *scheduler.TimerScheduler
	config      config.CANConfig
	provider    FrameBusProvider
	eventStream *eventstream.EventStream
	notify      *actor.PID
	logger      *zap.Logger

	bus        FrameBus
	cancel     context.CancelFunc
	lastFrame  atomic.Int64
	frames     atomic.Uint64
	connected  time.Time
	alive      *bool
	stopping   bool
	cancelTick scheduler.CancelFunc
}

type canBusConnected struct {
	bus FrameBus
}

type canBusClosed struct {
	err error
}

type canBusTick struct {
}

func NewCANBusActor(cfg config.CANConfig, provider FrameBusProvider, eventStream *eventstream.EventStream,
	notify *actor.PID, logger *zap.Logger) *CANBusActor {
	act := &CANBusActor{
		config:      cfg,
		provider:    provider,
		eventStream: eventStream,
		notify:      notify,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_CANBUS, logger),
	}
	act.behavior.Become(act.ConnectingReceive)
	return act
}

func (state *CANBusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *CANBusActor) ConnectingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("canbus@connecting started", zap.String("interface", state.config.Interface))
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		state.connect(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CANBUS,
			Healthy: false,
			State:   "connecting",
		})
	case canBusConnected:
		state.logger.Info("canbus@connecting connected", zap.String("interface", state.config.Interface))
		state.bus = msg.bus
		state.connected = time.Now()
		state.listen(ctx)
		state.cancelTick = state.scheduler.RequestRepeatedly(state.tickInterval(), state.tickInterval(), ctx.Self(), canBusTick{})
		state.behavior.Become(state.ListeningReceive)
		state.stash.UnstashAll(ctx)
	case canBusClosed:
		if state.stopping {
			return
		}
		state.logger.Error("canbus@connecting giving up", zap.Error(msg.err))
		panic(msg.err)
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("canbus@connecting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *CANBusActor) ListeningReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CANBUS,
			Healthy: true,
			State:   state.stateName(),
		})
	case canBusTick:
		state.checkSilence(ctx, time.Now())
	case canBusClosed:
		if state.stopping {
			return
		}
		if msg.err == nil {
			msg.err = errors.New("canbus: bus closed")
		}
		state.logger.Error("canbus@listening bus closed", zap.Error(msg.err))
		state.report(ctx, false)
		panic(msg.err)
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("canbus@listening recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// checkSilence reports a state change once the bus has been quiet for
// longer than the silence timeout. Before the first frame the timeout counts
// from the connection time.
func (state *CANBusActor) checkSilence(ctx actor.Context, now time.Time) {
	last := state.connected
	if nanos := state.lastFrame.Load(); nanos > 0 {
		last = time.Unix(0, nanos)
	}
	silent := now.Sub(last) > state.silenceTimeout()
	if silent {
		state.report(ctx, false)
	} else if state.lastFrame.Load() > 0 {
		state.report(ctx, true)
	}
}

func (state *CANBusActor) report(ctx actor.Context, alive bool) {
	if state.alive != nil && *state.alive == alive {
		return
	}
	state.alive = &alive
	if alive {
		state.logger.Info("canbus: inverter frames received", zap.Uint64("frames", state.frames.Load()))
	} else {
		state.logger.Warn("canbus: inverter silent", zap.Duration("timeout", state.silenceTimeout()))
	}
	if state.notify != nil {
		ctx.Send(state.notify, domain.ChargeControlBusStateRequest{Alive: alive})
	}
	if state.eventStream != nil {
		state.eventStream.Publish(events.CanBusUpdateEvent(alive))
	}
}

func (state *CANBusActor) connect(ctx actor.Context) {
	bctx, cancel := context.WithCancel(context.Background())
	state.cancel = cancel
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	iface := state.config.Interface
	logger := state.logger

	go func() {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = CAN_CONNECT_MAX_ELAPSED
		var bus FrameBus
		err := backoff.RetryNotify(func() error {
			var err error
			bus, err = state.provider(iface)
			return err
		}, backoff.WithContext(b, bctx), func(err error, d time.Duration) {
			logger.Warn("canbus: connect failed, retrying", zap.Error(err), zap.Duration("in", d))
		})
		if err != nil {
			root.Send(self, canBusClosed{err: errors.Wrap(err, "canbus: could not connect")})
			return
		}
		root.Send(self, canBusConnected{bus: bus})
	}()
}

func (state *CANBusActor) listen(ctx actor.Context) {
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	bus := state.bus

	bus.SubscribeFunc(state.handleFrame)
	go func() {
		err := bus.ConnectAndPublish()
		root.Send(self, canBusClosed{err: err})
	}()
}

// handleFrame runs on the bus goroutine.
func (state *CANBusActor) handleFrame(frame can.Frame) {
	if frame.ID < INVERTER_FRAME_ID_MIN || frame.ID > INVERTER_FRAME_ID_MAX {
		return
	}
	state.frames.Add(1)
	state.lastFrame.Store(time.Now().UnixNano())
}

func (state *CANBusActor) stop() {
	state.stopping = true
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
	if state.cancel != nil {
		state.cancel()
	}
	if state.bus != nil {
		if err := state.bus.Disconnect(); err != nil {
			state.logger.Debug("canbus: disconnect", zap.Error(err))
		}
		state.bus = nil
	}
}

func (state *CANBusActor) stateName() string {
	switch {
	case state.alive == nil:
		return "waiting"
	case *state.alive:
		return "alive"
	default:
		return "silent"
	}
}

func (state *CANBusActor) silenceTimeout() time.Duration {
	return time.Duration(state.config.SilenceTimeoutMillis) * time.Millisecond
}

func (state *CANBusActor) tickInterval() time.Duration {
	return state.silenceTimeout() / 4
}

// TestFrameBus is an in-memory FrameBus.
type TestFrameBus struct {
	mu       sync.Mutex
	handlers []can.HandlerFunc
	done     chan struct{}
	closed   bool
}

func NewTestFrameBus() *TestFrameBus {
	return &TestFrameBus{done: make(chan struct{})}
}

func (b *TestFrameBus) SubscribeFunc(fn can.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
}

func (b *TestFrameBus) ConnectAndPublish() error {
	<-b.done
	return nil
}

func (b *TestFrameBus) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}

func (b *TestFrameBus) Publish(frame can.Frame) {
	b.mu.Lock()
	handlers := append([]can.HandlerFunc(nil), b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(frame)
	}
}
