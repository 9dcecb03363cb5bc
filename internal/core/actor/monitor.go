package actor

import (
	"fmt"
	"time"

	"sunnyisland2mqtt/internal/config"
	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/core/events"
	"sunnyisland2mqtt/internal/metrics"
	. "sunnyisland2mqtt/internal/util/actorutil"
	"sunnyisland2mqtt/pkg/gxmodbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// MonitorActor polls the GX for battery telemetry and publishes it.
type MonitorActor struct {
	behavior  actor.Behavior
	stash     *Stash
	scheduler *scheduler.TimerScheduler

	modbusActor *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	metrics     *metrics.Collector
	last        *gxmodbus.BatteryState
	errors      uint

	logger *zap.Logger
}

type monitorTick struct {
}

// MonitorLastStateRequest returns the last battery state read by the monitor.
type MonitorLastStateRequest struct {
}

type MonitorLastStateResponse struct {
	BatteryState *gxmodbus.BatteryState
	Errors       uint
}

func NewMonitorActor(config *config.Config, modbusActor *actor.PID, eventStream *eventstream.EventStream,
	collector *metrics.Collector, logger *zap.Logger) *MonitorActor {
	act := &MonitorActor{
		config:      config,
		modbusActor: modbusActor,
		behavior:    actor.NewBehavior(),
		stash:       &Stash{},
		logger:      ActorLogger(domain.ACTOR_ID_MONITOR, logger),
		eventStream: eventStream,
		metrics:     collector,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MonitorActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MonitorActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("monitor@starting started")

		state.scheduler = scheduler.NewTimerScheduler(ctx)
		if state.config.MonitorConfig.PollIntervalMillis > 0 {
			// first poll right away
			ctx.Send(ctx.Self(), monitorTick{})
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.logger.Debug("monitor@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MonitorActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("monitor@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MONITOR,
			Healthy: true,
			State:   "idle",
		})
	case MonitorLastStateRequest:
		ctx.Respond(state.lastStateResponse())
	case monitorTick:
		state.logger.Debug("monitor@default tick")
		PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.modbusActor, domain.GetBatteryStateRequest{}, 2*time.Second), func(err error) any {
			return domain.GetBatteryStateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
		state.scheduler.RequestOnce(time.Duration(state.config.MonitorConfig.PollIntervalMillis)*time.Millisecond, ctx.Self(), monitorTick{})
		state.behavior.BecomeStacked(state.WaitingBatteryReceive)
	default:
		state.logger.Debug("monitor@default: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MonitorActor) WaitingBatteryReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetBatteryStateResponse:
		if msg.HasResponseError() {
			state.errors++
			state.logger.Error("monitor@waiting GetBatteryStateResponse error", zap.Error(msg.GetResponseError()))
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
			return
		}
		state.logger.Debug("monitor@waiting GetBatteryStateResponse")
		state.last = msg.BatteryState
		if state.eventStream != nil {
			for _, ev := range events.BatteryStateToUpdateEvents(msg.BatteryState) {
				state.eventStream.Publish(ev)
			}
		}
		if state.metrics != nil {
			state.metrics.ObserveBatteryState(msg.BatteryState)
		}

		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MONITOR,
			Healthy: true,
			State:   "waiting",
		})
	default:
		state.logger.Debug("monitor@waiting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MonitorActor) lastStateResponse() MonitorLastStateResponse {
	resp := MonitorLastStateResponse{Errors: state.errors}
	if state.last != nil {
		bs := *state.last
		resp.BatteryState = &bs
	}
	return resp
}
