package actor

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"sunnyisland2mqtt/internal/config"
	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/core/events"
	"sunnyisland2mqtt/internal/core/service"
	"sunnyisland2mqtt/internal/metrics"
	. "sunnyisland2mqtt/internal/util/actorutil"
	"sunnyisland2mqtt/internal/util/clock"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

const (
	SAMPLE_REQUEST_TIMEOUT = 2 * time.Second
)

// ChargeControlActor owns the charge controller. Every call into the
// controller happens on this actor's mailbox.
type ChargeControlActor struct {
	ActorWithStates
	scheduler   *scheduler.TimerScheduler
	stash       *Stash
	modbusActor *actor.PID
	config      *config.Config
	eventStream *eventstream.EventStream
	metrics     *metrics.Collector
	clock       clock.Clock
	policy      *service.DefaultChargePolicy
	controller  *service.ChargeController

	enabled      bool
	busAlive     bool
	stoppedByBus bool
	manualLimit  float64
	cancelTick   scheduler.CancelFunc

	logger *zap.Logger
}

type chargeControlTick struct {
}

func NewChargeControlActor(config *config.Config, modbusActor *actor.PID, eventStream *eventstream.EventStream,
	collector *metrics.Collector, clk clock.Clock, logger *zap.Logger) *ChargeControlActor {
	if clk == nil {
		clk = clock.NewReal()
	}
	actorLogger := ActorLogger(domain.ACTOR_ID_CHARGE_CONTROL, logger)
	act := &ChargeControlActor{
		config:      config,
		modbusActor: modbusActor,
		stash:       &Stash{},
		eventStream: eventStream,
		metrics:     collector,
		clock:       clk,
		policy: &service.DefaultChargePolicy{
			Config: config.ChargePolicy,
			Clock:  clk,
			Logger: actorLogger,
		},
		enabled:  config.Charge.AutoStart,
		busAlive: true,
		logger:   actorLogger,
		ActorWithStates: ActorWithStates{
			Behavior: actor.NewBehavior(),
		},
	}
	act.Become(CCStartingState{
		actor: act,
	})
	return act
}

func (state *ChargeControlActor) Receive(context actor.Context) {
	state.Behavior.Receive(context)
}

// Starting state

type CCStartingState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCStartingState) Name() string {
	return "starting"
}

func (state CCStartingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.actor.logger.Debug("charge_control@starting started")
		state.actor.scheduler = scheduler.NewTimerScheduler(ctx)
		state.actor.controller = service.NewChargeController(state.actor.config.Charge.ChargeConfig, state.actor.clock)
		state.actor.publishCommandState()

		// auto start selects the initial state
		if state.actor.enabled {
			state.actor.controller.Start()
			state.actor.Become(CCRunningState{
				actor: state.actor,
			}.OnEnter(ctx))
		} else {
			state.actor.Become(CCCanceledState{
				actor: state.actor,
			}.OnEnter(ctx))
		}
		state.actor.stash.UnstashAll(ctx)
	case *actor.Restarting:
	default:
		state.actor.logger.Debug("charge_control@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

// Running state: a charge cycle is active

type CCRunningState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCRunningState) Name() string {
	return "running"
}

func (state CCRunningState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("charge_control@running: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CHARGE_CONTROL,
			Healthy: true,
			State:   state.Name(),
		})
	case chargeControlTick:
		// on tick, get battery state from the GX
		state.actor.logger.Debug("charge_control@running tick")
		state.actor.BecomeStacked(CCAwaitSampleState{
			actor: state.actor,
		}.OnEnterAction(ctx))
	case domain.GetBatteryStateResponse:
		// feed the controller, then schedule next control tick
		state.actor.onSample(msg)
		state.actor.scheduleTick(ctx)
	case domain.ChargeStatusRequest:
		actorRespondStatus(ctx, state.actor, msg)
	case domain.ChargeControlRequest:
		// enable, current limit or bus state
		state.actor.handleCommand(ctx, msg)
	default:
		state.actor.logger.Debug("charge_control@running: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state CCRunningState) OnEnter(ctx actor.Context) CCRunningState {
	state.actor.publishStatus()
	state.actor.scheduleTick(ctx)
	return state
}

// Canceled state: charging stopped by command or by the CAN watchdog, or
// never started

type CCCanceledState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCCanceledState) Name() string {
	return "canceled"
}

func (state CCCanceledState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.actor.logger.Debug("charge_control@canceled: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CHARGE_CONTROL,
			Healthy: true,
			State:   state.Name(),
		})
	case chargeControlTick:
		// pending tick from the running state
	case domain.GetBatteryStateResponse:
		// late sample after a stop
	case domain.ChargeStatusRequest:
		actorRespondStatus(ctx, state.actor, msg)
	case domain.ChargeControlRequest:
		state.actor.handleCommand(ctx, msg)
	default:
		state.actor.logger.Debug("charge_control@canceled: recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state CCCanceledState) OnEnter(ctx actor.Context) CCCanceledState {
	// no more ticks until the next cycle
	if state.actor.cancelTick != nil {
		state.actor.cancelTick()
		state.actor.cancelTick = nil
	}
	state.actor.publishStatus()
	return state
}

// Await sample state

type CCAwaitSampleState struct {
	ActorState
	actor *ChargeControlActor
}

func (state CCAwaitSampleState) Name() string {
	return "awaitSample"
}

func (state CCAwaitSampleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.GetBatteryStateResponse:
		ctx.SetReceiveTimeout(0)
		if msg.HasResponseError() {
			state.actor.logger.Warn("charge_control@awaitSample: GetBatteryStateResponse error", zap.Error(msg.GetResponseError()))
		} else {
			state.actor.logger.Debug("charge_control@awaitSample: GetBatteryStateResponse")
		}
		// handled by the previous state
		ctx.RequestWithCustomSender(ctx.Self(), msg, ctx.Sender())
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	case *actor.ReceiveTimeout:
		// modbus actor did not answer, report as a failed sample
		ctx.SetReceiveTimeout(0)
		state.actor.logger.Warn("charge_control@awaitSample: ReceiveTimeout")
		ctx.Send(ctx.Self(), domain.GetBatteryStateResponse{
			ActorResponseMixIn: domain.ActorResponseMixIn{
				ResponseError: errors.New("receive timeout"),
			},
		})
		state.actor.UnbecomeStacked()
		state.actor.stash.UnstashAll(ctx)
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_CHARGE_CONTROL,
			Healthy: true,
			State:   state.Name(),
		})
	default:
		state.actor.logger.Debug("charge_control@awaitSample: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.actor.stash.Stash(ctx, msg)
	}
}

func (state CCAwaitSampleState) OnEnterAction(ctx actor.Context) CCAwaitSampleState {
	PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.actor.modbusActor,
		domain.GetBatteryStateRequest{}, SAMPLE_REQUEST_TIMEOUT),
		func(err error) any {
			return domain.GetBatteryStateResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: err,
				},
			}
		})
	ctx.SetReceiveTimeout(SAMPLE_REQUEST_TIMEOUT + 500*time.Millisecond)
	return state
}

// Commands

func (state *ChargeControlActor) handleCommand(ctx actor.Context, msg domain.ChargeControlRequest) {
	switch cmd := msg.(type) {
	case domain.ChargeControlEnableRequest:
		state.logger.Sugar().Infof("charge_control: cmd enable %t", cmd.Enable)
		state.enabled = cmd.Enable
		state.publishCommandState()
		if cmd.Enable {
			// wait for the inverter before charging
			if !state.busAlive {
				state.logger.Warn("charge_control: inverter CAN bus silent, charge starts when it is back")
				return
			}
			state.startCycle(ctx)
		} else {
			state.stopCycle(ctx)
		}
	case domain.ChargeControlSetCurrentLimitRequest:
		// check bounds, 0 means automatic
		limit := math.Min(math.Max(0, cmd.Amps), state.config.Charge.BulkCurrent)
		state.logger.Sugar().Infof("charge_control: cmd current limit %.1fA", limit)
		state.manualLimit = limit
		state.publishCommandState()
	case domain.ChargeControlBusStateRequest:
		state.logger.Sugar().Debugf("charge_control: bus alive %t", cmd.Alive)
		state.busAlive = cmd.Alive
		if state.metrics != nil {
			state.metrics.ObserveCANBus(cmd.Alive)
		}
		if !cmd.Alive && state.controller.IsCharging() {
			state.logger.Warn("charge_control: inverter CAN bus silent, stopping charge")
			state.stoppedByBus = true
			state.stopCycle(ctx)
		} else if cmd.Alive && state.enabled && !state.controller.IsCharging() {
			// bus is back and charge is still wanted
			if state.stoppedByBus {
				state.logger.Info("charge_control: inverter CAN bus back, restarting charge")
			}
			state.stoppedByBus = false
			state.startCycle(ctx)
		}
	}
}

// startCycle starts a fresh controller when the current one is done.
// Canceled is terminal for a controller instance.
func (state *ChargeControlActor) startCycle(ctx actor.Context) {
	if state.controller.IsCharging() {
		return
	}
	if state.controller.State() != domain.ChargeStateIdle {
		state.controller = service.NewChargeController(state.config.Charge.ChargeConfig, state.clock)
	}
	state.controller.Start()
	state.Become(CCRunningState{
		actor: state,
	}.OnEnter(ctx))
}

func (state *ChargeControlActor) stopCycle(ctx actor.Context) {
	state.controller.Stop()
	state.Become(CCCanceledState{
		actor: state,
	}.OnEnter(ctx))
}

// Sample handling

func (state *ChargeControlActor) onSample(msg domain.GetBatteryStateResponse) {
	if msg.HasResponseError() || msg.BatteryState == nil || !msg.BatteryState.Valid() {
		if state.metrics != nil {
			state.metrics.IncrementSampleErrors()
		}
		if !msg.HasResponseError() {
			state.logger.Warn("charge_control: battery voltage or current not available")
		}
		return
	}
	bs := msg.BatteryState

	// requested bulk current from policy or manual limit
	input := domain.ChargePolicyInput{
		SOC:          bs.SOC,
		SOCAvailable: bs.SOCAvailable,
		PVCurrent:    bs.PVCurrent,
	}
	if state.manualLimit > 0 {
		limit := state.manualLimit
		input.ManualLimit = &limit
	}
	state.controller.UpdateRequestedBulkCurrent(state.policy.RequestedBulkCurrent(input))

	// controller step
	before := state.controller.Status()
	result := state.controller.UpdateBatterySample(bs.Voltage, bs.Current)
	after := state.controller.Status()

	if result != domain.NoChange {
		state.logger.Sugar().Infof("charge_control: %s -> %s (%s) after %s at %.2fV",
			before.State, after.State, result, elapsed(before.StateEnteredAt, after.StateEnteredAt), after.ActualVoltage)
		if state.metrics != nil {
			state.metrics.ObserveTransition(result, after.State)
		}
	}
	state.logger.Sugar().Debugf("charge_control: %s %.2fV %.1fA => %.1fA (bulk %.1fA)",
		after.State, after.ActualVoltage, after.ActualCurrent, after.ChargeCurrent, after.BulkCurrent)
	state.publishStatus()
}

func (state *ChargeControlActor) publishStatus() {
	status := state.controller.Status()
	if state.metrics != nil {
		state.metrics.ObserveChargeStatus(status)
	}
	if state.eventStream == nil {
		return
	}
	for _, ev := range events.ChargeStatusToUpdateEvents(status) {
		state.eventStream.Publish(ev)
	}
}

func (state *ChargeControlActor) publishCommandState() {
	if state.eventStream == nil {
		return
	}
	state.eventStream.Publish(events.ChargeEnableSwitchUpdateEvent(state.enabled))
	state.eventStream.Publish(events.CurrentLimitUpdateEvent(state.manualLimit))
}

func (state *ChargeControlActor) scheduleTick(ctx actor.Context) {
	if state.cancelTick != nil {
		state.cancelTick()
	}
	interval := time.Duration(state.config.Charge.ControlIntervalMillis) * time.Millisecond
	state.cancelTick = state.scheduler.RequestOnce(interval, ctx.Self(), chargeControlTick{})
}

func (state *ChargeControlActor) statusResponse() domain.ChargeStatusResponse {
	return domain.ChargeStatusResponse{
		Status:       state.controller.Status(),
		Enabled:      state.enabled,
		CurrentLimit: state.manualLimit,
	}
}

func actorRespondStatus(ctx actor.Context, state *ChargeControlActor, msg domain.ChargeStatusRequest) {
	ForRequest(msg).Respond(ctx, state.statusResponse())
}

func elapsed(from, to time.Time) string {
	return strings.TrimSpace(humanize.RelTime(from, to, "", ""))
}
