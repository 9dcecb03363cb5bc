package actor

import (
	"fmt"
	"time"

	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/util/actorutil"
	"sunnyisland2mqtt/pkg/gxmodbus"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	MODBUS_REQUEST_TIMEOUT = 2 * time.Second
)

// ModbusActor owns the GX Modbus connection and serializes reads on it.
type ModbusActor struct {
	behavior actor.Behavior
	stash    *actorutil.Stash
	reader   gxmodbus.SystemReader
	logger   *zap.Logger
	reads    uint
	failures uint
}

type backgroundTaskResult struct {
	message any
	replyTo *actor.PID
}

func NewModbusActor(reader gxmodbus.SystemReader, logger *zap.Logger) *ModbusActor {
	act := &ModbusActor{
		reader:   reader,
		behavior: actor.NewBehavior(),
		stash:    &actorutil.Stash{},
		logger:   actorutil.ActorLogger(domain.ACTOR_ID_MODBUS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		if err := state.reader.Open(); err != nil {
			state.logger.Error("modbus@starting open failed", zap.Error(err))
			panic(err)
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("modbus@starting: stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default: ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODBUS,
			Healthy: true,
			State:   "idle",
		})
	case domain.GetBatteryStateRequest:
		state.logger.Debug("modbus@default: GetBatteryStateRequest")
		sender := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.MapBackgroundTask(actorutil.NewBackgroundTask(ctx, state.getBatteryState),
			mapTaskResult[domain.GetBatteryStateResponse](sender)).Recover(func(err error) backgroundTaskResult {
			return backgroundTaskResult{
				message: domain.GetBatteryStateResponse{
					ActorResponseMixIn: domain.ActorResponseMixIn{
						ResponseError: err,
					},
				},
				replyTo: sender,
			}
		}).WithTimeout(MODBUS_REQUEST_TIMEOUT).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WaitingModbus)
	case *actor.Stopping:
		state.close()
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("modbus@default default recv", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) WaitingModbus(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case backgroundTaskResult:
		state.logger.Debug("modbus@WaitingModbus backgroundTaskResult", zap.String("type", fmt.Sprintf("%T", msg.message)))
		state.reads++
		if resp, ok := msg.message.(domain.ActorResponse); ok && resp.HasResponseError() {
			state.failures++
			state.logger.Warn("modbus@WaitingModbus read failed", zap.Error(resp.GetResponseError()),
				zap.Uint("failures", state.failures), zap.Uint("reads", state.reads))
		}
		if msg.replyTo != nil {
			ctx.Send(msg.replyTo, msg.message)
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case *actor.Stopping:
		state.close()
	case *actor.Restarting:
		state.close()
	default:
		state.logger.Debug("modbus@WaitingModbus stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) getBatteryState() (*domain.GetBatteryStateResponse, error) {
	bs, err := state.reader.GetBatteryState()
	if err != nil {
		return nil, err
	}
	return &domain.GetBatteryStateResponse{
		BatteryState: bs,
	}, nil
}

func (state *ModbusActor) close() {
	if err := state.reader.Close(); err != nil {
		state.logger.Debug("modbus: close", zap.Error(err))
	}
}

func mapTaskResult[T any](sender *actor.PID) func(t *T) *backgroundTaskResult {
	return func(t *T) *backgroundTaskResult {
		return &backgroundTaskResult{
			message: *t,
			replyTo: sender,
		}
	}
}
