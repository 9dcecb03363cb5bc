package actor

import (
	"errors"
	"fmt"
	"log"
	"time"

	adactor "sunnyisland2mqtt/internal/adapter/actor"
	"sunnyisland2mqtt/internal/config"
	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/metrics"
	. "sunnyisland2mqtt/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ModbusActorProvider func() *adactor.ModbusActor

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	metrics             *metrics.Collector
	modbusActor         *actor.PID
	mqttActor           *actor.PID
	monitorActor        *actor.PID
	chargeControlActor  *actor.PID
	canBusActor         *actor.PID
	modbusActorProvider ModbusActorProvider
	mqttActorProvider   MQTTActorProvider
	canBusProvider      adactor.FrameBusProvider
	logger              *zap.Logger
}

type healthCheckResult struct {
	healthy        map[string]bool
	checksReceived int
	respondTo      *actor.PID
}

// children answering the aggregated health check
var healthCheckedActors = []string{
	domain.ACTOR_ID_MODBUS,
	domain.ACTOR_ID_MQTT,
	domain.ACTOR_ID_MONITOR,
	domain.ACTOR_ID_CHARGE_CONTROL,
}

func NewMasterOfPuppetsActor(config config.Config, modbusActorProvider ModbusActorProvider, mqttActorProvider MQTTActorProvider,
	canBusProvider adactor.FrameBusProvider, collector *metrics.Collector, logger *zap.Logger) *MasterOfPuppetsActor {
	if collector == nil {
		collector = metrics.NewCollector()
	}
	act := &MasterOfPuppetsActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         &eventstream.EventStream{},
		metrics:             collector,
		modbusActorProvider: modbusActorProvider,
		mqttActorProvider:   mqttActorProvider,
		canBusProvider:      canBusProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start Modbus child
		modbusActorPID, err := state.startModbusActor(ctx)
		if err != nil {
			panic(err)
		}
		state.modbusActor = modbusActorPID

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start Monitor child
		monitorActorPID, err := state.startMonitorActor(ctx)
		if err != nil {
			panic(err)
		}
		state.monitorActor = monitorActorPID

		// start ChargeControl child
		chargeControlActorPID, err := state.startChargeControlActor(ctx)
		if err != nil {
			panic(err)
		}
		state.chargeControlActor = chargeControlActorPID

		// start CAN watchdog, reports to ChargeControl
		if state.config.CAN.Enable && state.canBusProvider != nil {
			canBusActorPID, err := state.startCANBusActor(ctx)
			if err != nil {
				panic(err)
			}
			state.canBusActor = canBusActorPID
		}

		// start HA Discovery
		if state.config.MQTT.HADiscoveryEnable {
			_, err := state.startHADiscoveryActor(ctx)
			if err != nil {
				panic(err)
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for id, pid := range map[string]*actor.PID{
			domain.ACTOR_ID_MODBUS:         state.modbusActor,
			domain.ACTOR_ID_MQTT:           state.mqttActor,
			domain.ACTOR_ID_MONITOR:        state.monitorActor,
			domain.ACTOR_ID_CHARGE_CONTROL: state.chargeControlActor,
		} {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
			if err != nil {
				state.logger.Warn("master@default invalid command", zap.Error(err))
				return
			}
			switch pcmd := cmd.(type) {
			case domain.ChargeControlRequest:
				ctx.Send(state.chargeControlActor, pcmd)
			}
		}
	case domain.ChargeStatusRequest:
		ctx.Forward(state.chargeControlActor)
	case MonitorLastStateRequest:
		ctx.Forward(state.monitorActor)
	case *actor.Terminated:
		// if some actor fails on boot, terminate
		if msg.Who.Id == fmt.Sprintf("%s/%s", domain.ACTOR_ID_MASTER, domain.ACTOR_ID_MODBUS) {
			state.logger.Error("master@default modbus error")
			panic(errors.New("modbus terminated"))
		}
	default:
		state.logger.Debug("master@default stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.SetReceiveTimeout(0)
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id),
			zap.Bool("healthy", msg.Healthy), zap.String("state", msg.State))
		state.currentHealthCheck.checksReceived++
		state.currentHealthCheck.healthy[msg.Id] = msg.Healthy
		if state.currentHealthCheck.allReceived() {
			ctx.SetReceiveTimeout(0)
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) startModbusActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return state.modbusActorProvider()
	}, actor.WithSupervisor(supervisor))
	modbusActorPID, err := ctx.SpawnNamed(modbusProps, domain.ACTOR_ID_MODBUS)
	if err != nil {
		return nil, err
	}

	return modbusActorPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startMonitorActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, restartDecider)

	monitorProps := actor.PropsFromProducer(func() actor.Actor {
		return NewMonitorActor(&state.config, state.modbusActor, state.eventStream, state.metrics, state.logger)
	}, actor.WithSupervisor(supervisor))
	monitorActorPID, err := ctx.SpawnNamed(monitorProps, domain.ACTOR_ID_MONITOR)
	if err != nil {
		return nil, err
	}

	return monitorActorPID, nil
}

func (state *MasterOfPuppetsActor) startChargeControlActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, restartDecider)

	chargeControlProps := actor.PropsFromProducer(func() actor.Actor {
		return NewChargeControlActor(&state.config, state.modbusActor, state.eventStream, state.metrics, nil, state.logger)
	}, actor.WithSupervisor(supervisor))
	chargeControlPID, err := ctx.SpawnNamed(chargeControlProps, domain.ACTOR_ID_CHARGE_CONTROL)
	if err != nil {
		return nil, err
	}

	return chargeControlPID, nil
}

func (state *MasterOfPuppetsActor) startCANBusActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	canBusProps := actor.PropsFromProducer(func() actor.Actor {
		return adactor.NewCANBusActor(state.config.CAN, state.canBusProvider, state.eventStream, state.chargeControlActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	canBusPID, err := ctx.SpawnNamed(canBusProps, domain.ACTOR_ID_CANBUS)
	if err != nil {
		return nil, err
	}

	return canBusPID, nil
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, restartDecider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	haDiscPID, err := ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
	if err != nil {
		return nil, err
	}

	return haDiscPID, nil
}

func restartDecider(reason interface{}) actor.Directive {
	log.Printf("handling failure for child. reason: %v", reason)
	return actor.RestartDirective
}

func (state *healthCheckResult) reset() {
	state.healthy = make(map[string]bool, len(healthCheckedActors))
	state.checksReceived = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.checksReceived == len(healthCheckedActors)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range healthCheckedActors {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
