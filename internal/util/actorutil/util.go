package actorutil

import (
	"log/slog"
	"math"
	"strconv"
	"time"

	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel:
		slogLevel = slog.LevelError
	case zap.PanicLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {

		// create a new logger
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an MQTT command to a charge control
// request. Unknown entities return nil without error.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch cmd.DeviceId {
	case domain.SWITCH_ID_CHARGE_ENABLE:
		switch cmd.Payload {
		case mqtt.MQTT_PAYLOAD_ON:
			return domain.ChargeControlEnableRequest{Enable: true}, nil
		case mqtt.MQTT_PAYLOAD_OFF:
			return domain.ChargeControlEnableRequest{Enable: false}, nil
		}
		return nil, errors.Errorf("invalid switch payload %q", cmd.Payload)
	case domain.INPUT_NUMBER_ID_CURRENT_LIMIT:
		value, err := strconv.ParseFloat(cmd.Payload, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid current limit %q", cmd.Payload)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			return nil, errors.Errorf("current limit out of range: %s", cmd.Payload)
		}
		return domain.ChargeControlSetCurrentLimitRequest{Amps: value}, nil
	}
	return nil, nil
}
