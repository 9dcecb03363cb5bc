package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	adactor "sunnyisland2mqtt/internal/adapter/actor"
	"sunnyisland2mqtt/internal/config"
	"sunnyisland2mqtt/internal/core/actor"
	"sunnyisland2mqtt/internal/core/domain"
	"sunnyisland2mqtt/internal/metrics"
	"sunnyisland2mqtt/internal/server"
	"sunnyisland2mqtt/internal/util/actorutil"
	"sunnyisland2mqtt/pkg/gxmodbus"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	if cfg.LogLevel == zap.DebugLevel {
		pahomqtt.ERROR = zap.NewStdLog(logger.With(zap.String("lib", "paho")))
	}

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	defer logger.Sync()

	collector := metrics.NewCollector()

	// init Modbus actor provider
	modbusProv, err := modbusActorProvider(cfg, collector, logger)
	if err != nil {
		panic(err)
	}

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, modbusProv, mqttActorProvider(cfg, logger),
			adactor.SocketCANBusProvider, collector, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, collector)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => SUNNYISLAND_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("SUNNYISLAND_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("sunnyisland")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = config.ParseLogLevel(viper.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func modbusActorProvider(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (actor.ModbusActorProvider, error) {

	reader, err := gxmodbus.CreateSystemModbusReader(cfg.GXModbusTcp.Host, cfg.GXModbusTcp.Port,
		uint8(cfg.GXModbusTcp.UnitId), time.Duration(cfg.GXModbusTcp.TimeoutMillis)*time.Millisecond,
		logger, collector.ModbusInstrument())

	if err != nil {
		return nil, err
	}

	return func() *adactor.ModbusActor {
		return adactor.NewModbusActor(reader, logger)
	}, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)

	viper.SetDefault("charge.bulk_current", 160)
	viper.SetDefault("charge.absorb_voltage", 58.4)
	viper.SetDefault("charge.float_voltage", 54.4)
	viper.SetDefault("charge.absorb_duration", "30m")
	viper.SetDefault("charge.rebulk_voltage", 53.6)
	viper.SetDefault("charge.control_interval_millis", 5000)
	viper.SetDefault("charge.auto_start", true)

	viper.SetDefault("charge_policy.mode", domain.CHARGE_POLICY_MODE_NONE)
	viper.SetDefault("charge_policy.pv_floor_current", 1.25)
	viper.SetDefault("charge_policy.grid_logic.start_hour", 8)
	viper.SetDefault("charge_policy.grid_logic.end_hour", 20)
	viper.SetDefault("charge_policy.grid_logic.mid_hour", 16)
	viper.SetDefault("charge_policy.grid_logic.mid_hour_soc", 49)
	viper.SetDefault("charge_policy.grid_logic.current", 40)
	viper.SetDefault("charge_policy.grid_logic.mid_hour_current", 80)
	viper.SetDefault("charge_policy.grid_logic.offtime_current", 10)
	viper.SetDefault("charge_policy.safety_logic.after_blackout_min_soc", 20)
	viper.SetDefault("charge_policy.safety_logic.after_blackout_charge_amps", 120)

	viper.SetDefault("gx_modbus_tcp.host", "venus.local")
	viper.SetDefault("gx_modbus_tcp.port", 502)
	viper.SetDefault("gx_modbus_tcp.unit_id", 100)
	viper.SetDefault("gx_modbus_tcp.timeout_millis", 1000)

	viper.SetDefault("monitor.poll_interval_millis", 5000)

	viper.SetDefault("can.enable", false)
	viper.SetDefault("can.interface", "can0")
	viper.SetDefault("can.silence_timeout_millis", 10000)

	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.base_topic", "sunnyisland")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
