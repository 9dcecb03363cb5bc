package config

import (
	"regexp"
	"strings"

	"sunnyisland2mqtt/internal/core/domain"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel     zapcore.Level
	Charge       ChargeControlConfig       `mapstructure:"charge"`
	ChargePolicy domain.ChargePolicyConfig `mapstructure:"charge_policy"`
	GXModbusTcp  GXModbusTCPConfig         `mapstructure:"gx_modbus_tcp"`
	MQTT         MQTTConfig                `mapstructure:"mqtt"`
	CAN          CANConfig                 `mapstructure:"can"`

	MonitorConfig MonitorConfig `mapstructure:"monitor"`
	Port          uint          `mapstructure:"port"`
	HttpLog       bool          `mapstructure:"http_log"`
}

type ChargeControlConfig struct {
	domain.ChargeConfig   `mapstructure:",squash"`
	ControlIntervalMillis uint32 `mapstructure:"control_interval_millis"`
	// start a charge cycle as soon as the controller is up
	AutoStart bool `mapstructure:"auto_start"`
}

type GXModbusTCPConfig struct {
	Host          string
	Port          uint
	UnitId        uint   `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

type CANConfig struct {
	Enable               bool
	Interface            string
	SilenceTimeoutMillis uint32 `mapstructure:"silence_timeout_millis"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.Errorf("invalid topic %q. can only contain letters, numbers and underscores", baseTopic)
	}
	return lowerBaseTopic, nil
}

// Validate checks bounds that viper cannot express. Topics are normalized
// in place.
func (cfg *Config) Validate() error {
	baseTopic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return errors.Wrap(err, "mqtt.base_topic")
	}
	cfg.MQTT.BaseTopic = baseTopic

	hadTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.Wrap(err, "mqtt.ha_discovery_topic")
	}
	cfg.MQTT.HADiscoveryTopic = hadTopic

	if err := cfg.Charge.Validate(); err != nil {
		return errors.Wrap(err, "charge")
	}
	if cfg.Charge.ControlIntervalMillis < 1000 {
		return errors.New("config param charge.control_interval_millis should be >= 1000ms")
	}
	if cfg.MonitorConfig.PollIntervalMillis < 1000 {
		return errors.New("config param monitor.poll_interval_millis should be >= 1000")
	}
	if cfg.CAN.Enable {
		if cfg.CAN.Interface == "" {
			return errors.New("config param can.interface is required when can.enable is set")
		}
		if cfg.CAN.SilenceTimeoutMillis < 1000 {
			return errors.New("config param can.silence_timeout_millis should be >= 1000")
		}
	}

	policy := cfg.ChargePolicy
	switch policy.Mode {
	case domain.CHARGE_POLICY_MODE_NONE:
	case domain.CHARGE_POLICY_MODE_GRID:
		grid := policy.GridLogic
		for _, h := range []int{grid.StartHour, grid.EndHour, grid.MidHour} {
			if h < 0 || h > 23 {
				return errors.Errorf("config param charge_policy.grid_logic hours must be in 0..23, got %d", h)
			}
		}
	default:
		return errors.Errorf("unknown charge_policy.mode %q", policy.Mode)
	}
	if policy.PVFloorCurrent < 0 {
		return errors.New("config param charge_policy.pv_floor_current should be >= 0")
	}
	return nil
}

// ParseLogLevel maps the log_level setting to a zap level. Unknown values
// fall back to info.
func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
