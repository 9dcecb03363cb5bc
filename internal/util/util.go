package util

import (
	"time"

	"sunnyisland2mqtt/internal/config"
	"sunnyisland2mqtt/internal/core/domain"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Charge: config.ChargeControlConfig{
			ChargeConfig: domain.ChargeConfig{
				BulkCurrent:    160,
				AbsorbVoltage:  58.4,
				FloatVoltage:   54.4,
				AbsorbDuration: 30 * time.Second,
				RebulkVoltage:  53.6,
			},
			ControlIntervalMillis: 1000,
			AutoStart:             true,
		},
		ChargePolicy: domain.ChargePolicyConfig{
			Mode:           domain.CHARGE_POLICY_MODE_NONE,
			PVFloorCurrent: 1.25,
			GridLogic: domain.GridLogicConfig{
				StartHour:      8,
				EndHour:        20,
				MidHour:        16,
				MidHourSOC:     49,
				Current:        40,
				MidHourCurrent: 80,
				OfftimeCurrent: 10,
			},
			SafetyLogic: domain.SafetyLogicConfig{
				AfterBlackoutMinSOC:     20,
				AfterBlackoutChargeAmps: 120,
			},
		},
		GXModbusTcp: config.GXModbusTCPConfig{
			Host:          "-.-.-.-",
			Port:          502,
			UnitId:        100,
			TimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "sunnyisland",
			HADiscoveryTopic: "homeassistant",
		},
		CAN: config.CANConfig{
			Enable:               false,
			Interface:            "can0",
			SilenceTimeoutMillis: 5000,
		},
		MonitorConfig: config.MonitorConfig{
			PollIntervalMillis: 5000,
		},
		Port: 8080,
	}
}
