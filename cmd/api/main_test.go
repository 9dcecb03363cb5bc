package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sunnyisland2mqtt/internal/core/domain"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testConfigYaml = `
log_level: debug
charge:
  absorb_duration: 45m
  absorb_voltage: 57.6
charge_policy:
  mode: grid
mqtt:
  base_topic: Solar_Bridge
can:
  enable: true
  interface: vcan0
`

func TestInitConfigDefaults(t *testing.T) {

	require := require.New(t)

	viper.Reset()
	t.Setenv("CONFIG_FILE", "")

	cfg, err := initConfig()
	require.NoError(err)
	fmt.Printf("config: %+v\n", *cfg)

	require.Equal(30*time.Minute, cfg.Charge.AbsorbDuration)
	require.Equal(160.0, cfg.Charge.BulkCurrent)
	require.Equal(uint32(5000), cfg.Charge.ControlIntervalMillis)
	require.True(cfg.Charge.AutoStart)
	require.Equal(domain.CHARGE_POLICY_MODE_NONE, cfg.ChargePolicy.Mode)
	require.Equal(uint(100), cfg.GXModbusTcp.UnitId)
	require.Equal("sunnyisland", cfg.MQTT.BaseTopic)
	require.Equal(zap.WarnLevel, cfg.LogLevel)
	require.False(cfg.CAN.Enable)
}

func TestInitConfigFileAndEnv(t *testing.T) {

	require := require.New(t)

	viper.Reset()
	cfgFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(os.WriteFile(cfgFile, []byte(testConfigYaml), 0o600))

	t.Setenv("CONFIG_FILE", cfgFile)
	t.Setenv("SUNNYISLAND_CHARGE_BULK_CURRENT", "120")
	t.Setenv("PORT", "9090")
	t.Setenv("SUNNYISLAND_PORT", "")

	cfg, err := initConfig()
	require.NoError(err)

	// duration strings are decoded
	require.Equal(45*time.Minute, cfg.Charge.AbsorbDuration)
	require.Equal(57.6, cfg.Charge.AbsorbVoltage)
	// untouched keys keep their defaults
	require.Equal(54.4, cfg.Charge.FloatVoltage)
	require.Equal(120.0, cfg.Charge.BulkCurrent)
	require.Equal(uint(9090), cfg.Port)
	require.Equal(domain.CHARGE_POLICY_MODE_GRID, cfg.ChargePolicy.Mode)
	require.Equal("solar_bridge", cfg.MQTT.BaseTopic)
	require.True(cfg.CAN.Enable)
	require.Equal("vcan0", cfg.CAN.Interface)
	require.Equal(zap.DebugLevel, cfg.LogLevel)
}

func TestInitConfigInvalid(t *testing.T) {

	require := require.New(t)

	viper.Reset()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SUNNYISLAND_CHARGE_ABSORB_DURATION", "0s")

	_, err := initConfig()
	require.Error(err)
}
