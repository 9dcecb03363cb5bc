package domain

const (
	CHARGE_POLICY_MODE_NONE = "none"
	CHARGE_POLICY_MODE_GRID = "grid"
)

type ChargePolicyConfig struct {
	Mode           string            `mapstructure:"mode"`
	PVFloorCurrent float64           `mapstructure:"pv_floor_current"`
	GridLogic      GridLogicConfig   `mapstructure:"grid_logic"`
	SafetyLogic    SafetyLogicConfig `mapstructure:"safety_logic"`
}

// GridLogicConfig selects the grid charge current by hour of day.
// Hours are inclusive on both ends.
type GridLogicConfig struct {
	StartHour      int     `mapstructure:"start_hour"`
	EndHour        int     `mapstructure:"end_hour"`
	MidHour        int     `mapstructure:"mid_hour"`
	MidHourSOC     float64 `mapstructure:"mid_hour_soc"`
	Current        float64 `mapstructure:"current"`
	MidHourCurrent float64 `mapstructure:"mid_hour_current"`
	OfftimeCurrent float64 `mapstructure:"offtime_current"`
}

type SafetyLogicConfig struct {
	AfterBlackoutMinSOC     float64 `mapstructure:"after_blackout_min_soc"`
	AfterBlackoutChargeAmps float64 `mapstructure:"after_blackout_charge_amps"`
}

// ChargePolicyInput is what the policy needs from one battery reading.
type ChargePolicyInput struct {
	SOC          float64
	SOCAvailable bool
	PVCurrent    float64
	ManualLimit  *float64
}
