package analyzer

import "time"

// #region battery-level

// BatteryLevel is the qualitative charge category.
type BatteryLevel string

const (
	BatteryCritical BatteryLevel = "critical"
	BatteryLow      BatteryLevel = "low"
	BatteryMedium   BatteryLevel = "medium"
	BatteryHigh     BatteryLevel = "high"
	BatteryFull     BatteryLevel = "full"
)

// #endregion battery-level

// #region demand

// Demand is the qualitative performance-demand category.
type Demand string

const (
	DemandIdle     Demand = "idle"
	DemandLight    Demand = "light"
	DemandModerate Demand = "moderate"
	DemandHeavy    Demand = "heavy"
)

// #endregion demand

// #region activity

// Activity is the inferred user-presence category.
type Activity string

const (
	UserActive Activity = "active"
	UserIdle   Activity = "idle"
	UserAway   Activity = "away"
)

// #endregion activity

// #region power-source

// PowerSource distinguishes battery from mains power.
type PowerSource string

const (
	SourceBattery PowerSource = "battery"
	SourcePlugged PowerSource = "plugged"
)

// #endregion power-source

// #region context-state

// ContextState is the qualitative context derived from one snapshot plus a
// short trailing history. Score summarizes overall optimization urgency on
// [0, 3] and grows monotonically with the severity of the other fields.
type ContextState struct {
	BatteryLevel BatteryLevel
	Demand       Demand
	UserActivity Activity
	PowerSource  PowerSource
	Score        float64
	Timestamp    time.Time
}

// Emergency reports whether this context forces the emergency override.
func (c ContextState) Emergency() bool {
	return c.BatteryLevel == BatteryCritical
}

// #endregion context-state
