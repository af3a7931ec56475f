package analyzer

import (
	"time"

	"github.com/tmkoski/powertrim/internal/metrics"
)

// #region thresholds

const (
	criticalBattery = 5.0
	lowBattery      = 30.0
	mediumBattery   = 60.0
	fullBattery     = 95.0

	heavyDemand    = 80.0 // combined cpu+gpu percent
	moderateDemand = 50.0
	lightDemand    = 20.0

	// Sustained near-zero utilization for at least this long reads as away.
	awayAfter    = 5 * time.Minute
	awayCPUFloor = 5.0
	awayAppFloor = 2.0

	// A "plugged" flag with a clearly positive (discharging) power draw is
	// treated as a misreporting charger and overridden to battery.
	dischargeSanity = 1.0 // watts
)

// Context-score weights. Each component severity is on [0, 3]; the weighted
// sum stays on [0, 3].
const (
	batteryWeight  = 0.50
	demandWeight   = 0.25
	activityWeight = 0.15
	powerWeight    = 0.10
)

// #endregion thresholds

// #region analyze

// Analyze derives the qualitative context from the latest snapshot and a
// trailing window of recent snapshots (oldest first). Pure and deterministic:
// time of day comes from the snapshot timestamp, never from the wall clock.
func Analyze(snap metrics.SystemSnapshot, history []metrics.SystemSnapshot) ContextState {
	source := powerSource(snap)
	level := batteryLevel(snap, source)
	demand := performanceDemand(snap)
	activity := userActivity(snap, history)

	ctx := ContextState{
		BatteryLevel: level,
		Demand:       demand,
		UserActivity: activity,
		PowerSource:  source,
		Timestamp:    snap.Timestamp,
	}
	ctx.Score = contextScore(ctx)
	return ctx
}

// #endregion analyze

// #region battery-level

func batteryLevel(snap metrics.SystemSnapshot, source PowerSource) BatteryLevel {
	switch {
	case snap.BatteryPercent <= criticalBattery:
		return BatteryCritical
	case snap.BatteryPercent <= lowBattery:
		return BatteryLow
	case snap.BatteryPercent <= mediumBattery:
		return BatteryMedium
	case snap.BatteryPercent >= fullBattery && source == SourcePlugged:
		return BatteryFull
	default:
		return BatteryHigh
	}
}

// #endregion battery-level

// #region demand

func performanceDemand(snap metrics.SystemSnapshot) Demand {
	total := snap.CPUPercent + snap.GPUPercent
	switch {
	case total > heavyDemand:
		return DemandHeavy
	case total > moderateDemand:
		return DemandModerate
	case total > lightDemand:
		return DemandLight
	default:
		return DemandIdle
	}
}

// #endregion demand

// #region activity

// userActivity infers presence from the trailing window: sustained near-zero
// utilization longer than awayAfter means away. Otherwise utilization
// magnitude decides active vs idle, with night hours as a secondary idle
// signal.
func userActivity(snap metrics.SystemSnapshot, history []metrics.SystemSnapshot) Activity {
	if sustainedQuiet(snap, history) {
		return UserAway
	}
	if snap.CPUPercent+snap.GPUPercent > lightDemand {
		return UserActive
	}
	hour := snap.Timestamp.Hour()
	if hour >= 23 || hour <= 6 {
		return UserIdle
	}
	if snap.TargetAppCPU > awayAppFloor {
		return UserActive
	}
	return UserIdle
}

func sustainedQuiet(snap metrics.SystemSnapshot, history []metrics.SystemSnapshot) bool {
	if !quiet(snap) || len(history) == 0 {
		return false
	}
	quietSince := snap.Timestamp
	for i := len(history) - 1; i >= 0; i-- {
		if !quiet(history[i]) {
			break
		}
		quietSince = history[i].Timestamp
	}
	return snap.Timestamp.Sub(quietSince) >= awayAfter
}

func quiet(s metrics.SystemSnapshot) bool {
	return s.CPUPercent < awayCPUFloor && s.TargetAppCPU < awayAppFloor
}

// #endregion activity

// #region power-source

func powerSource(snap metrics.SystemSnapshot) PowerSource {
	if snap.PowerPlugged && snap.BatteryPowerDraw < dischargeSanity {
		return SourcePlugged
	}
	return SourceBattery
}

// #endregion power-source

// #region score

var batterySeverity = map[BatteryLevel]float64{
	BatteryFull:     0,
	BatteryHigh:     0,
	BatteryMedium:   1,
	BatteryLow:      2,
	BatteryCritical: 3,
}

var demandSeverity = map[Demand]float64{
	DemandIdle:     0,
	DemandLight:    1,
	DemandModerate: 2,
	DemandHeavy:    3,
}

var activitySeverity = map[Activity]float64{
	UserActive: 0,
	UserIdle:   1.5,
	UserAway:   3,
}

func contextScore(ctx ContextState) float64 {
	power := 0.0
	if ctx.PowerSource == SourceBattery {
		power = 3
	}
	score := batterySeverity[ctx.BatteryLevel]*batteryWeight +
		demandSeverity[ctx.Demand]*demandWeight +
		activitySeverity[ctx.UserActivity]*activityWeight +
		power*powerWeight
	if score < 0 {
		return 0
	}
	if score > 3 {
		return 3
	}
	return score
}

// #endregion score
