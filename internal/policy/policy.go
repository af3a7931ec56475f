package policy

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tmkoski/powertrim/internal/decision"
)

// #region mode

// Mode bounds what the filter lets through outside of emergencies.
type Mode struct {
	Name          string
	MaxIntensity  float64
	MinConfidence float64
}

// Built-in optimization modes.
var (
	Conservative = Mode{Name: "conservative", MaxIntensity: 0.3, MinConfidence: 0.8}
	Balanced     = Mode{Name: "balanced", MaxIntensity: 0.6, MinConfidence: 0.7}
	Aggressive   = Mode{Name: "aggressive", MaxIntensity: 0.9, MinConfidence: 0.6}
)

// ByName resolves a mode from its name.
func ByName(name string) (Mode, bool) {
	switch name {
	case Conservative.Name:
		return Conservative, true
	case Balanced.Name:
		return Balanced, true
	case Aggressive.Name:
		return Aggressive, true
	}
	return Mode{}, false
}

// #endregion mode

// #region filter

// emergencyTypes maps each known target to the action type synthesized for it
// under emergency.
var emergencyTypes = map[string]decision.ActionType{
	decision.TargetSystem:    decision.ActionCPUThrottle,
	decision.TargetDisplay:   decision.ActionBrightnessAdjust,
	decision.TargetNetwork:   decision.ActionNetworkLimit,
	decision.TargetApp:       decision.ActionAppThrottle,
	decision.TargetScheduler: decision.ActionProcessPriority,
}

// Filter gates and clamps candidates by mode, deduplicates per target, and
// caps the batch size to keep the loop from oscillating.
type Filter struct {
	MaxPerCycle          int
	MaxPerformanceImpact float64
	Targets              []string
}

// New returns a filter covering the engine's known targets.
func New(maxPerCycle int, maxImpact float64) *Filter {
	return &Filter{
		MaxPerCycle:          maxPerCycle,
		MaxPerformanceImpact: maxImpact,
		Targets:              decision.KnownTargets,
	}
}

// Apply returns the approved action set. Under emergency the mode gates are
// bypassed entirely and every known target gets a maximal-intensity action.
func (f *Filter) Apply(candidates []decision.OptimizationAction, mode Mode, emergency bool) []decision.OptimizationAction {
	if emergency {
		return f.synthesizeEmergency(candidates)
	}

	// Gate by confidence and impact, clamp intensity.
	kept := make([]decision.OptimizationAction, 0, len(candidates))
	for _, a := range candidates {
		if a.Confidence < mode.MinConfidence {
			continue
		}
		if f.MaxPerformanceImpact > 0 && a.PerformanceImpact > f.MaxPerformanceImpact {
			continue
		}
		if a.Intensity > mode.MaxIntensity {
			a.Intensity = mode.MaxIntensity
		}
		kept = append(kept, a)
	}

	// One action per target: keep the highest-savings candidate.
	byTarget := make(map[string]decision.OptimizationAction, len(kept))
	for _, a := range kept {
		if cur, ok := byTarget[a.TargetComponent]; ok && cur.EstimatedSavings >= a.EstimatedSavings {
			continue
		}
		byTarget[a.TargetComponent] = a
	}
	approved := make([]decision.OptimizationAction, 0, len(byTarget))
	for _, a := range byTarget {
		approved = append(approved, a)
	}
	sort.Slice(approved, func(i, j int) bool {
		return approved[i].EstimatedSavings > approved[j].EstimatedSavings
	})

	// Drop lowest-savings overflow.
	if f.MaxPerCycle > 0 && len(approved) > f.MaxPerCycle {
		approved = approved[:f.MaxPerCycle]
	}
	return approved
}

// synthesizeEmergency emits a full-intensity action for every known target,
// reusing candidate metadata where a candidate covers the target.
func (f *Filter) synthesizeEmergency(candidates []decision.OptimizationAction) []decision.OptimizationAction {
	byTarget := make(map[string]decision.OptimizationAction, len(candidates))
	for _, a := range candidates {
		if cur, ok := byTarget[a.TargetComponent]; ok && cur.EstimatedSavings >= a.EstimatedSavings {
			continue
		}
		byTarget[a.TargetComponent] = a
	}

	now := time.Now().UTC()
	out := make([]decision.OptimizationAction, 0, len(f.Targets))
	for _, target := range f.Targets {
		a, ok := byTarget[target]
		if !ok {
			a = decision.OptimizationAction{
				ID:                uuid.New().String(),
				Type:              emergencyTypes[target],
				TargetComponent:   target,
				EstimatedSavings:  10,
				PerformanceImpact: 0.7,
				CreatedAt:         now,
			}
		}
		a.Intensity = 1.0
		a.Confidence = 1.0
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EstimatedSavings > out[j].EstimatedSavings
	})
	return out
}

// #endregion filter
