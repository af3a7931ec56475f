package decision

import "time"

// #region action-type

// ActionType names a category of power optimization.
type ActionType string

const (
	ActionCPUThrottle      ActionType = "cpu_throttle"
	ActionBrightnessAdjust ActionType = "brightness_adjust"
	ActionNetworkLimit     ActionType = "network_limit"
	ActionAppThrottle      ActionType = "app_throttle"
	ActionProcessPriority  ActionType = "process_priority"
)

// #endregion action-type

// #region targets

// Well-known target components. A target holds at most one active action.
const (
	TargetSystem    = "system"
	TargetDisplay   = "display"
	TargetNetwork   = "network"
	TargetApp       = "target_app"
	TargetScheduler = "scheduler"
)

// KnownTargets lists every target component the engine can address, used by
// the emergency synthesizer.
var KnownTargets = []string{TargetSystem, TargetDisplay, TargetNetwork, TargetApp, TargetScheduler}

// #endregion targets

// #region optimization-action

// OptimizationAction is one candidate (or applied) optimization.
type OptimizationAction struct {
	ID                string
	Type              ActionType
	Intensity         float64 // 0-1
	TargetComponent   string
	EstimatedSavings  float64 // percent battery
	PerformanceImpact float64 // 0-1
	Confidence        float64 // 0-1
	CreatedAt         time.Time
}

// #endregion optimization-action

// #region severity

// Severity is the ordinal optimization aggressiveness class.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLight
	SeverityModerate
	SeverityAggressive
)

const NumSeverities = 4

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLight:
		return "light"
	case SeverityModerate:
		return "moderate"
	case SeverityAggressive:
		return "aggressive"
	default:
		return "unknown"
	}
}

// #endregion severity

// #region source-kind

// SourceKind tags which decision strategy produced a prediction.
type SourceKind string

const (
	SourceLearned SourceKind = "learned"
	SourceRules   SourceKind = "rules"
)

// #endregion source-kind

// #region prediction

// Prediction is the raw output of a decision source: a severity class with
// per-class probabilities.
type Prediction struct {
	Severity Severity
	Probs    [NumSeverities]float64
	Source   SourceKind
}

// TopProb returns the probability of the selected class.
func (p Prediction) TopProb() float64 {
	return p.Probs[p.Severity]
}

// #endregion prediction

// #region decision-source

// Source maps a feature vector to a severity prediction. Implemented by the
// learned model and the rule table; the engine picks between them by
// availability and confidence.
type Source interface {
	Predict(f Features) Prediction
}

// #endregion decision-source

// #region helpers

// Clamp01 restricts v to [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
