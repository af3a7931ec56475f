package decision

import (
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/tmkoski/powertrim/internal/analyzer"
	"github.com/tmkoski/powertrim/internal/metrics"
)

// #region tunables

// ActionSpec maps one severity class to a concrete candidate. Metric gates
// with zero value are unconstrained.
type ActionSpec struct {
	Type          ActionType
	Target        string
	BaseIntensity float64
	BaseSavings   float64 // percent battery at base intensity
	BaseImpact    float64

	BrightnessAbove   float64
	CPUAbove          float64
	TargetAppCPUAbove float64
	NetworkMBAbove    float64
}

// ClassBand describes the dominant-metric boundaries of a severity class,
// used to interpolate a continuous intensity inside the class.
type ClassBand struct {
	Metric int // feature index
	Lo     float64
	Hi     float64
	Invert bool // true when lower metric values mean higher urgency
}

// Tunables collects the empirically-chosen decision constants. They are
// configuration, not invariants.
type Tunables struct {
	RuleConfidence     float64
	MinTrainingSamples int
	ProbabilityFloor   float64
	EmergencyBoost     float64
	Actions            map[Severity][]ActionSpec
	Bands              map[Severity]ClassBand
}

// DefaultTunables returns the built-in decision constants.
func DefaultTunables() Tunables {
	return Tunables{
		RuleConfidence:     0.75,
		MinTrainingSamples: 100,
		ProbabilityFloor:   0.45,
		EmergencyBoost:     1.25,
		Actions: map[Severity][]ActionSpec{
			SeverityLight: {
				{Type: ActionBrightnessAdjust, Target: TargetDisplay, BaseIntensity: 0.3, BaseSavings: 5, BaseImpact: 0.1, BrightnessAbove: 60},
			},
			SeverityModerate: {
				{Type: ActionCPUThrottle, Target: TargetSystem, BaseIntensity: 0.5, BaseSavings: 10, BaseImpact: 0.3, CPUAbove: 50},
				{Type: ActionBrightnessAdjust, Target: TargetDisplay, BaseIntensity: 0.5, BaseSavings: 8, BaseImpact: 0.2, BrightnessAbove: 40},
			},
			SeverityAggressive: {
				{Type: ActionCPUThrottle, Target: TargetSystem, BaseIntensity: 0.8, BaseSavings: 20, BaseImpact: 0.6},
				{Type: ActionBrightnessAdjust, Target: TargetDisplay, BaseIntensity: 0.7, BaseSavings: 15, BaseImpact: 0.4},
				{Type: ActionAppThrottle, Target: TargetApp, BaseIntensity: 0.6, BaseSavings: 12, BaseImpact: 0.5, TargetAppCPUAbove: 5},
				{Type: ActionNetworkLimit, Target: TargetNetwork, BaseIntensity: 0.6, BaseSavings: 8, BaseImpact: 0.2, NetworkMBAbove: 1},
				{Type: ActionProcessPriority, Target: TargetScheduler, BaseIntensity: 0.4, BaseSavings: 6, BaseImpact: 0.15},
			},
		},
		Bands: map[Severity]ClassBand{
			SeverityAggressive: {Metric: IdxBatteryPercent, Lo: 0, Hi: 15, Invert: true},
			SeverityModerate:   {Metric: IdxBatteryPercent, Lo: 15, Hi: 30, Invert: true},
			SeverityLight:      {Metric: IdxCPUPercent, Lo: 70, Hi: 100},
		},
	}
}

// #endregion tunables

// #region providers

// ModelProvider hands out the currently served model. Nil means no learned
// model is available.
type ModelProvider interface {
	Current() *Model
}

// CalibrationProvider exposes the learner's historical-accuracy statistic.
type CalibrationProvider interface {
	Calibration() (accuracy float64, samples int)
}

// #endregion providers

// #region engine

// Engine turns a snapshot plus derived context into ranked candidate actions.
// The learned model is preferred; the rule table serves when the model is
// absent, under-trained, or unsure.
type Engine struct {
	models ModelProvider
	calib  CalibrationProvider
	rules  *RuleSource
	tun    Tunables

	loggedFallback bool // ModelUnavailable is logged once, not per tick
}

// NewEngine wires a decision engine. models and calib may come from the same
// learner instance.
func NewEngine(models ModelProvider, calib CalibrationProvider, tun Tunables) *Engine {
	return &Engine{
		models: models,
		calib:  calib,
		rules:  NewRuleSource(DefaultRules(), tun.RuleConfidence),
		tun:    tun,
	}
}

// Decide produces candidates sorted by descending estimated savings, along
// with the raw prediction that generated them.
func (e *Engine) Decide(snap metrics.SystemSnapshot, ctx analyzer.ContextState) ([]OptimizationAction, Prediction) {
	f := ExtractFeatures(snap, ctx)
	pred := e.predict(f)

	accuracy := 1.0
	if e.calib != nil {
		if acc, n := e.calib.Calibration(); n > 0 {
			accuracy = acc
		}
	}
	confidence := pred.TopProb() * accuracy
	if ctx.Emergency() {
		confidence *= e.tun.EmergencyBoost
	}
	confidence = Clamp01(confidence)

	candidates := e.expand(pred.Severity, f, ctx, snap, confidence)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].EstimatedSavings > candidates[j].EstimatedSavings
	})
	return candidates, pred
}

// predict picks the decision source for this tick.
func (e *Engine) predict(f Features) Prediction {
	m := e.models.Current()
	switch {
	case m == nil || m.Samples < e.tun.MinTrainingSamples:
		if !e.loggedFallback {
			log.Printf("[ENGINE] learned model unavailable or under-trained, serving rule table")
			e.loggedFallback = true
		}
		return e.rules.Predict(f)
	default:
		pred := m.Predict(f)
		if pred.TopProb() < e.tun.ProbabilityFloor {
			return e.rules.Predict(f)
		}
		e.loggedFallback = false
		return pred
	}
}

// #endregion engine

// #region expansion

// expand maps a severity class to concrete actions. Intensity is continuous:
// each ActionSpec base is scaled by the context score and by the position of the
// dominant metric inside the class band.
func (e *Engine) expand(sev Severity, f Features, ctx analyzer.ContextState, snap metrics.SystemSnapshot, confidence float64) []OptimizationAction {
	specs := e.tun.Actions[sev]
	if len(specs) == 0 {
		return nil
	}

	interp := e.bandFactor(sev, f)
	ctxScale := 0.8 + 0.4*ctx.Score/3.0

	actions := make([]OptimizationAction, 0, len(specs))
	for _, spec := range specs {
		if !specApplies(spec, snap) {
			continue
		}
		intensity := Clamp01(spec.BaseIntensity * interp * ctxScale)
		savings := spec.BaseSavings
		if spec.BaseIntensity > 0 {
			savings = spec.BaseSavings * intensity / spec.BaseIntensity
		}
		actions = append(actions, OptimizationAction{
			ID:                uuid.New().String(),
			Type:              spec.Type,
			Intensity:         intensity,
			TargetComponent:   spec.Target,
			EstimatedSavings:  savings,
			PerformanceImpact: Clamp01(spec.BaseImpact),
			Confidence:        confidence,
			CreatedAt:         ctx.Timestamp,
		})
	}
	return actions
}

// bandFactor interpolates the dominant metric across the class band onto
// [0.85, 1.15].
func (e *Engine) bandFactor(sev Severity, f Features) float64 {
	band, ok := e.tun.Bands[sev]
	if !ok || band.Hi <= band.Lo {
		return 1.0
	}
	pos := (f[band.Metric] - band.Lo) / (band.Hi - band.Lo)
	if band.Invert {
		pos = 1 - pos
	}
	pos = Clamp01(pos)
	return 0.85 + 0.3*pos
}

func specApplies(spec ActionSpec, snap metrics.SystemSnapshot) bool {
	if spec.BrightnessAbove > 0 && float64(snap.ScreenBrightness) <= spec.BrightnessAbove {
		return false
	}
	if spec.CPUAbove > 0 && snap.CPUPercent <= spec.CPUAbove {
		return false
	}
	if spec.TargetAppCPUAbove > 0 && snap.TargetAppCPU <= spec.TargetAppCPUAbove {
		return false
	}
	if spec.NetworkMBAbove > 0 && snap.NetworkActivityMB() <= spec.NetworkMBAbove {
		return false
	}
	return true
}

// #endregion expansion
