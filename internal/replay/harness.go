package replay

import (
	"fmt"

	"github.com/tmkoski/powertrim/internal/actuator"
	"github.com/tmkoski/powertrim/internal/analyzer"
	"github.com/tmkoski/powertrim/internal/decision"
	"github.com/tmkoski/powertrim/internal/metrics"
	"github.com/tmkoski/powertrim/internal/policy"
)

// #region types

// ReplayConfig bundles the pipeline configuration for a replay run.
type ReplayConfig struct {
	Mode                 policy.Mode
	Tunables             decision.Tunables
	MaxActionsPerCycle   int
	MaxPerformanceImpact float64
	HistoryWindow        int
}

// DefaultReplayConfig returns the pipeline defaults used by the live agent.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Mode:                 policy.Balanced,
		Tunables:             decision.DefaultTunables(),
		MaxActionsPerCycle:   3,
		MaxPerformanceImpact: 0.7,
		HistoryWindow:        300,
	}
}

// StepResult captures the outcome of one snapshot through the full pipeline:
// analyze → decide → filter → apply diff.
type StepResult struct {
	Step       int
	Context    analyzer.ContextState
	Prediction decision.Prediction
	Candidates int
	Approved   []decision.OptimizationAction
	Issued     int
	Reverted   int
	Emergency  bool
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalSteps     int
	TotalIssued    int
	TotalReverted  int
	EmergencySteps int
	FinalActive    int
	ControlValues  map[string]float64 // sim optimizer final positions
}

// #endregion types

// #region replay

// ruleOnly forces the engine onto its rule table, so replays stay
// deterministic without a trained model.
type ruleOnly struct{}

func (ruleOnly) Current() *decision.Model { return nil }

func (ruleOnly) Calibration() (float64, int) { return 1.0, 0 }

// Replay drives snapshots through the decision pipeline against simulated
// optimizers, applying the approved-set diff synchronously per step. Operates
// entirely in-memory; state persistence and retraining are out of the loop.
func Replay(snapshots []metrics.SystemSnapshot, cfg ReplayConfig) ([]StepResult, Summary) {
	engine := decision.NewEngine(ruleOnly{}, ruleOnly{}, cfg.Tunables)
	filter := policy.New(cfg.MaxActionsPerCycle, cfg.MaxPerformanceImpact)

	registry := actuator.NewRegistry()
	sims := make(map[string]*actuator.SimOptimizer, len(decision.KnownTargets))
	for _, target := range decision.KnownTargets {
		sims[target] = actuator.NewSimOptimizer(target)
		registry.Register(target, sims[target])
	}
	window := metrics.NewWindow(cfg.HistoryWindow)

	active := make(map[string]decision.OptimizationAction)
	results := make([]StepResult, 0, len(snapshots))
	sum := Summary{TotalSteps: len(snapshots)}

	for i, snap := range snapshots {
		window.Append(snap)
		ctx := analyzer.Analyze(snap, window.Recent())

		candidates, pred := engine.Decide(snap, ctx)
		approved := filter.Apply(candidates, cfg.Mode, ctx.Emergency())

		step := StepResult{
			Step:       i,
			Context:    ctx,
			Prediction: pred,
			Candidates: len(candidates),
			Approved:   approved,
			Emergency:  ctx.Emergency(),
		}

		keep := make(map[string]bool, len(approved))
		for _, a := range approved {
			keep[a.TargetComponent] = true
		}
		for target, prev := range active {
			if keep[target] {
				continue
			}
			registry.Revert(prev.ID)
			delete(active, target)
			step.Reverted++
		}
		for _, a := range approved {
			prev, ok := active[a.TargetComponent]
			if ok && prev.Type == a.Type && prev.Intensity == a.Intensity {
				continue
			}
			if ok {
				registry.Revert(prev.ID)
				step.Reverted++
			}
			registry.Apply(a)
			active[a.TargetComponent] = a
			step.Issued++
		}

		if step.Emergency {
			sum.EmergencySteps++
		}
		sum.TotalIssued += step.Issued
		sum.TotalReverted += step.Reverted
		results = append(results, step)
	}

	sum.FinalActive = len(active)
	sum.ControlValues = make(map[string]float64, len(sims))
	for target, sim := range sims {
		sum.ControlValues[target] = sim.Value()
	}
	return results, sum
}

// Check compares a run against the fixture's expectations and returns one
// error per mismatch.
func Check(f *Fixture, results []StepResult) []error {
	var errs []error
	for _, exp := range f.ExpectedResults {
		if exp.Step < 0 || exp.Step >= len(results) {
			errs = append(errs, fmt.Errorf("expected result for step %d out of range", exp.Step))
			continue
		}
		got := results[exp.Step]
		if exp.Severity != "" && got.Prediction.Severity.String() != exp.Severity {
			errs = append(errs, fmt.Errorf("step %d: severity %s, want %s",
				exp.Step, got.Prediction.Severity, exp.Severity))
		}
		if exp.Actions != nil && len(got.Approved) != *exp.Actions {
			errs = append(errs, fmt.Errorf("step %d: %d approved actions, want %d",
				exp.Step, len(got.Approved), *exp.Actions))
		}
	}
	return errs
}

// #endregion replay
