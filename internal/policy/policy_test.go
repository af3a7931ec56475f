package policy

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/tmkoski/powertrim/internal/decision"
)

func candidate(target string, intensity, savings, impact, confidence float64) decision.OptimizationAction {
	return decision.OptimizationAction{
		ID:                uuid.New().String(),
		Type:              decision.ActionCPUThrottle,
		Intensity:         intensity,
		TargetComponent:   target,
		EstimatedSavings:  savings,
		PerformanceImpact: impact,
		Confidence:        confidence,
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"conservative", "balanced", "aggressive"} {
		m, ok := ByName(name)
		if !ok || m.Name != name {
			t.Fatalf("ByName(%q) = %v, %t", name, m, ok)
		}
	}
	if _, ok := ByName("turbo"); ok {
		t.Fatal("unknown mode resolved")
	}
}

func TestApplyGatesAndClamps(t *testing.T) {
	f := New(3, 0.7)

	in := []decision.OptimizationAction{
		candidate(decision.TargetSystem, 0.9, 20, 0.6, 0.75),  // clamped to 0.6
		candidate(decision.TargetDisplay, 0.5, 8, 0.2, 0.65),  // below balanced confidence
		candidate(decision.TargetNetwork, 0.4, 6, 0.8, 0.9),   // impact over cap
		candidate(decision.TargetScheduler, 0.3, 5, 0.1, 0.8), // passes untouched
	}
	out := f.Apply(in, Balanced, false)

	if len(out) != 2 {
		t.Fatalf("%d approved, want 2", len(out))
	}
	if out[0].TargetComponent != decision.TargetSystem {
		t.Fatalf("first approved %s, want highest-savings system action", out[0].TargetComponent)
	}
	if out[0].Intensity != Balanced.MaxIntensity {
		t.Fatalf("intensity %.2f, want clamped to %.2f", out[0].Intensity, Balanced.MaxIntensity)
	}
	if out[1].Intensity != 0.3 {
		t.Fatalf("in-bounds intensity modified: %.2f", out[1].Intensity)
	}
}

func TestApplyOneActionPerTarget(t *testing.T) {
	f := New(5, 0.7)

	in := []decision.OptimizationAction{
		candidate(decision.TargetSystem, 0.5, 10, 0.3, 0.9),
		candidate(decision.TargetSystem, 0.5, 15, 0.3, 0.9), // higher savings wins
		candidate(decision.TargetSystem, 0.5, 12, 0.3, 0.9),
	}
	out := f.Apply(in, Balanced, false)
	if len(out) != 1 {
		t.Fatalf("%d approved, want 1", len(out))
	}
	if out[0].EstimatedSavings != 15 {
		t.Fatalf("kept savings %.1f, want 15", out[0].EstimatedSavings)
	}
}

func TestApplyCapsBatchSize(t *testing.T) {
	f := New(2, 0.7)

	in := []decision.OptimizationAction{
		candidate(decision.TargetSystem, 0.5, 20, 0.3, 0.9),
		candidate(decision.TargetDisplay, 0.5, 15, 0.3, 0.9),
		candidate(decision.TargetNetwork, 0.5, 10, 0.3, 0.9),
	}
	out := f.Apply(in, Balanced, false)
	if len(out) != 2 {
		t.Fatalf("%d approved, want 2", len(out))
	}
	// Overflow drops from the low-savings end.
	if out[0].EstimatedSavings != 20 || out[1].EstimatedSavings != 15 {
		t.Fatalf("kept savings %.1f/%.1f, want 20/15", out[0].EstimatedSavings, out[1].EstimatedSavings)
	}
}

func TestApplyEmergencyCoversEveryTarget(t *testing.T) {
	f := New(2, 0.7) // caps and gates must not apply under emergency

	in := []decision.OptimizationAction{
		candidate(decision.TargetSystem, 0.5, 20, 0.9, 0.1), // would fail every gate
	}
	out := f.Apply(in, Conservative, true)

	if len(out) != len(decision.KnownTargets) {
		t.Fatalf("%d actions, want one per known target (%d)", len(out), len(decision.KnownTargets))
	}
	seen := make(map[string]bool)
	for _, a := range out {
		seen[a.TargetComponent] = true
		if a.Intensity != 1.0 {
			t.Errorf("%s intensity %.2f, want 1.0", a.TargetComponent, a.Intensity)
		}
		if a.Confidence != 1.0 {
			t.Errorf("%s confidence %.2f, want 1.0", a.TargetComponent, a.Confidence)
		}
		if a.ID == "" || a.Type == "" {
			t.Errorf("%s synthesized without identity", a.TargetComponent)
		}
	}
	for _, target := range decision.KnownTargets {
		if !seen[target] {
			t.Errorf("target %s missing from emergency set", target)
		}
	}
}

func TestApplyModeBoundsHold(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	f := New(3, 0.7)
	modes := []Mode{Conservative, Balanced, Aggressive}

	for i := 0; i < 500; i++ {
		mode := modes[rng.Intn(len(modes))]
		var in []decision.OptimizationAction
		for j := 0; j < rng.Intn(8); j++ {
			target := decision.KnownTargets[rng.Intn(len(decision.KnownTargets))]
			in = append(in, candidate(target, rng.Float64(), rng.Float64()*25, rng.Float64(), rng.Float64()))
		}
		out := f.Apply(in, mode, false)

		if len(out) > f.MaxPerCycle {
			t.Fatalf("approved %d actions, cap %d", len(out), f.MaxPerCycle)
		}
		targets := make(map[string]bool)
		for _, a := range out {
			if a.Intensity > mode.MaxIntensity {
				t.Fatalf("%s intensity %.3f over %s cap %.3f", a.TargetComponent, a.Intensity, mode.Name, mode.MaxIntensity)
			}
			if a.Confidence < mode.MinConfidence {
				t.Fatalf("confidence %.3f below %s floor %.3f", a.Confidence, mode.Name, mode.MinConfidence)
			}
			if a.PerformanceImpact > f.MaxPerformanceImpact {
				t.Fatalf("impact %.3f over cap %.3f", a.PerformanceImpact, f.MaxPerformanceImpact)
			}
			if targets[a.TargetComponent] {
				t.Fatalf("duplicate target %s", a.TargetComponent)
			}
			targets[a.TargetComponent] = true
		}
	}
}
