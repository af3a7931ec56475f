package config

import (
	"testing"
	"time"
)

func TestDefaultsAreCoherent(t *testing.T) {
	cfg := Default()
	if cfg.DecisionInterval <= cfg.SampleInterval {
		t.Fatalf("decision interval %s must be coarser than sampling %s",
			cfg.DecisionInterval, cfg.SampleInterval)
	}
	if cfg.MaxActionsPerCycle < 1 {
		t.Fatalf("max actions per cycle %d", cfg.MaxActionsPerCycle)
	}
	if cfg.Tunables.RuleConfidence <= 0 || cfg.Tunables.RuleConfidence > 1 {
		t.Fatalf("rule confidence %.2f", cfg.Tunables.RuleConfidence)
	}
}

func TestFromFlags(t *testing.T) {
	cfg := FromFlags([]string{"-db", "x.db", "-mode", "aggressive", "-decision-interval", "30s"})
	if cfg.DBPath != "x.db" || cfg.Mode != "aggressive" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.DecisionInterval != 30*time.Second {
		t.Fatalf("decision interval %s, want 30s", cfg.DecisionInterval)
	}
}

func TestEnvOverridesFlags(t *testing.T) {
	t.Setenv("POWERTRIM_MODE", "conservative")
	t.Setenv("POWERTRIM_SAMPLE_INTERVAL", "5s")

	cfg := FromFlags([]string{"-mode", "aggressive"})
	if cfg.Mode != "conservative" {
		t.Fatalf("mode %q, want env override", cfg.Mode)
	}
	if cfg.SampleInterval != 5*time.Second {
		t.Fatalf("sample interval %s, want 5s", cfg.SampleInterval)
	}
}
