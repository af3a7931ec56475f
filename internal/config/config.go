package config

import (
	"flag"
	"os"
	"time"

	"github.com/tmkoski/powertrim/internal/decision"
	"github.com/tmkoski/powertrim/internal/learner"
)

// #region config

// Config carries runtime options for the powertrim agent.
type Config struct {
	DBPath        string
	Mode          string
	TargetProcess string

	SampleInterval   time.Duration // monitor cadence
	DecisionInterval time.Duration // control-loop cadence, coarser than sampling
	HistoryWindow    int           // trailing snapshots kept for trend features

	MaxActionsPerCycle   int
	MaxPerformanceImpact float64

	DispatchTimeout     time.Duration
	MaxDispatchAttempts int
	RetryBackoff        time.Duration

	Learner  learner.Config
	Tunables decision.Tunables
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:               "powertrim.db",
		Mode:                 "balanced",
		SampleInterval:       2 * time.Second,
		DecisionInterval:     10 * time.Second,
		HistoryWindow:        300,
		MaxActionsPerCycle:   3,
		MaxPerformanceImpact: 0.7,
		DispatchTimeout:      2 * time.Second,
		MaxDispatchAttempts:  3,
		RetryBackoff:         500 * time.Millisecond,
		Learner:              learner.DefaultConfig(),
		Tunables:             decision.DefaultTunables(),
	}
}

// FromFlags parses flags and environment overrides.
func FromFlags(args []string) Config {
	cfg := Default()
	fs := flag.NewFlagSet("powertrim", flag.ContinueOnError)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to the sqlite state database")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "optimization mode: conservative|balanced|aggressive")
	fs.StringVar(&cfg.TargetProcess, "target", cfg.TargetProcess, "tracked application process name")
	fs.DurationVar(&cfg.SampleInterval, "sample-interval", cfg.SampleInterval, "monitor sampling interval")
	fs.DurationVar(&cfg.DecisionInterval, "decision-interval", cfg.DecisionInterval, "control-loop tick interval")
	fs.IntVar(&cfg.MaxActionsPerCycle, "max-actions", cfg.MaxActionsPerCycle, "max approved actions per tick")
	_ = fs.Parse(args)

	if v := os.Getenv("POWERTRIM_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("POWERTRIM_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("POWERTRIM_TARGET"); v != "" {
		cfg.TargetProcess = v
	}
	if v := os.Getenv("POWERTRIM_SAMPLE_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.SampleInterval = parsed
		}
	}
	if v := os.Getenv("POWERTRIM_DECISION_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.DecisionInterval = parsed
		}
	}
	return cfg
}

// #endregion config
