package learner

import (
	"time"

	"github.com/tmkoski/powertrim/internal/decision"
)

// #region decision-outcome

// DecisionOutcome records what one decision batch did. Appended to the
// training ring and never mutated.
type DecisionOutcome struct {
	DecisionID           string
	Features             decision.Features
	Severity             decision.Severity
	Source               decision.SourceKind
	ActionsApplied       int
	ObservedSavings      float64
	ObservedSatisfaction float64
	Timestamp            time.Time
}

// #endregion decision-outcome

// #region feedback-record

// FeedbackRecord is one user-feedback submission.
type FeedbackRecord struct {
	Satisfaction          float64 // 0-1
	PerformanceAcceptable bool
	BatteryImprovement    bool
	Comments              string
	DecisionID            string
	Timestamp             time.Time
}

// Positive reports whether the feedback endorses the linked decision.
func (f FeedbackRecord) Positive() bool {
	return f.PerformanceAcceptable && f.BatteryImprovement && f.Satisfaction >= 0.5
}

// #endregion feedback-record

// #region config

// Config holds the learner's tuning knobs.
type Config struct {
	BufferSize       int           // bounded outcome/feedback ring size
	RetrainMin       int           // live samples accumulated before a retrain triggers
	RetrainInterval  time.Duration // time-based retrain trigger
	BootstrapSamples int
	BootstrapSeed    int64
	AccuracyAlpha    float64 // EWMA weight of the newest accuracy measurement
}

// DefaultConfig returns the built-in learner settings.
func DefaultConfig() Config {
	return Config{
		BufferSize:       1000,
		RetrainMin:       25,
		RetrainInterval:  10 * time.Minute,
		BootstrapSamples: 1000,
		BootstrapSeed:    42,
		AccuracyAlpha:    0.2,
	}
}

// #endregion config
