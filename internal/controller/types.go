package controller

import (
	"time"

	"github.com/tmkoski/powertrim/internal/decision"
	"github.com/tmkoski/powertrim/internal/learner"
)

// #region state

// State is the controller lifecycle state.
type State string

const (
	StateStopped   State = "stopped"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateEmergency State = "emergency"
)

// #endregion state

// #region active-action

// activeAction is the loop's bookkeeping for one in-effect (or in-flight)
// action. The map holding these has a single writer: the tick goroutine.
type activeAction struct {
	action    decision.OptimizationAction
	emergency bool // issued while the context was critical

	pending      bool // dispatch in flight
	reverting    bool // the in-flight/next dispatch is a revert
	stuck        bool // retries exhausted
	attempts     int
	nextRetry    time.Time
	dispatchedAt time.Time

	// A changed action for an occupied target waits here until the old
	// one's revert confirms, then gets issued.
	replacement          *decision.OptimizationAction
	replacementEmergency bool
}

// unchanged reports whether a newly approved action is equivalent to the one
// already in effect, so re-issuing can be skipped.
func (a *activeAction) unchanged(next decision.OptimizationAction) bool {
	const eps = 1e-9
	diff := a.action.Intensity - next.Intensity
	if diff < 0 {
		diff = -diff
	}
	return a.action.Type == next.Type && diff < eps && !a.reverting
}

// #endregion active-action

// #region dispatch

type dispatchKind int

const (
	dispatchApply dispatchKind = iota
	dispatchRevert
)

// dispatchResult flows from a dispatch goroutine back to the tick loop.
type dispatchResult struct {
	target   string
	actionID string
	kind     dispatchKind
	success  bool
	message  string
}

// #endregion dispatch

// #region status

// Status is a copy-on-read view of the controller for presentation layers.
type Status struct {
	State            State
	Mode             string
	ActiveActions    int
	StuckActions     int
	EstimatedSavings float64 // aggregate of currently active actions
	Satisfaction     float64 // running user-satisfaction average
	Ticks            int
	SkippedStale     int
	EmergencyEntries int
	LastDecisionID   string
	LastDecisionAt   time.Time
}

// ActionView is one active action as exposed to presentation layers.
type ActionView struct {
	ID               string
	Type             decision.ActionType
	Intensity        float64
	TargetComponent  string
	EstimatedSavings float64
	Confidence       float64
	CreatedAt        time.Time
	Stuck            bool
}

// #endregion status

// #region sinks

// OutcomeSink receives decision outcomes and user feedback; implemented by
// the learner.
type OutcomeSink interface {
	RecordOutcome(learner.DecisionOutcome)
	SubmitFeedback(learner.FeedbackRecord)
}

// #endregion sinks
