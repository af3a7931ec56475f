package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmkoski/powertrim/internal/actuator"
	"github.com/tmkoski/powertrim/internal/analyzer"
	"github.com/tmkoski/powertrim/internal/config"
	"github.com/tmkoski/powertrim/internal/decision"
	"github.com/tmkoski/powertrim/internal/learner"
	"github.com/tmkoski/powertrim/internal/metrics"
	"github.com/tmkoski/powertrim/internal/policy"
	"github.com/tmkoski/powertrim/internal/store"
)

// #region controller

// Controller owns the tick cadence, the active-action map, the lifecycle
// state machine, and dispatch to the actuator. All mutable fields live behind
// one mutex; the tick goroutine is the only writer of the active-action map
// apart from the explicit control commands, and every external read gets a
// copy.
type Controller struct {
	cfg    config.Config
	source metrics.Source
	act    actuator.Actuator
	engine *decision.Engine
	filter *policy.Filter
	sink   OutcomeSink
	st     *store.Store // nil disables persistence

	mu     sync.Mutex
	state  State
	mode   policy.Mode
	active map[string]*activeAction // keyed by target component
	window *metrics.Window

	satisfaction   float64
	lastDecisionID string
	lastDecisionAt time.Time
	ticks          int
	skippedStale   int
	emergencies    int

	results chan dispatchResult
	cancel  context.CancelFunc
	done    chan struct{}
}

// New wires a controller. The mode from cfg must name a built-in mode.
func New(cfg config.Config, source metrics.Source, act actuator.Actuator,
	engine *decision.Engine, filter *policy.Filter, sink OutcomeSink, st *store.Store) (*Controller, error) {
	mode, ok := policy.ByName(cfg.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown optimization mode %q", cfg.Mode)
	}
	return &Controller{
		cfg:          cfg,
		source:       source,
		act:          act,
		engine:       engine,
		filter:       filter,
		sink:         sink,
		st:           st,
		state:        StateStopped,
		mode:         mode,
		active:       make(map[string]*activeAction),
		window:       metrics.NewWindow(cfg.HistoryWindow),
		satisfaction: 0.8,
		results:      make(chan dispatchResult, 128),
	}, nil
}

// #endregion controller

// #region lifecycle

// Start transitions stopped→running and launches the tick loop. Any
// persisted active-action state is reverted and reloaded first. Failures
// inside the loop never propagate here; they surface through Status.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return fmt.Errorf("start: controller is %s", c.state)
	}
	c.reconcileRestartLocked()
	c.state = StateRunning
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx)

	log.Printf("[CTRL] started (mode=%s, tick=%s)", c.mode.Name, c.cfg.DecisionInterval)
	return nil
}

// Stop requests shutdown and waits for the loop to revert all active actions
// and exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// reconcileRestartLocked reverts anything left in effect by a previous run:
// persisted rows the actuator still reports active are reverted, orphans the
// actuator carries without a row are reverted too, and the table is cleared.
func (c *Controller) reconcileRestartLocked() {
	known := make(map[string]bool)
	for _, id := range c.act.ListActive() {
		known[id] = true
	}

	if c.st != nil {
		rows, err := c.st.ListActiveActions()
		if err != nil {
			log.Printf("[CTRL] restart reconcile: %v", err)
		}
		for _, row := range rows {
			if known[row.Action.ID] {
				res := c.act.Revert(row.Action.ID)
				if !res.Success {
					log.Printf("[CTRL] restart revert %s: %s", row.Action.ID, res.Message)
				}
				delete(known, row.Action.ID)
			}
			if err := c.st.DeleteActiveAction(row.Action.ID); err != nil {
				log.Printf("[CTRL] restart reconcile: %v", err)
			}
		}
	}
	for id := range known {
		if res := c.act.Revert(id); !res.Success {
			log.Printf("[CTRL] restart revert orphan %s: %s", id, res.Message)
		}
	}
}

func (c *Controller) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.DecisionInterval)
	defer ticker.Stop()
	for {
		select {
		case t := <-ticker.C:
			c.Tick(t)
		case r := <-c.results:
			c.mu.Lock()
			c.handleResultLocked(r, time.Now())
			c.mu.Unlock()
		case <-ctx.Done():
			c.shutdown()
			return
		}
	}
}

// shutdown reverts every active action before leaving, with a bounded drain
// for in-flight dispatches.
func (c *Controller) shutdown() {
	c.mu.Lock()
	for _, aa := range c.active {
		if !aa.reverting {
			c.beginRevertLocked(aa, time.Now())
		}
	}
	remaining := len(c.active)
	c.mu.Unlock()

	deadline := time.After(c.cfg.DispatchTimeout * time.Duration(c.cfg.MaxDispatchAttempts))
	for remaining > 0 {
		select {
		case r := <-c.results:
			c.mu.Lock()
			c.handleResultLocked(r, time.Now())
			remaining = len(c.active)
			c.mu.Unlock()
		case <-deadline:
			log.Printf("[CTRL] shutdown with %d actions unconfirmed", remaining)
			remaining = 0
		}
	}

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
	log.Printf("[CTRL] stopped")
}

// #endregion lifecycle

// #region tick

// Tick runs one control cycle at the given time. Exported so the replay
// harness and tests can drive the loop without the ticker.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.drainResultsLocked(now)
	c.retryDueLocked(now)

	if c.state == StateStopped || c.state == StatePaused {
		return
	}
	c.ticks++

	snap, ok := c.source.Latest()
	if !ok || snap.Stale(now, 2*c.cfg.SampleInterval) {
		// Stale feed: skip the tick, never substitute defaults.
		c.skippedStale++
		return
	}
	c.window.Append(snap)

	ctxState := analyzer.Analyze(snap, c.window.Recent())
	if ctxState.Emergency() && c.state == StateRunning {
		c.state = StateEmergency
		c.emergencies++
		log.Printf("[CTRL] battery critical (%.1f%%), entering emergency", snap.BatteryPercent)
	}

	candidates, pred := c.engine.Decide(snap, ctxState)
	approved := c.filter.Apply(candidates, c.mode, ctxState.Emergency())
	c.reconcileLocked(approved, ctxState.Emergency(), now)

	// Emergency clears only once the battery recovered AND every
	// emergency-issued action was reverted or superseded.
	if c.state == StateEmergency && !ctxState.Emergency() && !c.hasEmergencyActionsLocked() {
		c.state = StateRunning
		log.Printf("[CTRL] battery recovered (%.1f%%), leaving emergency", snap.BatteryPercent)
	}

	decisionID := uuid.New().String()
	c.lastDecisionID = decisionID
	c.lastDecisionAt = now

	var savings float64
	for _, a := range approved {
		savings += a.EstimatedSavings
	}
	if c.sink != nil {
		c.sink.RecordOutcome(learner.DecisionOutcome{
			DecisionID:           decisionID,
			Features:             decision.ExtractFeatures(snap, ctxState),
			Severity:             pred.Severity,
			Source:               pred.Source,
			ActionsApplied:       len(approved),
			ObservedSavings:      savings,
			ObservedSatisfaction: c.satisfaction,
			Timestamp:            now,
		})
	}
	if c.st != nil {
		if err := c.st.LogDecision(store.DecisionLogRow{
			DecisionID: decisionID,
			State:      string(c.state),
			Mode:       c.mode.Name,
			Severity:   int(pred.Severity),
			Source:     string(pred.Source),
			Candidates: len(candidates),
			Approved:   len(approved),
			CreatedAt:  now,
		}); err != nil {
			log.Printf("[CTRL] decision log: %v", err)
		}
	}
}

// #endregion tick

// #region reconcile

// reconcileLocked diffs the approved set against the active map: new targets
// get issued, vanished targets get reverted, unchanged targets are left
// untouched, and an occupied target with a changed action is reverted then
// re-issued.
func (c *Controller) reconcileLocked(approved []decision.OptimizationAction, emergency bool, now time.Time) {
	keep := make(map[string]decision.OptimizationAction, len(approved))
	for _, a := range approved {
		keep[a.TargetComponent] = a
	}

	for target, aa := range c.active {
		if _, ok := keep[target]; ok {
			continue
		}
		if aa.pending || aa.reverting || aa.stuck {
			continue
		}
		c.beginRevertLocked(aa, now)
	}

	for target, next := range keep {
		aa, ok := c.active[target]
		switch {
		case !ok:
			c.issueLocked(next, emergency, now)
		case aa.unchanged(next):
			// Identical action already in effect; nothing to dispatch.
		case aa.pending || aa.stuck:
			// Let the in-flight dispatch settle; revisit next tick.
		default:
			aa.replacement = &next
			aa.replacementEmergency = emergency
			if !aa.reverting {
				c.beginRevertLocked(aa, now)
			}
		}
	}
}

func (c *Controller) issueLocked(a decision.OptimizationAction, emergency bool, now time.Time) {
	aa := &activeAction{action: a, emergency: emergency, pending: true, dispatchedAt: now}
	c.active[a.TargetComponent] = aa
	c.dispatch(dispatchApply, a)
}

func (c *Controller) beginRevertLocked(aa *activeAction, now time.Time) {
	aa.reverting = true
	aa.pending = true
	aa.attempts = 0
	aa.dispatchedAt = now
	c.dispatch(dispatchRevert, aa.action)
}

// dispatch runs one actuator call off the tick path. The loop never waits on
// it; the result arrives through the results channel and slow calls simply
// stay pending until they report.
func (c *Controller) dispatch(kind dispatchKind, a decision.OptimizationAction) {
	go func() {
		var res actuator.ActionResult
		if kind == dispatchApply {
			res = c.act.Apply(a)
		} else {
			res = c.act.Revert(a.ID)
		}
		c.results <- dispatchResult{
			target:   a.TargetComponent,
			actionID: a.ID,
			kind:     kind,
			success:  res.Success,
			message:  res.Message,
		}
	}()
}

func (c *Controller) drainResultsLocked(now time.Time) {
	for {
		select {
		case r := <-c.results:
			c.handleResultLocked(r, now)
		default:
			return
		}
	}
}

func (c *Controller) handleResultLocked(r dispatchResult, now time.Time) {
	aa, ok := c.active[r.target]
	if !ok || aa.action.ID != r.actionID {
		return // superseded while in flight
	}
	aa.pending = false

	if r.success {
		aa.attempts = 0
		if r.kind == dispatchRevert {
			delete(c.active, r.target)
			if c.st != nil {
				if err := c.st.DeleteActiveAction(r.actionID); err != nil {
					log.Printf("[CTRL] persist revert: %v", err)
				}
			}
			if aa.replacement != nil {
				c.issueLocked(*aa.replacement, aa.replacementEmergency, now)
			}
			return
		}
		if c.st != nil {
			if err := c.st.SaveActiveAction(aa.action, aa.emergency); err != nil {
				log.Printf("[CTRL] persist action: %v", err)
			}
		}
		return
	}

	// Per-action failure: bounded retry with backoff, then stuck. Other
	// actions and the loop itself are unaffected.
	aa.attempts++
	if aa.attempts >= c.cfg.MaxDispatchAttempts {
		aa.stuck = true
		log.Printf("[CTRL] action %s on %s stuck after %d attempts: %s",
			r.actionID, r.target, aa.attempts, r.message)
		return
	}
	backoff := c.cfg.RetryBackoff << (aa.attempts - 1)
	aa.nextRetry = now.Add(backoff)
}

func (c *Controller) retryDueLocked(now time.Time) {
	for _, aa := range c.active {
		if aa.pending || aa.stuck || aa.attempts == 0 || now.Before(aa.nextRetry) {
			continue
		}
		aa.pending = true
		aa.dispatchedAt = now
		if aa.reverting {
			c.dispatch(dispatchRevert, aa.action)
		} else {
			c.dispatch(dispatchApply, aa.action)
		}
	}
}

func (c *Controller) hasEmergencyActionsLocked() bool {
	for _, aa := range c.active {
		if aa.emergency {
			return true
		}
	}
	return false
}

// #endregion reconcile

// #region commands

// Pause suspends new decisions; existing active actions stay in effect.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning || c.state == StateEmergency {
		c.state = StatePaused
		log.Printf("[CTRL] paused")
	}
}

// Resume re-enables decisions after a pause.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePaused {
		c.state = StateRunning
		log.Printf("[CTRL] resumed")
	}
}

// SetMode switches the active optimization mode.
func (c *Controller) SetMode(name string) error {
	mode, ok := policy.ByName(name)
	if !ok {
		return fmt.Errorf("unknown optimization mode %q", name)
	}
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	log.Printf("[CTRL] mode set to %s", name)
	return nil
}

// RevertAll reverts every active action.
func (c *Controller) RevertAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, aa := range c.active {
		if !aa.reverting {
			aa.replacement = nil
			c.beginRevertLocked(aa, now)
		}
	}
}

// EmergencyRevert is RevertAll with louder intent, for operator escalation.
func (c *Controller) EmergencyRevert() {
	log.Printf("[CTRL] emergency revert requested")
	c.RevertAll()
}

// SubmitFeedback records user feedback against the most recent decision and
// folds it into the running satisfaction average.
func (c *Controller) SubmitFeedback(f learner.FeedbackRecord) {
	c.mu.Lock()
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	if f.DecisionID == "" {
		f.DecisionID = c.lastDecisionID
	}
	c.satisfaction = c.satisfaction*0.8 + f.Satisfaction*0.2
	sink := c.sink
	c.mu.Unlock()

	if sink != nil {
		sink.SubmitFeedback(f)
	}
}

// #endregion commands

// #region status

// Status returns a copy-on-read view of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		State:            c.state,
		Mode:             c.mode.Name,
		ActiveActions:    len(c.active),
		Satisfaction:     c.satisfaction,
		Ticks:            c.ticks,
		SkippedStale:     c.skippedStale,
		EmergencyEntries: c.emergencies,
		LastDecisionID:   c.lastDecisionID,
		LastDecisionAt:   c.lastDecisionAt,
	}
	for _, aa := range c.active {
		st.EstimatedSavings += aa.action.EstimatedSavings
		if aa.stuck {
			st.StuckActions++
		}
	}
	return st
}

// ActiveActions returns a copy of the active-action listing.
func (c *Controller) ActiveActions() []ActionView {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActionView, 0, len(c.active))
	for _, aa := range c.active {
		out = append(out, ActionView{
			ID:               aa.action.ID,
			Type:             aa.action.Type,
			Intensity:        aa.action.Intensity,
			TargetComponent:  aa.action.TargetComponent,
			EstimatedSavings: aa.action.EstimatedSavings,
			Confidence:       aa.action.Confidence,
			CreatedAt:        aa.action.CreatedAt,
			Stuck:            aa.stuck,
		})
	}
	return out
}

// #endregion status
