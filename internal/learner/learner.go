package learner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tmkoski/powertrim/internal/decision"
	"github.com/tmkoski/powertrim/internal/store"
)

// #region learner

// Learner accumulates decision outcomes and user feedback, retrains the
// classifier in the background, and maintains the calibration statistic the
// decision engine multiplies into its confidence.
//
// The serving model lives behind an atomic pointer: the decision path reads
// whatever handle is current and never observes a partial retrain.
type Learner struct {
	cfg       Config
	bootstrap []decision.TrainingSample
	st        *store.Store // nil disables persistence

	handle atomic.Pointer[decision.Model]

	mu            sync.Mutex
	outcomes      []DecisionOutcome
	feedback      []FeedbackRecord
	sinceRetrain  int
	accuracy      float64
	liveSamples   int
	lastRetrainAt time.Time

	retrainCh chan struct{}
}

// New builds a learner. The synthetic bootstrap is regenerated
// deterministically; a persisted model (and persisted rings) are restored
// from st when present, otherwise the initial model is trained from the
// bootstrap alone.
func New(cfg Config, st *store.Store) (*Learner, error) {
	l := &Learner{
		cfg:       cfg,
		bootstrap: Bootstrap(cfg.BootstrapSamples, cfg.BootstrapSeed),
		st:        st,
		accuracy:  1.0,
		retrainCh: make(chan struct{}, 1),
	}

	if st != nil {
		if err := l.restore(); err != nil {
			return nil, err
		}
	}
	if l.handle.Load() == nil {
		m, err := decision.Train(l.bootstrap)
		if err != nil {
			return nil, fmt.Errorf("bootstrap training: %w", err)
		}
		l.handle.Store(m)
		l.persistModel(m)
		log.Printf("[LEARN] trained initial model from %d bootstrap samples", len(l.bootstrap))
	}
	return l, nil
}

// Current implements decision.ModelProvider.
func (l *Learner) Current() *decision.Model {
	return l.handle.Load()
}

// Calibration implements decision.CalibrationProvider: the EWMA historical
// accuracy and the number of live samples behind it.
func (l *Learner) Calibration() (float64, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accuracy, l.liveSamples
}

// #endregion learner

// #region record

// RecordOutcome appends a decision outcome to the bounded training ring.
func (l *Learner) RecordOutcome(o DecisionOutcome) {
	l.mu.Lock()
	l.outcomes = appendBounded(l.outcomes, o, l.cfg.BufferSize)
	l.sinceRetrain++
	trigger := l.sinceRetrain >= l.cfg.RetrainMin
	l.mu.Unlock()

	if l.st != nil {
		featJSON, _ := json.Marshal(o.Features)
		if err := l.st.AppendOutcome(store.OutcomeRow{
			DecisionID:   o.DecisionID,
			Severity:     int(o.Severity),
			Source:       string(o.Source),
			FeaturesJSON: string(featJSON),
			Savings:      o.ObservedSavings,
			Satisfaction: o.ObservedSatisfaction,
			CreatedAt:    o.Timestamp,
		}, l.cfg.BufferSize); err != nil {
			log.Printf("[LEARN] persist outcome: %v", err)
		}
	}
	if trigger {
		l.requestRetrain()
	}
}

// SubmitFeedback appends a user-feedback record.
func (l *Learner) SubmitFeedback(f FeedbackRecord) {
	l.mu.Lock()
	l.feedback = appendBounded(l.feedback, f, l.cfg.BufferSize)
	l.mu.Unlock()

	if l.st != nil {
		if err := l.st.AppendFeedback(store.FeedbackRow{
			DecisionID:            f.DecisionID,
			Satisfaction:          f.Satisfaction,
			PerformanceAcceptable: f.PerformanceAcceptable,
			BatteryImprovement:    f.BatteryImprovement,
			Comments:              f.Comments,
			CreatedAt:             f.Timestamp,
		}, l.cfg.BufferSize); err != nil {
			log.Printf("[LEARN] persist feedback: %v", err)
		}
	}
	l.requestRetrain()
}

func (l *Learner) requestRetrain() {
	select {
	case l.retrainCh <- struct{}{}:
	default: // retrain already pending
	}
}

// #endregion record

// #region background

// Run executes retraining off the tick path until ctx is done.
func (l *Learner) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.RetrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.retrainCh:
			l.Retrain()
		case <-ticker.C:
			l.Retrain()
		case <-ctx.Done():
			return
		}
	}
}

// Retrain rebuilds the model from the bootstrap set combined with the live
// buffer and swaps the serving handle. On failure the previous handle keeps
// serving and the next trigger retries.
func (l *Learner) Retrain() {
	live := l.trainingSet()
	if len(live) == 0 {
		l.mu.Lock()
		recent := l.lastRetrainAt
		l.mu.Unlock()
		if !recent.IsZero() {
			return // nothing new since the restore-time model
		}
	}

	// Bootstrap is never discarded: small live samples must not cause the
	// model to forget the synthetic baseline.
	samples := make([]decision.TrainingSample, 0, len(l.bootstrap)+len(live))
	samples = append(samples, l.bootstrap...)
	samples = append(samples, live...)

	m, err := decision.Train(samples)
	if err != nil {
		log.Printf("[LEARN] retrain failed, keeping previous model: %v", err)
		return
	}

	batchAcc := m.Accuracy(live)
	if len(live) == 0 {
		batchAcc = m.Accuracy(l.bootstrap)
	}

	l.handle.Store(m)
	l.mu.Lock()
	l.accuracy = (1-l.cfg.AccuracyAlpha)*l.accuracy + l.cfg.AccuracyAlpha*batchAcc
	l.liveSamples = len(live)
	l.sinceRetrain = 0
	l.lastRetrainAt = time.Now().UTC()
	acc := l.accuracy
	l.mu.Unlock()

	l.persistModel(m)
	log.Printf("[LEARN] retrained on %d samples (%d live), batch acc %.3f, ewma acc %.3f",
		len(samples), len(live), batchAcc, acc)
}

// trainingSet converts the outcome ring into labeled training samples,
// adjusting labels with linked feedback: an endorsed decision keeps its
// severity, a performance complaint shifts one class lighter, a missed
// battery improvement shifts one class heavier.
func (l *Learner) trainingSet() []decision.TrainingSample {
	l.mu.Lock()
	defer l.mu.Unlock()

	fbByDecision := make(map[string]FeedbackRecord, len(l.feedback))
	for _, f := range l.feedback {
		fbByDecision[f.DecisionID] = f
	}

	samples := make([]decision.TrainingSample, 0, len(l.outcomes))
	for _, o := range l.outcomes {
		label := o.Severity
		if f, ok := fbByDecision[o.DecisionID]; ok && !f.Positive() {
			if !f.PerformanceAcceptable && label > decision.SeverityNone {
				label--
			} else if !f.BatteryImprovement && label < decision.SeverityAggressive {
				label++
			}
		}
		samples = append(samples, decision.TrainingSample{Features: o.Features, Label: label})
	}
	return samples
}

// #endregion background

// #region persistence

func (l *Learner) restore() error {
	paramsJSON, ok, err := l.st.LoadModel()
	if err != nil {
		return err
	}
	if ok {
		var m decision.Model
		if err := json.Unmarshal([]byte(paramsJSON), &m); err != nil {
			log.Printf("[LEARN] persisted model unreadable, falling back to bootstrap: %v", err)
		} else {
			l.handle.Store(&m)
			l.lastRetrainAt = m.TrainedAt
		}
	}

	outcomes, err := l.st.RecentOutcomes(l.cfg.BufferSize)
	if err != nil {
		return err
	}
	for i := len(outcomes) - 1; i >= 0; i-- { // oldest first
		row := outcomes[i]
		var f decision.Features
		if err := json.Unmarshal([]byte(row.FeaturesJSON), &f); err != nil {
			continue
		}
		l.outcomes = append(l.outcomes, DecisionOutcome{
			DecisionID:           row.DecisionID,
			Features:             f,
			Severity:             decision.Severity(row.Severity),
			Source:               decision.SourceKind(row.Source),
			ObservedSavings:      row.Savings,
			ObservedSatisfaction: row.Satisfaction,
			Timestamp:            row.CreatedAt,
		})
	}

	feedback, err := l.st.RecentFeedback(l.cfg.BufferSize)
	if err != nil {
		return err
	}
	for i := len(feedback) - 1; i >= 0; i-- {
		row := feedback[i]
		l.feedback = append(l.feedback, FeedbackRecord{
			DecisionID:            row.DecisionID,
			Satisfaction:          row.Satisfaction,
			PerformanceAcceptable: row.PerformanceAcceptable,
			BatteryImprovement:    row.BatteryImprovement,
			Comments:              row.Comments,
			Timestamp:             row.CreatedAt,
		})
	}
	l.liveSamples = len(l.outcomes)
	return nil
}

func (l *Learner) persistModel(m *decision.Model) {
	if l.st == nil {
		return
	}
	paramsJSON, err := json.Marshal(m)
	if err != nil {
		log.Printf("[LEARN] marshal model: %v", err)
		return
	}
	if err := l.st.SaveModel(string(paramsJSON), m.TrainedAt); err != nil {
		log.Printf("[LEARN] persist model: %v", err)
	}
}

// #endregion persistence

// #region helpers

func appendBounded[T any](buf []T, v T, max int) []T {
	buf = append(buf, v)
	if max > 0 && len(buf) > max {
		buf = buf[len(buf)-max:]
	}
	return buf
}

// #endregion helpers
