package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tmkoski/powertrim/internal/decision"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS active_actions (
	action_id     TEXT PRIMARY KEY,
	action_type   TEXT NOT NULL,
	target        TEXT NOT NULL,
	intensity     REAL NOT NULL,
	savings       REAL NOT NULL,
	impact        REAL NOT NULL,
	confidence    REAL NOT NULL,
	emergency     INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outcomes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id   TEXT NOT NULL,
	severity      INTEGER NOT NULL,
	source        TEXT NOT NULL,
	features_json TEXT NOT NULL,
	savings       REAL NOT NULL,
	satisfaction  REAL NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id   TEXT,
	satisfaction  REAL NOT NULL,
	perf_ok       INTEGER NOT NULL,
	batt_improved INTEGER NOT NULL,
	comments      TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS model_params (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	params_json   TEXT NOT NULL,
	trained_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_id   TEXT NOT NULL,
	state         TEXT NOT NULL,
	mode          TEXT NOT NULL,
	severity      INTEGER NOT NULL,
	source        TEXT NOT NULL,
	candidates    INTEGER NOT NULL,
	approved      INTEGER NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`
// #endregion schema

// #region store-struct

// Store persists everything that must survive a restart: the active-action
// table, outcome and feedback rings, model parameters, and the decision log.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the sqlite database and runs migrations.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for inspection tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region active-actions

// ActiveAction pairs a persisted action with its emergency provenance.
type ActiveAction struct {
	Action    decision.OptimizationAction
	Emergency bool
}

// SaveActiveAction upserts one active action.
func (s *Store) SaveActiveAction(a decision.OptimizationAction, emergency bool) error {
	em := 0
	if emergency {
		em = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO active_actions
		(action_id, action_type, target, intensity, savings, impact, confidence, emergency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(action_id) DO UPDATE SET
		intensity = excluded.intensity, emergency = excluded.emergency`,
		a.ID, string(a.Type), a.TargetComponent, a.Intensity, a.EstimatedSavings,
		a.PerformanceImpact, a.Confidence, em, a.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save active action: %w", err)
	}
	return nil
}

// DeleteActiveAction removes an action after it was reverted.
func (s *Store) DeleteActiveAction(id string) error {
	if _, err := s.db.Exec(`DELETE FROM active_actions WHERE action_id = ?`, id); err != nil {
		return fmt.Errorf("delete active action: %w", err)
	}
	return nil
}

// ListActiveActions returns every persisted active action.
func (s *Store) ListActiveActions() ([]ActiveAction, error) {
	rows, err := s.db.Query(`
		SELECT action_id, action_type, target, intensity, savings, impact, confidence, emergency, created_at
		FROM active_actions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active actions: %w", err)
	}
	defer rows.Close()

	var out []ActiveAction
	for rows.Next() {
		var a ActiveAction
		var typ, createdStr string
		var em int
		if err := rows.Scan(&a.Action.ID, &typ, &a.Action.TargetComponent,
			&a.Action.Intensity, &a.Action.EstimatedSavings, &a.Action.PerformanceImpact,
			&a.Action.Confidence, &em, &createdStr); err != nil {
			return nil, fmt.Errorf("scan active action: %w", err)
		}
		a.Action.Type = decision.ActionType(typ)
		a.Emergency = em != 0
		a.Action.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, a)
	}
	return out, rows.Err()
}

// #endregion active-actions

// #region outcomes

// OutcomeRow is one persisted decision outcome.
type OutcomeRow struct {
	DecisionID   string
	Severity     int
	Source       string
	FeaturesJSON string
	Savings      float64
	Satisfaction float64
	CreatedAt    time.Time
}

// AppendOutcome stores one outcome and trims the table to keep a bounded ring.
func (s *Store) AppendOutcome(o OutcomeRow, keep int) error {
	_, err := s.db.Exec(`
		INSERT INTO outcomes (decision_id, severity, source, features_json, savings, satisfaction, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.DecisionID, o.Severity, o.Source, o.FeaturesJSON, o.Savings, o.Satisfaction,
		o.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append outcome: %w", err)
	}
	return s.trim("outcomes", keep)
}

// RecentOutcomes returns up to limit outcomes, newest first.
func (s *Store) RecentOutcomes(limit int) ([]OutcomeRow, error) {
	rows, err := s.db.Query(`
		SELECT decision_id, severity, source, features_json, savings, satisfaction, created_at
		FROM outcomes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRow
	for rows.Next() {
		var o OutcomeRow
		var createdStr string
		if err := rows.Scan(&o.DecisionID, &o.Severity, &o.Source, &o.FeaturesJSON,
			&o.Savings, &o.Satisfaction, &createdStr); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, o)
	}
	return out, rows.Err()
}

// #endregion outcomes

// #region feedback

// FeedbackRow is one persisted user-feedback record.
type FeedbackRow struct {
	DecisionID            string
	Satisfaction          float64
	PerformanceAcceptable bool
	BatteryImprovement    bool
	Comments              string
	CreatedAt             time.Time
}

// AppendFeedback stores one feedback record, trimming to a bounded ring.
func (s *Store) AppendFeedback(f FeedbackRow, keep int) error {
	perfOK, battUp := 0, 0
	if f.PerformanceAcceptable {
		perfOK = 1
	}
	if f.BatteryImprovement {
		battUp = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO feedback (decision_id, satisfaction, perf_ok, batt_improved, comments, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nullIfEmpty(f.DecisionID), f.Satisfaction, perfOK, battUp, nullIfEmpty(f.Comments),
		f.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	return s.trim("feedback", keep)
}

// RecentFeedback returns up to limit feedback rows, newest first.
func (s *Store) RecentFeedback(limit int) ([]FeedbackRow, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(decision_id, ''), satisfaction, perf_ok, batt_improved, COALESCE(comments, ''), created_at
		FROM feedback ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent feedback: %w", err)
	}
	defer rows.Close()

	var out []FeedbackRow
	for rows.Next() {
		var f FeedbackRow
		var perfOK, battUp int
		var createdStr string
		if err := rows.Scan(&f.DecisionID, &f.Satisfaction, &perfOK, &battUp, &f.Comments, &createdStr); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		f.PerformanceAcceptable = perfOK != 0
		f.BatteryImprovement = battUp != 0
		f.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, f)
	}
	return out, rows.Err()
}

// #endregion feedback

// #region model-params

// SaveModel persists the serialized model parameters.
func (s *Store) SaveModel(paramsJSON string, trainedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO model_params (id, params_json, trained_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET params_json = excluded.params_json, trained_at = excluded.trained_at`,
		paramsJSON, trainedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// LoadModel returns the persisted model parameters, or ok=false when none
// were ever saved.
func (s *Store) LoadModel() (paramsJSON string, ok bool, err error) {
	err = s.db.QueryRow(`SELECT params_json FROM model_params WHERE id = 1`).Scan(&paramsJSON)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load model: %w", err)
	}
	return paramsJSON, true, nil
}

// #endregion model-params

// #region decision-log

// DecisionLogRow records one tick's decision for offline inspection.
type DecisionLogRow struct {
	DecisionID string
	State      string
	Mode       string
	Severity   int
	Source     string
	Candidates int
	Approved   int
	Reason     string
	CreatedAt  time.Time
}

// LogDecision appends a decision-log row.
func (s *Store) LogDecision(d DecisionLogRow) error {
	_, err := s.db.Exec(`
		INSERT INTO decision_log (decision_id, state, mode, severity, source, candidates, approved, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DecisionID, d.State, d.Mode, d.Severity, d.Source, d.Candidates, d.Approved,
		nullIfEmpty(d.Reason), d.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// RecentDecisions returns up to limit decision-log rows, newest first.
func (s *Store) RecentDecisions(limit int) ([]DecisionLogRow, error) {
	rows, err := s.db.Query(`
		SELECT decision_id, state, mode, severity, source, candidates, approved, COALESCE(reason, ''), created_at
		FROM decision_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionLogRow
	for rows.Next() {
		var d DecisionLogRow
		var createdStr string
		if err := rows.Scan(&d.DecisionID, &d.State, &d.Mode, &d.Severity, &d.Source,
			&d.Candidates, &d.Approved, &d.Reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, d)
	}
	return out, rows.Err()
}

// #endregion decision-log

// #region helpers

// trim deletes the oldest rows beyond keep. keep <= 0 disables trimming.
func (s *Store) trim(table string, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.db.Exec(fmt.Sprintf(`
		DELETE FROM %s WHERE id NOT IN (SELECT id FROM %s ORDER BY id DESC LIMIT %d)`,
		table, table, keep))
	if err != nil {
		return fmt.Errorf("trim %s: %w", table, err)
	}
	return nil
}

func nullIfEmpty(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// #endregion helpers
