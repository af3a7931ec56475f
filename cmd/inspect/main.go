package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/tmkoski/powertrim/internal/decision"
	"github.com/tmkoski/powertrim/internal/store"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to powertrim.db")
	last := flag.Int("last", 20, "show N most recent rows per table")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/powertrim.db [--last N] [--json]")
		os.Exit(2)
	}

	st, err := store.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := run(st, *last, *jsonOut); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region report

type report struct {
	ActiveActions []store.ActiveAction   `json:"active_actions"`
	Decisions     []store.DecisionLogRow `json:"decisions"`
	Outcomes      []store.OutcomeRow     `json:"outcomes"`
	Feedback      []store.FeedbackRow    `json:"feedback"`
	Model         *modelInfo             `json:"model,omitempty"`
}

type modelInfo struct {
	Samples   int    `json:"samples"`
	TrainedAt string `json:"trained_at"`
}

func run(st *store.Store, last int, jsonOut bool) error {
	var r report
	var err error

	if r.ActiveActions, err = st.ListActiveActions(); err != nil {
		return err
	}
	if r.Decisions, err = st.RecentDecisions(last); err != nil {
		return err
	}
	if r.Outcomes, err = st.RecentOutcomes(last); err != nil {
		return err
	}
	if r.Feedback, err = st.RecentFeedback(last); err != nil {
		return err
	}

	paramsJSON, ok, err := st.LoadModel()
	if err != nil {
		return err
	}
	if ok {
		var m decision.Model
		if err := json.Unmarshal([]byte(paramsJSON), &m); err != nil {
			return fmt.Errorf("parse stored model: %w", err)
		}
		r.Model = &modelInfo{
			Samples:   m.Samples,
			TrainedAt: m.TrainedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	printReport(r)
	return nil
}

func printReport(r report) {
	fmt.Printf("active actions (%d):\n", len(r.ActiveActions))
	for _, aa := range r.ActiveActions {
		flag := ""
		if aa.Emergency {
			flag = " [emergency]"
		}
		fmt.Printf("  %s  %s on %s  intensity=%.2f savings=%.1f%%%s\n",
			aa.Action.ID[:8], aa.Action.Type, aa.Action.TargetComponent,
			aa.Action.Intensity, aa.Action.EstimatedSavings, flag)
	}

	fmt.Printf("\ndecisions (%d):\n", len(r.Decisions))
	for _, d := range r.Decisions {
		fmt.Printf("  %s  %s  state=%s mode=%s sev=%s src=%s candidates=%d approved=%d\n",
			d.CreatedAt.Format("15:04:05"), d.DecisionID[:8], d.State, d.Mode,
			decision.Severity(d.Severity), d.Source, d.Candidates, d.Approved)
	}

	fmt.Printf("\noutcomes (%d):\n", len(r.Outcomes))
	for _, o := range r.Outcomes {
		fmt.Printf("  %s  %s  sev=%s src=%s savings=%.1f%% satisfaction=%.2f\n",
			o.CreatedAt.Format("15:04:05"), o.DecisionID[:8],
			decision.Severity(o.Severity), o.Source, o.Savings, o.Satisfaction)
	}

	fmt.Printf("\nfeedback (%d):\n", len(r.Feedback))
	for _, f := range r.Feedback {
		fmt.Printf("  %s  satisfaction=%.2f perf_ok=%t batt_up=%t  %s\n",
			f.CreatedAt.Format("15:04:05"), f.Satisfaction,
			f.PerformanceAcceptable, f.BatteryImprovement, f.Comments)
	}

	if r.Model != nil {
		fmt.Printf("\nmodel: %d samples, trained %s\n", r.Model.Samples, r.Model.TrainedAt)
	} else {
		fmt.Println("\nmodel: none persisted")
	}
}

// #endregion report
