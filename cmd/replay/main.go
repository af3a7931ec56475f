package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tmkoski/powertrim/internal/policy"
	"github.com/tmkoski/powertrim/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	verbose := flag.Bool("v", false, "print per-step results")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [-v]")
		os.Exit(2)
	}
	os.Exit(run(*fixturePath, *verbose))
}

// #endregion main

// #region run

func run(fixturePath string, verbose bool) int {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	cfg := replay.DefaultReplayConfig()
	if f.Mode != "" {
		mode, ok := policy.ByName(f.Mode)
		if !ok {
			fmt.Fprintf(os.Stderr, "fixture names unknown mode %q\n", f.Mode)
			return 2
		}
		cfg.Mode = mode
	}

	results, sum := replay.Replay(f.Snapshots(), cfg)

	if f.Description != "" {
		fmt.Printf("%s\n\n", f.Description)
	}
	if verbose {
		for _, r := range results {
			fmt.Printf("step %d: battery=%s demand=%s score=%.2f sev=%s approved=%d issued=%d reverted=%d",
				r.Step, r.Context.BatteryLevel, r.Context.Demand, r.Context.Score,
				r.Prediction.Severity, len(r.Approved), r.Issued, r.Reverted)
			if r.Emergency {
				fmt.Print("  EMERGENCY")
			}
			fmt.Println()
		}
		fmt.Println()
	}

	fmt.Printf("steps=%d issued=%d reverted=%d emergency_steps=%d final_active=%d\n",
		sum.TotalSteps, sum.TotalIssued, sum.TotalReverted, sum.EmergencySteps, sum.FinalActive)
	for target, v := range sum.ControlValues {
		fmt.Printf("  %s: %.0f%%\n", target, v*100)
	}

	errs := replay.Check(f, results)
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "MISMATCH: %v\n", e)
	}
	if len(errs) > 0 {
		return 1
	}
	if len(f.ExpectedResults) > 0 {
		fmt.Println("all expectations met")
	}
	return 0
}

// #endregion run
