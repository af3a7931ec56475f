package replay

import (
	"testing"
	"time"

	"github.com/tmkoski/powertrim/internal/metrics"
)

func snapshotAt(offset time.Duration, battery, cpu float64, plugged bool) metrics.SystemSnapshot {
	draw := 12.0
	if plugged {
		draw = -5
	}
	return metrics.SystemSnapshot{
		Timestamp:        time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC).Add(offset),
		BatteryPercent:   battery,
		BatteryPowerDraw: draw,
		PowerPlugged:     plugged,
		CPUPercent:       cpu,
		MemoryPercent:    55,
		ScreenBrightness: 70,
	}
}

func TestReplayDrainAndRecoveryScenario(t *testing.T) {
	snaps := []metrics.SystemSnapshot{
		snapshotAt(0, 80, 20, true),                   // healthy on charger
		snapshotAt(10*time.Second, 10, 80, false),     // unplugged, draining fast
		snapshotAt(20*time.Second, 3, 40, false),      // critical
		snapshotAt(30*time.Second, 80, 10, true),      // charger back
	}
	results, sum := Replay(snaps, DefaultReplayConfig())

	if len(results) != 4 {
		t.Fatalf("%d results, want 4", len(results))
	}

	if got := results[0]; len(got.Approved) != 0 || got.Issued != 0 {
		t.Fatalf("step 0 issued %d actions while plugged and healthy", got.Issued)
	}
	if got := results[1]; got.Prediction.Severity.String() != "aggressive" || got.Issued == 0 {
		t.Fatalf("step 1: severity %s, issued %d", got.Prediction.Severity, got.Issued)
	}
	if !results[2].Emergency {
		t.Fatal("step 2 not flagged emergency at 3% battery")
	}
	if got := results[2]; len(got.Approved) != 5 {
		t.Fatalf("step 2 approved %d actions, want all five targets", len(got.Approved))
	}
	for _, a := range results[2].Approved {
		if a.Intensity != 1.0 {
			t.Errorf("emergency action on %s at intensity %.2f", a.TargetComponent, a.Intensity)
		}
	}
	if got := results[3]; len(got.Approved) != 0 || got.Reverted == 0 {
		t.Fatalf("step 3: approved %d, reverted %d, charger should clear everything", len(got.Approved), got.Reverted)
	}

	if sum.EmergencySteps != 1 {
		t.Fatalf("emergency steps %d, want 1", sum.EmergencySteps)
	}
	if sum.FinalActive != 0 {
		t.Fatalf("final active %d, want 0", sum.FinalActive)
	}
	for target, v := range sum.ControlValues {
		if v != 1.0 {
			t.Errorf("%s control value %.2f, want restored to 1.0", target, v)
		}
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	snaps := []metrics.SystemSnapshot{
		snapshotAt(0, 25, 60, false),
		snapshotAt(10*time.Second, 12, 85, false),
	}
	r1, s1 := Replay(snaps, DefaultReplayConfig())
	r2, s2 := Replay(snaps, DefaultReplayConfig())

	if s1.TotalIssued != s2.TotalIssued || s1.FinalActive != s2.FinalActive {
		t.Fatalf("summaries differ: %+v vs %+v", s1, s2)
	}
	for i := range r1 {
		if r1[i].Prediction.Severity != r2[i].Prediction.Severity {
			t.Fatalf("step %d severity differs between runs", i)
		}
		if len(r1[i].Approved) != len(r2[i].Approved) {
			t.Fatalf("step %d approved count differs between runs", i)
		}
	}
}

func TestCheckReportsMismatches(t *testing.T) {
	snaps := []metrics.SystemSnapshot{snapshotAt(0, 10, 80, false)}
	results, _ := Replay(snaps, DefaultReplayConfig())

	three := 3
	ok := &Fixture{ExpectedResults: []FixtureExpectedResult{
		{Step: 0, Severity: "aggressive", Actions: &three},
	}}
	if errs := Check(ok, results); len(errs) != 0 {
		t.Fatalf("unexpected mismatches: %v", errs)
	}

	zero := 0
	bad := &Fixture{ExpectedResults: []FixtureExpectedResult{
		{Step: 0, Severity: "none", Actions: &zero},
		{Step: 9, Severity: "none"},
	}}
	errs := Check(bad, results)
	if len(errs) != 3 {
		t.Fatalf("%d mismatches, want 3 (severity, count, range)", len(errs))
	}
}
