package analyzer

import (
	"testing"
	"time"

	"github.com/tmkoski/powertrim/internal/metrics"
)

var baseTime = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

func snap(battery, cpu float64, plugged bool) metrics.SystemSnapshot {
	return metrics.SystemSnapshot{
		Timestamp:        baseTime,
		BatteryPercent:   battery,
		BatteryPowerDraw: 10,
		PowerPlugged:     plugged,
		CPUPercent:       cpu,
		MemoryPercent:    50,
		ScreenBrightness: 70,
	}
}

func TestBatteryLevels(t *testing.T) {
	cases := []struct {
		battery float64
		plugged bool
		want    BatteryLevel
	}{
		{3, false, BatteryCritical},
		{5, false, BatteryCritical},
		{5.1, false, BatteryLow},
		{20, false, BatteryLow},
		{30, false, BatteryLow},
		{45, false, BatteryMedium},
		{80, false, BatteryHigh},
		{97, false, BatteryHigh}, // full requires a charger
		{97, true, BatteryFull},
	}
	for _, c := range cases {
		s := snap(c.battery, 10, c.plugged)
		if c.plugged {
			s.BatteryPowerDraw = 0
		}
		got := Analyze(s, nil)
		if got.BatteryLevel != c.want {
			t.Errorf("battery=%.1f plugged=%t: level %s, want %s", c.battery, c.plugged, got.BatteryLevel, c.want)
		}
	}
}

func TestEmergencyOnlyWhenCritical(t *testing.T) {
	if !Analyze(snap(4, 10, false), nil).Emergency() {
		t.Error("battery 4% should be an emergency")
	}
	if Analyze(snap(6, 10, false), nil).Emergency() {
		t.Error("battery 6% should not be an emergency")
	}
}

func TestPerformanceDemand(t *testing.T) {
	cases := []struct {
		cpu, gpu float64
		want     Demand
	}{
		{5, 0, DemandIdle},
		{15, 10, DemandLight},
		{40, 20, DemandModerate},
		{50, 40, DemandHeavy},
		{95, 0, DemandHeavy},
	}
	for _, c := range cases {
		s := snap(50, c.cpu, false)
		s.GPUPercent = c.gpu
		got := Analyze(s, nil)
		if got.Demand != c.want {
			t.Errorf("cpu=%.0f gpu=%.0f: demand %s, want %s", c.cpu, c.gpu, got.Demand, c.want)
		}
	}
}

func TestMisreportingChargerReadsAsBattery(t *testing.T) {
	s := snap(50, 10, true)
	s.BatteryPowerDraw = 8.5 // clearly discharging
	got := Analyze(s, nil)
	if got.PowerSource != SourceBattery {
		t.Errorf("power source %s, want %s", got.PowerSource, SourceBattery)
	}
}

func TestAwayNeedsSustainedQuiet(t *testing.T) {
	quiet := snap(50, 1, false)
	quiet.TargetAppCPU = 0

	// Short quiet stretch: idle, not away.
	short := []metrics.SystemSnapshot{withTime(quiet, -2 * time.Minute)}
	if got := Analyze(quiet, short).UserActivity; got != UserIdle {
		t.Errorf("after 2 quiet minutes: activity %s, want %s", got, UserIdle)
	}

	// Six quiet minutes: away.
	long := []metrics.SystemSnapshot{
		withTime(quiet, -6 * time.Minute),
		withTime(quiet, -4 * time.Minute),
		withTime(quiet, -2 * time.Minute),
	}
	if got := Analyze(quiet, long).UserActivity; got != UserAway {
		t.Errorf("after 6 quiet minutes: activity %s, want %s", got, UserAway)
	}

	// A busy sample inside the window resets the stretch.
	interrupted := []metrics.SystemSnapshot{
		withTime(quiet, -6 * time.Minute),
		withTime(snap(50, 60, false), -4 * time.Minute),
		withTime(quiet, -2 * time.Minute),
	}
	if got := Analyze(quiet, interrupted).UserActivity; got == UserAway {
		t.Error("interrupted quiet stretch should not read as away")
	}
}

func TestContextScoreScenario(t *testing.T) {
	// Low battery, busy CPU, on battery: 2*0.5 + 2*0.25 + 0 + 3*0.1 = 1.8.
	got := Analyze(snap(10, 80, false), nil)
	if diff := got.Score - 1.8; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score %.4f, want 1.8", got.Score)
	}
}

func TestContextScoreMonotonicInBattery(t *testing.T) {
	prev := -1.0
	for _, battery := range []float64{90, 45, 20, 3} {
		score := Analyze(snap(battery, 30, false), nil).Score
		if score < prev {
			t.Errorf("score dropped to %.3f at battery=%.0f, was %.3f", score, battery, prev)
		}
		prev = score
	}
}

func TestScoreBounds(t *testing.T) {
	worst := snap(2, 100, false)
	worst.GPUPercent = 80
	s := Analyze(worst, nil).Score
	if s < 0 || s > 3 {
		t.Fatalf("score %.3f out of [0,3]", s)
	}
	best := snap(100, 0, true)
	best.BatteryPowerDraw = 0
	if got := Analyze(best, nil).Score; got != 0 {
		t.Errorf("best-case score %.3f, want 0", got)
	}
}

func withTime(s metrics.SystemSnapshot, offset time.Duration) metrics.SystemSnapshot {
	s.Timestamp = baseTime.Add(offset)
	return s
}
