package decision

import (
	"encoding/json"
	"math"
	"testing"
)

func TestTrainRejectsEmptyAndBadLabels(t *testing.T) {
	if _, err := Train(nil); err == nil {
		t.Fatal("expected error for empty training set")
	}
	bad := []TrainingSample{{Label: Severity(7)}}
	if _, err := Train(bad); err == nil {
		t.Fatal("expected error for out-of-range label")
	}
}

func TestTrainAndPredictSeparatedClasses(t *testing.T) {
	var samples []TrainingSample
	for i := 0; i < 50; i++ {
		jitter := float64(i%5) - 2
		samples = append(samples,
			TrainingSample{Features: features(90+jitter, 10, false), Label: SeverityNone},
			TrainingSample{Features: features(45+jitter, 80, false), Label: SeverityLight},
			TrainingSample{Features: features(22+jitter, 30, false), Label: SeverityModerate},
			TrainingSample{Features: features(7+jitter, 60, false), Label: SeverityAggressive},
		)
	}
	m, err := Train(samples)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if m.Samples != len(samples) {
		t.Fatalf("Samples %d, want %d", m.Samples, len(samples))
	}

	cases := []struct {
		f    Features
		want Severity
	}{
		{features(92, 12, false), SeverityNone},
		{features(44, 78, false), SeverityLight},
		{features(20, 28, false), SeverityModerate},
		{features(5, 55, false), SeverityAggressive},
	}
	for _, c := range cases {
		p := m.Predict(c.f)
		if p.Severity != c.want {
			t.Errorf("battery=%.0f cpu=%.0f: predicted %s, want %s",
				c.f[IdxBatteryPercent], c.f[IdxCPUPercent], p.Severity, c.want)
		}
		if p.Source != SourceLearned {
			t.Errorf("source %s, want %s", p.Source, SourceLearned)
		}
	}

	if acc := m.Accuracy(samples); acc < 0.95 {
		t.Errorf("training-set accuracy %.3f, want >= 0.95 on separated classes", acc)
	}
}

func TestPredictProbabilitiesNormalized(t *testing.T) {
	samples := []TrainingSample{
		{Features: features(90, 10, false), Label: SeverityNone},
		{Features: features(10, 80, false), Label: SeverityAggressive},
	}
	m, err := Train(samples)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	p := m.Predict(features(50, 50, false))
	var sum float64
	for _, v := range p.Probs {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum to %.6f, want 1", sum)
	}
	// Empty classes get zero probability, never NaN.
	if p.Probs[SeverityLight] != 0 || p.Probs[SeverityModerate] != 0 {
		t.Fatalf("empty classes carry probability: %v", p.Probs)
	}
}

func TestModelSurvivesJSONRoundTrip(t *testing.T) {
	samples := []TrainingSample{
		{Features: features(90, 10, false), Label: SeverityNone},
		{Features: features(10, 80, false), Label: SeverityAggressive},
	}
	m, err := Train(samples)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var restored Model
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	probe := features(12, 75, false)
	a, b := m.Predict(probe), restored.Predict(probe)
	if a.Severity != b.Severity {
		t.Fatalf("restored model predicts %s, original %s", b.Severity, a.Severity)
	}
	if restored.Samples != m.Samples {
		t.Fatalf("restored Samples %d, want %d", restored.Samples, m.Samples)
	}
}

func TestConstantFeatureDoesNotDivideByZero(t *testing.T) {
	samples := []TrainingSample{
		{Features: features(50, 50, true), Label: SeverityNone},
		{Features: features(50, 50, true), Label: SeverityNone},
	}
	m, err := Train(samples)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	p := m.Predict(features(50, 50, true))
	if math.IsNaN(p.Probs[p.Severity]) {
		t.Fatal("NaN probability on constant features")
	}
}
