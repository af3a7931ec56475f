package decision

import "testing"

func features(battery, cpu float64, plugged bool) Features {
	var f Features
	f[IdxBatteryPercent] = battery
	f[IdxCPUPercent] = cpu
	if plugged {
		f[IdxPowerPlugged] = 1
	}
	return f
}

func TestDefaultRuleTable(t *testing.T) {
	src := NewRuleSource(DefaultRules(), 0.75)

	cases := []struct {
		name    string
		battery float64
		cpu     float64
		plugged bool
		want    Severity
	}{
		{"plugged wins regardless of battery", 10, 90, true, SeverityNone},
		{"critical battery", 10, 5, false, SeverityAggressive},
		{"boundary battery 15 falls to low band", 15, 5, false, SeverityModerate},
		{"low battery", 25, 5, false, SeverityModerate},
		{"medium battery busy cpu", 45, 85, false, SeverityLight},
		{"medium battery quiet cpu", 45, 20, false, SeverityNone},
		{"high battery busy cpu", 80, 95, false, SeverityNone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := src.Predict(features(c.battery, c.cpu, c.plugged))
			if p.Severity != c.want {
				t.Fatalf("severity %s, want %s", p.Severity, c.want)
			}
			if p.Source != SourceRules {
				t.Fatalf("source %s, want %s", p.Source, SourceRules)
			}
		})
	}
}

func TestRuleSourceProbabilities(t *testing.T) {
	src := NewRuleSource(DefaultRules(), 0.75)
	p := src.Predict(features(10, 50, false))

	if got := p.TopProb(); got != 0.75 {
		t.Fatalf("top probability %.3f, want 0.75", got)
	}
	var sum float64
	for _, v := range p.Probs {
		sum += v
	}
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("probabilities sum to %.6f, want 1", sum)
	}
	for c, v := range p.Probs {
		if Severity(c) != p.Severity && v >= p.TopProb() {
			t.Fatalf("class %d probability %.3f not below top", c, v)
		}
	}
}
