package decision

// #region rule

// Rule is one row of the ordered threshold table. Zero-valued fields are
// unconstrained; rows are evaluated top to bottom and the first match wins.
type Rule struct {
	Name         string
	PluggedIs    *bool   // nil = any
	BatteryBelow float64 // 0 = any
	CPUAbove     float64 // 0 = any
	Severity     Severity
}

func (r Rule) matches(f Features) bool {
	if r.PluggedIs != nil {
		plugged := f[IdxPowerPlugged] >= 0.5
		if plugged != *r.PluggedIs {
			return false
		}
	}
	if r.BatteryBelow > 0 && f[IdxBatteryPercent] >= r.BatteryBelow {
		return false
	}
	if r.CPUAbove > 0 && f[IdxCPUPercent] <= r.CPUAbove {
		return false
	}
	return true
}

// #endregion rule

// #region default-table

// DefaultRules returns the built-in threshold table. Cut-points are tuning
// constants, not invariants; replay fixtures pin the defaults.
func DefaultRules() []Rule {
	plugged := true
	return []Rule{
		{Name: "plugged", PluggedIs: &plugged, Severity: SeverityNone},
		{Name: "battery-critical", BatteryBelow: 15, Severity: SeverityAggressive},
		{Name: "battery-low", BatteryBelow: 30, Severity: SeverityModerate},
		{Name: "battery-medium-busy", BatteryBelow: 60, CPUAbove: 70, Severity: SeverityLight},
	}
}

// #endregion default-table

// #region rule-source

// RuleSource is the deterministic fallback decision source: an ordered
// threshold table with a fixed calibrated confidence.
type RuleSource struct {
	rules      []Rule
	confidence float64
}

// NewRuleSource builds a rule source. confidence is the fixed probability
// assigned to the selected class.
func NewRuleSource(rules []Rule, confidence float64) *RuleSource {
	return &RuleSource{rules: rules, confidence: Clamp01(confidence)}
}

// Predict implements Source. The fixed confidence goes to the matched class
// and the remainder is spread across the other classes.
func (r *RuleSource) Predict(f Features) Prediction {
	sev := SeverityNone
	for _, rule := range r.rules {
		if rule.matches(f) {
			sev = rule.Severity
			break
		}
	}

	var probs [NumSeverities]float64
	rest := (1 - r.confidence) / float64(NumSeverities-1)
	for i := range probs {
		probs[i] = rest
	}
	probs[sev] = r.confidence

	return Prediction{Severity: sev, Probs: probs, Source: SourceRules}
}

// #endregion rule-source
