package decision

import (
	"fmt"
	"math"
	"time"
)

// #region training-sample

// TrainingSample pairs a feature vector with its severity label.
type TrainingSample struct {
	Features Features `json:"features"`
	Label    Severity `json:"label"`
}

// #endregion training-sample

// #region model

// Model is an immutable multi-class severity classifier: nearest centroid
// over standardized features with a softmax over negative distances. Once
// published a Model is never mutated; retraining builds a replacement and the
// serving handle is swapped atomically.
type Model struct {
	Centroids [NumSeverities]Features `json:"centroids"`
	Counts    [NumSeverities]int      `json:"counts"`
	Mean      Features                `json:"mean"`
	Std       Features                `json:"std"`
	Samples   int                     `json:"samples"`
	TrainedAt time.Time               `json:"trained_at"`
}

// Predict implements Source.
func (m *Model) Predict(f Features) Prediction {
	std := m.standardize(f)

	var logits [NumSeverities]float64
	maxLogit := math.Inf(-1)
	for c := 0; c < NumSeverities; c++ {
		if m.Counts[c] == 0 {
			logits[c] = math.Inf(-1)
			continue
		}
		logits[c] = -distance(std, m.standardize(m.Centroids[c]))
		if logits[c] > maxLogit {
			maxLogit = logits[c]
		}
	}

	var probs [NumSeverities]float64
	var sum float64
	for c := 0; c < NumSeverities; c++ {
		if math.IsInf(logits[c], -1) {
			continue
		}
		probs[c] = math.Exp(logits[c] - maxLogit)
		sum += probs[c]
	}
	best := SeverityNone
	for c := 0; c < NumSeverities; c++ {
		probs[c] /= sum
		if probs[c] > probs[best] {
			best = Severity(c)
		}
	}

	return Prediction{Severity: best, Probs: probs, Source: SourceLearned}
}

func (m *Model) standardize(f Features) Features {
	var out Features
	for i := range f {
		out[i] = (f[i] - m.Mean[i]) / m.Std[i]
	}
	return out
}

func distance(a, b Features) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// #endregion model

// #region train

// Train fits a new Model on the given samples.
func Train(samples []TrainingSample) (*Model, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("train: no samples")
	}

	m := &Model{Samples: len(samples), TrainedAt: time.Now().UTC()}

	for _, s := range samples {
		for i, v := range s.Features {
			m.Mean[i] += v
		}
	}
	for i := range m.Mean {
		m.Mean[i] /= float64(len(samples))
	}
	for _, s := range samples {
		for i, v := range s.Features {
			d := v - m.Mean[i]
			m.Std[i] += d * d
		}
	}
	for i := range m.Std {
		m.Std[i] = math.Sqrt(m.Std[i] / float64(len(samples)))
		if m.Std[i] == 0 {
			m.Std[i] = 1 // constant feature, avoid division by zero
		}
	}

	for _, s := range samples {
		c := s.Label
		if c < 0 || c >= NumSeverities {
			return nil, fmt.Errorf("train: label %d out of range", c)
		}
		for i, v := range s.Features {
			m.Centroids[c][i] += v
		}
		m.Counts[c]++
	}
	for c := 0; c < NumSeverities; c++ {
		if m.Counts[c] == 0 {
			continue
		}
		for i := range m.Centroids[c] {
			m.Centroids[c][i] /= float64(m.Counts[c])
		}
	}

	return m, nil
}

// Accuracy returns the share of samples the model classifies correctly.
func (m *Model) Accuracy(samples []TrainingSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	correct := 0
	for _, s := range samples {
		if m.Predict(s.Features).Severity == s.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}

// #endregion train
