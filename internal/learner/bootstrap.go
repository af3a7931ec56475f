package learner

import (
	"math/rand"

	"github.com/tmkoski/powertrim/internal/decision"
)

// #region bootstrap

// Bootstrap generates the synthetic training set. Deterministic for a given
// seed, so a fresh install always starts from the same model; the set is kept
// and mixed into every retrain so small live samples cannot wash it out.
func Bootstrap(n int, seed int64) []decision.TrainingSample {
	rng := rand.New(rand.NewSource(seed))
	labeler := decision.NewRuleSource(decision.DefaultRules(), 1.0)

	samples := make([]decision.TrainingSample, 0, n)
	for i := 0; i < n; i++ {
		var f decision.Features
		f[decision.IdxBatteryPercent] = uniform(rng, 5, 100)
		f[decision.IdxCPUPercent] = uniform(rng, 0, 100)
		f[decision.IdxMemoryPercent] = uniform(rng, 20, 95)
		f[decision.IdxGPUPercent] = uniform(rng, 0, 80)
		f[decision.IdxNetworkActivity] = uniform(rng, 0, 100)
		f[decision.IdxScreenBrightness] = uniform(rng, 10, 100)
		f[decision.IdxTimeOfDay] = uniform(rng, 0, 24)
		f[decision.IdxPowerPlugged] = float64(rng.Intn(2))
		f[decision.IdxTargetAppCPU] = uniform(rng, 0, 50)
		f[decision.IdxTargetAppMemory] = uniform(rng, 0, 30)
		f[decision.IdxContextScore] = syntheticScore(f)

		samples = append(samples, decision.TrainingSample{
			Features: f,
			Label:    labeler.Predict(f).Severity,
		})
	}
	return samples
}

// syntheticScore approximates the analyzer's context score from raw features,
// keeping the bootstrap feature distribution close to live vectors.
func syntheticScore(f decision.Features) float64 {
	score := 0.0
	switch {
	case f[decision.IdxBatteryPercent] <= 5:
		score += 1.5
	case f[decision.IdxBatteryPercent] <= 30:
		score += 1.0
	case f[decision.IdxBatteryPercent] <= 60:
		score += 0.5
	}
	if f[decision.IdxCPUPercent]+f[decision.IdxGPUPercent] > 50 {
		score += 0.5
	}
	if f[decision.IdxPowerPlugged] < 0.5 {
		score += 0.3
	}
	if score > 3 {
		score = 3
	}
	return score
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// #endregion bootstrap
