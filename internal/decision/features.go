package decision

import (
	"github.com/tmkoski/powertrim/internal/analyzer"
	"github.com/tmkoski/powertrim/internal/metrics"
)

// #region feature-indices

// Feature vector layout. Order is significant: the model is trained and
// served against exactly this layout.
const (
	IdxBatteryPercent = iota
	IdxCPUPercent
	IdxMemoryPercent
	IdxGPUPercent
	IdxNetworkActivity
	IdxScreenBrightness
	IdxTimeOfDay
	IdxPowerPlugged
	IdxTargetAppCPU
	IdxTargetAppMemory
	IdxContextScore

	NumFeatures
)

// #endregion feature-indices

// #region features

// Features is the 11-dimension input vector for both decision sources.
type Features [NumFeatures]float64

// ExtractFeatures builds the feature vector from a snapshot and its derived
// context. Deterministic: the hour comes from the snapshot timestamp.
func ExtractFeatures(snap metrics.SystemSnapshot, ctx analyzer.ContextState) Features {
	plugged := 0.0
	if ctx.PowerSource == analyzer.SourcePlugged {
		plugged = 1.0
	}
	return Features{
		IdxBatteryPercent:   snap.BatteryPercent,
		IdxCPUPercent:       snap.CPUPercent,
		IdxMemoryPercent:    snap.MemoryPercent,
		IdxGPUPercent:       snap.GPUPercent,
		IdxNetworkActivity:  snap.NetworkActivityMB(),
		IdxScreenBrightness: float64(snap.ScreenBrightness),
		IdxTimeOfDay:        float64(snap.Timestamp.Hour()),
		IdxPowerPlugged:     plugged,
		IdxTargetAppCPU:     snap.TargetAppCPU,
		IdxTargetAppMemory:  snap.TargetAppMemory,
		IdxContextScore:     ctx.Score,
	}
}

// #endregion features
