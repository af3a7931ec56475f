package metrics

import "time"

// #region snapshot

// SystemSnapshot is one immutable reading of machine state.
// Produced by the Monitor, consumed by the control loop.
type SystemSnapshot struct {
	Timestamp        time.Time
	BatteryPercent   float64
	BatteryPowerDraw float64 // watts; negative while charging
	PowerPlugged     bool
	CPUPercent       float64
	CPUFreqMHz       float64
	MemoryPercent    float64
	GPUPercent       float64
	GPUMemoryPercent float64
	NetworkBytesSent uint64
	NetworkBytesRecv uint64
	DiskIORead       uint64
	DiskIOWrite      uint64
	ScreenBrightness int // 0-100
	ActiveProcesses  int
	TargetAppCPU     float64
	TargetAppMemory  float64

	// SensorsDegraded lists metric names substituted with defaults
	// because the underlying sensor could not be read.
	SensorsDegraded []string
}

// NetworkActivityMB returns combined network traffic in megabytes.
func (s SystemSnapshot) NetworkActivityMB() float64 {
	return float64(s.NetworkBytesSent+s.NetworkBytesRecv) / 1024.0 / 1024.0
}

// Stale reports whether the snapshot is older than maxAge at the given time.
func (s SystemSnapshot) Stale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.Timestamp) > maxAge
}

// #endregion snapshot

// #region source

// Source is the read side of the Monitor: the newest snapshot, if any.
type Source interface {
	Latest() (SystemSnapshot, bool)
}

// #endregion source
