package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tmkoski/powertrim/internal/metrics"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Mode            string                  `json:"mode"`
	BaseTime        time.Time               `json:"base_time"`
	Samples         []FixtureSample         `json:"samples"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureSample mirrors one system snapshot with JSON tags. OffsetSeconds is
// relative to the fixture's base time, so fixtures stay valid forever.
type FixtureSample struct {
	OffsetSeconds    float64 `json:"offset_seconds"`
	BatteryPercent   float64 `json:"battery_percent"`
	BatteryPowerDraw float64 `json:"battery_power_draw"`
	PowerPlugged     bool    `json:"power_plugged"`
	CPUPercent       float64 `json:"cpu_percent"`
	CPUFreqMHz       float64 `json:"cpu_freq_mhz"`
	MemoryPercent    float64 `json:"memory_percent"`
	GPUPercent       float64 `json:"gpu_percent"`
	NetworkBytesSent uint64  `json:"network_bytes_sent"`
	NetworkBytesRecv uint64  `json:"network_bytes_recv"`
	ScreenBrightness int     `json:"screen_brightness"`
	ActiveProcesses  int     `json:"active_processes"`
	TargetAppCPU     float64 `json:"target_app_cpu"`
	TargetAppMemory  float64 `json:"target_app_memory"`
}

// FixtureExpectedResult captures the expected outcome for one sample. Omitted
// fields are not checked.
type FixtureExpectedResult struct {
	Step     int    `json:"step"`
	Severity string `json:"severity,omitempty"`
	Actions  *int   `json:"actions,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.BaseTime.IsZero() {
		f.BaseTime = time.Unix(0, 0).UTC()
	}
	return &f, nil
}

// ToSnapshot converts a fixture sample to a domain snapshot.
func (s *FixtureSample) ToSnapshot(base time.Time) metrics.SystemSnapshot {
	return metrics.SystemSnapshot{
		Timestamp:        base.Add(time.Duration(s.OffsetSeconds * float64(time.Second))),
		BatteryPercent:   s.BatteryPercent,
		BatteryPowerDraw: s.BatteryPowerDraw,
		PowerPlugged:     s.PowerPlugged,
		CPUPercent:       s.CPUPercent,
		CPUFreqMHz:       s.CPUFreqMHz,
		MemoryPercent:    s.MemoryPercent,
		GPUPercent:       s.GPUPercent,
		NetworkBytesSent: s.NetworkBytesSent,
		NetworkBytesRecv: s.NetworkBytesRecv,
		ScreenBrightness: s.ScreenBrightness,
		ActiveProcesses:  s.ActiveProcesses,
		TargetAppCPU:     s.TargetAppCPU,
		TargetAppMemory:  s.TargetAppMemory,
	}
}

// Snapshots converts all samples relative to the fixture base time.
func (f *Fixture) Snapshots() []metrics.SystemSnapshot {
	out := make([]metrics.SystemSnapshot, 0, len(f.Samples))
	for i := range f.Samples {
		out = append(out, f.Samples[i].ToSnapshot(f.BaseTime))
	}
	return out
}

// #endregion fixture-loader
