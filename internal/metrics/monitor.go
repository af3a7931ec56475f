package metrics

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// #region defaults

// Defaults substituted when a sensor cannot be read. Each substitution is
// flagged in SystemSnapshot.SensorsDegraded.
const (
	defaultBatteryPercent = 50.0
	defaultPowerDraw      = 10.0
	defaultBrightness     = 70
)

// #endregion defaults

// #region monitor

// Monitor samples system state on a fixed cadence and publishes the newest
// snapshot into a Cell. Battery and brightness come from sysfs, everything
// else from gopsutil.
type Monitor struct {
	interval      time.Duration
	cell          *Cell
	targetProcess string

	targetPID int32
	gpuReader func() (util, memPct float64, ok bool) // nil on hosts without a GPU sensor
}

// NewMonitor creates a monitor sampling every interval. targetProcess is the
// name of the tracked application; empty disables per-app metrics.
func NewMonitor(interval time.Duration, targetProcess string) *Monitor {
	return &Monitor{
		interval:      interval,
		cell:          NewCell(),
		targetProcess: targetProcess,
	}
}

// Latest implements Source.
func (m *Monitor) Latest() (SystemSnapshot, bool) {
	return m.cell.Latest()
}

// Run samples until ctx is done. Meant to be launched as a goroutine; it
// publishes one snapshot immediately so the loop's first tick has data.
func (m *Monitor) Run(ctx context.Context) {
	m.cell.Publish(m.sample(time.Now()))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case t := <-ticker.C:
			m.cell.Publish(m.sample(t))
		case <-ctx.Done():
			return
		}
	}
}

// #endregion monitor

// #region sample

func (m *Monitor) sample(now time.Time) SystemSnapshot {
	snap := SystemSnapshot{Timestamp: now}

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		snap.CPUPercent = pcts[0]
	} else {
		snap.SensorsDegraded = append(snap.SensorsDegraded, "cpu")
	}
	if freqs, err := cpu.Info(); err == nil && len(freqs) > 0 {
		snap.CPUFreqMHz = freqs[0].Mhz
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemoryPercent = vm.UsedPercent
	} else {
		snap.SensorsDegraded = append(snap.SensorsDegraded, "memory")
	}

	if counters, err := net.IOCounters(false); err == nil && len(counters) > 0 {
		snap.NetworkBytesSent = counters[0].BytesSent
		snap.NetworkBytesRecv = counters[0].BytesRecv
	} else {
		snap.SensorsDegraded = append(snap.SensorsDegraded, "network")
	}

	if io, err := disk.IOCounters(); err == nil {
		for _, d := range io {
			snap.DiskIORead += d.ReadBytes
			snap.DiskIOWrite += d.WriteBytes
		}
	}

	if pids, err := process.Pids(); err == nil {
		snap.ActiveProcesses = len(pids)
	}

	m.sampleBattery(&snap)
	m.sampleBrightness(&snap)
	m.sampleGPU(&snap)
	m.sampleTargetApp(&snap)

	return snap
}

// sampleBattery reads capacity and charge state from sysfs, estimating power
// draw from current/voltage when exposed.
func (m *Monitor) sampleBattery(snap *SystemSnapshot) {
	capPaths, _ := filepath.Glob("/sys/class/power_supply/BAT*/capacity")
	if len(capPaths) == 0 {
		snap.BatteryPercent = defaultBatteryPercent
		snap.BatteryPowerDraw = defaultPowerDraw
		snap.PowerPlugged = true // desktop assumption
		snap.SensorsDegraded = append(snap.SensorsDegraded, "battery")
		return
	}
	base := filepath.Dir(capPaths[0])
	snap.BatteryPercent = readSysFloat(capPaths[0], defaultBatteryPercent)

	status := strings.TrimSpace(readSysString(filepath.Join(base, "status")))
	snap.PowerPlugged = status == "Charging" || status == "Full"

	// power_now is in microwatts where present; fall back to current*voltage.
	if pw := readSysFloat(filepath.Join(base, "power_now"), -1); pw >= 0 {
		snap.BatteryPowerDraw = pw / 1e6
	} else {
		cur := readSysFloat(filepath.Join(base, "current_now"), 0)
		volt := readSysFloat(filepath.Join(base, "voltage_now"), 0)
		if cur > 0 && volt > 0 {
			snap.BatteryPowerDraw = cur * volt / 1e12
		} else {
			snap.BatteryPowerDraw = defaultPowerDraw
			snap.SensorsDegraded = append(snap.SensorsDegraded, "power_draw")
		}
	}
	if snap.PowerPlugged {
		snap.BatteryPowerDraw = -snap.BatteryPowerDraw
	}
}

// sampleBrightness normalizes the backlight reading to 0-100.
func (m *Monitor) sampleBrightness(snap *SystemSnapshot) {
	curPaths, _ := filepath.Glob("/sys/class/backlight/*/brightness")
	if len(curPaths) == 0 {
		snap.ScreenBrightness = defaultBrightness
		snap.SensorsDegraded = append(snap.SensorsDegraded, "brightness")
		return
	}
	base := filepath.Dir(curPaths[0])
	cur := readSysFloat(curPaths[0], -1)
	max := readSysFloat(filepath.Join(base, "max_brightness"), -1)
	if cur < 0 || max <= 0 {
		snap.ScreenBrightness = defaultBrightness
		snap.SensorsDegraded = append(snap.SensorsDegraded, "brightness")
		return
	}
	snap.ScreenBrightness = int(cur / max * 100)
}

func (m *Monitor) sampleGPU(snap *SystemSnapshot) {
	if m.gpuReader == nil {
		return
	}
	if util, memPct, ok := m.gpuReader(); ok {
		snap.GPUPercent = util
		snap.GPUMemoryPercent = memPct
	}
}

// sampleTargetApp resolves the tracked process by name (PID cached between
// samples) and reads its CPU and memory share.
func (m *Monitor) sampleTargetApp(snap *SystemSnapshot) {
	if m.targetProcess == "" {
		return
	}
	p := m.targetProc()
	if p == nil {
		return
	}
	if pct, err := p.CPUPercent(); err == nil {
		snap.TargetAppCPU = pct
	}
	if pct, err := p.MemoryPercent(); err == nil {
		snap.TargetAppMemory = float64(pct)
	}
}

func (m *Monitor) targetProc() *process.Process {
	if m.targetPID != 0 {
		p, err := process.NewProcess(m.targetPID)
		if err == nil {
			if name, err := p.Name(); err == nil && name == m.targetProcess {
				return p
			}
		}
		m.targetPID = 0 // stale PID, re-resolve
	}
	procs, err := process.Processes()
	if err != nil {
		return nil
	}
	for _, p := range procs {
		name, err := p.Name()
		if err == nil && name == m.targetProcess {
			m.targetPID = p.Pid
			log.Printf("[MON] resolved target process %q to pid %d", m.targetProcess, p.Pid)
			return p
		}
	}
	return nil
}

// #endregion sample

// #region sysfs-helpers

func readSysString(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

func readSysFloat(path string, fallback float64) float64 {
	b, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil {
		return fallback
	}
	return v
}

// #endregion sysfs-helpers
