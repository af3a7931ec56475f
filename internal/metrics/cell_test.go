package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCellEmptyThenLatest(t *testing.T) {
	c := NewCell()
	if _, ok := c.Latest(); ok {
		t.Fatal("empty cell reported a snapshot")
	}

	c.Publish(SystemSnapshot{BatteryPercent: 80})
	c.Publish(SystemSnapshot{BatteryPercent: 42})

	snap, ok := c.Latest()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if snap.BatteryPercent != 42 {
		t.Fatalf("battery %.0f, want last write 42", snap.BatteryPercent)
	}
}

func TestCellConcurrentAccess(t *testing.T) {
	c := NewCell()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Publish(SystemSnapshot{BatteryPercent: float64(j)})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Latest()
			}
		}()
	}
	wg.Wait()
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for i := 1; i <= 5; i++ {
		w.Append(SystemSnapshot{BatteryPercent: float64(i)})
	}
	if w.Len() != 3 {
		t.Fatalf("len %d, want 3", w.Len())
	}
	got := w.Recent()
	for i, want := range []float64{3, 4, 5} {
		if got[i].BatteryPercent != want {
			t.Fatalf("slot %d holds %.0f, want %.0f (oldest first)", i, got[i].BatteryPercent, want)
		}
	}
}

func TestSnapshotStale(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	s := SystemSnapshot{Timestamp: now.Add(-5 * time.Second)}
	if s.Stale(now, 5*time.Second) {
		t.Error("snapshot at exactly maxAge should not be stale")
	}
	if !s.Stale(now, 4*time.Second) {
		t.Error("snapshot past maxAge should be stale")
	}
}

func TestNetworkActivityMB(t *testing.T) {
	s := SystemSnapshot{NetworkBytesSent: 3 << 20, NetworkBytesRecv: 1 << 20}
	if got := s.NetworkActivityMB(); got != 4 {
		t.Fatalf("activity %.2f MB, want 4", got)
	}
}
