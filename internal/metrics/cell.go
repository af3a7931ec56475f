package metrics

import "sync"

// #region cell

// Cell is a single-slot, last-write-wins holder for the newest snapshot.
// The Monitor writes, the control loop reads; neither ever blocks on the other.
type Cell struct {
	mu       sync.Mutex
	snap     SystemSnapshot
	occupied bool
}

// NewCell returns an empty cell.
func NewCell() *Cell {
	return &Cell{}
}

// Publish overwrites the cell with a newer snapshot.
func (c *Cell) Publish(s SystemSnapshot) {
	c.mu.Lock()
	c.snap = s
	c.occupied = true
	c.mu.Unlock()
}

// Latest returns the newest snapshot, or false if none was ever published.
// Staleness is the caller's concern: inspect Timestamp.
func (c *Cell) Latest() (SystemSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, c.occupied
}

// #endregion cell

// #region window

// Window is a bounded trailing buffer of snapshots used for trend features
// (user-activity inference). Owned by a single goroutine; not safe for
// concurrent use.
type Window struct {
	buf []SystemSnapshot
	cap int
}

// NewWindow creates a window retaining at most n snapshots.
func NewWindow(n int) *Window {
	if n < 1 {
		n = 1
	}
	return &Window{buf: make([]SystemSnapshot, 0, n), cap: n}
}

// Append adds a snapshot, evicting the oldest when full.
func (w *Window) Append(s SystemSnapshot) {
	if len(w.buf) == w.cap {
		copy(w.buf, w.buf[1:])
		w.buf[len(w.buf)-1] = s
		return
	}
	w.buf = append(w.buf, s)
}

// Recent returns the retained snapshots, oldest first. The returned slice
// aliases internal storage and must not be retained across Appends.
func (w *Window) Recent() []SystemSnapshot {
	return w.buf
}

// Len returns the number of retained snapshots.
func (w *Window) Len() int {
	return len(w.buf)
}

// #endregion window
