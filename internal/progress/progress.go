// Package progress reports aggregate download progress.
//
// Observers receive one Begin per batch, one Observe per finished task and
// one End. Calls must be cheap and must never fail; the download manager
// serializes them, so implementations only need their own locking when they
// are shared between batches running at the same time.
package progress

import (
	"sync"
	"sync/atomic"
)

// Event describes one finished task.
type Event struct {
	URL         string
	Destination string
	Success     bool
	Skipped     bool
	Fallback    bool
	Bytes       int64
	Err         error
}

// Observer consumes progress for a batch of downloads.
type Observer interface {
	Begin(label string, total int)
	Observe(Event)
	End()
}

// Nop discards everything.
type Nop struct{}

func (Nop) Begin(string, int) {}
func (Nop) Observe(Event)     {}
func (Nop) End()              {}

// Snapshot is a point-in-time copy of a Tracker's counters.
type Snapshot struct {
	Label     string
	Total     int64
	Done      int64
	Succeeded int64
	Failed    int64
	Skipped   int64
	Bytes     int64
}

// Percent returns completion in [0, 1].
func (s Snapshot) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total)
}

// Tracker accumulates counters across batches with atomics so UIs can poll
// it from another goroutine.
type Tracker struct {
	total     atomic.Int64
	done      atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	bytes     atomic.Int64

	mu    sync.RWMutex
	label string
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Begin(label string, total int) {
	t.total.Add(int64(total))
	t.mu.Lock()
	t.label = label
	t.mu.Unlock()
}

func (t *Tracker) Observe(e Event) {
	t.done.Add(1)
	t.bytes.Add(e.Bytes)
	switch {
	case !e.Success:
		t.failed.Add(1)
	case e.Skipped:
		t.skipped.Add(1)
		t.succeeded.Add(1)
	default:
		t.succeeded.Add(1)
	}
}

func (t *Tracker) End() {}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	label := t.label
	t.mu.RUnlock()

	return Snapshot{
		Label:     label,
		Total:     t.total.Load(),
		Done:      t.done.Load(),
		Succeeded: t.succeeded.Load(),
		Failed:    t.failed.Load(),
		Skipped:   t.skipped.Load(),
		Bytes:     t.bytes.Load(),
	}
}

type multi []Observer

// Multi fans every call out to each non-nil observer in order.
func Multi(observers ...Observer) Observer {
	var m multi
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

func (m multi) Begin(label string, total int) {
	for _, o := range m {
		o.Begin(label, total)
	}
}

func (m multi) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

func (m multi) End() {
	for _, o := range m {
		o.End()
	}
}
