package progress

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCounts(t *testing.T) {
	tr := NewTracker()
	tr.Begin("images", 4)
	tr.Observe(Event{Success: true, Bytes: 100})
	tr.Observe(Event{Success: true, Skipped: true})
	tr.Observe(Event{Success: false})

	s := tr.Snapshot()
	assert.Equal(t, "images", s.Label)
	assert.EqualValues(t, 4, s.Total)
	assert.EqualValues(t, 3, s.Done)
	assert.EqualValues(t, 2, s.Succeeded)
	assert.EqualValues(t, 1, s.Failed)
	assert.EqualValues(t, 1, s.Skipped)
	assert.EqualValues(t, 100, s.Bytes)
	assert.InDelta(t, 0.75, s.Percent(), 1e-9)
}

func TestTrackerAccumulatesBatches(t *testing.T) {
	tr := NewTracker()
	tr.Begin("ocr", 2)
	tr.Observe(Event{Success: true})
	tr.Observe(Event{Success: true})
	tr.End()
	tr.Begin("images", 3)

	s := tr.Snapshot()
	assert.EqualValues(t, 5, s.Total)
	assert.EqualValues(t, 2, s.Done)
	assert.Equal(t, "images", s.Label)
}

func TestTrackerConcurrentObserve(t *testing.T) {
	tr := NewTracker()
	tr.Begin("x", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Observe(Event{Success: i%2 == 0, Bytes: 1})
		}(i)
	}
	wg.Wait()

	s := tr.Snapshot()
	assert.EqualValues(t, 1000, s.Done)
	assert.EqualValues(t, 500, s.Succeeded)
	assert.EqualValues(t, 500, s.Failed)
	assert.EqualValues(t, 1000, s.Bytes)
}

func TestEmptySnapshotPercent(t *testing.T) {
	assert.Zero(t, Snapshot{}.Percent())
}

func TestMultiSkipsNil(t *testing.T) {
	a, b := NewTracker(), NewTracker()
	m := Multi(a, nil, b)
	m.Begin("pages", 1)
	m.Observe(Event{Success: true})
	m.End()

	assert.EqualValues(t, 1, a.Snapshot().Succeeded)
	assert.EqualValues(t, 1, b.Snapshot().Succeeded)
}

func TestBarWrites(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf)

	bar.Observe(Event{Success: true}) // before Begin: ignored
	bar.Begin("images", 2)
	bar.Observe(Event{Success: true, Bytes: 2048})
	bar.Observe(Event{Success: false})

	assert.Equal(t, "images ok:1 failed:1 2.0 kB", bar.description())

	bar.End()
	bar.End()
	assert.Nil(t, bar.bar)
}
