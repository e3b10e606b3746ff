package download_test

import (
	"bytes"
	"context"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/download"
	dlmocks "github.com/handiism/bookget/internal/download/mocks"
	"github.com/handiism/bookget/internal/http"
	"github.com/handiism/bookget/internal/logger"
	"github.com/handiism/bookget/internal/progress"
)

func newManager(t *testing.T, f download.Fetcher, concurrency int) *download.Manager {
	t.Helper()
	m, err := download.NewManager(f, download.Options{Concurrency: concurrency, Logger: logger.Discard()})
	require.NoError(t, err)
	return m
}

func mustTask(t *testing.T, src, fallback, dest string) download.Task {
	t.Helper()
	task, err := download.NewTask(src, fallback, dest)
	require.NoError(t, err)
	return task
}

type callbackLog struct {
	mu    sync.Mutex
	calls map[string]bool
	count int
}

func (c *callbackLog) record(task download.Task, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[string]bool)
	}
	c.calls[task.Destination] = success
	c.count++
}

func TestNewManagerRejectsZeroConcurrency(t *testing.T) {
	_, err := download.NewManager(dlmocks.NewMockFetcher(gomock.NewController(t)), download.Options{Concurrency: 0})
	assert.ErrorIs(t, err, download.ErrInvalidConcurrency)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewTaskValidation(t *testing.T) {
	_, err := download.NewTask("", "", "/tmp/x")
	assert.Error(t, err)
	_, err = download.NewTask("http://example.org/a", "", "")
	assert.Error(t, err)

	task := mustTask(t, "http://example.org/a", "http://example.org/b", "/tmp/x")
	assert.True(t, task.HasFallback())
}

func TestExecuteEmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	m, err := download.NewManager(dlmocks.NewMockFetcher(gomock.NewController(t)), download.Options{
		Concurrency: 4,
		Logger:      logger.New(&buf, "info", "text"),
	})
	require.NoError(t, err)

	var cb callbackLog
	assert.Equal(t, 0, m.Execute(context.Background(), cb.record))
	assert.Zero(t, cb.count)
	assert.Contains(t, buf.String(), "no tasks to download")
}

func TestExecuteMixedBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := dlmocks.NewMockFetcher(ctrl)
	notFound := &http.StatusError{URL: "x", Code: 404}

	// A: no fallback, 404
	fetcher.EXPECT().Fetch(gomock.Any(), "http://h/a", "/d/a", gomock.Any()).Return(download.FetchResult{}, notFound)
	// B: succeeds first try
	fetcher.EXPECT().Fetch(gomock.Any(), "http://h/b", "/d/b", gomock.Any()).Return(download.FetchResult{Bytes: 3}, nil)
	// C: primary 404, fallback succeeds
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), "http://h/c", "/d/c", gomock.Any()).Return(download.FetchResult{}, notFound),
		fetcher.EXPECT().Fetch(gomock.Any(), "http://h/c-full", "/d/c", gomock.Any()).Return(download.FetchResult{Bytes: 5}, nil),
	)

	m := newManager(t, fetcher, 2)
	m.AddTasks(
		mustTask(t, "http://h/a", "", "/d/a"),
		mustTask(t, "http://h/b", "", "/d/b"),
		mustTask(t, "http://h/c", "http://h/c-full", "/d/c"),
	)
	require.Equal(t, 3, m.Len())

	var cb callbackLog
	report := m.Run(context.Background(), cb.record)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 3, cb.count)
	assert.Equal(t, map[string]bool{"/d/a": false, "/d/b": true, "/d/c": true}, cb.calls)

	require.Len(t, report.Outcomes, 3)
	assert.Equal(t, download.KindHTTPStatus, report.Outcomes[0].Kind)
	assert.False(t, report.Outcomes[1].Fallback)
	assert.True(t, report.Outcomes[2].Fallback)
	assert.Len(t, report.Failures(), 1)

	assert.Zero(t, m.Len(), "queue is drained")
}

func TestNoFallbackOnServerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := dlmocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), "http://h/p", "/d/p", gomock.Any()).
		Return(download.FetchResult{}, &http.StatusError{URL: "http://h/p", Code: 500}).Times(1)
	// any call for the fallback URL would fail the test

	m := newManager(t, fetcher, 1)
	m.AddTasks(mustTask(t, "http://h/p", "http://h/f", "/d/p"))

	report := m.Run(context.Background(), nil)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, download.KindHTTPStatus, report.Outcomes[0].Kind)
	assert.False(t, report.Outcomes[0].Fallback)
}

func TestFallbackFailureIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := dlmocks.NewMockFetcher(ctrl)
	notFound := &http.StatusError{Code: 404}
	fetcher.EXPECT().Fetch(gomock.Any(), "http://h/p", "/d/p", gomock.Any()).Return(download.FetchResult{}, notFound)
	fetcher.EXPECT().Fetch(gomock.Any(), "http://h/f", "/d/p", gomock.Any()).Return(download.FetchResult{}, notFound)

	m := newManager(t, fetcher, 1)
	m.AddTasks(mustTask(t, "http://h/p", "http://h/f", "/d/p"))

	var cb callbackLog
	assert.Equal(t, 0, m.Execute(context.Background(), cb.record))
	assert.Equal(t, 1, cb.count)
}

// inflightFetcher records the highest number of concurrent Fetch calls.
type inflightFetcher struct {
	current atomic.Int32
	peak    atomic.Int32
	calls   atomic.Int32
	fail    func(url string) bool
}

func (f *inflightFetcher) Fetch(ctx context.Context, url, _ string, _ map[string]string) (download.FetchResult, error) {
	f.calls.Add(1)
	n := f.current.Add(1)
	defer f.current.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-ctx.Done():
		return download.FetchResult{}, ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}
	if f.fail != nil && f.fail(url) {
		return download.FetchResult{}, &http.StatusError{URL: url, Code: 410}
	}
	return download.FetchResult{Bytes: 1}, nil
}

func TestConcurrencyBound(t *testing.T) {
	f := &inflightFetcher{}
	m := newManager(t, f, 3)
	for i := 0; i < 20; i++ {
		m.AddTasks(mustTask(t, fmt.Sprintf("http://h/%d", i), "", fmt.Sprintf("/d/%d", i)))
	}

	assert.Equal(t, 20, m.Execute(context.Background(), nil))
	assert.LessOrEqual(t, f.peak.Load(), int32(3))
	assert.Positive(t, f.peak.Load())
}

func TestCompletionTotality(t *testing.T) {
	f := &inflightFetcher{fail: func(url string) bool { return len(url)%2 == 0 }}
	tracker := progress.NewTracker()
	m, err := download.NewManager(f, download.Options{
		Concurrency: 4,
		Observer:    tracker,
		Logger:      logger.Discard(),
		Label:       "images",
	})
	require.NoError(t, err)

	const n = 25
	for i := 0; i < n; i++ {
		m.AddTasks(mustTask(t, fmt.Sprintf("http://h/%d", i), "", fmt.Sprintf("/d/%d", i)))
	}

	var cb callbackLog
	report := m.Run(context.Background(), cb.record)

	assert.Equal(t, n, report.Total)
	assert.Equal(t, n, report.Succeeded+report.Failed)
	assert.Equal(t, n, cb.count)
	assert.Len(t, cb.calls, n)

	snap := tracker.Snapshot()
	assert.EqualValues(t, n, snap.Total)
	assert.EqualValues(t, n, snap.Done)
	assert.EqualValues(t, report.Succeeded, snap.Succeeded)
	assert.Equal(t, "images", snap.Label)
}

func TestCancelledBatchStillReportsEveryTask(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := dlmocks.NewMockFetcher(ctrl) // never called

	m := newManager(t, fetcher, 2)
	for i := 0; i < 5; i++ {
		m.AddTasks(mustTask(t, fmt.Sprintf("http://h/%d", i), "", fmt.Sprintf("/d/%d", i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var cb callbackLog
	report := m.Run(ctx, cb.record)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 5, cb.count)
	for _, o := range report.Outcomes {
		assert.Equal(t, download.KindCancelled, o.Kind)
	}
	assert.Zero(t, m.Len())
}

func TestSleepIntervalHoldsSlot(t *testing.T) {
	f := &inflightFetcher{}
	m, err := download.NewManager(f, download.Options{
		Concurrency:   1,
		SleepInterval: 30 * time.Millisecond,
		Logger:        logger.Discard(),
	})
	require.NoError(t, err)
	m.AddTasks(
		mustTask(t, "http://h/1", "", "/d/1"),
		mustTask(t, "http://h/2", "", "/d/2"),
		mustTask(t, "http://h/3", "", "/d/3"),
	)

	start := time.Now()
	assert.Equal(t, 3, m.Execute(context.Background(), nil))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestSleepIntervalSkipsPresentFiles(t *testing.T) {
	ctrl := gomock.NewController(t)
	fetcher := dlmocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(download.FetchResult{Skipped: true}, nil).Times(3)

	m, err := download.NewManager(fetcher, download.Options{
		Concurrency:   1,
		SleepInterval: time.Hour,
		Logger:        logger.Discard(),
	})
	require.NoError(t, err)
	m.AddTasks(
		mustTask(t, "http://h/1", "", "/d/1"),
		mustTask(t, "http://h/2", "", "/d/2"),
		mustTask(t, "http://h/3", "", "/d/3"),
	)

	start := time.Now()
	report := m.Run(context.Background(), nil)
	assert.Less(t, time.Since(start), 5*time.Second, "no pause after a skipped file")
	assert.Equal(t, 3, report.Succeeded)
	for _, o := range report.Outcomes {
		assert.True(t, o.Skipped)
	}
}

func TestClear(t *testing.T) {
	m := newManager(t, dlmocks.NewMockFetcher(gomock.NewController(t)), 1)
	m.AddTasks(mustTask(t, "http://h/1", "", "/d/1"))
	m.Clear()
	assert.Zero(t, m.Len())
	assert.Equal(t, 0, m.Execute(context.Background(), nil))
}

// End-to-end against a real server: a second run makes no requests.
func TestExecuteIsIdempotent(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		requests.Add(1)
		if r.URL.Path == "/missing.jpg" {
			stdhttp.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "body of %s", r.URL.Path)
	}))
	defer server.Close()

	settings := config.DefaultSettings()
	settings.Timeout = 5
	client, err := http.NewClient(settings)
	require.NoError(t, err)
	defer client.Close()

	fetcher := download.NewHTTPFetcher(client, testPolicy(t, 2), logger.Discard())
	m := newManager(t, fetcher, 4)

	dir := t.TempDir()
	tasks := []download.Task{
		mustTask(t, server.URL+"/1.jpg", "", filepath.Join(dir, "images", "0001.jpg")),
		mustTask(t, server.URL+"/missing.jpg", server.URL+"/2.jpg", filepath.Join(dir, "images", "0002.jpg")),
	}

	m.AddTasks(tasks...)
	require.Equal(t, 2, m.Execute(context.Background(), nil))
	assert.EqualValues(t, 3, requests.Load())

	data, err := os.ReadFile(filepath.Join(dir, "images", "0002.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "body of /2.jpg", string(data))

	m.AddTasks(tasks...)
	report := m.Run(context.Background(), nil)
	assert.Equal(t, 2, report.Succeeded)
	assert.EqualValues(t, 3, requests.Load(), "second run hits the network zero times")
	for _, o := range report.Outcomes {
		assert.True(t, o.Skipped)
	}
}

func TestPreExistingDestinationNeedsNoNetwork(t *testing.T) {
	server := httptest.NewServer(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		t.Errorf("unexpected request for %s", r.URL.Path)
		w.WriteHeader(stdhttp.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := http.NewClient(config.DefaultSettings())
	require.NoError(t, err)
	defer client.Close()

	dest := filepath.Join(t.TempDir(), "0001.jpg")
	require.NoError(t, os.WriteFile(dest, []byte("done"), 0644))

	m := newManager(t, download.NewHTTPFetcher(client, testPolicy(t, 3), logger.Discard()), 1)
	m.AddTasks(mustTask(t, server.URL+"/1.jpg", "", dest))
	assert.Equal(t, 1, m.Execute(context.Background(), nil))
}
