package download

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/http"
	"github.com/handiism/bookget/internal/logger"
	"github.com/handiism/bookget/internal/progress"
)

// ErrInvalidConcurrency is returned by NewManager for a concurrency below 1.
var ErrInvalidConcurrency = fmt.Errorf("%w: concurrency must be >= 1", config.ErrInvalidConfig)

// Callback is invoked exactly once per task, in completion order.
type Callback func(task Task, success bool)

// Options configures a Manager. They are fixed for the Manager's lifetime.
type Options struct {
	// Concurrency is the maximum number of tasks in flight.
	Concurrency int
	// SleepInterval pauses a slot after each download before it is released.
	SleepInterval time.Duration
	// Label names batches in progress output.
	Label    string
	Observer progress.Observer
	Logger   *slog.Logger
}

// Manager runs batches of tasks with bounded concurrency.
type Manager struct {
	fetcher  Fetcher
	opts     Options
	observer progress.Observer
	logger   *slog.Logger

	mu    sync.Mutex
	tasks []Task
}

// NewManager creates a Manager around fetcher.
func NewManager(fetcher Fetcher, opts Options) (*Manager, error) {
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidConcurrency, opts.Concurrency)
	}
	if opts.SleepInterval < 0 {
		return nil, fmt.Errorf("%w: sleep interval must be >= 0", config.ErrInvalidConfig)
	}
	if opts.Label == "" {
		opts.Label = "downloading"
	}

	observer := opts.Observer
	if observer == nil {
		observer = progress.Nop{}
	}

	return &Manager{
		fetcher:  fetcher,
		opts:     opts,
		observer: observer,
		logger:   logger.Or(opts.Logger),
	}, nil
}

// AddTasks queues tasks for the next Execute.
func (m *Manager) AddTasks(tasks ...Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, tasks...)
}

// Len returns the number of queued tasks.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Clear drops all queued tasks.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = nil
}

// Execute runs every queued task and returns how many succeeded.
func (m *Manager) Execute(ctx context.Context, callback Callback) int {
	return m.Run(ctx, callback).Succeeded
}

// Run drains the queue and runs each task once, at most Concurrency at a
// time. A task whose primary URL answers 404 is retried once against its
// fallback URL, if it has one. Every task yields exactly one Outcome and one
// callback, including when ctx is cancelled: tasks not yet started are then
// reported as cancelled failures without touching the network.
func (m *Manager) Run(ctx context.Context, callback Callback) Report {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()

	log := m.logger.With("batch", uuid.NewString(), "label", m.opts.Label)
	if len(tasks) == 0 {
		log.Warn("no tasks to download")
		return Report{}
	}

	log.Info("starting batch", "tasks", len(tasks), "concurrency", m.opts.Concurrency)
	started := time.Now()

	m.observer.Begin(m.opts.Label, len(tasks))
	defer m.observer.End()

	var (
		outcomes  = make([]Outcome, len(tasks))
		succeeded atomic.Int64
		completed atomic.Int64
		deliverMu sync.Mutex
	)

	g := new(errgroup.Group)
	g.SetLimit(m.opts.Concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			out := m.runTask(ctx, log, task)
			outcomes[i] = out
			if out.Success {
				succeeded.Add(1)
			}

			deliverMu.Lock()
			completed.Add(1)
			m.observer.Observe(out.event())
			if callback != nil {
				callback(task, out.Success)
			}
			deliverMu.Unlock()

			if out.Success {
				m.pause(ctx, out)
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Total:     len(tasks),
		Succeeded: int(succeeded.Load()),
		Outcomes:  outcomes,
	}
	report.Failed = report.Total - report.Succeeded

	log.Info("batch finished",
		"completed", completed.Load(),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"elapsed", time.Since(started).Round(time.Millisecond))

	return report
}

func (m *Manager) runTask(ctx context.Context, log *slog.Logger, task Task) Outcome {
	out := Outcome{Task: task}

	if err := ctx.Err(); err != nil {
		out.Err = err
		out.Kind = KindCancelled
		return out
	}

	res, err := m.fetcher.Fetch(ctx, task.SourceURL, task.Destination, task.Headers)
	if err != nil && task.HasFallback() && http.IsNotFound(err) {
		log.Debug("primary not found, trying fallback", "url", task.SourceURL, "fallback", task.FallbackURL)
		out.Fallback = true
		res, err = m.fetcher.Fetch(ctx, task.FallbackURL, task.Destination, task.Headers)
	}

	if err != nil {
		out.Err = err
		out.Kind = Classify(err)
		if ctx.Err() != nil {
			out.Kind = KindCancelled
		}
		log.Warn("download failed",
			"url", task.SourceURL,
			"dest", task.Destination,
			"book", task.Provenance.BookID,
			"volume", task.Provenance.VolumeID,
			"kind", out.Kind.String(),
			"error", err)
		return out
	}

	out.Success = true
	out.Skipped = res.Skipped
	out.Bytes = res.Bytes
	return out
}

// pause holds the slot after a real download so that requests are spaced by
// at least SleepInterval per worker. Skipped files made no request.
func (m *Manager) pause(ctx context.Context, out Outcome) {
	if m.opts.SleepInterval <= 0 || out.Skipped {
		return
	}
	timer := time.NewTimer(m.opts.SleepInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
