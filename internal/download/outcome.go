package download

import (
	"context"
	"errors"
	"fmt"

	"github.com/handiism/bookget/internal/http"
	"github.com/handiism/bookget/internal/progress"
)

// ErrorKind classifies why a task failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNetwork
	KindHTTPStatus
	KindFilesystem
	KindCancelled
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindHTTPStatus:
		return "http-status"
	case KindFilesystem:
		return "filesystem"
	case KindCancelled:
		return "cancelled"
	default:
		return "other"
	}
}

// FilesystemError wraps a failure to stat, create or write local files.
// It is never retried.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// Classify maps an error returned by a Fetcher to its kind.
func Classify(err error) ErrorKind {
	var (
		fsErr     *FilesystemError
		statusErr *http.StatusError
		netErr    *http.NetworkError
	)
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &fsErr):
		return KindFilesystem
	case errors.As(err, &statusErr):
		return KindHTTPStatus
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindOther
	}
}

// Outcome is the terminal state of one task. Success is true for a fresh
// download and for a destination that already existed (Skipped).
type Outcome struct {
	Task     Task
	Success  bool
	Skipped  bool
	Fallback bool
	Bytes    int64
	Kind     ErrorKind
	Err      error
}

func (o Outcome) event() progress.Event {
	url := o.Task.SourceURL
	if o.Fallback {
		url = o.Task.FallbackURL
	}
	return progress.Event{
		URL:         url,
		Destination: o.Task.Destination,
		Success:     o.Success,
		Skipped:     o.Skipped,
		Fallback:    o.Fallback,
		Bytes:       o.Bytes,
		Err:         o.Err,
	}
}

// Report summarizes a whole batch. Succeeded + Failed == Total, and
// Outcomes holds one entry per task in submission order.
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	Outcomes  []Outcome
}

// Failures returns the failed outcomes.
func (r Report) Failures() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Success {
			failed = append(failed, o)
		}
	}
	return failed
}
