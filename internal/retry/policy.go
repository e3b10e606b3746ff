// Package retry wraps a single operation with bounded exponential backoff.
//
// Only transient network failures are retried. An HTTP status error, a
// filesystem error or a cancelled context ends the loop at once, and the
// final error is returned unmodified so callers can inspect it with
// errors.As.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/http"
	"github.com/handiism/bookget/internal/logger"
)

// ErrInvalidPolicy is returned by New for out-of-range parameters.
var ErrInvalidPolicy = fmt.Errorf("%w: retry policy", config.ErrInvalidConfig)

// Policy is an immutable retry schedule. The wait before attempt k+1 is
// min(waitMax, waitMin * multiplier^(k-1)).
type Policy struct {
	maxAttempts int
	waitMin     time.Duration
	waitMax     time.Duration
	multiplier  float64
	retryIf     func(error) bool
	logger      *slog.Logger
}

// New validates the parameters and builds a Policy that retries
// http.IsTransient errors.
func New(maxAttempts int, waitMin, waitMax time.Duration, multiplier float64) (*Policy, error) {
	switch {
	case maxAttempts < 1:
		return nil, fmt.Errorf("%w: max attempts must be >= 1, got %d", ErrInvalidPolicy, maxAttempts)
	case waitMin < 0:
		return nil, fmt.Errorf("%w: minimum wait must be >= 0, got %s", ErrInvalidPolicy, waitMin)
	case waitMax < waitMin:
		return nil, fmt.Errorf("%w: maximum wait %s is below minimum %s", ErrInvalidPolicy, waitMax, waitMin)
	case multiplier < 1:
		return nil, fmt.Errorf("%w: multiplier must be >= 1, got %g", ErrInvalidPolicy, multiplier)
	}

	return &Policy{
		maxAttempts: maxAttempts,
		waitMin:     waitMin,
		waitMax:     waitMax,
		multiplier:  multiplier,
		retryIf:     http.IsTransient,
		logger:      logger.GetLogger(),
	}, nil
}

// FromSettings builds the policy described by the retry section of settings.
func FromSettings(s *config.Settings) (*Policy, error) {
	return New(s.MaxAttempts, s.RetryWaitMinDuration(), s.RetryWaitMaxDuration(), s.RetryMultiplier)
}

// WithLogger returns a copy of p that reports retries to l.
func (p *Policy) WithLogger(l *slog.Logger) *Policy {
	cp := *p
	cp.logger = logger.Or(l)
	return &cp
}

// WithRetryIf returns a copy of p using fn to decide which errors are
// retried.
func (p *Policy) WithRetryIf(fn func(error) bool) *Policy {
	cp := *p
	cp.retryIf = fn
	return &cp
}

// MaxAttempts is the total number of tries, the first included.
func (p *Policy) MaxAttempts() int { return p.maxAttempts }

// Wait returns the pause after the k-th failed attempt (k >= 1).
func (p *Policy) Wait(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	w := float64(p.waitMin) * math.Pow(p.multiplier, float64(k-1))
	if w >= float64(p.waitMax) || math.IsInf(w, 1) {
		return p.waitMax
	}
	return time.Duration(w)
}

// Waits lists every pause the policy can take, maxAttempts-1 entries.
func (p *Policy) Waits() []time.Duration {
	waits := make([]time.Duration, 0, p.maxAttempts-1)
	for k := 1; k < p.maxAttempts; k++ {
		waits = append(waits, p.Wait(k))
	}
	return waits
}

// Do runs op until it succeeds, fails with a non-retryable error, runs out of
// attempts, or ctx is done. The returned error is op's last error, or the
// context's error when cancellation interrupted a wait.
func Do[T any](ctx context.Context, p *Policy, op func(context.Context) (T, error)) (T, error) {
	return retry.DoWithData(
		func() (T, error) {
			return op(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.maxAttempts)),
		// n is the number of failed attempts so far, starting at 1.
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return p.Wait(int(n))
		}),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && p.retryIf(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			attempt := int(n) + 1
			if attempt >= p.maxAttempts {
				return
			}
			p.logger.Warn("transient error, retrying",
				"attempt", attempt, "max_attempts", p.maxAttempts, "wait", p.Wait(attempt), "error", err)
		}),
		retry.LastErrorOnly(true),
	)
}
