package retry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handiism/bookget/internal/config"
	"github.com/handiism/bookget/internal/http"
	"github.com/handiism/bookget/internal/logger"
)

func fastPolicy(t *testing.T, attempts int) *Policy {
	t.Helper()
	p, err := New(attempts, time.Millisecond, 5*time.Millisecond, 2)
	require.NoError(t, err)
	return p.WithLogger(logger.Discard())
}

func TestWaitsSchedule(t *testing.T) {
	p, err := New(3, time.Second, 10*time.Second, 2)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, p.Waits())
}

func TestWaitIsCapped(t *testing.T) {
	p, err := New(10, time.Second, 10*time.Second, 2)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		10 * time.Second, 10 * time.Second, 10 * time.Second, 10 * time.Second, 10 * time.Second,
	}, p.Waits())
	assert.Equal(t, 10*time.Second, p.Wait(1000))
}

func TestSingleAttemptHasNoWaits(t *testing.T) {
	p, err := New(1, time.Second, time.Second, 1)
	require.NoError(t, err)
	assert.Empty(t, p.Waits())
}

func TestNewRejectsInvalid(t *testing.T) {
	tests := []struct {
		name       string
		attempts   int
		min, max   time.Duration
		multiplier float64
	}{
		{"no attempts", 0, time.Second, time.Second, 2},
		{"negative min", 3, -time.Second, time.Second, 2},
		{"max below min", 3, 2 * time.Second, time.Second, 2},
		{"shrinking", 3, time.Second, time.Second, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.attempts, tt.min, tt.max, tt.multiplier)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestFromSettings(t *testing.T) {
	p, err := FromSettings(config.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 3, p.MaxAttempts())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, p.Waits())
}

func TestDoRetriesNetworkErrors(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(t, 3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &http.NetworkError{URL: "u", Err: io.ErrUnexpectedEOF}
		}
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 3, calls)
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	var last error
	_, err := Do(context.Background(), fastPolicy(t, 3), func(context.Context) (int, error) {
		calls++
		last = &http.NetworkError{URL: "u", Err: errors.New("reset")}
		return 0, last
	})
	assert.Equal(t, 3, calls)
	assert.Same(t, last, err)
}

func TestDoDoesNotRetryStatusErrors(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(t, 5), func(context.Context) ([]byte, error) {
		calls++
		return nil, &http.StatusError{URL: "u", Code: 500}
	})
	assert.Equal(t, 1, calls)
	var se *http.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.Code)
}

func TestDoStopsOnCancel(t *testing.T) {
	p, err := New(5, time.Hour, time.Hour, 1)
	require.NoError(t, err)
	p = p.WithLogger(logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	_, err = Do(ctx, p, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, &http.NetworkError{URL: "u", Err: errors.New("refused")}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestDoWaitsFollowSchedule(t *testing.T) {
	p, err := New(3, 100*time.Millisecond, 10*time.Second, 2)
	require.NoError(t, err)
	p = p.WithLogger(logger.Discard())

	var starts []time.Time
	_, err = Do(context.Background(), p, func(context.Context) (int, error) {
		starts = append(starts, time.Now())
		return 0, &http.NetworkError{URL: "u", Err: errors.New("reset")}
	})
	require.Error(t, err)
	require.Len(t, starts, 3)

	waits := p.Waits()
	for i, want := range waits {
		got := starts[i+1].Sub(starts[i])
		assert.GreaterOrEqual(t, got, want, "wait %d", i+1)
		assert.Less(t, got, want+want/2+50*time.Millisecond, "wait %d", i+1)
	}
}

func TestWithRetryIf(t *testing.T) {
	boom := errors.New("boom")
	p := fastPolicy(t, 2).WithRetryIf(func(err error) bool { return errors.Is(err, boom) })
	calls := 0
	_, err := Do(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}
