package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/catalog-migrator/internal/retry"
)

var (
	errTransient = errors.New("connection reset by peer")
	errPermanent = errors.New("unauthorized")
	errSlow      = errors.New("slow down")
)

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	rec := &recordingSleep{}
	calls := 0

	err := retry.Retry(context.Background(), retry.Config{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
		Sleep:        rec.sleep,
	}, func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestRetry_NonRetryableReturnsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Retry(context.Background(), retry.Config{MaxAttempts: 5}, func() error {
		calls++
		return errPermanent
	})

	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	rec := &recordingSleep{}
	err := retry.Retry(context.Background(), retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Sleep:        rec.sleep,
	}, func() error { return errTransient })

	require.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	require.ErrorIs(t, err, errTransient)
	assert.Len(t, rec.delays, 2)
}

func TestRetry_DelayForAndCap(t *testing.T) {
	t.Parallel()

	rec := &recordingSleep{}
	var retried []int

	err := retry.Retry(context.Background(), retry.Config{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
		IsRetryable:  func(error) bool { return true },
		DelayFor: func(err error) time.Duration {
			if errors.Is(err, errSlow) {
				return 3 * time.Second
			}
			return 0
		},
		OnRetry: func(attempt int, _ time.Duration, _ error) { retried = append(retried, attempt) },
		Sleep:   rec.sleep,
	}, func() error { return errSlow })

	require.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second, 10 * time.Second, 10 * time.Second}, rec.delays)
	assert.Equal(t, []int{1, 2, 3, 4}, retried)
}

func TestRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Retry(ctx, retry.DefaultConfig(), func() error { return nil })
	require.ErrorIs(t, err, retry.ErrContextCancelled)
}

func TestDefaultIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", errors.New("i/o timeout"), true},
		{"reset", errTransient, true},
		{"permanent", errPermanent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, retry.DefaultIsRetryable(tt.err))
		})
	}
}
