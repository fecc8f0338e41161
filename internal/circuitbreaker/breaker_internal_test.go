package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream 503")

func TestBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	t.Parallel()

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var transitions []string

	b := New(Config{
		FailureThreshold: 2,
		Timeout:          time.Minute,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})
	b.now = func() time.Time { return clock }

	fail := func() error { return errUpstream }

	require.ErrorIs(t, b.Execute(fail), errUpstream)
	assert.Equal(t, StateClosed, b.State())
	require.ErrorIs(t, b.Execute(fail), errUpstream)
	assert.Equal(t, StateOpen, b.State())

	require.ErrorIs(t, b.Execute(func() error { return nil }), ErrCircuitOpen)

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_IgnoresNonFailures(t *testing.T) {
	t.Parallel()

	errConflict := errors.New("conflict")
	b := New(Config{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, errConflict) },
	})

	require.ErrorIs(t, b.Execute(func() error { return errConflict }), errConflict)
	assert.Equal(t, StateClosed, b.State())
}
