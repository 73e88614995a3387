package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, opts Options) *Limiter {
	l, err := New(opts)
	require.NoError(t, err)
	return l
}

func TestNewRejectsInvalidBounds(t *testing.T) {
	_, err := New(Options{Initial: 0, Min: 1, Max: 10})
	require.Error(t, err)

	_, err = New(Options{Initial: 20, Min: 1, Max: 10})
	require.Error(t, err)
}

func TestReportFailureHalvesAndFloors(t *testing.T) {
	opts := DefaultOptions()
	opts.Initial, opts.Min, opts.Max = 5, 1, 50
	l := newTestLimiter(t, opts)

	require.Equal(t, 5, l.Limit())
	l.ReportFailure()
	require.Equal(t, 2, l.Limit()) // floor(5*0.5) == 2

	for i := 0; i < 10; i++ {
		l.ReportFailure()
	}
	require.GreaterOrEqual(t, l.Limit(), 1) // never below min
}

func TestReportSuccessGrowsAfterThreshold(t *testing.T) {
	opts := DefaultOptions()
	opts.Initial, opts.Min, opts.Max = 5, 1, 50
	opts.SuccessThreshold = 3
	l := newTestLimiter(t, opts)

	clock := time.Now().Add(-time.Hour)
	l.now = func() time.Time { return clock }

	l.ReportSuccess()
	l.ReportSuccess()
	require.Equal(t, 5, l.Limit())
	l.ReportSuccess()
	require.Equal(t, 6, l.Limit())
}

func TestSuccessDuringCooldownDoesNotGrow(t *testing.T) {
	opts := DefaultOptions()
	opts.Initial, opts.Min, opts.Max = 5, 1, 50
	opts.SuccessThreshold = 1
	opts.FailureCooldown = time.Minute
	l := newTestLimiter(t, opts)

	clock := time.Now()
	l.now = func() time.Time { return clock }

	l.ReportFailure()
	require.Equal(t, 2, l.Limit())

	clock = clock.Add(time.Second) // still inside cooldown
	l.ReportSuccess()
	require.Equal(t, 2, l.Limit())
}

func TestDisabledIsNoOp(t *testing.T) {
	opts := DefaultOptions()
	opts.Initial, opts.Min, opts.Max = 10, 1, 50
	opts.Disabled = true
	l := newTestLimiter(t, opts)

	l.ReportFailure()
	require.Equal(t, 10, l.Limit())
	l.ReportSuccess()
	require.Equal(t, 10, l.Limit())
	require.True(t, l.Disabled())
}
