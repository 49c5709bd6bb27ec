package retry

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/replythread/harvester/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

func withFastBackoff(t *testing.T) {
	t.Helper()
	original := NavigationBackoff
	NavigationBackoff = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	t.Cleanup(func() { NavigationBackoff = original })
}

func TestIsRetryableNavigationError(t *testing.T) {
	t.Parallel()

	require.True(t, IsRetryableNavigationError(errors.New("net::ERR_CONNECTION_CLOSED")))
	require.True(t, IsRetryableNavigationError(errors.New("context deadline: timeout")))
	require.False(t, IsRetryableNavigationError(errors.New("404 not found")))
	require.False(t, IsRetryableNavigationError(nil))
}

func TestNavigationSucceedsOnFirstAttempt(t *testing.T) {
	withFastBackoff(t)

	calls := 0
	err := Navigation(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestNavigationRetriesRetryableErrorsThenSucceeds(t *testing.T) {
	withFastBackoff(t)

	calls := 0
	err := Navigation(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("RESET by peer")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestNavigationReturnsImmediatelyOnNonRetryableError(t *testing.T) {
	withFastBackoff(t)

	calls := 0
	want := errors.New("permanent failure")
	err := Navigation(context.Background(), func(context.Context) error {
		calls++
		return want
	})
	require.ErrorIs(t, err, want)
	require.Equal(t, 1, calls)
}

func TestNavigationExhaustsScheduleAndReturnsLastError(t *testing.T) {
	withFastBackoff(t)

	calls := 0
	err := Navigation(context.Background(), func(context.Context) error {
		calls++
		return errors.New("NETWORK unreachable")
	})
	require.Error(t, err)
	require.Equal(t, len(NavigationBackoff)+1, calls)
}

func TestNavigationAbortsOnContextCancel(t *testing.T) {
	original := NavigationBackoff
	NavigationBackoff = []time.Duration{time.Hour}
	t.Cleanup(func() { NavigationBackoff = original })

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Navigation(ctx, func(context.Context) error {
		calls++
		return errors.New("timeout")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
