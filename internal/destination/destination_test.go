package destination

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWithRetry_SucceedsOnFirstTry(t *testing.T) {
	calls := 0
	attempts, err := WithRetry(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, calls)
}

func TestWithRetry_NonRetryableErrorStopsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("terminal")
	attempts, err := WithRetry(context.Background(), func(error) bool { return false }, func() error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, attempts)
	require.Equal(t, 1, calls)
}

func TestWithRetry_RetriesUntilExhausted(t *testing.T) {
	origDelays := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	defer func() { retryDelays = origDelays }()

	calls := 0
	sentinel := errors.New("transient")
	attempts, err := WithRetry(context.Background(), func(error) bool { return true }, func() error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, len(retryDelays)+1, attempts)
	require.Equal(t, len(retryDelays)+1, calls)
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	origDelays := retryDelays
	retryDelays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	defer func() { retryDelays = origDelays }()

	calls := 0
	attempts, err := WithRetry(context.Background(), func(error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestWithRetry_ContextCancellationDuringBackoffAborts(t *testing.T) {
	origDelays := retryDelays
	retryDelays = []time.Duration{time.Hour}
	defer func() { retryDelays = origDelays }()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := WithRetry(ctx, func(error) bool { return true }, func() error {
		calls++
		return errors.New("transient")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
