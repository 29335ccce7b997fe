package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("overloaded"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	t.Parallel()

	permanent := errors.New("bad request")
	calls := 0
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := fastPolicy().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return NewTransientError(errors.New("still down"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, BaseDelay: time.Hour} // would sleep forever without cancel

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(ctx context.Context) error {
			calls++
			return NewTransientError(errors.New("down"), 502)
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not stop on context cancel")
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	t.Parallel()

	calls := 0
	v, err := DoVal(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, NewTransientError(errors.New("blip"), 429)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
}

func TestDoVal_CustomRetryable(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("always retry me")
	p := fastPolicy()
	p.Retryable = func(err error) bool { return errors.Is(err, sentinel) }

	calls := 0
	_, err := DoVal(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		return "", sentinel
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_OnRetryObservesAttempts(t *testing.T) {
	t.Parallel()

	var attempts []int
	p := fastPolicy()
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		attempts = append(attempts, attempt)
	}

	_ = p.Do(context.Background(), func(ctx context.Context) error {
		return NewTransientError(errors.New("down"), 500)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}
