package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

func newTestExecutor(cfg Config) *Executor {
	return New(cfg, logger.New("error", "test"))
}

func fastConfig(maxAttempts int) Config {
	return Config{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestExecutor_Execute_Success(t *testing.T) {
	executor := newTestExecutor(fastConfig(3))
	want := &entities.Reading{LocationID: "downtown", ObservedAt: time.Now()}

	attempts := 0
	reading, err := executor.Execute(context.Background(), func(ctx context.Context) (*entities.Reading, error) {
		attempts++
		return want, nil
	})

	require.NoError(t, err)
	assert.Equal(t, want, reading)
	assert.Equal(t, 1, attempts)
}

func TestExecutor_Execute_TransientExhaustsRetries(t *testing.T) {
	executor := newTestExecutor(fastConfig(3))

	attempts := 0
	reading, err := executor.Execute(context.Background(), func(ctx context.Context) (*entities.Reading, error) {
		attempts++
		return nil, entities.NewFetchError(entities.ClassTransient, errors.New("connection reset"))
	})

	assert.Nil(t, reading)
	assert.Equal(t, 3, attempts, "must make exactly max_attempts attempts")
	assert.Equal(t, entities.ClassRetriesExhausted, entities.ClassOf(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestExecutor_Execute_ClientErrorNotRetried(t *testing.T) {
	executor := newTestExecutor(fastConfig(3))

	attempts := 0
	_, err := executor.Execute(context.Background(), func(ctx context.Context) (*entities.Reading, error) {
		attempts++
		return nil, entities.NewFetchError(entities.ClassClientError, errors.New("invalid api key"))
	})

	assert.Equal(t, 1, attempts, "non-retryable errors must surface after a single attempt")
	assert.Equal(t, entities.ClassClientError, entities.ClassOf(err))
}

func TestExecutor_Execute_NonRetryableClasses(t *testing.T) {
	for _, class := range []entities.ErrorClass{
		entities.ClassClientError,
		entities.ClassMalformed,
		entities.ClassQuotaExceeded,
	} {
		t.Run(string(class), func(t *testing.T) {
			executor := newTestExecutor(fastConfig(5))

			attempts := 0
			_, err := executor.Execute(context.Background(), func(ctx context.Context) (*entities.Reading, error) {
				attempts++
				return nil, entities.NewFetchError(class, errors.New("x"))
			})

			assert.Equal(t, 1, attempts)
			assert.Equal(t, class, entities.ClassOf(err))
		})
	}
}

func TestExecutor_Execute_RecoversAfterTransient(t *testing.T) {
	executor := newTestExecutor(fastConfig(3))
	want := &entities.Reading{LocationID: "cayuga-lake", ObservedAt: time.Now()}

	attempts := 0
	reading, err := executor.Execute(context.Background(), func(ctx context.Context) (*entities.Reading, error) {
		attempts++
		if attempts < 3 {
			return nil, entities.NewFetchError(entities.ClassTransient, errors.New("timeout"))
		}
		return want, nil
	})

	require.NoError(t, err)
	assert.Equal(t, want, reading)
	assert.Equal(t, 3, attempts)
}

func TestExecutor_Execute_ContextCancelledDuringBackoff(t *testing.T) {
	executor := newTestExecutor(Config{
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	done := make(chan error, 1)
	go func() {
		_, err := executor.Execute(ctx, func(ctx context.Context) (*entities.Reading, error) {
			attempts++
			return nil, entities.NewFetchError(entities.ClassTransient, errors.New("timeout"))
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts, "cancellation must interrupt the backoff sleep")
	case <-time.After(time.Second):
		t.Fatal("executor did not observe cancellation")
	}
}

func TestExecutor_BackoffDelay(t *testing.T) {
	executor := newTestExecutor(Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
	})
	// Pin jitter to its midpoint so the schedule is deterministic.
	executor.randFloat = func() float64 { return 0.5 }

	transient := entities.NewFetchError(entities.ClassTransient, errors.New("x"))

	assert.Equal(t, time.Second, executor.backoffDelay(1, transient))
	assert.Equal(t, 2*time.Second, executor.backoffDelay(2, transient))
	assert.Equal(t, 4*time.Second, executor.backoffDelay(3, transient))

	t.Run("capped at max delay", func(t *testing.T) {
		assert.LessOrEqual(t, executor.backoffDelay(20, transient), 60*time.Second)
	})

	t.Run("jitter stays within 20 percent", func(t *testing.T) {
		executor.randFloat = func() float64 { return 0 }
		low := executor.backoffDelay(2, transient)
		executor.randFloat = func() float64 { return 1 }
		high := executor.backoffDelay(2, transient)

		assert.Equal(t, 1600*time.Millisecond, low)
		assert.Equal(t, 2400*time.Millisecond, high)
	})

	t.Run("retry-after hint overrides smaller computed delay", func(t *testing.T) {
		executor.randFloat = func() float64 { return 0.5 }
		limited := &entities.FetchError{
			Class:      entities.ClassRateLimited,
			RetryAfter: 30 * time.Second,
			Err:        errors.New("429"),
		}
		assert.Equal(t, 30*time.Second, executor.backoffDelay(1, limited))
	})

	t.Run("retry-after hint ignored when smaller", func(t *testing.T) {
		limited := &entities.FetchError{
			Class:      entities.ClassRateLimited,
			RetryAfter: time.Millisecond,
			Err:        errors.New("429"),
		}
		assert.Equal(t, time.Second, executor.backoffDelay(1, limited))
	})
}
