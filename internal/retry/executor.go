package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

// FetchFunc is one logical fetch attempt.
type FetchFunc func(ctx context.Context) (*entities.Reading, error)

// Config controls the backoff schedule.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
	}
}

// Executor wraps a fetch with bounded, class-aware retries. Transient and
// rate-limited errors are retried with exponential backoff and jitter;
// everything else is surfaced immediately. Delays are cooperative: they
// suspend only the calling goroutine and honor context cancellation.
type Executor struct {
	cfg       Config
	logger    logger.Logger
	randFloat func() float64
}

func New(cfg Config, log logger.Logger) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	return &Executor{
		cfg:       cfg,
		logger:    log.WithField("component", "retry_executor"),
		randFloat: rand.Float64,
	}
}

// Execute runs fn up to MaxAttempts times. On exhaustion the last error is
// returned tagged retries_exhausted.
func (e *Executor) Execute(ctx context.Context, fn FetchFunc) (*entities.Reading, error) {
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		reading, err := fn(ctx)
		if err == nil {
			return reading, nil
		}

		if !entities.Retryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt == e.cfg.MaxAttempts {
			break
		}

		delay := e.backoffDelay(attempt, err)
		e.logger.Debugf("Attempt %d/%d failed (%s), retrying in %v",
			attempt, e.cfg.MaxAttempts, entities.ClassOf(err), delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, entities.NewFetchError(entities.ClassRetriesExhausted,
		fmt.Errorf("%d attempts: %w", e.cfg.MaxAttempts, lastErr))
}

// backoffDelay computes base*2^(attempt-1) capped at MaxDelay with ±20%
// jitter. A provider Retry-After hint overrides the computed delay when
// larger.
func (e *Executor) backoffDelay(attempt int, err error) time.Duration {
	delay := time.Duration(float64(e.cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if delay > e.cfg.MaxDelay {
		delay = e.cfg.MaxDelay
	}

	// Jitter spreads retries so concurrent location tasks do not storm the
	// provider in lockstep.
	delay = time.Duration(float64(delay) * (0.8 + 0.4*e.randFloat()))

	if hint := entities.RetryAfterHint(err); hint > delay {
		delay = hint
	}
	return delay
}
