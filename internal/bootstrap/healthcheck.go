package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

// namedCheck pairs a dependency name with its health probe.
type namedCheck struct {
	name  string
	check func(context.Context) error
}

type HealthChecker struct {
	checks        []namedCheck
	timeout       time.Duration
	retryInterval time.Duration
	maxRetries    int
	logger        logger.Logger
}

func NewHealthChecker(timeout, retryInterval time.Duration, maxRetries int, log logger.Logger) *HealthChecker {
	return &HealthChecker{
		timeout:       timeout,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
		logger:        log.WithField("component", "health_checker"),
	}
}

func (h *HealthChecker) Register(name string, check func(context.Context) error) {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

// CheckAll probes every registered dependency with retries. Used once at
// startup; a dependency that never comes up fails the boot.
func (h *HealthChecker) CheckAll(ctx context.Context) error {
	h.logger.Info("Starting health checks for all dependencies")

	for _, c := range h.checks {
		if err := h.checkWithRetry(ctx, c); err != nil {
			return fmt.Errorf("%s health check failed: %w", c.name, err)
		}
	}

	h.logger.Info("All health checks passed successfully")
	return nil
}

// CheckOnce probes every dependency a single time and only logs failures.
// Used by the periodic monitor, where a transient failure is not fatal.
func (h *HealthChecker) CheckOnce(ctx context.Context) {
	for _, c := range h.checks {
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := c.check(checkCtx)
		cancel()

		if err != nil {
			h.logger.Warnf("%s health check failed: %v", c.name, err)
		} else {
			h.logger.Debugf("%s health check passed", c.name)
		}
	}
}

func (h *HealthChecker) checkWithRetry(ctx context.Context, c namedCheck) error {
	var lastErr error

	for i := 0; i < h.maxRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Debugf("Checking %s (attempt %d/%d)", c.name, i+1, h.maxRetries)

			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			err := c.check(checkCtx)
			cancel()

			if err == nil {
				h.logger.Infof("%s health check passed", c.name)
				return nil
			}

			lastErr = err
			h.logger.Warnf("%s health check failed (attempt %d/%d): %v", c.name, i+1, h.maxRetries, err)

			if i < h.maxRetries-1 {
				time.Sleep(h.retryInterval)
			}
		}
	}

	return fmt.Errorf("all %d attempts failed, last error: %w", h.maxRetries, lastErr)
}
