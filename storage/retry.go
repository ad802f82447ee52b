package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

const defaultMaxRetries = 3

// isTransient classifies an error as a retryable connection fault. Statement
// and context timeouts are not transient; they propagate immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "connection")
}

// withRetry invokes op up to defaultMaxRetries times, backing off 2^attempt
// seconds between attempts. Only transient connection faults are retried;
// any other error is returned immediately. Guard failures (zero affected
// rows) are business outcomes, never errors, so they are never retried here.
func withRetry(ctx context.Context, name string, op func() error) error {
	return retryWithBackoff(ctx, name, op, defaultBackoff)
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

func retryWithBackoff(ctx context.Context, name string, op func() error, backoff func(int) time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < defaultMaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(attempt)
			logWarn("Retrying after transient failure", "op", name, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, defaultMaxRetries, lastErr)
}
