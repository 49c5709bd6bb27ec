// Package retry implements the browser-navigation retry policy, generalized
// from the teacher's ExponentialRetryPolicy to a fixed-step backoff. Apify
// HTTP calls use their own policy in internal/apifyclient.
package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/replythread/harvester/internal/metrics"
)

// retryableSubstrings are the only error-text fragments that make a
// navigation failure retryable; anything else is terminal immediately.
var retryableSubstrings = []string{
	"ERR_CONNECTION_CLOSED",
	"RESET",
	"NETWORK",
	"timeout",
}

// IsRetryableNavigationError reports whether err's text matches one of the
// retryable navigation substrings.
func IsRetryableNavigationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// NavigationBackoff is the fixed 3s/5s/7s schedule slept before each of up
// to three retries, so a navigation is attempted at most four times.
var NavigationBackoff = []time.Duration{3 * time.Second, 5 * time.Second, 7 * time.Second}

// Navigation runs fn up to len(NavigationBackoff)+1 times, sleeping the
// fixed schedule between retryable failures. It returns the last error if
// every attempt fails, or a non-retryable error immediately.
func Navigation(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryableNavigationError(lastErr) {
			metrics.ObserveNavigationRetry("terminal")
			return lastErr
		}
		if attempt >= len(NavigationBackoff) {
			metrics.ObserveNavigationRetry("exhausted")
			return lastErr
		}
		metrics.ObserveNavigationRetry("retried")
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(NavigationBackoff[attempt]):
		}
	}
}
