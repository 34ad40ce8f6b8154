package marketplace

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
)

// Retrier re-runs marketplace calls that failed on the server side.
type Retrier struct {
	// MaxAttempts counts the first call, so MaxAttempts-1 retries at most.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// OnRetry, when set, is called before every retry.
	OnRetry func(operation string, attempt int, err error)

	// newTimer overrides the wait between attempts; nil means a real timer.
	newTimer func() backoff.Timer
}

func NewRetrier(maxAttempts int, baseDelay, maxDelay time.Duration) *Retrier {
	return &Retrier{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
}

func DefaultRetrier() *Retrier {
	return NewRetrier(DefaultMaxAttempts, DefaultBaseDelay, DefaultMaxDelay)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt ceiling is reached.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attempt := 0

	call := func() error {
		err := fn(ctx)
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		attempt++

		metrics.RemoteRetriesTotal.WithLabelValues(operation).Inc()
		if r.OnRetry != nil {
			r.OnRetry(operation, attempt, err)
		}

		logger.Log.Warn("marketplace call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}

	var timer backoff.Timer
	if r.newTimer != nil {
		timer = r.newTimer()
	}

	return backoff.RetryNotifyWithTimer(call, r.backOff(ctx), notify, timer)
}

// backOff doubles the delay from BaseDelay up to MaxDelay and stops after MaxAttempts-1 retries
// or when ctx is done.
func (r *Retrier) backOff(ctx context.Context) backoff.BackOff {
	retries := r.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = r.BaseDelay
	exponential.Multiplier = 2
	exponential.RandomizationFactor = 0
	if r.MaxDelay > 0 {
		exponential.MaxInterval = r.MaxDelay
	}
	exponential.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exponential, uint64(retries)), ctx)
}

// IsRetryable reports whether err is a transient failure: a 5xx answer or a network timeout.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
