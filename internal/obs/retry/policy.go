package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultDeliveryPolicy retries outbound deliveries with jittered exponential
// backoff. Errors matching any of permanent, and context cancellation, are not retried.
func DefaultDeliveryPolicy(name string, log *zap.Logger, permanent ...error) Policy {
	return Policy{
		Name:     name,
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return false
			}
			for _, p := range permanent {
				if errors.Is(err, p) {
					return false
				}
			}
			return true
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn(name+" retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error(name+" retries exhausted", zap.Error(err))
			}
		},
	}
}
