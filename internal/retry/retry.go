// Package retry runs infrastructure calls with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/logging"
)

// Policy controls how often and how patiently a call is retried.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Passthrough errors are returned unwrapped and never retried.
	Passthrough func(error) bool
}

// Default is three attempts starting at 50ms and doubling up to one second.
func Default() Policy {
	return Policy{
		Attempts:       3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
	}
}

// Do runs fn until it succeeds, fails permanently or the attempts run out.
// Failures come back as *logging.OperationError carrying operation and requestID.
func (p Policy) Do(ctx context.Context, logger *zap.Logger, operation, requestID string, fn func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	opLogger := logging.WithOperation(logger, operation, requestID)
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.InitialBackoff

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= p.MaxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if p.Passthrough != nil && p.Passthrough(err) {
			return err
		}
		if !IsTransient(err) || attempt == attempts-1 {
			opLogger.Warn("operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}
		opLogger.Warn("transient error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

// IsTransient reports whether err looks like a timeout or a temporary
// network condition worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}
	return false
}
