package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/retry"
)

type retrier struct {
	logger *zap.Logger
	policy retry.Policy
}

func defaultRetrier(logger *zap.Logger) retrier {
	policy := retry.Default()
	policy.Passthrough = isDomainError
	return retrier{logger: logger, policy: policy}
}

// executeWithRetry retries transient database failures. Domain errors are
// returned unwrapped so callers can compare against the package sentinels.
func (r *retrier) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	return r.policy.Do(ctx, r.logger, operation, requestID, fn)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate)
}
