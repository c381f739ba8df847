package usecase

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/retry"
)

type redisRetry struct {
	logger *zap.Logger
	policy retry.Policy
}

func newRedisRetry(logger *zap.Logger) redisRetry {
	policy := retry.Default()
	policy.Passthrough = func(err error) bool { return errors.Is(err, redis.Nil) }
	return redisRetry{logger: logger, policy: policy}
}

func (r redisRetry) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	return r.policy.Do(ctx, r.logger, operation, requestID, fn)
}

func (r redisRetry) withRedisGet(ctx context.Context, requestID, operation string, get func() (string, error)) (string, error) {
	var result string
	err := r.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := get()
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
