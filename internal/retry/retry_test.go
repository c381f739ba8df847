package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/logging"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errSentinel = errors.New("not found")

func fastPolicy() Policy {
	return Policy{
		Attempts:       3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Passthrough:    func(err error) bool { return errors.Is(err, errSentinel) },
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	attempts := 0
	err := fastPolicy().Do(context.Background(), zap.NewNop(), "test.operation", "req-1", func() error {
		attempts++
		if attempts < 3 {
			return timeoutError{}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoGivesUpAfterLastAttempt(t *testing.T) {
	attempts := 0
	err := fastPolicy().Do(context.Background(), nil, "test.operation", "req-2", func() error {
		attempts++
		return timeoutError{}
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)

	var opErr *logging.OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "test.operation", opErr.Operation)
	assert.Equal(t, "req-2", opErr.RequestID)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	boom := errors.New("boom")
	err := fastPolicy().Do(context.Background(), zap.NewNop(), "test.operation", "", func() error {
		attempts++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "test.operation", logging.OperationOf(err))
	assert.Equal(t, 1, attempts)
}

func TestDoReturnsPassthroughErrorsBare(t *testing.T) {
	err := fastPolicy().Do(context.Background(), zap.NewNop(), "test.operation", "", func() error {
		return errSentinel
	})
	assert.Equal(t, errSentinel, err)
	assert.Empty(t, logging.OperationOf(err))
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := fastPolicy()
	policy.InitialBackoff = time.Hour

	attempts := 0
	err := policy.Do(ctx, zap.NewNop(), "test.operation", "", func() error {
		attempts++
		cancel()
		return timeoutError{}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("syntax error")))
	assert.True(t, IsTransient(timeoutError{}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
}
