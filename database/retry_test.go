package database

import (
	"context"
	"errors"
	"testing"

	apperrors "starboard-bot/errors"

	"github.com/stretchr/testify/assert"
)

func TestRetryableDBOperationNoReturn_Success(t *testing.T) {
	callCount := 0
	err := retryableDBOperationNoReturn(context.Background(), "test operation", func() error {
		callCount++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryableDBOperationNoReturn_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	err := retryableDBOperationNoReturn(context.Background(), "test operation", func() error {
		callCount++
		if callCount < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryableDBOperationNoReturn_NonRetryableError(t *testing.T) {
	callCount := 0
	err := retryableDBOperationNoReturn(context.Background(), "test operation", func() error {
		callCount++
		return errors.New("UNIQUE constraint failed")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, callCount)
	assert.False(t, apperrors.Is(err, apperrors.ErrCodeStoreUnavailable))
}

func TestRetryableDBOperationNoReturn_ExhaustedIsStoreUnavailable(t *testing.T) {
	callCount := 0
	err := retryableDBOperationNoReturn(context.Background(), "test operation", func() error {
		callCount++
		return errors.New("disk I/O error")
	})
	assert.Equal(t, maxDBAttempts, callCount)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeStoreUnavailable))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRetryableDBOperation_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retryableDBOperation(ctx, "test operation", func() (int, error) {
		return 0, errors.New("connection refused")
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeStoreUnavailable))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryableDBError(t *testing.T) {
	assert.True(t, isRetryableDBError(errors.New("database is locked")))
	assert.True(t, isRetryableDBError(errors.New("dial tcp: connection refused")))
	assert.False(t, isRetryableDBError(errors.New("no such table: curated_messages")))
	assert.False(t, isRetryableDBError(context.DeadlineExceeded))
	assert.False(t, isRetryableDBError(nil))
}
