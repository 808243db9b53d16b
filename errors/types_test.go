package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"starboard-bot/models"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorFormat(t *testing.T) {
	err := New(ErrCodeNotFound, "record not found")
	assert.Equal(t, "NOT_FOUND: record not found", err.Error())

	wrapped := Wrap(stderrors.New("boom"), ErrCodeStoreUnavailable, "database insert failed")
	assert.Equal(t, "STORE_UNAVAILABLE: database insert failed: boom", wrapped.Error())
}

func TestIs_SeesThroughWrapping(t *testing.T) {
	base := NewStoreUnavailable("insert", stderrors.New("database is locked"))
	err := fmt.Errorf("curate message: %w", base)

	assert.True(t, Is(err, ErrCodeStoreUnavailable))
	assert.False(t, Is(err, ErrCodeNotFound))
	assert.True(t, IsRetryable(err))
	assert.False(t, Is(nil, ErrCodeInternalError))
}

func TestGetCode_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, ErrCodeInternalError, GetCode(stderrors.New("plain")))
}

func TestNewIllegalTransition_Context(t *testing.T) {
	err := NewIllegalTransition(models.StatusAccepted, models.StatusDenied)

	assert.Equal(t, ErrCodeIllegalTransition, err.Code)
	assert.Equal(t, "accepted", err.Context["from"])
	assert.Equal(t, "denied", err.Context["to"])
	assert.False(t, err.Retryable)
}

func TestGetUserMessage(t *testing.T) {
	assert.Equal(t, "You are not allowed to review starboard entries.", GetUserMessage(NewUnauthorizedError("1")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(stderrors.New("x")))
}
