package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	apperrors "starboard-bot/errors"

	"github.com/cenkalti/backoff/v5"
	"github.com/mattn/go-sqlite3"
)

const (
	maxDBAttempts      = 3
	initialDBBackoff   = 50 * time.Millisecond
	maxDBBackoffPeriod = 500 * time.Millisecond
)

func dbBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialDBBackoff
	b.MaxInterval = maxDBBackoffPeriod
	return b
}

// retryableDBOperation runs operation until it succeeds, fails with an error
// that is not worth retrying, or runs out of attempts.
func retryableDBOperation[T any](ctx context.Context, operationName string, operation func() (T, error)) (T, error) {
	result, err := backoff.Retry(ctx, func() (T, error) {
		v, err := operation()
		if err != nil && !isRetryableDBError(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(dbBackOff()), backoff.WithMaxTries(maxDBAttempts))
	if err != nil {
		// A permanent error on the final attempt comes back still wrapped.
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		return result, classifyDBError(operationName, err)
	}
	return result, nil
}

// retryableDBOperationNoReturn executes a database operation that returns only an error with retry logic
func retryableDBOperationNoReturn(ctx context.Context, operationName string, operation func() error) error {
	_, err := retryableDBOperation(ctx, operationName, func() (struct{}, error) {
		return struct{}{}, operation()
	})
	return err
}

// classifyDBError maps a final driver error onto the error taxonomy. Errors
// already carrying a code pass through untouched.
func classifyDBError(operationName string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isRetryableDBError(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewStoreUnavailable(operationName, err)
	}
	return err
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}

	// Context timeout/cancellation are not retryable by us
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr:
			return true
		case sqlite3.ErrConstraint:
			return false
		}
	}

	errStr := err.Error()

	// Database is locked errors are typically retryable
	if strings.Contains(errStr, "database is locked") {
		return true
	}

	// Disk I/O errors might be transient
	if strings.Contains(errStr, "disk I/O error") {
		return true
	}

	// Temporary network issues (for network-mounted databases or Postgres)
	if strings.Contains(errStr, "no such host") || strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset") {
		return true
	}

	// For other errors, we'll be conservative and not retry
	return false
}

// Retry runs operation under the store retry policy and maps its final error
// onto the error taxonomy. Other store implementations share it.
func Retry[T any](ctx context.Context, operationName string, operation func() (T, error)) (T, error) {
	return retryableDBOperation(ctx, operationName, operation)
}
