package errors

import "fmt"

// NewConstraintViolation reports a second active record for the same source message.
func NewConstraintViolation(sourceMessageID string, err error) *AppError {
	return Wrap(err, ErrCodeConstraintViolation, "source message already curated").
		WithContext("source_message_id", sourceMessageID).
		WithUserMessage("This message is already on the starboard.")
}

// NewIllegalTransition reports a status change the state machine does not allow.
func NewIllegalTransition(from, to fmt.Stringer) *AppError {
	return New(ErrCodeIllegalTransition, fmt.Sprintf("cannot move from %s to %s", from, to)).
		WithContext("from", from.String()).
		WithContext("to", to.String()).
		WithUserMessage("This message has already been reviewed.")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// NewUnauthorizedError reports a reviewer missing from the allow-list.
func NewUnauthorizedError(userID string) *AppError {
	return New(ErrCodeUnauthorized, "reviewer not allowed").
		WithContext("user_id", userID).
		WithUserMessage("You are not allowed to review starboard entries.")
}

// NewStoreUnavailable wraps a connectivity failure of the durable layer.
func NewStoreUnavailable(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeStoreUnavailable, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("The starboard database is unavailable, please try again.")
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewPublishError wraps a failed post to a Discord channel.
func NewPublishError(channelID string, err error) *AppError {
	return WrapRetryable(err, ErrCodePublishFailed, "posting to channel failed").
		WithContext("channel_id", channelID).
		WithUserMessage("Could not post to the starboard channel, please try again.")
}
