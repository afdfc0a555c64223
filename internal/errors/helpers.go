package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context. Jobs that
// fail validation are rejected synchronously and never enqueued.
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field)
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation)
}

// NewProtocolError creates an error for a failed protocol client call.
// Protocol failures are transient by default and consume retry budget.
func NewProtocolError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeProtocolAPI, fmt.Sprintf("protocol %s failed", operation)).
		WithContext("operation", operation)
}

// NewUnrecoverableError creates an error that skips the retry budget
// entirely; the job transitions straight to dead.
func NewUnrecoverableError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:          code,
		Message:       message,
		Unrecoverable: true,
	}
}

// NewSessionNotFoundError reports a job whose owning session no longer
// exists. Not retryable: the session will not come back for this job.
func NewSessionNotFoundError(sessionID string) *AppError {
	return NewUnrecoverableError(ErrCodeSessionNotFound, fmt.Sprintf("session not found: %s", sessionID)).
		WithContext("session_id", sessionID)
}

// NewRecipientUnreachableError reports a target that is not eligible to
// receive messages.
func NewRecipientUnreachableError(chatID string) *AppError {
	return NewUnrecoverableError(ErrCodeRecipientUnreachable, "recipient is not registered on the network").
		WithContext("chat_id", chatID)
}

// NewSessionDisconnectedError reports a send attempted while the session is
// not connected. Retryable: the session may reconnect before the budget runs
// out.
func NewSessionDisconnectedError(sessionID string) *AppError {
	appErr := New(ErrCodeSessionDisconnected, fmt.Sprintf("session not connected: %s", sessionID)).
		WithContext("session_id", sessionID)
	appErr.Retryable = true
	return appErr
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	appErr := New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration)
	appErr.Retryable = true
	return appErr
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier)
}
