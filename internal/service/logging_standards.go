package service

// Logging Standards for Chatery
//
// This file defines standard field names, log levels, and patterns
// to ensure consistent logging across the application.

// Standard Field Names
// Use these exact field names for consistency across all logging calls
const (
	// Core identifiers
	LogFieldSession   = "session"
	LogFieldMessageID = "message_id"
	LogFieldChatID    = "chat_id"
	LogFieldJobID     = "job_id"
	LogFieldCampaign  = "campaign"

	// Request correlation
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// Message and event fields
	LogFieldEvent       = "event"
	LogFieldMessageType = "message_type"
	LogFieldState       = "state"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	// Network fields
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"

	// Error and debugging
	LogFieldErrorCode  = "error_code"
	LogFieldErrorType  = "error_type"
	LogFieldRetryCount = "retry_count"
	LogFieldAttempt    = "attempt"
)

// Log Level Usage Guidelines
//
// DEBUG: Detailed information for diagnosing problems. Only use in development or verbose mode.
//   - Function entry/exit
//   - Detailed flow information
//   - Raw event payloads (sanitized)
//
// INFO: General information about application flow and key events.
//   - Application startup/shutdown
//   - Major state changes
//   - Successful operations
//   - Services started/stopped
//
// WARN: Something unexpected happened, but the application can continue.
//   - Retryable errors
//   - Fallback behavior used
//   - Rate limiting triggered
//   - Dropped subscriber events
//
// ERROR: Error events that might still allow the application to continue.
//   - Failed operations
//   - Webhook delivery errors
//   - Snapshot write failures
//
// FATAL: Very severe error events that will presumably lead the application to abort.
//   - Configuration required for startup is missing
//   - Queue database cannot be opened

// Standard Log Message Patterns
//
// Starting operations: "Starting [operation]"
// Completed operations: "Completed [operation]" or "[Operation] completed successfully"
// Failed operations: "Failed to [operation]"
// Retrying operations: "Retrying [operation] (attempt X/Y)"
// Skipping operations: "Skipping [operation]: [reason]"
