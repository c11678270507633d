package service

// Logging standards for dmrelay
//
// Standard field names; use these exact names for consistency across all
// logging calls.
const (
	// Core identifiers
	LogFieldUserID    = "user_id"
	LogFieldChannelID = "channel_id"
	LogFieldMessageTS = "message_ts"
	LogFieldPreviewTS = "preview_ts"
	LogFieldThreadTS  = "thread_ts"
	LogFieldFileID    = "file_id"
	LogFieldFileName  = "file_name"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	// Request lifecycle
	LogFieldAction    = "action"
	LogFieldItemCount = "item_count"
	LogFieldFileCount = "file_count"
	LogFieldResyncSeq = "resync_seq"

	// Performance and metrics
	LogFieldDuration = "duration_ms"
	LogFieldSize     = "size_bytes"

	// Network
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"
	LogFieldRequestID  = "request_id"
	LogFieldTraceID    = "trace_id"

	// Error and debugging
	LogFieldErrorCode = "error_code"
)
