package constants

// Standard log field names. Use these instead of ad-hoc keys so entries can be
// filtered consistently.
const (
	LogFieldSession   = "session"
	LogFieldMessageID = "message_id"
	LogFieldChatID    = "chat_id"

	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	LogFieldEvent = "event"
	LogFieldCache = "cache"

	LogFieldDuration = "duration_ms"
	LogFieldCount    = "count"
	LogFieldSize     = "size_bytes"

	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"
	LogFieldRequestID  = "request_id"
	LogFieldTraceID    = "trace_id"

	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
)
