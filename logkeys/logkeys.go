// Package logkeys defines some static logging keys for consistent structured logging output.
// Mostly exists as a mental aid when drafting log messages.
package logkeys

const (
	Message = "msg"
	Error   = "err"

	// a session id. i.e. the transport connection the session lives on.
	SessionID = "session_id"

	// correlation id of an outbound request awaiting a reply.
	CorrelationID = "correlation_id"

	// the protocol name of an inbound event or an outbound request.
	EventType   = "event_type"
	RequestType = "request_type"

	WorkflowName = "workflow_name"

	// a device or interaction URN.
	Target = "target"

	// in cases where we might need to log multiple session IDs but only
	// want to log the first (to avoid massive lists in logs).
	FirstSessionID = "session_id_first"

	// a context-dependent numerical count/length of something
	GenericCount = "count"
)
