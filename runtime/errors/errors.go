// Package errors defines the stream-core's failure taxonomy. Recoverable
// classes are logged and absorbed at the component boundary that owns them;
// only transport-write failures propagate to the request task. A
// lifetime-exceeded termination is recoverable: the Stream Helper surfaces it
// as one terminal error frame and completes the stream.
package errors

import "fmt"

// ErrorCode classifies a stream-core failure into one of the seven taxonomy
// classes. Callers assert on Code rather than matching error strings.
type ErrorCode string

const (
	// CodeTransportWrite marks a failed write to the underlying transport.
	// Not recoverable at this layer; propagates to the request task.
	CodeTransportWrite ErrorCode = "transport_write"

	// CodeJSONOverflow marks a partial-JSON buffer that exceeded its cap.
	// Recoverable locally by JSON-aware truncation.
	CodeJSONOverflow ErrorCode = "json_overflow"

	// CodeStatusUpdateFailed marks a failed status-update LLM call.
	// Recoverable; the session stays alive and the cycle is skipped.
	CodeStatusUpdateFailed ErrorCode = "status_update_failed"

	// CodeArtifactPostProcessing marks a failed artifact name/description
	// generation task. Recoverable via a deterministic fallback.
	CodeArtifactPostProcessing ErrorCode = "artifact_post_processing"

	// CodeMalformedInput marks an unparseable marker or delta. Recoverable;
	// retained in the buffer until finalize() strips it.
	CodeMalformedInput ErrorCode = "malformed_input"

	// CodeWriteAfterCompletion marks a write attempted after complete().
	// Recoverable; warned and dropped, never surfaced.
	CodeWriteAfterCompletion ErrorCode = "write_after_completion"

	// CodeLifetimeExceeded marks a stream that exceeded its configured
	// lifetime. Surfaced as a single terminal error frame, then cleaned up.
	CodeLifetimeExceeded ErrorCode = "lifetime_exceeded"
)

// Severity classifies how a failure should be presented, mirroring the
// severities carried by OperationEvent error payloads on the wire.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Error is the stream-core's typed error. It wraps an underlying cause with
// a taxonomy code and a severity so callers can branch on class without
// string-matching messages.
type Error struct {
	Code     ErrorCode
	Severity Severity
	Message  string
	Cause    error
}

// New constructs an Error with the given code, severity, and message.
func New(code ErrorCode, severity Severity, message string) *Error {
	return &Error{Code: code, Severity: severity, Message: message}
}

// Wrap constructs an Error carrying cause as its Unwrap target.
func Wrap(code ErrorCode, severity Severity, message string, cause error) *Error {
	return &Error{Code: code, Severity: severity, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Recoverable reports whether failures of this class are absorbed at their
// owning boundary rather than propagated to the request task.
func (e *Error) Recoverable() bool {
	switch e.Code {
	case CodeTransportWrite:
		return false
	default:
		return true
	}
}

// UserFacing reports whether this failure class may be surfaced to clients
// as an `error` wire frame, per the propagation policy in §7: only explicit
// writeError calls, lifetime-forced termination, and transport errors that
// still permit a final write become frames; everything else is operational.
func (e *Error) UserFacing() bool {
	switch e.Code {
	case CodeLifetimeExceeded, CodeTransportWrite:
		return true
	default:
		return false
	}
}
