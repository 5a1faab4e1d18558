// Package stream implements the Sink Writer (the component the spec calls
// C1) and the Stream Helper (C5): the wire-agnostic frame types, the gated
// state machine that sequences text/operation/summary/artifact frames onto
// one ordered sink, and the concrete writer shapes (native JSON, SSE,
// capturing, Pulse-published) that a Helper can be pointed at.
package stream

import "time"

// FrameType names one of the eight wire frame shapes.
type FrameType string

const (
	FrameTextStart     FrameType = "text-start"
	FrameTextDelta     FrameType = "text-delta"
	FrameTextEnd       FrameType = "text-end"
	FrameDataComponent FrameType = "data-component"
	FrameDataArtifact  FrameType = "data-artifact"
	FrameDataOperation FrameType = "data-operation"
	FrameDataSummary   FrameType = "data-summary"
	FrameError         FrameType = "error"
)

// Frame is the field-exact, wire-agnostic unit written to a Sink. Only the
// fields relevant to Type are populated; the rest are left zero.
type Frame struct {
	Type FrameType

	// ID identifies the logical sequence a frame belongs to (the text
	// sequence id for text-*, an optional correlation id for data-operation
	// and data-summary, the component id for data-component).
	ID string

	// Delta carries the incremental text payload for text-delta frames.
	Delta string

	// Data carries the frame's structured payload for every data-* frame
	// type: a map[string]any for data-component, an ArtifactPayload for
	// data-artifact, an OperationEvent for data-operation, a SummaryEvent
	// for data-summary.
	Data any

	// Message, Severity, Code, Agent, and Timestamp populate error frames.
	Message   string
	Severity  Severity
	Code      string
	Agent     string
	Timestamp time.Time
}

// Severity classifies an error frame's presentation, mirroring
// runtime/errors.Severity without importing it (the wire vocabulary is
// allowed to outlive the internal taxonomy).
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ArtifactPayload is the data-artifact frame's Data payload.
type ArtifactPayload struct {
	ArtifactID  string         `json:"artifactId"`
	TaskID      string         `json:"taskId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parts       []any          `json:"parts,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// OperationEvent is the tagged variant sent on the wire for agent-lifecycle
// signalling (§3 Data Model).
type OperationEvent struct {
	Kind string `json:"kind"`

	// agent_initializing
	SessionID string `json:"sessionId,omitempty"`
	GraphID   string `json:"graphId,omitempty"`

	// completion
	Agent     string `json:"agent,omitempty"`
	Iteration int    `json:"iteration,omitempty"`

	// error
	Message   string    `json:"message,omitempty"`
	Severity  Severity  `json:"severity,omitempty"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// pass-through
	Type    string         `json:"type,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// SummaryEvent is a progress/status payload (§3 Data Model).
type SummaryEvent struct {
	Label   string         `json:"label"`
	Details map[string]any `json:"details,omitempty"`
}
