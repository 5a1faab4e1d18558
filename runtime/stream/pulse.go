package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// PulseStream is the subset of a goa.design/pulse stream handle the
// PulseWriter needs: publish one entry, return its assigned entry id.
type PulseStream interface {
	Add(ctx context.Context, event string, payload []byte) (string, error)
}

// PulseClient is the subset of a goa.design/pulse client the PulseWriter
// needs: resolve a named stream (creating it if necessary) and release
// resources on shutdown.
type PulseClient interface {
	Stream(name string) (PulseStream, error)
	Close(ctx context.Context) error
}

// PulseWriter publishes Frames as goa.design/pulse stream entries instead of
// writing to an HTTP/SSE transport, for fan-out to multiple subscribers
// (§6 "fourth writer shape, domain stack").
type PulseWriter struct {
	client   PulseClient
	streamID string
}

// NewPulseWriter constructs a PulseWriter that publishes every frame onto
// the Pulse stream named "session/<sessionID>".
func NewPulseWriter(client PulseClient, sessionID string) *PulseWriter {
	return &PulseWriter{client: client, streamID: fmt.Sprintf("session/%s", sessionID)}
}

// pulseEnvelope wraps a Frame for transmission over a Pulse stream.
type pulseEnvelope struct {
	Type      FrameType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Frame     Frame     `json:"frame"`
}

// Write publishes frame as one Pulse stream entry.
func (w *PulseWriter) Write(ctx context.Context, frame Frame) error {
	handle, err := w.client.Stream(w.streamID)
	if err != nil {
		return fmt.Errorf("stream: pulse stream resolution failed: %w", err)
	}
	payload, err := json.Marshal(pulseEnvelope{Type: frame.Type, Timestamp: time.Now().UTC(), Frame: frame})
	if err != nil {
		return fmt.Errorf("stream: pulse envelope marshal failed: %w", err)
	}
	if _, err := handle.Add(ctx, string(frame.Type), payload); err != nil {
		return fmt.Errorf("stream: pulse publish failed: %w", err)
	}
	return nil
}

// Close releases the underlying Pulse client.
func (w *PulseWriter) Close(ctx context.Context) error {
	return w.client.Close(ctx)
}
