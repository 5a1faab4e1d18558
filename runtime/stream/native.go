package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// NativeWriter writes Frames as newline-delimited JSON objects to an
// underlying io.Writer, field-exact to the Frame shapes in §6.
type NativeWriter struct {
	mu  sync.Mutex
	out io.Writer
	enc *json.Encoder
}

// NewNativeWriter constructs a NativeWriter over out.
func NewNativeWriter(out io.Writer) *NativeWriter {
	return &NativeWriter{out: out, enc: json.NewEncoder(out)}
}

type nativeFrame struct {
	Type      FrameType `json:"type"`
	ID        string    `json:"id,omitempty"`
	Delta     string    `json:"delta,omitempty"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Severity  Severity  `json:"severity,omitempty"`
	Code      string    `json:"code,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// Write marshals frame and writes it as one JSON line.
func (w *NativeWriter) Write(_ context.Context, frame Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	nf := nativeFrame{
		Type: frame.Type, ID: frame.ID, Delta: frame.Delta, Data: frame.Data,
		Message: frame.Message, Severity: frame.Severity, Code: frame.Code, Agent: frame.Agent,
	}
	if !frame.Timestamp.IsZero() {
		nf.Timestamp = frame.Timestamp.Format(rfc3339Micro)
	}
	if err := w.enc.Encode(nf); err != nil {
		return fmt.Errorf("stream: native write failed: %w", err)
	}
	return nil
}

// Close is a no-op: the NativeWriter does not own out's lifecycle.
func (w *NativeWriter) Close(context.Context) error { return nil }

const rfc3339Micro = "2006-01-02T15:04:05.000000Z07:00"
