package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// SSEWriter writes Frames as OpenAI-chunk-shaped Server-Sent Events in
// §6's alternative wire shape: each frame becomes one `data:` line whose
// JSON envelope mimics a chat-completion chunk, terminated by a literal
// `data: [DONE]` once the stream completes. `finish_reason` is "stop" on
// error frames only; no separate final "stop" chunk is written.
type SSEWriter struct {
	mu      sync.Mutex
	out     io.Writer
	seq     atomic.Int64
	created int64
	closed  bool
}

// NewSSEWriter constructs an SSEWriter over out. created is the Unix
// timestamp reported in every envelope's `created` field (callers supply it
// so output is reproducible in tests).
func NewSSEWriter(out io.Writer, created time.Time) *SSEWriter {
	return &SSEWriter{out: out, created: created.Unix()}
}

type sseChunk struct {
	ID      string      `json:"id"`
	Object  string      `json:"object"`
	Created int64       `json:"created"`
	Choices []sseChoice `json:"choices"`
}

type sseChoice struct {
	Index        int      `json:"index"`
	Delta        sseDelta `json:"delta"`
	FinishReason *string  `json:"finish_reason"`
}

type sseDelta struct {
	Content string `json:"content,omitempty"`
}

// Write emits one SSE event for frame. Text frames populate delta.content
// directly with the text-delta payload (text-start/text-end contribute no
// visible content but still advance the sequence id); every other frame
// type serialises {type, data} into delta.content as a JSON string.
func (w *SSEWriter) Write(_ context.Context, frame Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	chunk := sseChunk{
		ID:      fmt.Sprintf("chatcmpl-%d", w.seq.Add(1)),
		Object:  "chat.completion.chunk",
		Created: w.created,
		Choices: []sseChoice{{Index: 0, Delta: w.delta(frame)}},
	}
	if frame.Type == FrameError {
		stop := "stop"
		chunk.Choices[0].FinishReason = &stop
	}
	b, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("stream: sse marshal failed: %w", err)
	}
	if _, err := fmt.Fprintf(w.out, "data: %s\n\n", b); err != nil {
		return fmt.Errorf("stream: sse write failed: %w", err)
	}
	return nil
}

func (w *SSEWriter) delta(frame Frame) sseDelta {
	if frame.Type == FrameTextDelta {
		return sseDelta{Content: frame.Delta}
	}
	if frame.Type == FrameTextStart || frame.Type == FrameTextEnd {
		return sseDelta{}
	}
	envelope := map[string]any{"type": frame.Type}
	switch frame.Type {
	case FrameError:
		envelope["data"] = map[string]any{
			"message": frame.Message, "severity": frame.Severity,
			"code": frame.Code, "agent": frame.Agent,
		}
	default:
		envelope["data"] = frame.Data
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return sseDelta{Content: fmt.Sprintf(`{"type":%q,"data":null}`, frame.Type)}
	}
	return sseDelta{Content: string(b)}
}

// Close emits the trailing `data: [DONE]` sentinel on its first call; later
// calls write nothing. Close writes no chunk of its own: `finish_reason`
// is "stop" only on error frames (set by Write), so a stream that completes
// without an error frame carries no "stop" chunk before `data: [DONE]`.
func (w *SSEWriter) Close(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := fmt.Fprint(w.out, "data: [DONE]\n\n")
	return err
}
