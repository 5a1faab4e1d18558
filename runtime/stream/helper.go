package stream

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"goa.design/streamcore/runtime/telemetry"
)

// Helper is the Stream Helper (C5): it gates data-operation and data-summary
// frames around text sequences so the wire never interleaves them mid-reply,
// and owns the lifetime timer that force-completes an abandoned stream. The
// Helper holds no text buffer; the parser's buffer-size bound is enforced by
// Drive.
//
// A Helper is created per request and is not safe for concurrent use by
// multiple request goroutines; the single-writer discipline required by §5
// is provided by h.mu serialising every public operation.
type Helper struct {
	sink Sink
	log  telemetry.Logger

	gapThreshold time.Duration
	maxLifetime  time.Duration

	mu            sync.Mutex
	textStreaming bool
	lastTextEndAt time.Time
	queue         []Frame
	completed     bool

	lifetimeTimer *time.Timer
	now           func() time.Time
}

// Option configures a Helper at construction.
type Option func(*Helper)

// WithGapThreshold overrides the default 2s gap threshold used to decide
// whether a text sequence has "clearly paused".
func WithGapThreshold(d time.Duration) Option {
	return func(h *Helper) { h.gapThreshold = d }
}

// WithMaxLifetime overrides the default 10 minute lifetime timer.
func WithMaxLifetime(d time.Duration) Option {
	return func(h *Helper) { h.maxLifetime = d }
}

// WithLogger overrides the Helper's logger (defaults to a no-op).
func WithLogger(log telemetry.Logger) Option {
	return func(h *Helper) { h.log = log }
}

// New constructs a Helper writing to sink, and arms its lifetime timer: if
// complete() is never called within the lifetime, forceCleanup runs,
// writing a terminal error frame and releasing the sink.
func New(sink Sink, opts ...Option) *Helper {
	h := &Helper{
		sink:         sink,
		log:          telemetry.NoopLogger{},
		gapThreshold: 2 * time.Second,
		maxLifetime:  10 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.lifetimeTimer = time.AfterFunc(h.maxLifetime, h.forceCleanup)
	return h
}

// SetSessionID satisfies the optional sessionSetter capability so the
// Stream Registry can inform a Helper of its session id on register.
func (h *Helper) SetSessionID(string) {}

// WriteRole emits one lead frame carrying the optional role tag, as a
// data-operation pass-through {type:"role", details:{role}} that is gated
// like any other operation. An empty role emits nothing.
func (h *Helper) WriteRole(ctx context.Context, role string) error {
	if role == "" {
		return nil
	}
	return h.WriteOperation(ctx, OperationEvent{Type: "role", Details: map[string]any{"role": role}})
}

// WriteText emits text-start, exactly one text-delta, and text-end, gating
// any pending queue drain around the sequence (§4.4 rules 1-2).
func (h *Helper) WriteText(ctx context.Context, text string) error {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		h.warnPostCompletion("writeText")
		return nil
	}
	now := h.now()
	var pending []Frame
	if now.Sub(h.lastTextEndAt) >= h.gapThreshold {
		pending = h.takeQueueLocked()
	}
	h.textStreaming = true
	h.mu.Unlock()

	if err := h.flush(ctx, pending); err != nil {
		return err
	}

	id := uuid.NewString()
	if err := h.sink.Write(ctx, Frame{Type: FrameTextStart, ID: id}); err != nil {
		return err
	}
	if err := h.sink.Write(ctx, Frame{Type: FrameTextDelta, ID: id, Delta: text}); err != nil {
		return err
	}
	if err := h.sink.Write(ctx, Frame{Type: FrameTextEnd, ID: id}); err != nil {
		return err
	}

	h.mu.Lock()
	h.lastTextEndAt = h.now()
	h.textStreaming = false
	h.mu.Unlock()
	return nil
}

// WriteOperation emits a data-operation frame, gated per §4.4 rule 3.
func (h *Helper) WriteOperation(ctx context.Context, op OperationEvent) error {
	return h.writeGated(ctx, Frame{Type: FrameDataOperation, Data: op})
}

// WriteSummary emits a data-summary frame, gated per §4.4 rule 3.
func (h *Helper) WriteSummary(ctx context.Context, sum SummaryEvent) error {
	return h.writeGated(ctx, Frame{Type: FrameDataSummary, Data: sum})
}

func (h *Helper) writeGated(ctx context.Context, frame Frame) error {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		h.warnPostCompletion(string(frame.Type))
		return nil
	}
	if h.textStreaming || h.now().Sub(h.lastTextEndAt) < h.gapThreshold {
		h.queue = append(h.queue, frame)
		h.mu.Unlock()
		return nil
	}
	pending := h.takeQueueLocked()
	h.mu.Unlock()
	return h.flush(ctx, append(pending, frame))
}

// WriteData emits a raw typed frame (data-component, data-artifact). A
// data-artifact frame interleaves immediately even mid-text-sequence or
// within the gap, per §4.4 rule 4, without disturbing the gating timers. id
// is carried as the frame's top-level id (§6's frame-shape table requires it
// for data-component; callers that write a shape with no top-level id, such
// as data-artifact, pass the empty string).
func (h *Helper) WriteData(ctx context.Context, frameType FrameType, id string, payload any) error {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		h.warnPostCompletion(string(frameType))
		return nil
	}
	h.mu.Unlock()
	return h.sink.Write(ctx, Frame{Type: frameType, ID: id, Data: payload})
}

// WriteError emits an error frame carrying message/severity/code/timestamp.
// It does not terminate the stream.
func (h *Helper) WriteError(ctx context.Context, message string, severity Severity, code string) error {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		h.warnPostCompletion("error")
		return nil
	}
	h.mu.Unlock()
	return h.sink.Write(ctx, Frame{
		Type: FrameError, Message: message, Severity: severity, Code: code, Timestamp: h.now(),
	})
}

// Complete flushes the gated queue, marks the Helper terminal, cancels the
// lifetime timer, and closes the sink. Idempotent.
func (h *Helper) Complete(ctx context.Context) error {
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		return nil
	}
	pending := h.takeQueueLocked()
	h.completed = true
	h.lifetimeTimer.Stop()
	h.mu.Unlock()

	if err := h.flush(ctx, pending); err != nil {
		return err
	}
	return h.sink.Close(ctx)
}

// forceCleanup runs when the lifetime timer fires before complete() was
// ever called: it writes a terminal error frame (if the transport is still
// reachable) and completes the Helper.
func (h *Helper) forceCleanup() {
	ctx := context.Background()
	h.mu.Lock()
	if h.completed {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	h.log.Warn(ctx, "stream lifetime exceeded, forcing cleanup")
	_ = h.sink.Write(ctx, Frame{
		Type: FrameError, Message: "Stream terminated: Connection lifetime exceeded",
		Severity: SeverityError, Timestamp: h.now(),
	})
	_ = h.Complete(ctx)
}

func (h *Helper) takeQueueLocked() []Frame {
	if len(h.queue) == 0 {
		return nil
	}
	out := h.queue
	h.queue = nil
	return out
}

func (h *Helper) flush(ctx context.Context, frames []Frame) error {
	for _, f := range frames {
		if err := h.sink.Write(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (h *Helper) warnPostCompletion(op string) {
	h.log.Warn(context.Background(), "stream: write after completion, dropped", "op", op)
}
