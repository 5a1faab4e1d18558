package stream

import "context"

// Sink delivers Frames to a transport (native JSON, SSE, a capture buffer,
// or Pulse). Implementations must be safe for concurrent Write calls; the
// Stream Helper serialises writes itself (§5 single-writer discipline) but
// a Sink may also be handed directly to tests or alternate callers.
type Sink interface {
	// Write publishes one frame. Write must return an error if delivery
	// fails (connection closed, serialization error, transport
	// unavailable); the Stream Helper treats that as a transport-write
	// failure (§7 class 1) and does not retry.
	Write(ctx context.Context, frame Frame) error

	// Close releases resources owned by the sink. Idempotent: calling it
	// more than once is safe and has no effect after the first call. The
	// context bounds how long graceful shutdown may take.
	Close(ctx context.Context) error
}

// Merger is an optional capability: a Sink that can absorb the frames
// already captured by another sink, used when a capturing sink's buffered
// session needs to be replayed onto a live transport after the fact.
type Merger interface {
	Merge(ctx context.Context, frames []Frame) error
}

// sessionSetter names the optional capability that Helper satisfies through
// SetSessionID (§4.6 "optional capability check... polymorphic over
// {setSessionId}"). The Stream Registry checks registered Helpers for it
// through its own copy of this interface; no Sink is checked for it.
type sessionSetter interface {
	SetSessionID(id string)
}
