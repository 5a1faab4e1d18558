package stream

import (
	"context"

	"goa.design/streamcore/runtime/artifact"
	"goa.design/streamcore/runtime/streamparser"
)

// Delta is one record from the lazy delta source described in §6: a text
// append, an object-mode merge, a hint that the next text chunk follows a
// tool result, or the end-of-stream sentinel.
type Delta struct {
	Kind        DeltaKind
	Text        string
	ObjectDelta map[string]any
}

// DeltaKind distinguishes the four delta record shapes.
type DeltaKind string

const (
	DeltaText               DeltaKind = "text"
	DeltaObject             DeltaKind = "object-delta"
	DeltaToolResultBoundary DeltaKind = "tool-result-boundary"
	DeltaEndOfStream        DeltaKind = "end-of-stream"
)

// MaxBufferBytes is the default JSON-aware buffer cap enforced on the
// Incremental Stream Parser after every delta (§4.4, §5).
const MaxBufferBytes = 5 * 1024 * 1024

// Drive consumes deltas from source, feeding each one through parser and
// writing the resulting StreamParts to helper, until source is exhausted or
// a delta of kind DeltaEndOfStream is seen (which triggers parser.Finalize
// and helper.Complete). It implements the wiring between C4 and C5 that the
// request task is responsible for per §5's concurrency model.
//
// Drive enforces the buffer bound after every delta: if parser.BufferBytes()
// exceeds maxBufferBytes, it truncates, matching §7 class 2's recovery
// policy (truncate, warn, and — on no safe boundary — clear the dedup map
// so later deltas re-emit rather than silently drop).
func Drive(ctx context.Context, source <-chan Delta, parser *streamparser.Parser, helper *Helper, maxBufferBytes int) error {
	if maxBufferBytes <= 0 {
		maxBufferBytes = MaxBufferBytes
	}
	for {
		select {
		case <-ctx.Done():
			return helper.Complete(context.Background())
		case d, ok := <-source:
			if !ok {
				parts := parser.Finalize()
				if err := writeParts(ctx, helper, parts); err != nil {
					return err
				}
				return helper.Complete(ctx)
			}
			if err := applyDelta(ctx, d, parser, helper, maxBufferBytes); err != nil {
				return err
			}
			if d.Kind == DeltaEndOfStream {
				parts := parser.Finalize()
				if err := writeParts(ctx, helper, parts); err != nil {
					return err
				}
				return helper.Complete(ctx)
			}
		}
	}
}

func applyDelta(ctx context.Context, d Delta, parser *streamparser.Parser, helper *Helper, maxBufferBytes int) error {
	var parts []artifact.StreamPart
	switch d.Kind {
	case DeltaText:
		parts = parser.ProcessText(d.Text)
	case DeltaObject:
		parts = parser.ProcessObjectDelta(d.ObjectDelta)
	case DeltaToolResultBoundary:
		parser.NoteToolResultBoundary()
	case DeltaEndOfStream:
		// handled by the caller after applyDelta returns.
	}
	parser.TruncateIfOverflow(maxBufferBytes)
	return writeParts(ctx, helper, parts)
}

func writeParts(ctx context.Context, helper *Helper, parts []artifact.StreamPart) error {
	for _, p := range parts {
		switch p.Kind {
		case artifact.PartText:
			if err := helper.WriteText(ctx, p.Text); err != nil {
				return err
			}
		case artifact.PartArtifact:
			payload := ArtifactPayload{
				ArtifactID: p.ID,
				Name:       p.Name,
			}
			if p.Payload != nil {
				if v, ok := p.Payload["task_id"].(string); ok {
					payload.TaskID = v
				}
				if v, ok := p.Payload["task"].(string); ok && payload.TaskID == "" {
					payload.TaskID = v
				}
				payload.Metadata = p.Payload
			}
			if err := helper.WriteData(ctx, FrameDataArtifact, "", payload); err != nil {
				return err
			}
		case artifact.PartComponent:
			data := map[string]any{"type": p.Name}
			for k, v := range p.Payload {
				data[k] = v
			}
			if err := helper.WriteData(ctx, FrameDataComponent, p.ID, data); err != nil {
				return err
			}
		}
	}
	return nil
}
