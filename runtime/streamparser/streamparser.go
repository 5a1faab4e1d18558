// Package streamparser implements the Incremental Stream Parser (the
// component the spec calls C4): it drives the partial-JSON parser and the
// artifact parser from a delta source, tracks which object-mode elements
// have stabilised, suppresses duplicate emissions, and produces the ordered
// StreamPart sequence that the Stream Helper writes to the wire.
package streamparser

import (
	"context"
	"regexp"
	"strings"

	"goa.design/streamcore/runtime/artifact"
	"goa.design/streamcore/runtime/telemetry"
)

// cleanupPattern strips residual artifact markers (complete or truncated)
// from leftover text at finalize(). RE2 has no backtracking by construction,
// so this stays linear on adversarial input regardless of alternation order.
var cleanupPattern = regexp.MustCompile(
	`<artifact:[a-zA-Z]+(?:\s+[a-zA-Z_][a-zA-Z0-9_-]*="[^"]*")*\s*/>` +
		`|(?s)<artifact:[a-zA-Z]+(?:\s+[a-zA-Z_][a-zA-Z0-9_-]*="[^"]*")*\s*>.*?</artifact>` +
		`|<artifact:[^>]*$`,
)

// Parser owns the per-request buffer, object accumulator, and dedup state
// for one streaming response. It is not safe for concurrent use; callers
// invoke its methods sequentially from the single request task that drives
// the delta source.
type Parser struct {
	log telemetry.Logger

	buffer           strings.Builder
	pendingSeparator bool

	accumulator map[string]any
	emittedHash map[int]string

	collected []artifact.StreamPart
}

// New constructs a Parser. log may be nil, in which case logging is a no-op.
func New(log telemetry.Logger) *Parser {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Parser{
		log:         log,
		accumulator: map[string]any{},
		emittedHash: map[int]string{},
	}
}

// NoteToolResultBoundary records that the next text chunk follows a tool
// result. If the buffer is empty when that chunk arrives, ProcessText
// prepends a blank-line separator so the two turns don't visually run
// together.
func (p *Parser) NoteToolResultBoundary() {
	p.pendingSeparator = true
}

// ProcessText appends chunk to the buffer and emits any StreamParts that can
// now be safely flushed. A trailing text part whose last 20 bytes hold an
// unmatched '<' might be the start of a marker, so that whole text part is
// held back in the buffer.
func (p *Parser) ProcessText(chunk string) []artifact.StreamPart {
	if p.pendingSeparator && p.buffer.Len() == 0 {
		chunk = "\n\n" + chunk
	}
	p.pendingSeparator = false
	p.buffer.WriteString(chunk)

	buf := p.buffer.String()

	if artifact.HasIncompleteMarker(buf) {
		n := artifact.SafeTextBoundary(buf)
		parts := artifact.ParseText(buf[:n])
		p.buffer.Reset()
		p.buffer.WriteString(buf[n:])
		p.collected = append(p.collected, parts...)
		return parts
	}

	parts := artifact.ParseText(buf)
	if len(parts) > 0 {
		last := parts[len(parts)-1]
		if last.Kind == artifact.PartText && mightBeginMarker(last.Text) {
			held := last.Text
			parts = parts[:len(parts)-1]
			p.buffer.Reset()
			p.buffer.WriteString(held)
			p.collected = append(p.collected, parts...)
			return parts
		}
	}
	p.buffer.Reset()
	p.collected = append(p.collected, parts...)
	return parts
}

// mightBeginMarker reports whether the last 20 bytes of text contain an
// unmatched '<', a cheap heuristic for "could be the start of a marker that
// hasn't arrived in full yet".
func mightBeginMarker(text string) bool {
	tail := text
	if len(tail) > 20 {
		tail = tail[len(tail)-20:]
	}
	lt := strings.LastIndexByte(tail, '<')
	if lt < 0 {
		return false
	}
	return !strings.ContainsRune(tail[lt:], '>')
}

// ProcessObjectDelta deep-merges delta into the accumulator and emits one
// StreamPart for each dataComponents element that has newly stabilised
// (§4.3). Elements never un-stream: once index i has been emitted, later
// deltas that drop index i do not retract it.
func (p *Parser) ProcessObjectDelta(delta map[string]any) []artifact.StreamPart {
	deepMerge(p.accumulator, delta)

	raw, ok := p.accumulator["dataComponents"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	var emitted []artifact.StreamPart
	for i, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		name, _ := m["name"].(string)
		props, _ := m["props"].(map[string]any)

		if !artifact.ElementComplete(id, name, props) {
			continue
		}
		hash := artifact.ContentHash(id, props)
		if prev, ok := p.emittedHash[i]; ok && prev == hash {
			continue
		}

		kind := artifact.PartComponent
		if name == "Artifact" {
			kind = artifact.PartArtifact
		}
		part := artifact.StreamPart{Kind: kind, ID: id, Name: name, Payload: props}
		emitted = append(emitted, part)
		p.emittedHash[i] = hash
	}
	p.collected = append(p.collected, emitted...)
	return emitted
}

// Finalize flushes any remaining safe text, drops a trailing fragment that
// still looks like the start of a marker, and — if what's left survives the
// linear-time marker-cleanup scan — emits it as a synthetic text part.
func (p *Parser) Finalize() []artifact.StreamPart {
	remaining := p.buffer.String()
	p.buffer.Reset()
	if mightBeginMarker(remaining) {
		remaining = remaining[:strings.LastIndexByte(remaining, '<')]
	}
	if remaining == "" {
		return nil
	}
	cleaned := cleanupPattern.ReplaceAllString(remaining, "")
	if cleaned == "" {
		p.log.Debug(context.Background(), "finalize: residual buffer fully consumed by marker cleanup", "bytes", len(remaining))
		return nil
	}
	part := artifact.StreamPart{Kind: artifact.PartText, Text: cleaned}
	p.collected = append(p.collected, part)
	return []artifact.StreamPart{part}
}

// CollectedParts returns every StreamPart emitted so far, in emission order,
// for final-response reconstruction.
func (p *Parser) CollectedParts() []artifact.StreamPart {
	out := make([]artifact.StreamPart, len(p.collected))
	copy(out, p.collected)
	return out
}

// BufferBytes reports the current size of the pending text buffer, in
// bytes. The memory bound described in §4.4 is enforced by Drive, which
// calls TruncateIfOverflow after each delta.
func (p *Parser) BufferBytes() int {
	return p.buffer.Len()
}

// TruncateIfOverflow enforces the JSON-aware buffer cap: if the buffer
// exceeds maxBytes, it finds the last depth-0 boundary in one forward scan
// (respecting strings and escapes) and discards everything before it. If no
// safe boundary exists, the buffer is cleared entirely and the emitted-hash
// map is cleared too, so later deltas are re-emitted rather than silently
// dropped. Reports whether truncation occurred.
func (p *Parser) TruncateIfOverflow(maxBytes int) bool {
	if p.buffer.Len() <= maxBytes {
		return false
	}
	buf := p.buffer.String()
	boundary := lastDepthZeroBoundary(buf)
	p.buffer.Reset()
	if boundary < 0 {
		p.emittedHash = map[int]string{}
		p.log.Warn(context.Background(), "stream buffer overflow: no safe boundary, buffer cleared", "bytes", len(buf))
		return true
	}
	p.buffer.WriteString(buf[boundary:])
	p.log.Warn(context.Background(), "stream buffer overflow: truncated to last safe boundary", "discarded_bytes", boundary)
	return true
}

// lastDepthZeroBoundary scans buf once and returns the offset of the last
// position at which bracket/brace nesting depth is zero and no string is
// open, or -1 if no such boundary (other than 0) is found past the start.
func lastDepthZeroBoundary(buf string) int {
	depth := 0
	inString := false
	escaped := false
	lastZero := -1
	for i := 0; i < len(buf); i++ {
		c := buf[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				if depth == 0 {
					lastZero = i + 1
				}
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
		if depth == 0 && !inString {
			lastZero = i + 1
		}
	}
	return lastZero
}

// deepMerge merges src into dst in place. Maps merge key-by-key; arrays
// merge element-by-element by index, growing dst's array to fit and
// recursively merging where both sides are maps; any other type in src
// overwrites the corresponding value in dst.
func deepMerge(dst map[string]any, src map[string]any) {
	for k, sv := range src {
		dv, exists := dst[k]
		if !exists {
			dst[k] = sv
			continue
		}
		switch svt := sv.(type) {
		case map[string]any:
			if dvt, ok := dv.(map[string]any); ok {
				deepMerge(dvt, svt)
				continue
			}
			dst[k] = svt
		case []any:
			if dvt, ok := dv.([]any); ok {
				dst[k] = mergeArrays(dvt, svt)
				continue
			}
			dst[k] = svt
		default:
			dst[k] = sv
		}
	}
}

func mergeArrays(dst, src []any) []any {
	if len(src) > len(dst) {
		grown := make([]any, len(src))
		copy(grown, dst)
		dst = grown
	}
	for i, sv := range src {
		if dst[i] == nil {
			dst[i] = sv
			continue
		}
		switch svt := sv.(type) {
		case map[string]any:
			if dvt, ok := dst[i].(map[string]any); ok {
				deepMerge(dvt, svt)
				continue
			}
			dst[i] = svt
		case []any:
			if dvt, ok := dst[i].([]any); ok {
				dst[i] = mergeArrays(dvt, svt)
				continue
			}
			dst[i] = svt
		default:
			dst[i] = sv
		}
	}
	return dst
}
