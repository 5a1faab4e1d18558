// Package artifact implements the Artifact Parser: given either a text
// fragment with embedded `<artifact:…>` markers or a parsed object tree
// shaped like `{dataComponents: [...]}`, it returns an ordered slice of
// typed StreamParts. Marker scanning is a single linear pass (no regex
// backtracking) so it stays safe on adversarial input.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PartKind distinguishes the two StreamPart cases.
type PartKind string

const (
	PartText      PartKind = "text"
	PartComponent PartKind = "component"
	PartArtifact  PartKind = "artifact"
)

// StreamPart is the unit produced by the Artifact Parser: either plain text
// or a typed data payload (component or artifact).
type StreamPart struct {
	Kind PartKind
	// Text holds the literal text for PartText parts.
	Text string
	// ID is the stable identifier for data parts (component or artifact id).
	ID string
	// Name is the component/element name as authored (e.g. "Weather",
	// "Artifact"). Empty for PartText.
	Name string
	// Payload is the JSON-serializable props/attributes for data parts.
	Payload map[string]any
}

// attrPattern matches `key="value"` attribute pairs inside a tag. RE2 is
// non-backtracking by construction, so this stays linear even on adversarial
// tag contents.
var attrPattern = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_-]*)="([^"]*)"`)

// markerSpan describes one `<artifact:…>` occurrence found while scanning.
type markerSpan struct {
	start, end int // end is exclusive; meaningless when !complete
	complete   bool
	kind       string // "ref" or "create"
	attrs      map[string]string
	content    string // raw inner text for "create" markers
}

// scanMarkers makes a single left-to-right pass over buf, locating
// `<artifact:ref .../>` and `<artifact:create ...>...</artifact>` markers.
// It never backtracks: each iteration's search starts where the previous one
// left off, so total work is linear in len(buf).
func scanMarkers(buf string) (spans []markerSpan, endsInIncomplete bool) {
	i := 0
	for i < len(buf) {
		rel := strings.Index(buf[i:], "<artifact:")
		if rel < 0 {
			break
		}
		start := i + rel
		gt := strings.IndexByte(buf[start:], '>')
		if gt < 0 {
			spans = append(spans, markerSpan{start: start, complete: false})
			endsInIncomplete = true
			return spans, endsInIncomplete
		}
		tagEnd := start + gt + 1
		tag := buf[start:tagEnd]

		if selfClosing(tag) {
			spans = append(spans, markerSpan{
				start: start, end: tagEnd, complete: true,
				kind: "ref", attrs: parseAttrs(tag),
			})
			i = tagEnd
			continue
		}

		closeRel := strings.Index(buf[tagEnd:], "</artifact>")
		if closeRel < 0 {
			spans = append(spans, markerSpan{start: start, complete: false})
			endsInIncomplete = true
			return spans, endsInIncomplete
		}
		contentEnd := tagEnd + closeRel
		end := contentEnd + len("</artifact>")
		spans = append(spans, markerSpan{
			start: start, end: end, complete: true,
			kind: "create", attrs: parseAttrs(tag), content: buf[tagEnd:contentEnd],
		})
		i = end
	}
	return spans, endsInIncomplete
}

func selfClosing(tag string) bool {
	body := strings.TrimSuffix(tag, ">")
	return strings.HasSuffix(strings.TrimRight(body, " \t\r\n"), "/")
}

func parseAttrs(tag string) map[string]string {
	matches := attrPattern.FindAllStringSubmatch(tag, -1)
	attrs := make(map[string]string, len(matches))
	for _, m := range matches {
		attrs[m[1]] = m[2]
	}
	return attrs
}

// HasIncompleteMarker reports whether buffer ends inside an unterminated
// `<artifact:…>` marker (an opening tag with no `>` yet, or a `create` tag
// whose `</artifact>` has not arrived).
func HasIncompleteMarker(buffer string) bool {
	_, incomplete := scanMarkers(buffer)
	return incomplete
}

// SafeTextBoundary returns the largest offset N such that buffer[0:N] can be
// flushed without risking splitting a marker. If no markers are present, N
// equals len(buffer).
func SafeTextBoundary(buffer string) int {
	spans, incomplete := scanMarkers(buffer)
	if !incomplete {
		return len(buffer)
	}
	// The last span is the incomplete one (scanMarkers stops there).
	return spans[len(spans)-1].start
}

// ParseText scans fragment for embedded artifact markers and returns an
// ordered sequence of StreamParts: runs of non-marker text become PartText
// parts, and each fully-closed marker becomes one PartArtifact part. Any
// trailing incomplete marker is silently excluded (callers are expected to
// have already trimmed to SafeTextBoundary; ParseText stays defensive
// regardless).
func ParseText(fragment string) []StreamPart {
	spans, _ := scanMarkers(fragment)
	var parts []StreamPart
	pos := 0
	for _, sp := range spans {
		if !sp.complete {
			break
		}
		if sp.start > pos {
			parts = append(parts, StreamPart{Kind: PartText, Text: fragment[pos:sp.start]})
		}
		payload := map[string]any{}
		for k, v := range sp.attrs {
			payload[k] = v
		}
		id := sp.attrs["id"]
		if sp.kind == "create" {
			payload["type"] = sp.attrs["type"]
			payload["content"] = sp.content
		} else {
			payload["task"] = sp.attrs["task"]
		}
		parts = append(parts, StreamPart{Kind: PartArtifact, ID: id, Name: "Artifact", Payload: payload})
		pos = sp.end
	}
	if pos < len(fragment) {
		// Only reachable when there was no incomplete trailing span, or the
		// incomplete span was excluded by the break above and some clean
		// text preceded it.
		tail := fragment[pos:]
		if hasIncompleteTail := HasIncompleteMarker(tail); hasIncompleteTail {
			tail = tail[:SafeTextBoundary(tail)]
		}
		if tail != "" {
			parts = append(parts, StreamPart{Kind: PartText, Text: tail})
		}
	}
	return parts
}

// ParseObject parses a value expected to have shape {dataComponents: [...]}.
// Each element is a {id, name, props} triple. Elements named "Artifact" emit
// a PartArtifact part; all others emit a PartComponent part. ParseObject is
// idempotent: the same input always produces the same output.
func ParseObject(value any) ([]StreamPart, error) {
	root, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("artifact: expected object root, got %T", value)
	}
	raw, ok := root["dataComponents"]
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("artifact: dataComponents must be an array, got %T", raw)
	}

	parts := make([]StreamPart, 0, len(list))
	for _, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		name, _ := m["name"].(string)
		props, _ := m["props"].(map[string]any)
		kind := PartComponent
		if name == "Artifact" {
			kind = PartArtifact
		}
		parts = append(parts, StreamPart{Kind: kind, ID: id, Name: name, Payload: props})
	}
	return parts, nil
}

// ElementComplete reports whether the element at props satisfies §4.3's
// completeness rule: id and name present, props a non-empty object, and —
// when name is "Artifact" — both artifact_id and task_id present in props.
func ElementComplete(id, name string, props map[string]any) bool {
	if id == "" || name == "" || len(props) == 0 {
		return false
	}
	if name == "Artifact" {
		if _, ok := props["artifact_id"]; !ok {
			return false
		}
		if _, ok := props["task_id"]; !ok {
			return false
		}
	}
	return true
}

// ContentHash computes the dedup key for an element: the hex SHA-256 of the
// JSON encoding of its id and props (name excluded), with map keys sorted so
// that equal elements always hash identically regardless of field order.
func ContentHash(id string, props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]any, len(props)+1)
	ordered["id"] = id
	for _, k := range keys {
		ordered[k] = props[k]
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		// Marshal of arbitrary JSON-decoded values only fails for
		// unsupported types (e.g. channels), which cannot occur in
		// json.Unmarshal output; fall back to a stable placeholder.
		return "unhashable:" + id
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
