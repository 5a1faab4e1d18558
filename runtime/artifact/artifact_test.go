package artifact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTextPlainRun(t *testing.T) {
	parts := ParseText("hello world")
	require.Equal(t, []StreamPart{{Kind: PartText, Text: "hello world"}}, parts)
}

func TestParseTextSelfClosingRef(t *testing.T) {
	parts := ParseText(`before <artifact:ref id="a1" task="t1"/> after`)
	require.Len(t, parts, 3)
	require.Equal(t, StreamPart{Kind: PartText, Text: "before "}, parts[0])
	require.Equal(t, PartArtifact, parts[1].Kind)
	require.Equal(t, "a1", parts[1].ID)
	require.Equal(t, "t1", parts[1].Payload["task"])
	require.Equal(t, StreamPart{Kind: PartText, Text: " after"}, parts[2])
}

func TestParseTextCreateWithContent(t *testing.T) {
	parts := ParseText(`<artifact:create id="a2" type="note">hello</artifact>tail`)
	require.Len(t, parts, 2)
	require.Equal(t, PartArtifact, parts[0].Kind)
	require.Equal(t, "a2", parts[0].ID)
	require.Equal(t, "hello", parts[0].Payload["content"])
	require.Equal(t, StreamPart{Kind: PartText, Text: "tail"}, parts[1])
}

func TestParseTextTrailingIncompleteMarkerExcluded(t *testing.T) {
	parts := ParseText(`done <artifact:ref id="a1"`)
	require.Equal(t, []StreamPart{{Kind: PartText, Text: "done "}}, parts)
}

func TestParseTextTrailingIncompleteCreateMarkerExcluded(t *testing.T) {
	parts := ParseText(`done <artifact:create id="a1">partial conte`)
	require.Equal(t, []StreamPart{{Kind: PartText, Text: "done "}}, parts)
}

func TestParseObjectDataComponents(t *testing.T) {
	value := map[string]any{
		"dataComponents": []any{
			map[string]any{"id": "c1", "name": "Weather", "props": map[string]any{"temp": 72}},
			map[string]any{"id": "a1", "name": "Artifact", "props": map[string]any{"artifact_id": "a1", "task_id": "t1"}},
		},
	}
	parts, err := ParseObject(value)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	require.Equal(t, PartComponent, parts[0].Kind)
	require.Equal(t, "Weather", parts[0].Name)
	require.Equal(t, PartArtifact, parts[1].Kind)
}

func TestParseObjectMissingDataComponentsIsNoop(t *testing.T) {
	parts, err := ParseObject(map[string]any{"other": 1})
	require.NoError(t, err)
	require.Nil(t, parts)
}

func TestParseObjectRejectsNonObjectRoot(t *testing.T) {
	_, err := ParseObject([]any{1, 2, 3})
	require.Error(t, err)
}

func TestParseObjectRejectsNonArrayDataComponents(t *testing.T) {
	_, err := ParseObject(map[string]any{"dataComponents": "not-an-array"})
	require.Error(t, err)
}

func TestElementComplete(t *testing.T) {
	require.False(t, ElementComplete("", "Weather", map[string]any{"temp": 1}))
	require.False(t, ElementComplete("c1", "", map[string]any{"temp": 1}))
	require.False(t, ElementComplete("c1", "Weather", nil))
	require.True(t, ElementComplete("c1", "Weather", map[string]any{"temp": 1}))
	require.False(t, ElementComplete("a1", "Artifact", map[string]any{"artifact_id": "a1"}))
	require.True(t, ElementComplete("a1", "Artifact", map[string]any{"artifact_id": "a1", "task_id": "t1"}))
}

func TestContentHashStableUnderKeyOrder(t *testing.T) {
	h1 := ContentHash("c1", map[string]any{"a": 1, "b": 2})
	h2 := ContentHash("c1", map[string]any{"b": 2, "a": 1})
	require.Equal(t, h1, h2)
}

func TestContentHashDiffersByID(t *testing.T) {
	h1 := ContentHash("c1", map[string]any{"a": 1})
	h2 := ContentHash("c2", map[string]any{"a": 1})
	require.NotEqual(t, h1, h2)
}

func TestHasIncompleteMarkerAndSafeTextBoundary(t *testing.T) {
	require.False(t, HasIncompleteMarker("plain text"))
	require.True(t, HasIncompleteMarker(`text <artifact:ref id="a1"`))

	buf := `safe text <artifact:ref id="a1"`
	require.Equal(t, len("safe text "), SafeTextBoundary(buf))
	require.Equal(t, len("no markers here"), SafeTextBoundary("no markers here"))
}
