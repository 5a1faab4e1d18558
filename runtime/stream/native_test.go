package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNativeWriterWritesNewlineDelimitedJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewNativeWriter(&buf)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, Frame{Type: FrameTextStart, ID: "seq1"}))
	require.NoError(t, w.Write(ctx, Frame{Type: FrameTextDelta, ID: "seq1", Delta: "hi"}))
	require.NoError(t, w.Write(ctx, Frame{Type: FrameTextEnd, ID: "seq1"}))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)

	var start nativeFrame
	require.NoError(t, json.Unmarshal(lines[0], &start))
	require.Equal(t, FrameTextStart, start.Type)
	require.Equal(t, "seq1", start.ID)

	var delta nativeFrame
	require.NoError(t, json.Unmarshal(lines[1], &delta))
	require.Equal(t, "hi", delta.Delta)
}

func TestNativeWriterOmitsZeroTimestamp(t *testing.T) {
	var buf bytes.Buffer
	w := NewNativeWriter(&buf)
	require.NoError(t, w.Write(context.Background(), Frame{Type: FrameDataComponent, Data: map[string]any{"x": 1}}))
	require.NotContains(t, buf.String(), `"timestamp"`)
}

func TestNativeWriterFormatsTimestamp(t *testing.T) {
	var buf bytes.Buffer
	w := NewNativeWriter(&buf)
	ts := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	require.NoError(t, w.Write(context.Background(), Frame{Type: FrameError, Message: "boom", Timestamp: ts}))

	var got nativeFrame
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got))
	require.Equal(t, "2026-07-31T12:00:00.000000Z", got.Timestamp)
}

func TestNativeWriterCloseIsNoop(t *testing.T) {
	w := NewNativeWriter(&bytes.Buffer{})
	require.NoError(t, w.Close(context.Background()))
	require.NoError(t, w.Close(context.Background()))
}
