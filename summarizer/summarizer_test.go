package summarizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/streamcore/runtime/telemetry"
)

type fakeSummarizer struct {
	resp SummarizeResponse
	err  error
}

func (f *fakeSummarizer) Summarize(context.Context, SummarizeRequest) (SummarizeResponse, error) {
	return f.resp, f.err
}

func TestBuildUnionSchemaIncludesReservedCase(t *testing.T) {
	schema := BuildUnionSchema([]StatusComponent{{Name: "progress", Label: "Progress"}})
	oneOf, ok := schema["oneOf"].([]any)
	require.True(t, ok)
	require.Len(t, oneOf, 2)

	last, ok := oneOf[len(oneOf)-1].(map[string]any)
	require.True(t, ok)
	props, ok := last["properties"].(map[string]any)
	require.True(t, ok)
	caseProp, ok := props["case"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "no_relevant_updates", caseProp["const"])
}

func TestTracedSummarizeValidatesStructuredResponse(t *testing.T) {
	schema := BuildUnionSchema([]StatusComponent{{Name: "progress", Label: "Progress"}})
	inner := &fakeSummarizer{resp: SummarizeResponse{Structured: map[string]any{
		"case": "progress", "label": "Progress",
	}}}
	traced := Traced{Inner: inner, Tracer: telemetry.NoopTracer{}, SessionID: "s1"}

	resp, err := traced.Summarize(context.Background(), SummarizeRequest{Schema: schema})
	require.NoError(t, err)
	require.Equal(t, "progress", resp.Structured["case"])
}

func TestTracedSummarizeRejectsNonConformingStructuredResponse(t *testing.T) {
	schema := BuildUnionSchema([]StatusComponent{{Name: "progress", Label: "Progress"}})
	inner := &fakeSummarizer{resp: SummarizeResponse{Structured: map[string]any{
		"case": "not_a_real_case",
	}}}
	traced := Traced{Inner: inner, Tracer: telemetry.NoopTracer{}, SessionID: "s1"}

	_, err := traced.Summarize(context.Background(), SummarizeRequest{Schema: schema})
	require.Error(t, err)
}

func TestTracedSummarizeSkipsValidationInUnstructuredMode(t *testing.T) {
	inner := &fakeSummarizer{resp: SummarizeResponse{Text: "All good"}}
	traced := Traced{Inner: inner, Tracer: telemetry.NoopTracer{}, SessionID: "s1"}

	resp, err := traced.Summarize(context.Background(), SummarizeRequest{})
	require.NoError(t, err)
	require.Equal(t, "All good", resp.Text)
}

func TestTracedSummarizePropagatesInnerError(t *testing.T) {
	inner := &fakeSummarizer{err: context.DeadlineExceeded}
	traced := Traced{Inner: inner, Tracer: telemetry.NoopTracer{}, SessionID: "s1"}

	_, err := traced.Summarize(context.Background(), SummarizeRequest{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
