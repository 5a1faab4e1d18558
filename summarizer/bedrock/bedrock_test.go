package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/require"

	"goa.design/streamcore/summarizer"
)

type fakeRuntimeClient struct {
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeRuntimeClient) Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return f.out, f.err
}

func converseOutputWith(text string) *bedrockruntime.ConverseOutput {
	return &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{
			Value: brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: text}},
			},
		},
	}
}

func TestNewRequiresClientAndModel(t *testing.T) {
	_, err := New(nil, "anthropic.claude-3")
	require.Error(t, err)

	_, err = New(&fakeRuntimeClient{}, "")
	require.Error(t, err)
}

func TestSummarizeUnstructuredReturnsConcatenatedText(t *testing.T) {
	client := &fakeRuntimeClient{out: converseOutputWith("Working on it")}
	c, err := New(client, "anthropic.claude-3")
	require.NoError(t, err)

	resp, err := c.Summarize(context.Background(), summarizer.SummarizeRequest{Activities: []string{"tool ran"}})
	require.NoError(t, err)
	require.Equal(t, "Working on it", resp.Text)
}

func TestSummarizeStructuredParsesJSONResponse(t *testing.T) {
	client := &fakeRuntimeClient{out: converseOutputWith(`{"case":"progress","label":"Progress"}`)}
	c, err := New(client, "anthropic.claude-3")
	require.NoError(t, err)

	resp, err := c.Summarize(context.Background(), summarizer.SummarizeRequest{
		Schema: map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	require.Equal(t, "progress", resp.Structured["case"])
}

func TestSummarizeStructuredRejectsNonJSONResponse(t *testing.T) {
	client := &fakeRuntimeClient{out: converseOutputWith("not json")}
	c, err := New(client, "anthropic.claude-3")
	require.NoError(t, err)

	_, err = c.Summarize(context.Background(), summarizer.SummarizeRequest{
		Schema: map[string]any{"type": "object"},
	})
	require.Error(t, err)
}

func TestSummarizeErrorsOnUnexpectedOutputShape(t *testing.T) {
	client := &fakeRuntimeClient{out: &bedrockruntime.ConverseOutput{}}
	c, err := New(client, "anthropic.claude-3")
	require.NoError(t, err)

	_, err = c.Summarize(context.Background(), summarizer.SummarizeRequest{})
	require.Error(t, err)
}

func TestSummarizePropagatesClientError(t *testing.T) {
	client := &fakeRuntimeClient{err: errors.New("throttled")}
	c, err := New(client, "anthropic.claude-3")
	require.NoError(t, err)

	_, err = c.Summarize(context.Background(), summarizer.SummarizeRequest{})
	require.Error(t, err)
}
