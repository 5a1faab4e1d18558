// Package bedrock implements summarizer.Summarizer backed by the AWS
// Bedrock Converse API via github.com/aws/aws-sdk-go-v2/service/bedrockruntime.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"goa.design/streamcore/summarizer"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client used by
// the adapter, so callers can pass either the real client or a mock.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Client implements summarizer.Summarizer via Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	model   string
}

// New builds a Bedrock-backed Summarizer.
func New(runtime RuntimeClient, defaultModel string) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("summarizer/bedrock: runtime client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("summarizer/bedrock: default model is required")
	}
	return &Client{runtime: runtime, model: defaultModel}, nil
}

// Summarize issues one Converse call with the activity/history/previous-
// summary context in the user message and the instructions (plus, in
// structured mode, the schema) in the system prompt, mirroring the
// structured-JSON-reply convention used by the other two adapters.
func (c *Client) Summarize(ctx context.Context, req summarizer.SummarizeRequest) (summarizer.SummarizeResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	input := &bedrockruntime.ConverseInput{
		ModelId: &model,
		System:  []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: buildSystemPrompt(req)}},
		Messages: []brtypes.Message{
			{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: buildUserPrompt(req)}},
			},
		},
	}
	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return summarizer.SummarizeResponse{}, fmt.Errorf("summarizer/bedrock: converse: %w", err)
	}
	text, err := extractText(out)
	if err != nil {
		return summarizer.SummarizeResponse{}, err
	}
	if req.Schema == nil {
		return summarizer.SummarizeResponse{Text: text}, nil
	}
	var structured map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &structured); err != nil {
		return summarizer.SummarizeResponse{}, fmt.Errorf("summarizer/bedrock: structured response not valid JSON: %w", err)
	}
	return summarizer.SummarizeResponse{Structured: structured}, nil
}

func extractText(out *bedrockruntime.ConverseOutput) (string, error) {
	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("summarizer/bedrock: unexpected converse output shape")
	}
	var b strings.Builder
	for _, block := range msgOutput.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			b.WriteString(text.Value)
		}
	}
	return b.String(), nil
}

func buildSystemPrompt(req summarizer.SummarizeRequest) string {
	var b strings.Builder
	b.WriteString("You summarise agent activity into short status updates for an end user.")
	if req.PromptAddendum != "" {
		b.WriteString(" ")
		b.WriteString(req.PromptAddendum)
	}
	if req.Schema != nil {
		schema, _ := json.Marshal(req.Schema)
		b.WriteString(" Reply with a single JSON object conforming exactly to this schema and nothing else: ")
		b.Write(schema)
	}
	return b.String()
}

func buildUserPrompt(req summarizer.SummarizeRequest) string {
	var b strings.Builder
	b.WriteString("Recent activity:\n")
	for _, a := range req.Activities {
		b.WriteString("- ")
		b.WriteString(a)
		b.WriteString("\n")
	}
	if len(req.ConversationTurns) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, t := range req.ConversationTurns {
			b.WriteString("- ")
			b.WriteString(t.Role)
			b.WriteString(": ")
			b.WriteString(t.Text)
			b.WriteString("\n")
		}
	}
	if len(req.PreviousSummaries) > 0 {
		b.WriteString("\nPrevious updates:\n")
		for _, s := range req.PreviousSummaries {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}
	return b.String()
}
