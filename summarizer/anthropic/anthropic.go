// Package anthropic implements summarizer.Summarizer backed by the
// Anthropic Claude Messages API via github.com/anthropics/anthropic-sdk-go.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"goa.design/streamcore/summarizer"
)

// MessagesClient captures the subset of the Anthropic SDK used by the
// adapter, so callers can substitute a fake in tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Client implements summarizer.Summarizer on top of Claude Messages.
type Client struct {
	msg   MessagesClient
	model string
}

// New builds an Anthropic-backed Summarizer.
func New(msg MessagesClient, defaultModel string) (*Client, error) {
	if msg == nil {
		return nil, errors.New("summarizer/anthropic: messages client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("summarizer/anthropic: default model is required")
	}
	return &Client{msg: msg, model: defaultModel}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("summarizer/anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, defaultModel)
}

// Summarize renders req's activities/history/previous-summaries into a
// single prompt and issues one Messages.New call. In structured mode the
// schema is embedded in the system prompt with an explicit instruction to
// reply with JSON only; the adapter does not rely on prompt-following alone
// for request shaping (model, max tokens) but does for output-shape
// compliance, matching how the Claude Messages API's tool-less JSON mode
// is used elsewhere in this stack.
func (c *Client) Summarize(ctx context.Context, req summarizer.SummarizeRequest) (summarizer.SummarizeResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	system := buildSystemPrompt(req)
	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: 1024,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildUserPrompt(req))),
		},
	}
	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return summarizer.SummarizeResponse{}, fmt.Errorf("summarizer/anthropic: messages.new: %w", err)
	}
	text := extractText(msg)
	if req.Schema == nil {
		return summarizer.SummarizeResponse{Text: text}, nil
	}
	var structured map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &structured); err != nil {
		return summarizer.SummarizeResponse{}, fmt.Errorf("summarizer/anthropic: structured response not valid JSON: %w", err)
	}
	return summarizer.SummarizeResponse{Structured: structured}, nil
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

func extractText(msg *sdk.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
