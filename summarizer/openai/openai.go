// Package openai implements summarizer.Summarizer backed by the OpenAI
// Chat Completions API via github.com/openai/openai-go.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"goa.design/streamcore/summarizer"
)

// ChatClient captures the subset of openai-go used by the adapter.
type ChatClient interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// Client implements summarizer.Summarizer via OpenAI Chat Completions.
type Client struct {
	chat  ChatClient
	model string
}

// New builds an OpenAI-backed Summarizer.
func New(chat ChatClient, defaultModel string) (*Client, error) {
	if chat == nil {
		return nil, errors.New("summarizer/openai: chat client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("summarizer/openai: default model is required")
	}
	return &Client{chat: chat, model: defaultModel}, nil
}

// NewFromAPIKey constructs a Client using the default openai-go HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("summarizer/openai: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Chat.Completions, defaultModel)
}

// Summarize issues one Chat Completions call, requesting JSON-mode output
// when req.Schema is set so the structured branch parses a clean object.
func (c *Client) Summarize(ctx context.Context, req summarizer.SummarizeRequest) (summarizer.SummarizeResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	params := sdk.ChatCompletionNewParams{
		Model: model,
		Messages: []sdk.ChatCompletionMessageParamUnion{
			sdk.SystemMessage(buildSystemPrompt(req)),
			sdk.UserMessage(buildUserPrompt(req)),
		},
	}
	if req.Schema != nil {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &sdk.ResponseFormatJSONObjectParam{},
		}
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return summarizer.SummarizeResponse{}, fmt.Errorf("summarizer/openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return summarizer.SummarizeResponse{}, errors.New("summarizer/openai: no choices returned")
	}
	text := resp.Choices[0].Message.Content
	if req.Schema == nil {
		return summarizer.SummarizeResponse{Text: text}, nil
	}
	var structured map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &structured); err != nil {
		return summarizer.SummarizeResponse{}, fmt.Errorf("summarizer/openai: structured response not valid JSON: %w", err)
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
