// Package summarizer defines the abstract collaborator behind the Graph
// Session's status-update generator (C6): a single Summarize call that
// either produces free text (unstructured mode) or an object conforming to
// a caller-supplied union schema (structured mode). Concrete adapters live
// in summarizer/{anthropic,openai,bedrock}.
package summarizer

import (
	"context"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/streamcore/runtime/telemetry"
)

// SummarizeRequest carries everything an adapter needs to produce one
// status update: the freshly-formatted activity strings, recent
// conversation history, the bounded ring of previous summaries, an optional
// user-supplied prompt addendum, and — for structured mode — the JSON
// schema the response must conform to.
type SummarizeRequest struct {
	Model             string
	Activities        []string
	ConversationTurns []ConversationTurn
	PreviousSummaries []string
	PromptAddendum    string

	// Schema, when non-nil, switches the adapter into structured mode: the
	// response must conform to this JSON schema document (built by
	// BuildUnionSchema) instead of being free text.
	Schema map[string]any
}

// ConversationTurn is one prior message fetched from the external
// conversation-history collaborator (tenant/project/conversation triple),
// formatted down to role+text for prompting.
type ConversationTurn struct {
	Role string
	Text string
}

// SummarizeResponse is the adapter's result. Text is populated in
// unstructured mode; Structured is populated in structured mode with the
// matched union case's object, whose "case" field names the case (including
// the reserved "no_relevant_updates" case when the model determined nothing
// was worth reporting).
type SummarizeResponse struct {
	Text       string
	Structured map[string]any
}

// Summarizer is the abstract LLM collaborator used by the status-update
// generator (§3.1, §4.5.1).
type Summarizer interface {
	Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResponse, error)
}

// BuildUnionSchema constructs the JSON schema document for structured mode:
// a union of exactly the configured status components plus the reserved
// "no_relevant_updates" case, expressed as a oneOf over named object
// schemas so every case carries the component's declared label property
// plus free-form details.
func BuildUnionSchema(components []StatusComponent) map[string]any {
	cases := make([]any, 0, len(components)+1)
	for _, c := range components {
		cases = append(cases, map[string]any{
			"type": "object",
			"properties": map[string]any{
				"case":  map[string]any{"const": c.Name},
				"label": map[string]any{"type": "string", "const": c.Label},
				"details": map[string]any{
					"type":                 "object",
					"additionalProperties": true,
				},
			},
			"required": []any{"case", "label"},
		})
	}
	cases = append(cases, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"case": map[string]any{"const": "no_relevant_updates"},
		},
		"required": []any{"case"},
	})
	return map[string]any{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type":    "object",
		"properties": map[string]any{
			"case": map[string]any{"type": "string"},
		},
		"oneOf": cases,
	}
}

// StatusComponent is one named, labelled structured-status-update case
// (§3 Data Model, StatusUpdateConfig.status-components).
type StatusComponent struct {
	Name  string
	Label string
}

// Traced wraps a Summarizer so every call is recorded under a tracing span.
// session.id, events.count (the number of activities), and model are
// attributes of a "summarize.start" span event, and elapsed.s of a
// "summarize.end" span event; none is set on the span itself. The adapters
// do no tracing of their own, and nothing in this module wraps an adapter
// with Traced automatically.
type Traced struct {
	Inner     Summarizer
	Tracer    telemetry.Tracer
	SessionID string
}

// Summarize delegates to Inner inside a tracing span whose start and end
// events carry the session.id, events.count, model, and elapsed.s values.
func (t Traced) Summarize(ctx context.Context, req SummarizeRequest) (SummarizeResponse, error) {
	start := time.Now()
	ctx, span := t.Tracer.Start(ctx, "summarizer.summarize")
	defer span.End()
	span.AddEvent("summarize.start", "session.id", t.SessionID, "events.count", len(req.Activities), "model", req.Model)

	resp, err := t.Inner.Summarize(ctx, req)

	span.AddEvent("summarize.end", "elapsed.s", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return resp, err
	}
	if req.Schema != nil && resp.Structured != nil {
		if verr := validateStructured(req.Schema, resp.Structured); verr != nil {
			span.RecordError(verr)
			return SummarizeResponse{}, verr
		}
	}
	return resp, nil
}

// validateStructured checks resp against schema using jsonschema/v6,
// rejecting adapter output that does not conform to the union schema built
// by BuildUnionSchema — the structured mode is constrained decoding, not a
// best-effort parse.
func validateStructured(schema map[string]any, resp map[string]any) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("status-update.json", schema); err != nil {
		return fmt.Errorf("summarizer: invalid union schema: %w", err)
	}
	compiled, err := compiler.Compile("status-update.json")
	if err != nil {
		return fmt.Errorf("summarizer: compile union schema: %w", err)
	}
	if err := compiled.Validate(resp); err != nil {
		return fmt.Errorf("summarizer: structured response violates union schema: %w", err)
	}
	return nil
}
