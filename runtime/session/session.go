// Package session implements the Graph Session (C6): the append-only
// per-request Event log, the status-update trigger evaluation, and the
// fire-and-forget artifact post-processing task.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"goa.design/streamcore/runtime/stream"
	"goa.design/streamcore/runtime/telemetry"
	"goa.design/streamcore/summarizer"
)

// EventKind enumerates the six recognised Event variants (§3 Data Model).
type EventKind string

const (
	EventAgentGenerate      EventKind = "agent_generate"
	EventTransfer           EventKind = "transfer"
	EventDelegationSent     EventKind = "delegation_sent"
	EventDelegationReturned EventKind = "delegation_returned"
	EventArtifactSaved      EventKind = "artifact_saved"
	EventToolExecution      EventKind = "tool_execution"
)

// Event is an immutable append-only record. Data's shape depends on Kind;
// callers populate the fields relevant to that kind and leave the rest zero.
type Event struct {
	Timestamp time.Time
	Kind      EventKind
	AgentID   string
	Data      EventData
}

// EventData is the tagged-variant payload carried by an Event. Only the
// fields relevant to the owning Event's Kind are populated.
type EventData struct {
	// tool_execution
	ToolName   string
	ToolArgs   map[string]any
	ToolResult string

	// transfer
	FromAgent string
	ToAgent   string

	// delegation_sent / delegation_returned
	DelegationID     string
	DelegationResult string

	// artifact_saved
	ArtifactID        string
	ArtifactType      string
	ArtifactSummary   string
	PendingGeneration bool

	// agent_generate
	GenerationType string // "internal_name_description" is excluded from activity formatting
}

// StatusUpdateConfig configures the status-update generator (§3 Data Model).
type StatusUpdateConfig struct {
	Enabled          bool
	NumEvents        int
	TimeInSeconds    int
	Prompt           string
	StatusComponents []summarizer.StatusComponent
}

// ConversationHistory fetches recent conversation turns for a tenant,
// project, and conversation triple — the external collaborator consulted by
// the status-update generator (§4.5).
type ConversationHistory interface {
	Recent(ctx context.Context, tenant, project, conversation string, limit int) ([]summarizer.ConversationTurn, error)
}

// ArtifactStore persists the generated name/description for an artifact
// once post-processing completes (§4.5 "generate name+description ... then
// persist; on failure, persist a fallback name/description").
type ArtifactStore interface {
	SaveArtifactMetadata(ctx context.Context, artifactID, name, description string) error
}

// previousSummaryRingSize bounds the number of prior summaries retained for
// future prompts (§4.5).
const previousSummaryRingSize = 3

// Session is created once per in-flight request and owns its event vector,
// status-update timer, and previous-summary ring exclusively (§3 Ownership).
type Session struct {
	ID      string
	GraphID string
	Tenant  string
	Project string

	log        telemetry.Logger
	summarizer summarizer.Summarizer
	history    ConversationHistory
	artifacts  ArtifactStore
	helper     *stream.Helper

	startedAt time.Time

	mu                 sync.Mutex
	events             []Event
	config             StatusUpdateConfig
	model              string
	ended              bool
	isTextStreaming    bool
	isGeneratingUpdate bool
	lastEventCount     int
	lastUpdateTime     time.Time
	previousSummaries  []string
	timer              *time.Timer
}

// New constructs a Session bound to the given Stream Helper, which it uses
// to emit summary frames. Whether text is currently streaming is reported to
// the Session through SetTextStreaming, not read from the Helper.
func New(id, graphID, tenant, project string, helper *stream.Helper, summarizerClient summarizer.Summarizer, history ConversationHistory, artifacts ArtifactStore, log telemetry.Logger) *Session {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &Session{
		ID: id, GraphID: graphID, Tenant: tenant, Project: project,
		helper: helper, summarizer: summarizerClient, history: history, artifacts: artifacts, log: log,
		startedAt: time.Now(),
	}
}

// InitializeStatusUpdates stores config and arms the periodic timer trigger
// if TimeInSeconds is set (the NumEvents trigger is evaluated inline by
// every RecordEvent call, so it needs no timer).
func (s *Session) InitializeStatusUpdates(config StatusUpdateConfig, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = config
	s.model = model
	if config.Enabled && config.TimeInSeconds > 0 {
		s.timer = time.AfterFunc(time.Duration(config.TimeInSeconds)*time.Second, s.onTimerFired)
	}
}

func (s *Session) onTimerFired() {
	ctx := context.Background()
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	due := s.triggerDueLocked(true)
	s.mu.Unlock()
	if due {
		s.runStatusUpdate(ctx)
	}
	s.mu.Lock()
	if !s.ended && s.config.TimeInSeconds > 0 {
		s.timer = time.AfterFunc(time.Duration(s.config.TimeInSeconds)*time.Second, s.onTimerFired)
	}
	s.mu.Unlock()
}

// RecordEvent appends event to the log, schedules artifact post-processing
// when applicable, and fires a status update if the trigger condition now
// holds. It is a silent no-op once the session has ended.
func (s *Session) RecordEvent(event Event) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.events = append(s.events, event)
	due := s.triggerDueLocked(false)
	scheduleArtifact := event.Kind == EventArtifactSaved && event.Data.PendingGeneration
	s.mu.Unlock()

	if scheduleArtifact {
		go s.postProcessArtifact(context.Background(), event)
	}
	if due {
		go s.runStatusUpdate(context.Background())
	}
}

// triggerDueLocked evaluates §4.5's trigger predicate. Caller must hold s.mu.
func (s *Session) triggerDueLocked(fromTimer bool) bool {
	if !s.config.Enabled || s.ended || s.isTextStreaming || s.isGeneratingUpdate {
		return false
	}
	if fromTimer {
		return true
	}
	if s.config.NumEvents <= 0 {
		return false
	}
	return len(s.events)-s.lastEventCount >= s.config.NumEvents
}

// SetTextStreaming lets the owning request task report the Stream Helper's
// gating state so the generator's interlock (§4.5 "must consult
// isTextStreaming at start") has a value to check.
func (s *Session) SetTextStreaming(streaming bool) {
	s.mu.Lock()
	s.isTextStreaming = streaming
	s.mu.Unlock()
}

// runStatusUpdate executes one status-update cycle: format activities,
// fetch conversation history, call the summariser, and write the result(s)
// through the Stream Helper. isGeneratingUpdate is held for the entire
// cycle so concurrent triggers are dropped.
func (s *Session) runStatusUpdate(ctx context.Context) {
	s.mu.Lock()
	if s.ended || s.isGeneratingUpdate || s.isTextStreaming {
		s.mu.Unlock()
		return
	}
	s.isGeneratingUpdate = true
	newEvents := s.events[s.lastEventCount:]
	activities := formatActivities(newEvents)
	previous := append([]string(nil), s.previousSummaries...)
	cfg := s.config
	model := s.model
	eventCount := len(s.events)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isGeneratingUpdate = false
		s.mu.Unlock()
	}()

	var turns []summarizer.ConversationTurn
	if s.history != nil {
		var err error
		turns, err = s.history.Recent(ctx, s.Tenant, s.Project, s.ID, 20)
		if err != nil {
			s.log.Warn(ctx, "session: conversation history fetch failed", "session", s.ID, "error", err.Error())
		}
	}

	req := summarizer.SummarizeRequest{
		Model: model, Activities: activities, ConversationTurns: turns,
		PreviousSummaries: previous, PromptAddendum: cfg.Prompt,
	}
	if len(cfg.StatusComponents) > 0 {
		req.Schema = summarizer.BuildUnionSchema(cfg.StatusComponents)
	}

	resp, err := s.summarizer.Summarize(ctx, req)
	if err != nil {
		s.log.Warn(ctx, "session: status update summarize failed", "session", s.ID, "error", err.Error())
		return
	}

	summaries := s.emitSummaries(ctx, resp, cfg)
	s.mu.Lock()
	s.lastEventCount = eventCount
	s.lastUpdateTime = time.Now()
	s.previousSummaries = append(s.previousSummaries, summaries...)
	if excess := len(s.previousSummaries) - previousSummaryRingSize; excess > 0 {
		s.previousSummaries = s.previousSummaries[excess:]
	}
	s.mu.Unlock()
}

// emitSummaries writes the SummaryEvent(s) produced by resp through the
// Stream Helper and returns their serialised form for the previous-summary
// ring.
func (s *Session) emitSummaries(ctx context.Context, resp summarizer.SummarizeResponse, cfg StatusUpdateConfig) []string {
	if resp.Structured == nil {
		if resp.Text == "" {
			return nil
		}
		if err := s.helper.WriteSummary(ctx, stream.SummaryEvent{Label: resp.Text}); err != nil {
			s.log.Warn(ctx, "session: write summary failed", "session", s.ID, "error", err.Error())
		}
		return []string{resp.Text}
	}

	caseName, _ := resp.Structured["case"].(string)
	if caseName == "no_relevant_updates" || caseName == "" {
		return nil
	}
	label, _ := resp.Structured["label"].(string)
	details, _ := resp.Structured["details"].(map[string]any)
	if label == "" {
		for _, c := range cfg.StatusComponents {
			if c.Name == caseName {
				label = c.Label
				break
			}
		}
	}
	ev := stream.SummaryEvent{Label: label, Details: details}
	if err := s.helper.WriteSummary(ctx, ev); err != nil {
		s.log.Warn(ctx, "session: write summary failed", "session", s.ID, "error", err.Error())
	}
	serialised, _ := json.Marshal(ev)
	return []string{string(serialised)}
}

// postProcessArtifact generates a name and description for a pending
// artifact via the summariser, persisting a deterministic fallback on
// failure. It must not block RecordEvent's caller and must not propagate
// errors (§4.5).
func (s *Session) postProcessArtifact(ctx context.Context, event Event) {
	name, description, err := s.generateArtifactMetadata(ctx, event)
	if err != nil {
		s.log.Warn(ctx, "session: artifact metadata generation failed, using fallback",
			"session", s.ID, "artifact", event.Data.ArtifactID, "error", err.Error())
		name = fmt.Sprintf("%s artifact", event.Data.ArtifactType)
		description = event.Data.ArtifactSummary
	}
	if s.artifacts == nil {
		return
	}
	if err := s.artifacts.SaveArtifactMetadata(ctx, event.Data.ArtifactID, name, description); err != nil {
		s.log.Warn(ctx, "session: artifact metadata persistence failed", "session", s.ID, "error", err.Error())
	}
}

func (s *Session) generateArtifactMetadata(ctx context.Context, event Event) (name, description string, err error) {
	req := summarizer.SummarizeRequest{
		Model: s.model,
		Activities: []string{fmt.Sprintf(
			"artifact saved: id=%s type=%s summary=%s",
			event.Data.ArtifactID, event.Data.ArtifactType, event.Data.ArtifactSummary,
		)},
		PromptAddendum: "Reply with exactly two lines: a short title, then a one-sentence description.",
	}
	resp, err := s.summarizer.Summarize(ctx, req)
	if err != nil {
		return "", "", err
	}
	lines := splitLines(resp.Text)
	if len(lines) == 0 {
		return "", "", fmt.Errorf("session: empty artifact metadata response")
	}
	name = lines[0]
	if len(lines) > 1 {
		description = lines[1]
	}
	return name, description, nil
}

// Cleanup ends the session: no further Events are appended, the periodic
// timer is cancelled, and the previous-summary ring is released. Idempotent.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.previousSummaries = nil
}

// formatActivities renders each Event into a compact human string per
// §4.5, excluding agent_generate events whose GenerationType marks them as
// internal name/description work.
func formatActivities(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		switch e.Kind {
		case EventToolExecution:
			out = append(out, fmt.Sprintf("tool %q called with %v -> %s", e.Data.ToolName, e.Data.ToolArgs, truncate(e.Data.ToolResult, 200)))
		case EventTransfer:
			out = append(out, fmt.Sprintf("transferred from %s to %s", e.Data.FromAgent, e.Data.ToAgent))
		case EventDelegationSent:
			out = append(out, fmt.Sprintf("delegation %s sent", e.Data.DelegationID))
		case EventDelegationReturned:
			out = append(out, fmt.Sprintf("delegation %s returned: %s", e.Data.DelegationID, truncate(e.Data.DelegationResult, 200)))
		case EventArtifactSaved:
			out = append(out, fmt.Sprintf("artifact saved: id=%s type=%s summary=%s", e.Data.ArtifactID, e.Data.ArtifactType, e.Data.ArtifactSummary))
		case EventAgentGenerate:
			if e.Data.GenerationType == "internal_name_description" {
				continue
			}
			out = append(out, fmt.Sprintf("%s generated a response", e.AgentID))
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func splitLines(text string) []string {
	var lines []string
	var cur []byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '\n' {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			continue
		}
		cur = append(cur, c)
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
