package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// SynthesisContractError signals that the final model output failed to
// parse against the fixed report contract. It is fatal for the job; no
// partial result is produced.
type SynthesisContractError struct {
	Reason string
}

func (e SynthesisContractError) Error() string {
	return fmt.Sprintf("synthesis output violates report contract: %s", e.Reason)
}

// Synthesizer converts a run's final state into one structured report.
type Synthesizer struct {
	llm    LLMProvider
	logger *log.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(llm LLMProvider, logger *log.Logger) *Synthesizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNTH] ", log.LstdFlags)
	}
	return &Synthesizer{llm: llm, logger: logger}
}

// reportPayload is the exact JSON shape the model must return.
type reportPayload struct {
	Summary        string   `json:"summary"`
	CurrentRole    string   `json:"current_role"`
	Expertise      []string `json:"expertise"`
	Achievements   []string `json:"achievements"`
	RecentActivity string   `json:"recent_activity"`
	TalkingPoints  []string `json:"talking_points"`
}

// Synthesize makes the single collaborator call and enforces the
// structured-object contract.
func (s *Synthesizer) Synthesize(ctx context.Context, state *ResearchState) (Report, error) {
	resp, err := s.llm.Complete(ctx, []ChatMessage{
		{Role: "system", Content: synthesisSystemPrompt},
		{Role: "user", Content: createSynthesisPrompt(state)},
	}, 0.2)
	if err != nil {
		return Report{}, fmt.Errorf("synthesis call failed: %w", err)
	}

	raw, err := ExtractJSON(resp)
	if err != nil {
		return Report{}, SynthesisContractError{Reason: err.Error()}
	}
	var payload reportPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Report{}, SynthesisContractError{Reason: err.Error()}
	}
	if payload.Summary == "" {
		return Report{}, SynthesisContractError{Reason: "missing summary"}
	}

	return Report{
		Contact:        state.Contact,
		Summary:        payload.Summary,
		CurrentRole:    payload.CurrentRole,
		Expertise:      payload.Expertise,
		Achievements:   payload.Achievements,
		RecentActivity: payload.RecentActivity,
		TalkingPoints:  payload.TalkingPoints,
		Findings:       state.Findings,
		Iterations:     state.Iteration,
		CreatedAt:      time.Now(),
	}, nil
}

// parseQueryList parses a JSON array of query strings, tolerating the
// usual markdown wrapping.
func parseQueryList(resp string) []string {
	raw, err := ExtractJSON(resp)
	if err != nil {
		return nil
	}
	var queries []string
	if err := json.Unmarshal([]byte(raw), &queries); err != nil {
		return nil
	}
	out := queries[:0]
	for _, q := range queries {
		if q != "" {
			out = append(out, q)
		}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}
