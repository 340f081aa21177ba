package core

import (
	"context"
	"strings"
	"time"
)

// Profile is the research subject as submitted by the caller.
type Profile struct {
	Name      string   `json:"name"`
	Context   string   `json:"context,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// CacheKey returns a normalized serialization of the profile suitable
// for keying the result cache. Field order is fixed and values are
// lowercased so that equivalent submissions collide.
func (p Profile) CacheKey() string {
	parts := []string{strings.ToLower(strings.TrimSpace(p.Name)), strings.ToLower(strings.TrimSpace(p.Context))}
	for _, in := range p.Interests {
		parts = append(parts, strings.ToLower(strings.TrimSpace(in)))
	}
	return strings.Join(parts, "|")
}

// SearchResult is one deduplicated web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Score   int    `json:"score"` // relevance rank, see Aggregator
}

// Finding is an accepted piece of extracted evidence. Immutable once created.
type Finding struct {
	SourceURL  string    `json:"source_url"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"` // 0.0 to 1.0
	Category   string    `json:"category"`   // profile, news, achievement, general
	CreatedAt  time.Time `json:"created_at"`
}

// ContactInfo is structured contact data pulled from a matched profile.
type ContactInfo struct {
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	SocialLinks []string `json:"social_links,omitempty"`
}

// IdentitySummary is what the navigation handler reads off a profile page.
type IdentitySummary struct {
	Name     string `json:"name"`
	Headline string `json:"headline"`
	About    string `json:"about"`
}

// ProfileMatch is the weighted identity-verification score for one page.
// Computed during navigation, not persisted.
type ProfileMatch struct {
	Score         int  `json:"score"` // 0-100
	IsMatch       bool `json:"is_match"`
	NameScore     int  `json:"name_score"`
	ContextScore  int  `json:"context_score"`
	InterestScore int  `json:"interest_score"`
}

// ActionKind tags the parsed directive variant.
type ActionKind string

const (
	ActionSearch   ActionKind = "search"
	ActionNavigate ActionKind = "navigate"
	ActionExtract  ActionKind = "extract"
	ActionObserve  ActionKind = "observe"
	ActionConclude ActionKind = "conclude"
)

// Action is one parsed directive. Produced once per iteration, never mutated.
type Action struct {
	Kind ActionKind `json:"kind"`
	Arg  string     `json:"arg,omitempty"` // query, url or instruction; empty for conclude
}

// IterationRecord logs the outcome of one loop cycle.
type IterationRecord struct {
	Iteration int    `json:"iteration"`
	Directive string `json:"directive"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
}

// ResearchState is the working state of a single orchestrator run.
// Owned exclusively by that run; discarded at job end except for what
// the synthesizer copies into the report.
type ResearchState struct {
	Profile       Profile
	Plan          string
	Iteration     int
	CurrentURL    string
	NavFailures   int
	Contact       *ContactInfo
	Findings      []Finding
	SearchResults []SearchResult
	Visited       map[string]bool
	Log           []IterationRecord
	ExtraRoundRun bool
}

// NewResearchState initializes state for one run.
func NewResearchState(profile Profile) *ResearchState {
	return &ResearchState{
		Profile: profile,
		Visited: make(map[string]bool),
	}
}

// Report is the synthesizer's structured output. Contact details come
// first so downstream consumers surface them before the narrative.
type Report struct {
	Contact        *ContactInfo `json:"contact"`
	Summary        string       `json:"summary"`
	CurrentRole    string       `json:"current_role"`
	Expertise      []string     `json:"expertise"`
	Achievements   []string     `json:"achievements"`
	RecentActivity string       `json:"recent_activity"`
	TalkingPoints  []string     `json:"talking_points"`
	Findings       []Finding    `json:"findings"`
	Iterations     int          `json:"iterations"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ChatMessage is one turn of a completion conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMProvider is the text-completion collaborator.
type LLMProvider interface {
	Complete(ctx context.Context, messages []ChatMessage, temperature float64) (string, error)
}

// Extraction is the browsing collaborator's structured-extraction result.
type Extraction struct {
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"` // 0.0 to 1.0
	Category   string  `json:"category"`
}

// BrowserSession is the browsing collaborator. One session is owned by
// exactly one job for its lifetime and must never be shared.
type BrowserSession interface {
	Navigate(ctx context.Context, url string) error
	WaitForQuiescence(ctx context.Context, timeout time.Duration) error
	PerformAction(ctx context.Context, instruction string, variables map[string]string) error
	Extract(ctx context.Context, instruction, schema string) (Extraction, error)
	Observe(ctx context.Context, instruction string) ([]string, error)
	Close() error
}

// SearchProvider is the web-search capability used by the Search action.
type SearchProvider interface {
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)
}

// ProgressFunc receives forward-progress heartbeats from the loop.
// progress is 0-100.
type ProgressFunc func(progress int, note string)
