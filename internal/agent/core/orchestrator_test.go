package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/prospector/config"
)

// scriptedLLM replays responses in order, then repeats the last one.
type scriptedLLM struct {
	responses []string
	calls     int
}

func (s *scriptedLLM) Complete(_ context.Context, _ []ChatMessage, _ float64) (string, error) {
	s.calls++
	if len(s.responses) == 0 {
		return "", errors.New("no scripted response")
	}
	i := s.calls - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

// fakeSession answers extraction requests from canned payloads keyed by
// instruction keywords.
type fakeSession struct {
	navErr     error
	identity   string
	contact    string
	pageFacts  Extraction
	navigated  []string
	actionsRun []string
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	if f.navErr != nil {
		return f.navErr
	}
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSession) WaitForQuiescence(context.Context, time.Duration) error { return nil }

func (f *fakeSession) PerformAction(_ context.Context, instruction string, _ map[string]string) error {
	f.actionsRun = append(f.actionsRun, instruction)
	return nil
}

func (f *fakeSession) Extract(_ context.Context, instruction, _ string) (Extraction, error) {
	switch {
	case strings.Contains(instruction, "full name"):
		return Extraction{Content: f.identity, Confidence: 0.9, Category: "profile"}, nil
	case strings.Contains(instruction, "contact information"):
		return Extraction{Content: f.contact, Confidence: 0.9, Category: "profile"}, nil
	default:
		return f.pageFacts, nil
	}
}

func (f *fakeSession) Observe(context.Context, string) ([]string, error) {
	return []string{"a: profile link"}, nil
}

func (f *fakeSession) Close() error { return nil }

type fakeSearch struct {
	results []SearchResult
	queries []string
}

func (f *fakeSearch) Search(_ context.Context, q string, _ int) ([]SearchResult, error) {
	f.queries = append(f.queries, q)
	return f.results, nil
}

func testConfig() *config.Config {
	return &config.Config{
		LLM:    config.LLMConfig{Temperature: 0.7},
		Search: config.SearchConfig{MaxResults: 5},
		Research: config.ResearchConfig{
			MaxIterations:       4,
			MaxNavFailures:      3,
			ConfidenceThreshold: 0.6,
			MaxFindings:         5,
			MinFindings:         0,
		},
		Profile: config.ProfileConfig{
			Domain:   "example.com",
			LoginURL: "https://example.com/login",
			Email:    "bot@example.com",
			Password: "hunter2",
		},
	}
}

const synthResponse = `{"summary": "Alice Smith is a distributed systems engineer.",
	"current_role": "Staff Engineer", "expertise": ["distributed systems"],
	"achievements": [], "recent_activity": "", "talking_points": ["systems"]}`

func TestRunStopsAtIterationCeiling(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"research plan",
		"let me ponder this for a while", // unparsable, skipped
		"OBSERVE: the page",              // fails, nothing loaded
		"SEARCH: alice smith",
		"SEARCH: alice smith news",
		synthResponse,
	}}
	orch := NewOrchestrator(testConfig(), llm, &fakeSearch{}, nil)

	report, err := orch.Run(context.Background(), Profile{Name: "alice smith"}, &fakeSession{}, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Iterations != 4 {
		t.Fatalf("expected the ceiling of 4 iterations, got %d", report.Iterations)
	}
}

func TestRunAbortsAfterNavigationFailures(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"plan",
		"NAVIGATE: https://one.test/page",
		"NAVIGATE: https://two.test/page",
		"NAVIGATE: https://three.test/page",
		synthResponse,
	}}
	cfg := testConfig()
	cfg.Research.MaxIterations = 10
	session := &fakeSession{navErr: errors.New("connection refused")}
	orch := NewOrchestrator(cfg, llm, &fakeSearch{}, nil)

	report, err := orch.Run(context.Background(), Profile{Name: "alice smith"}, session, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Iterations != 3 {
		t.Fatalf("expected abort after 3 navigation failures, got %d iterations", report.Iterations)
	}
}

func TestConcludeRequiresContact(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"plan",
		"CONCLUDE", // ignored, no contact yet
		"NAVIGATE: https://example.com/in/alice",
		"CONCLUDE", // honored
		synthResponse,
	}}
	session := &fakeSession{
		identity: `{"name": "alice smith", "headline": "distributed systems engineer", "about": ""}`,
		contact:  `{"email": "alice@example.com"}`,
	}
	cfg := testConfig()
	orch := NewOrchestrator(cfg, llm, &fakeSearch{}, nil)

	profile := Profile{Name: "alice smith", Context: "distributed systems"}
	report, err := orch.Run(context.Background(), profile, session, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Iterations != 3 {
		t.Fatalf("expected conclusion on iteration 3, got %d", report.Iterations)
	}
	if report.Contact == nil || report.Contact.Email != "alice@example.com" {
		t.Fatalf("expected contact from the matched profile, got %+v", report.Contact)
	}
}

func TestNavigateSkipsVisitedURL(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"plan",
		"NAVIGATE: https://one.test/page",
		"NAVIGATE: https://one.test/page",
		synthResponse,
	}}
	cfg := testConfig()
	cfg.Research.MaxIterations = 2
	session := &fakeSession{}
	orch := NewOrchestrator(cfg, llm, &fakeSearch{}, nil)

	if _, err := orch.Run(context.Background(), Profile{Name: "alice"}, session, nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(session.navigated) != 1 {
		t.Fatalf("expected a single navigation, got %d", len(session.navigated))
	}
}

func TestExtractAcceptsFinding(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"plan",
		"NAVIGATE: https://one.test/page",
		"EXTRACT: pull out career facts",
		"CONCLUDE", // ignored, keeps looping to the ceiling
		synthResponse,
	}}
	cfg := testConfig()
	session := &fakeSession{
		pageFacts: Extraction{Content: "alice leads the platform team", Confidence: 0.8, Category: "news"},
	}
	orch := NewOrchestrator(cfg, llm, &fakeSearch{}, nil)

	report, err := orch.Run(context.Background(), Profile{Name: "alice"}, session, nil)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(report.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(report.Findings))
	}
	if report.Findings[0].SourceURL != "https://one.test/page" {
		t.Fatalf("finding should carry the page URL, got %s", report.Findings[0].SourceURL)
	}
}

func TestSupplementalRoundRunsQueries(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"plan",
		"OBSERVE: anything", // errors, nothing loaded
		`["alice smith talks", "alice smith publications"]`,
		synthResponse,
	}}
	cfg := testConfig()
	cfg.Research.MaxIterations = 1
	cfg.Research.MinFindings = 3
	search := &fakeSearch{}
	orch := NewOrchestrator(cfg, llm, search, nil)

	if _, err := orch.Run(context.Background(), Profile{Name: "alice smith"}, &fakeSession{}, nil); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(search.queries) != 2 {
		t.Fatalf("expected 2 supplemental searches, got %d (%v)", len(search.queries), search.queries)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"plan", "SEARCH: alice"}}
	ctx, cancel := context.WithCancel(context.Background())
	orch := NewOrchestrator(testConfig(), llm, &fakeSearch{}, nil)
	cancel()

	if _, err := orch.Run(ctx, Profile{Name: "alice"}, &fakeSession{}, nil); err == nil {
		t.Fatalf("expected an error after cancellation")
	}
}
