package core

import (
	"context"
	"errors"
	"testing"
)

func TestSynthesizeProducesReport(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"```json\n{\"summary\": \"Alice builds storage systems.\", \"current_role\": \"Staff Engineer\", " +
			"\"expertise\": [\"storage\"], \"achievements\": [\"shipped v2\"], " +
			"\"recent_activity\": \"spoke at a conference\", \"talking_points\": [\"v2 launch\"]}\n```",
	}}
	state := NewResearchState(Profile{Name: "alice"})
	state.Contact = &ContactInfo{Email: "alice@example.com"}
	state.Findings = []Finding{{SourceURL: "https://a.test", Content: "x", Confidence: 0.8}}
	state.Iteration = 7

	report, err := NewSynthesizer(llm, nil).Synthesize(context.Background(), state)
	if err != nil {
		t.Fatalf("synthesis failed: %v", err)
	}
	if report.Summary != "Alice builds storage systems." {
		t.Fatalf("unexpected summary: %q", report.Summary)
	}
	if report.Contact == nil || report.Contact.Email != "alice@example.com" {
		t.Fatalf("contact must be carried into the report")
	}
	if len(report.Findings) != 1 || report.Iterations != 7 {
		t.Fatalf("state must be copied into the report: %+v", report)
	}
}

func TestSynthesizeContractViolations(t *testing.T) {
	cases := []string{
		"Alice is a wonderful engineer, here is my write-up.", // no JSON at all
		`{"current_role": "Staff Engineer"}`,                  // missing summary
	}
	for _, resp := range cases {
		llm := &scriptedLLM{responses: []string{resp}}
		_, err := NewSynthesizer(llm, nil).Synthesize(context.Background(), NewResearchState(Profile{Name: "alice"}))
		var contractErr SynthesisContractError
		if !errors.As(err, &contractErr) {
			t.Fatalf("response %q: expected a contract error, got %v", resp, err)
		}
	}
}

func TestSynthesizeCallFailureIsNotContractError(t *testing.T) {
	llm := &scriptedLLM{} // no scripted response, Complete errors
	_, err := NewSynthesizer(llm, nil).Synthesize(context.Background(), NewResearchState(Profile{Name: "alice"}))
	if err == nil {
		t.Fatalf("expected an error")
	}
	var contractErr SynthesisContractError
	if errors.As(err, &contractErr) {
		t.Fatalf("a transport failure must not be reported as a contract violation")
	}
}

func TestParseQueryList(t *testing.T) {
	queries := parseQueryList("```json\n[\"a\", \"\", \"b\", \"c\", \"d\"]\n```")
	if len(queries) != 3 {
		t.Fatalf("expected at most 3 non-empty queries, got %v", queries)
	}
	if queries[0] != "a" || queries[1] != "b" || queries[2] != "c" {
		t.Fatalf("unexpected queries: %v", queries)
	}
	if parseQueryList("not json") != nil {
		t.Fatalf("unparsable responses should yield no queries")
	}
}
