package core

import "testing"

func TestExtractJSONCodeFence(t *testing.T) {
	in := "```json\n{\"name\": \"alice\"}\n```"
	out, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"name": "alice"}` {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExtractJSONProseWrapped(t *testing.T) {
	in := `Here is the result you asked for: {"a": {"b": 1}} hope it helps`
	out, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"a": {"b": 1}}` {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExtractJSONArray(t *testing.T) {
	out, err := ExtractJSON(`["one", "two"]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `["one", "two"]` {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	in := `{"text": "a { tricky \" string }"}`
	out, err := ExtractJSON(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExtractJSONByteOrderMark(t *testing.T) {
	out, err := ExtractJSON("\uFEFF{\"name\": \"alice\"}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"name": "alice"}` {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExtractJSONNoPayload(t *testing.T) {
	if _, err := ExtractJSON("no json here at all"); err == nil {
		t.Fatalf("expected an error for input without JSON")
	}
	if _, err := ExtractJSON(`{"unbalanced": 1`); err == nil {
		t.Fatalf("expected an error for unbalanced JSON")
	}
}
