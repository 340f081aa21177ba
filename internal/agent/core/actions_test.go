package core

import "testing"

func TestParseActionSearch(t *testing.T) {
	action, ok := ParseAction("SEARCH: alice smith acme corp")
	if !ok {
		t.Fatalf("expected directive to parse")
	}
	if action.Kind != ActionSearch {
		t.Fatalf("expected search action, got %s", action.Kind)
	}
	if action.Arg != "alice smith acme corp" {
		t.Fatalf("unexpected argument: %q", action.Arg)
	}
}

func TestParseActionCaseInsensitive(t *testing.T) {
	action, ok := ParseAction("navigate: https://example.com/profile")
	if !ok || action.Kind != ActionNavigate {
		t.Fatalf("expected navigate action, got ok=%v kind=%s", ok, action.Kind)
	}
	if action.Arg != "https://example.com/profile" {
		t.Fatalf("unexpected argument: %q", action.Arg)
	}
}

func TestParseActionConcludeTakesNoArgument(t *testing.T) {
	action, ok := ParseAction("CONCLUDE")
	if !ok || action.Kind != ActionConclude {
		t.Fatalf("expected conclude, got ok=%v kind=%s", ok, action.Kind)
	}
	if action.Arg != "" {
		t.Fatalf("conclude must carry no argument, got %q", action.Arg)
	}
}

func TestParseActionSkipsPreamble(t *testing.T) {
	directive := "I think the best next step is to look closer.\n\nEXTRACT: summarize the career history"
	action, ok := ParseAction(directive)
	if !ok || action.Kind != ActionExtract {
		t.Fatalf("expected extract, got ok=%v kind=%s", ok, action.Kind)
	}
	if action.Arg != "summarize the career history" {
		t.Fatalf("unexpected argument: %q", action.Arg)
	}
}

func TestParseActionUnparsable(t *testing.T) {
	for _, directive := range []string{
		"",
		"let me think about this some more",
		"SEARCHING for something",
		"SEARCH:",
		"SEARCH:   ",
	} {
		if action, ok := ParseAction(directive); ok {
			t.Fatalf("directive %q should not parse, got %+v", directive, action)
		}
	}
}

func TestParseActionFirstKeywordLineWins(t *testing.T) {
	directive := "OBSERVE: the navigation links\nSEARCH: something else"
	action, ok := ParseAction(directive)
	if !ok || action.Kind != ActionObserve {
		t.Fatalf("expected observe from first keyword line, got ok=%v kind=%s", ok, action.Kind)
	}
}
