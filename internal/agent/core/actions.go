package core

import "strings"

// Directive keywords recognized by the action parser. Each appears at
// the start of a line, followed by a colon and the argument, except
// CONCLUDE which takes none.
const (
	kwSearch   = "SEARCH"
	kwNavigate = "NAVIGATE"
	kwExtract  = "EXTRACT"
	kwObserve  = "OBSERVE"
	kwConclude = "CONCLUDE"
)

// ParseAction turns a free-text directive into a typed Action. The
// directive is scanned line by line; the first line carrying a
// recognized keyword wins. Returns ok=false when no keyword is present,
// in which case the caller skips the iteration without changing state.
func ParseAction(directive string) (Action, bool) {
	for _, line := range strings.Split(directive, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		if upper == kwConclude || strings.HasPrefix(upper, kwConclude+":") {
			return Action{Kind: ActionConclude}, true
		}
		for kw, kind := range map[string]ActionKind{
			kwSearch:   ActionSearch,
			kwNavigate: ActionNavigate,
			kwExtract:  ActionExtract,
			kwObserve:  ActionObserve,
		} {
			if !strings.HasPrefix(upper, kw+":") {
				continue
			}
			arg := strings.TrimSpace(line[len(kw)+1:])
			if arg == "" {
				// keyword with an empty argument is unparsable
				continue
			}
			return Action{Kind: kind, Arg: arg}, true
		}
	}
	return Action{}, false
}
