package core

import (
	"fmt"
	"strings"
)

const planningSystemPrompt = `You are a research planner. You design short, practical plans for
researching a named person on the public web and on their professional
profile page. Respond with a concise numbered plan, nothing else.`

// createPlanningPrompt builds the single upfront planning request.
func createPlanningPrompt(profile Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a research plan for the following person.\n\n")
	fmt.Fprintf(&b, "Name: %s\n", profile.Name)
	if profile.Context != "" {
		fmt.Fprintf(&b, "Known context: %s\n", profile.Context)
	}
	if len(profile.Interests) > 0 {
		fmt.Fprintf(&b, "Known interests: %s\n", strings.Join(profile.Interests, ", "))
	}
	b.WriteString(`
The plan should cover: finding their professional profile page,
verifying it is the right person, collecting contact information, and
gathering recent news or achievements. Keep it to at most 6 steps.`)
	return b.String()
}

const iterationSystemPrompt = `You are a research agent working through a plan one action at a time.
You control a browser and a web search tool. Reply with EXACTLY ONE
directive line in one of these forms:

SEARCH: <query>
NAVIGATE: <url>
EXTRACT: <what to extract from the current page>
OBSERVE: <what to look for on the current page>
CONCLUDE

Rules:
- NAVIGATE only to URLs from the search results below.
- EXTRACT and OBSERVE only work after a successful NAVIGATE.
- CONCLUDE only once contact information has been found.
Reply with the directive line only, no explanation.`

// createIterationPrompt serializes the current run state for one
// planning step: the plan, the top search results, the current URL,
// the contact flag and the iteration count.
func createIterationPrompt(state *ResearchState, maxIterations int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research target: %s\n", state.Profile.Name)
	if state.Profile.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", state.Profile.Context)
	}
	fmt.Fprintf(&b, "\nPlan:\n%s\n", state.Plan)
	fmt.Fprintf(&b, "\nIteration %d of %d\n", state.Iteration+1, maxIterations)

	if len(state.SearchResults) > 0 {
		b.WriteString("\nTop search results:\n")
		for i, r := range state.SearchResults {
			if i >= 5 {
				break
			}
			visited := ""
			if state.Visited[r.URL] {
				visited = " (visited)"
			}
			fmt.Fprintf(&b, "%d. %s - %s%s\n", i+1, r.Title, r.URL, visited)
		}
	} else {
		b.WriteString("\nNo search results yet.\n")
	}

	if state.CurrentURL != "" {
		fmt.Fprintf(&b, "\nCurrent page: %s\n", state.CurrentURL)
	} else {
		b.WriteString("\nNo page loaded.\n")
	}
	fmt.Fprintf(&b, "Contact information found: %t\n", state.Contact != nil)
	fmt.Fprintf(&b, "Accepted findings: %d\n", len(state.Findings))

	if n := len(state.Log); n > 0 {
		last := state.Log[n-1]
		if last.Error != "" {
			fmt.Fprintf(&b, "Last action failed: %s\n", last.Error)
		}
	}

	b.WriteString("\nWhat is the next action?")
	return b.String()
}

const extraQueriesSystemPrompt = `You generate web search queries. Respond with a JSON array of query
strings, nothing else.`

// createExtraQueriesPrompt asks for supplemental queries when the first
// pass produced too few findings.
func createExtraQueriesPrompt(state *ResearchState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research on %q found only %d usable pieces of evidence.\n", state.Profile.Name, len(state.Findings))
	if state.Profile.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", state.Profile.Context)
	}
	b.WriteString("Suggest up to 3 different web search queries likely to surface news, achievements or interviews about this person.")
	return b.String()
}

const synthesisSystemPrompt = `You write structured research profiles. Respond ONLY with a JSON object
in exactly this shape:
{
  "summary": "2-3 sentence narrative about the person",
  "current_role": "their current position",
  "expertise": ["area", ...],
  "achievements": ["achievement", ...],
  "recent_activity": "one sentence on recent activity",
  "talking_points": ["conversation starter", ...]
}
Do not include any other text.`

// createSynthesisPrompt serializes the final state for the one-shot
// report synthesis.
func createSynthesisPrompt(state *ResearchState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a research profile of %s.\n", state.Profile.Name)
	if state.Profile.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", state.Profile.Context)
	}
	if state.Contact != nil {
		b.WriteString("Contact information was found and will be attached separately; do not invent contact details.\n")
	}
	b.WriteString("\nEvidence:\n")
	if len(state.Findings) == 0 {
		b.WriteString("(none collected)\n")
	}
	for i, f := range state.Findings {
		fmt.Fprintf(&b, "%d. [%s] %s (source: %s, confidence %.2f)\n", i+1, f.Category, f.Content, f.SourceURL, f.Confidence)
	}
	return b.String()
}
