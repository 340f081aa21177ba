package core

import (
	"sort"
	"strings"

	"github.com/mohammad-safakhou/prospector/config"
)

// Aggregator deduplicates and ranks discovered evidence for one run.
// Findings are accepted only strictly above the configured confidence
// threshold and while the accepted count is below the cap.
type Aggregator struct {
	cfg           config.ResearchConfig
	profileDomain string
}

// NewAggregator builds an aggregator bound to one run's configuration.
func NewAggregator(cfg config.ResearchConfig, profileDomain string) *Aggregator {
	return &Aggregator{cfg: cfg, profileDomain: strings.ToLower(profileDomain)}
}

// MergeResults folds new search hits into the state's deduplicated
// result list. Dedup is by URL, first occurrence wins; the merged list
// is re-ranked after every merge so the planning prompt always sees the
// current top hits.
func (a *Aggregator) MergeResults(state *ResearchState, results []SearchResult) {
	seen := make(map[string]bool, len(state.SearchResults))
	for _, r := range state.SearchResults {
		seen[r.URL] = true
	}
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		r.Score = a.rank(r.URL, state.Profile.Name)
		state.SearchResults = append(state.SearchResults, r)
	}
	sort.SliceStable(state.SearchResults, func(i, j int) bool {
		return state.SearchResults[i].Score > state.SearchResults[j].Score
	})
}

// rank scores a URL's relevance: recognized-profile domain 2, URL
// containing a name token 1, otherwise 0.
func (a *Aggregator) rank(rawURL, name string) int {
	lower := strings.ToLower(rawURL)
	if a.profileDomain != "" && strings.Contains(lower, a.profileDomain) {
		return 2
	}
	for _, tok := range strings.Fields(strings.ToLower(name)) {
		if len(tok) > 1 && strings.Contains(lower, tok) {
			return 1
		}
	}
	return 0
}

// MarkVisited records a URL so the run never processes it twice.
// Returns false if the URL was already visited.
func (a *Aggregator) MarkVisited(state *ResearchState, url string) bool {
	if state.Visited[url] {
		return false
	}
	state.Visited[url] = true
	return true
}

// Accept applies the confidence threshold and cap to an extracted
// finding. Returns true when the finding was appended.
func (a *Aggregator) Accept(state *ResearchState, f Finding) bool {
	if len(state.Findings) >= a.cfg.MaxFindings {
		return false
	}
	if f.Confidence <= a.cfg.ConfidenceThreshold {
		return false
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return false
	}
	state.Findings = append(state.Findings, f)
	return true
}

// NeedsExtraRound reports whether the run qualifies for its single
// supplemental query round: accepted findings below the minimum and the
// round not yet spent.
func (a *Aggregator) NeedsExtraRound(state *ResearchState) bool {
	return !state.ExtraRoundRun && len(state.Findings) < a.cfg.MinFindings
}
