package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/prospector/config"
)

// Run phases. The loop starts in planning, spends its life in
// iterating, and exits through concluded or aborted; both exits proceed
// to synthesis.
const (
	phasePlanning  = "planning"
	phaseIterating = "iterating"
	phaseConcluded = "concluded"
	phaseAborted   = "aborted"
)

// Orchestrator drives the bounded plan → act → observe loop for one
// job. It owns no shared state; every Run gets fresh ResearchState and
// operates over the job's exclusively-owned browsing session.
type Orchestrator struct {
	cfg    *config.Config
	llm    LLMProvider
	search SearchProvider
	logger *log.Logger
}

// NewOrchestrator creates an orchestrator. The same instance may serve
// many sequential runs; per-run state lives in Run's locals.
func NewOrchestrator(cfg *config.Config, llm LLMProvider, search SearchProvider, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{cfg: cfg, llm: llm, search: search, logger: logger}
}

// Run executes one research job to completion over the given session.
// progress receives forward-progress heartbeats; the scheduler uses
// them for stall detection. The caller owns the session and closes it.
func (o *Orchestrator) Run(ctx context.Context, profile Profile, session BrowserSession, progress ProgressFunc) (Report, error) {
	if progress == nil {
		progress = func(int, string) {}
	}
	state := NewResearchState(profile)
	agg := NewAggregator(o.cfg.Research, o.cfg.Profile.Domain)
	nav := NewNavigator(session, o.cfg.Profile, o.cfg.Browser, o.logger)

	o.logger.Printf("starting research for %q", profile.Name)
	progress(5, phasePlanning)

	plan, err := o.llm.Complete(ctx, []ChatMessage{
		{Role: "system", Content: planningSystemPrompt},
		{Role: "user", Content: createPlanningPrompt(profile)},
	}, 0.3)
	if err != nil {
		return Report{}, fmt.Errorf("planning failed: %w", err)
	}
	state.Plan = plan

	phase := phaseIterating
	for state.Iteration < o.cfg.Research.MaxIterations {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}

		rec := IterationRecord{Iteration: state.Iteration}
		directive, err := o.llm.Complete(ctx, []ChatMessage{
			{Role: "system", Content: iterationSystemPrompt},
			{Role: "user", Content: createIterationPrompt(state, o.cfg.Research.MaxIterations)},
		}, o.cfg.LLM.Temperature)
		if err != nil {
			// completion failures never abort the run on their own
			rec.Error = err.Error()
			o.advance(state, rec, progress)
			continue
		}
		rec.Directive = directive

		action, ok := ParseAction(directive)
		if !ok {
			o.logger.Printf("iteration %d: unparsable directive", state.Iteration)
			rec.Outcome = "unparsable directive, skipped"
			o.advance(state, rec, progress)
			continue
		}
		rec.Action = string(action.Kind)

		done := o.dispatch(ctx, state, agg, nav, session, action, &rec, &phase)
		o.advance(state, rec, progress)
		if done {
			break
		}
		if state.NavFailures >= o.cfg.Research.MaxNavFailures {
			o.logger.Printf("aborting after %d consecutive navigation failures", state.NavFailures)
			phase = phaseAborted
			break
		}
	}
	if phase == phaseIterating {
		phase = phaseAborted // iteration ceiling reached
	}

	if agg.NeedsExtraRound(state) {
		state.ExtraRoundRun = true
		o.extraRound(ctx, state, agg, nav, session)
	}

	progress(90, "synthesizing")
	report, err := NewSynthesizer(o.llm, o.logger).Synthesize(ctx, state)
	if err != nil {
		return Report{}, err
	}
	progress(100, phase)
	o.logger.Printf("research for %q finished (%s) after %d iterations, %d findings",
		profile.Name, phase, state.Iteration, len(state.Findings))
	return report, nil
}

// dispatch executes one parsed action against the handlers. Returns
// true when the loop should stop (Conclude honored).
func (o *Orchestrator) dispatch(ctx context.Context, state *ResearchState, agg *Aggregator, nav *Navigator, session BrowserSession, action Action, rec *IterationRecord, phase *string) bool {
	switch action.Kind {
	case ActionSearch:
		results, err := o.search.Search(ctx, action.Arg, o.cfg.Search.MaxResults)
		if err != nil {
			rec.Error = fmt.Sprintf("search: %v", err)
			return false
		}
		agg.MergeResults(state, results)
		rec.Outcome = fmt.Sprintf("%d results merged", len(results))
		o.rateSleep(ctx)

	case ActionNavigate:
		if !agg.MarkVisited(state, action.Arg) {
			rec.Outcome = "already visited, skipped"
			return false
		}
		out, err := nav.Visit(ctx, state.Profile, action.Arg)
		if err != nil {
			state.NavFailures++
			rec.Error = err.Error()
			return false
		}
		state.NavFailures = 0
		state.CurrentURL = action.Arg
		switch {
		case out.Skipped:
			rec.Outcome = fmt.Sprintf("profile mismatch (score %d), skipped", out.Match.Score)
		case out.Profile:
			rec.Outcome = fmt.Sprintf("profile verified (score %d)", out.Match.Score)
			if out.Contact != nil {
				state.Contact = out.Contact
			}
		default:
			rec.Outcome = "page loaded"
		}

	case ActionExtract:
		if state.CurrentURL == "" {
			rec.Error = "no page loaded"
			return false
		}
		ex, err := session.Extract(ctx, action.Arg, "")
		if err != nil {
			rec.Error = fmt.Sprintf("extract: %v", err)
			return false
		}
		f := Finding{
			SourceURL:  state.CurrentURL,
			Content:    ex.Content,
			Confidence: ex.Confidence,
			Category:   ex.Category,
			CreatedAt:  time.Now(),
		}
		if agg.Accept(state, f) {
			rec.Outcome = fmt.Sprintf("finding accepted (confidence %.2f)", f.Confidence)
		} else {
			rec.Outcome = fmt.Sprintf("finding rejected (confidence %.2f)", f.Confidence)
		}

	case ActionObserve:
		if state.CurrentURL == "" {
			rec.Error = "no page loaded"
			return false
		}
		obs, err := session.Observe(ctx, action.Arg)
		if err != nil {
			rec.Error = fmt.Sprintf("observe: %v", err)
			return false
		}
		rec.Outcome = fmt.Sprintf("%d elements observed", len(obs))

	case ActionConclude:
		if state.Contact == nil {
			// policy: concluding requires contact information
			rec.Outcome = "conclude ignored, no contact information yet"
			return false
		}
		rec.Outcome = "concluded"
		*phase = phaseConcluded
		return true
	}
	return false
}

// advance appends the iteration record, bumps the counter and reports
// progress.
func (o *Orchestrator) advance(state *ResearchState, rec IterationRecord, progress ProgressFunc) {
	state.Log = append(state.Log, rec)
	state.Iteration++
	pct := 10 + 75*state.Iteration/o.cfg.Research.MaxIterations
	progress(pct, phaseIterating)
}

// extraRound runs the single supplemental evidence round: ask for more
// queries, execute them, visit the best unvisited hits and re-apply
// acceptance filtering.
func (o *Orchestrator) extraRound(ctx context.Context, state *ResearchState, agg *Aggregator, nav *Navigator, session BrowserSession) {
	o.logger.Printf("only %d findings after first pass, running supplemental round", len(state.Findings))

	resp, err := o.llm.Complete(ctx, []ChatMessage{
		{Role: "system", Content: extraQueriesSystemPrompt},
		{Role: "user", Content: createExtraQueriesPrompt(state)},
	}, 0.5)
	if err != nil {
		o.logger.Printf("supplemental query generation failed: %v", err)
		return
	}
	queries := parseQueryList(resp)
	for _, q := range queries {
		results, err := o.search.Search(ctx, q, o.cfg.Search.MaxResults)
		if err != nil {
			o.logger.Printf("supplemental search %q failed: %v", q, err)
			continue
		}
		agg.MergeResults(state, results)
		o.rateSleep(ctx)
	}

	for _, r := range state.SearchResults {
		if len(state.Findings) >= o.cfg.Research.MinFindings {
			break
		}
		if !agg.MarkVisited(state, r.URL) {
			continue
		}
		out, err := nav.Visit(ctx, state.Profile, r.URL)
		if err != nil || out.Skipped {
			continue
		}
		state.CurrentURL = r.URL
		ex, err := session.Extract(ctx, "extract the most relevant facts about "+state.Profile.Name+" from this page", "")
		if err != nil {
			continue
		}
		agg.Accept(state, Finding{
			SourceURL:  r.URL,
			Content:    ex.Content,
			Confidence: ex.Confidence,
			Category:   ex.Category,
			CreatedAt:  time.Now(),
		})
	}
}

// rateSleep pauses between searches without outliving the context.
func (o *Orchestrator) rateSleep(ctx context.Context) {
	if o.cfg.Search.RateDelay <= 0 {
		return
	}
	t := time.NewTimer(o.cfg.Search.RateDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
