// Package browser implements the browsing collaborator on top of a
// headless Chrome instance. One Session is owned by exactly one job for
// its lifetime; the underlying page state is not safe for concurrent
// access, so ownership is the concurrency model.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/prospector/config"
	"github.com/mohammad-safakhou/prospector/internal/agent/core"
)

// Session is a chromedp-backed core.BrowserSession.
type Session struct {
	cfg    config.BrowserConfig
	llm    core.LLMProvider
	logger *log.Logger

	ctx          context.Context
	cancelBrowse context.CancelFunc
	cancelAlloc  context.CancelFunc
}

var _ core.BrowserSession = (*Session)(nil)

// NewSession launches a browsing session. The caller must Close it on
// every exit path.
func NewSession(ctx context.Context, cfg config.BrowserConfig, llm core.LLMProvider, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[BROWSER] ", log.LstdFlags)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	bctx, cancelBrowse := chromedp.NewContext(actx)

	// start the browser process eagerly so failures surface here, not
	// in the middle of a run
	if err := chromedp.Run(bctx); err != nil {
		cancelBrowse()
		cancelAlloc()
		return nil, fmt.Errorf("browser start: %w", err)
	}
	return &Session{cfg: cfg, llm: llm, logger: logger, ctx: bctx, cancelBrowse: cancelBrowse, cancelAlloc: cancelAlloc}, nil
}

// Close tears the browser down. Safe to call more than once.
func (s *Session) Close() error {
	if s.cancelBrowse != nil {
		s.cancelBrowse()
		s.cancelBrowse = nil
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
		s.cancelAlloc = nil
	}
	return nil
}

// run executes chromedp actions under both the caller's deadline and
// the session's browser context.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate loads a URL and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("invalid url")
	}
	return s.run(ctx, s.cfg.NavTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// WaitForQuiescence gives scripts a bounded window to settle.
func (s *Session) WaitForQuiescence(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.cfg.QuiesceTimeout
	}
	settle := timeout / 3
	if settle > 2*time.Second {
		settle = 2 * time.Second
	}
	return s.run(ctx, timeout,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
	)
}

// Selector groups for instruction-driven page interaction. The handler
// maps a natural-language instruction onto prioritized selector
// attempts rather than exposing raw selectors to callers.
var (
	acceptSelectors = []string{
		`button[id*="accept" i]`,
		`button[class*="accept" i]`,
		`button[aria-label*="accept" i]`,
		`[data-testid*="accept" i]`,
	}
	rejectSelectors = []string{
		`button[id*="reject" i]`,
		`button[class*="reject" i]`,
		`button[id*="decline" i]`,
	}
	dismissSelectors = []string{
		`button[aria-label*="close" i]`,
		`button[class*="close" i]`,
		`[role="dialog"] button`,
	}
)

// PerformAction executes an interaction instruction. Credentials and
// other inputs arrive via variables so they never appear in prompts or
// logs.
func (s *Session) PerformAction(ctx context.Context, instruction string, variables map[string]string) error {
	lower := strings.ToLower(instruction)

	if email, ok := variables["email"]; ok {
		password := variables["password"]
		return s.run(ctx, s.cfg.NavTimeout,
			chromedp.SendKeys(`input[type="email"], input[name*="email" i], input[id*="username" i], input[name*="session_key"]`, email, chromedp.ByQuery),
			chromedp.SendKeys(`input[type="password"]`, password, chromedp.ByQuery),
			chromedp.Click(`button[type="submit"], input[type="submit"]`, chromedp.ByQuery),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}

	var selectors []string
	switch {
	case strings.Contains(lower, "accept"):
		selectors = acceptSelectors
	case strings.Contains(lower, "reject"):
		selectors = rejectSelectors
	case strings.Contains(lower, "close") || strings.Contains(lower, "dismiss"):
		selectors = dismissSelectors
	default:
		return fmt.Errorf("unsupported instruction: %s", instruction)
	}
	var lastErr error
	for _, sel := range selectors {
		if err := s.run(ctx, s.cfg.ActionTimeout, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible)); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("no matching element: %w", lastErr)
}

// pageText returns readable text for the current page, truncated to
// the configured budget.
func (s *Session) pageText(ctx context.Context) (string, string, error) {
	var html, location string
	if err := s.run(ctx, s.cfg.NavTimeout,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", "", fmt.Errorf("read page: %w", err)
	}
	pageURL, err := url.Parse(location)
	if err != nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	text := strings.TrimSpace(article.TextContent)
	if err != nil || text == "" {
		// readability gives up on sparse pages; fall back to raw HTML
		text = html
	}
	if len(text) > s.cfg.MaxContentChars {
		text = text[:s.cfg.MaxContentChars]
	}
	return text, location, nil
}

const extractSystemPrompt = `You extract facts from web page text. Respond ONLY with a JSON object:
{"content": "...", "confidence": 0.0-1.0, "category": "profile|news|achievement|general"}
confidence reflects how well the page text answers the instruction.
If a content schema is given, "content" must be a JSON document matching it, serialized as a string.`

// Extract pulls structured facts off the current page per the
// instruction, optionally shaped by a schema.
func (s *Session) Extract(ctx context.Context, instruction, schema string) (core.Extraction, error) {
	text, location, err := s.pageText(ctx)
	if err != nil {
		return core.Extraction{}, err
	}
	user := fmt.Sprintf("Instruction: %s\n", instruction)
	if schema != "" {
		user += fmt.Sprintf("Content schema: %s\n", schema)
	}
	user += fmt.Sprintf("\nPage URL: %s\nPage text:\n%s", location, text)

	resp, err := s.llm.Complete(ctx, []core.ChatMessage{
		{Role: "system", Content: extractSystemPrompt},
		{Role: "user", Content: user},
	}, 0.2)
	if err != nil {
		return core.Extraction{}, fmt.Errorf("extract completion: %w", err)
	}
	raw, err := core.ExtractJSON(resp)
	if err != nil {
		return core.Extraction{}, fmt.Errorf("extract payload: %w", err)
	}
	var ex core.Extraction
	if err := json.Unmarshal([]byte(raw), &ex); err != nil {
		return core.Extraction{}, fmt.Errorf("parse extraction: %w", err)
	}
	if ex.Confidence < 0 {
		ex.Confidence = 0
	}
	if ex.Confidence > 1 {
		ex.Confidence = 1
	}
	if ex.Category == "" {
		ex.Category = "general"
	}
	return ex, nil
}

// Observe lists visible interactive elements relevant to the
// instruction: links, buttons and headings with their text.
func (s *Session) Observe(ctx context.Context, instruction string) ([]string, error) {
	const collectJS = `
		Array.from(document.querySelectorAll('a[href], button, h1, h2, h3'))
			.map(el => el.tagName.toLowerCase() + ': ' + (el.innerText || '').trim().slice(0, 120) +
				(el.href ? ' -> ' + el.href : ''))
			.filter(d => d.length > 4)
			.slice(0, 50)`
	var descriptions []string
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Evaluate(collectJS, &descriptions)); err != nil {
		return nil, fmt.Errorf("observe: %w", err)
	}
	// light keyword filter; an empty filter result falls back to everything
	var keywords []string
	for _, tok := range strings.Fields(strings.ToLower(instruction)) {
		if len(tok) > 3 {
			keywords = append(keywords, tok)
		}
	}
	if len(keywords) == 0 {
		return descriptions, nil
	}
	var filtered []string
	for _, d := range descriptions {
		lower := strings.ToLower(d)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				filtered = append(filtered, d)
				break
			}
		}
	}
	if len(filtered) == 0 {
		return descriptions, nil
	}
	return filtered, nil
}
