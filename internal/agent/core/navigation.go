package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/prospector/config"
)

// VisitOutcome is the navigation handler's report for one URL.
type VisitOutcome struct {
	URL      string
	Profile  bool // true when the URL hit the recognized profile site flow
	Skipped  bool // identity did not match; soft skip, not a failure
	Match    *ProfileMatch
	Identity *IdentitySummary
	Contact  *ContactInfo
}

// Navigator executes Navigate actions. It branches into a specialized
// flow for the session-gated recognized-profile site (login, banner
// dismissal, identity verification, contact extraction) versus a
// generic page visit.
type Navigator struct {
	session  BrowserSession
	site     config.ProfileConfig
	browser  config.BrowserConfig
	logger   *log.Logger
	loggedIn bool // login is idempotent and cached per job
}

// NewNavigator binds a navigator to one job's owned session.
func NewNavigator(session BrowserSession, site config.ProfileConfig, browser config.BrowserConfig, logger *log.Logger) *Navigator {
	if logger == nil {
		logger = log.New(log.Writer(), "[NAV] ", log.LstdFlags)
	}
	return &Navigator{session: session, site: site, browser: browser, logger: logger}
}

// IsProfileURL classifies a URL as belonging to the recognized profile site.
func (n *Navigator) IsProfileURL(raw string) bool {
	if n.site.Domain == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(n.site.Domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Visit loads a URL. A returned error is a navigation failure and
// counts toward the run's abort threshold; a non-matching profile page
// returns Skipped=true with a nil error.
func (n *Navigator) Visit(ctx context.Context, profile Profile, rawURL string) (VisitOutcome, error) {
	if n.IsProfileURL(rawURL) {
		return n.visitProfile(ctx, profile, rawURL)
	}
	if err := n.load(ctx, rawURL); err != nil {
		return VisitOutcome{URL: rawURL}, err
	}
	return VisitOutcome{URL: rawURL}, nil
}

func (n *Navigator) load(ctx context.Context, rawURL string) error {
	if err := n.session.Navigate(ctx, rawURL); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	if err := n.session.WaitForQuiescence(ctx, n.browser.QuiesceTimeout); err != nil {
		return fmt.Errorf("page did not settle: %w", err)
	}
	return nil
}

func (n *Navigator) visitProfile(ctx context.Context, profile Profile, rawURL string) (VisitOutcome, error) {
	out := VisitOutcome{URL: rawURL, Profile: true}

	if err := n.ensureLogin(ctx); err != nil {
		return out, err
	}
	if err := n.load(ctx, rawURL); err != nil {
		return out, err
	}
	n.dismissBanners(ctx)

	identity, err := n.extractIdentity(ctx)
	if err != nil {
		return out, fmt.Errorf("identity extraction: %w", err)
	}
	out.Identity = &identity

	match := ScoreProfileMatch(profile, identity)
	out.Match = &match
	if !match.IsMatch {
		n.logger.Printf("profile %s scored %d/100, skipping", rawURL, match.Score)
		out.Skipped = true
		return out, nil
	}

	// Best-effort: a matched profile without visible contact data is fine.
	if contact, err := n.extractContact(ctx); err != nil {
		n.logger.Printf("contact extraction failed on %s: %v", rawURL, err)
	} else if !contact.Empty() {
		out.Contact = &contact
	}
	return out, nil
}

// ensureLogin performs the session-gated login once per job.
func (n *Navigator) ensureLogin(ctx context.Context) error {
	if n.loggedIn {
		return nil
	}
	if n.site.Email == "" || n.site.Password == "" {
		return fmt.Errorf("profile site credentials not configured")
	}
	if err := n.load(ctx, n.site.LoginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	n.dismissBanners(ctx)
	err := n.session.PerformAction(ctx,
		"type the email into the username field, the password into the password field, and submit the login form",
		map[string]string{"email": n.site.Email, "password": n.site.Password})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := n.session.WaitForQuiescence(ctx, n.browser.QuiesceTimeout); err != nil {
		return fmt.Errorf("post-login settle: %w", err)
	}
	n.loggedIn = true
	return nil
}

// bannerAttempts is the prioritized cookie/consent dismissal list.
// Each attempt gets a short timeout; the first success stops the scan.
var bannerAttempts = []string{
	"click the button that accepts all cookies",
	"click the button that rejects non-essential cookies",
	"close the cookie or consent banner",
	"dismiss any modal dialog covering the page",
}

func (n *Navigator) dismissBanners(ctx context.Context) {
	for _, instruction := range bannerAttempts {
		attemptCtx, cancel := context.WithTimeout(ctx, n.browser.ActionTimeout)
		err := n.session.PerformAction(attemptCtx, instruction, nil)
		cancel()
		if err == nil {
			return
		}
	}
}

const identitySchema = `{"name": "string", "headline": "string", "about": "string"}`

func (n *Navigator) extractIdentity(ctx context.Context) (IdentitySummary, error) {
	ex, err := n.session.Extract(ctx,
		"extract the person's full name, professional headline, and about/summary text from this profile page",
		identitySchema)
	if err != nil {
		return IdentitySummary{}, err
	}
	raw, err := ExtractJSON(ex.Content)
	if err != nil {
		return IdentitySummary{}, fmt.Errorf("identity payload: %w", err)
	}
	var id IdentitySummary
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return IdentitySummary{}, fmt.Errorf("parse identity: %w", err)
	}
	return id, nil
}

const contactSchema = `{"email": "string", "phone": "string", "social_links": ["string"]}`

func (n *Navigator) extractContact(ctx context.Context) (ContactInfo, error) {
	ex, err := n.session.Extract(ctx,
		"extract any visible contact information: email address, phone number, and social or website links",
		contactSchema)
	if err != nil {
		return ContactInfo{}, err
	}
	raw, err := ExtractJSON(ex.Content)
	if err != nil {
		return ContactInfo{}, fmt.Errorf("contact payload: %w", err)
	}
	var c ContactInfo
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ContactInfo{}, fmt.Errorf("parse contact: %w", err)
	}
	return c, nil
}

// Empty reports whether no contact field was populated.
func (c ContactInfo) Empty() bool {
	return c.Email == "" && c.Phone == "" && len(c.SocialLinks) == 0
}

// Match score weights. Name contributes up to 40, a context-keyword
// match up to 30, interest overlap up to 30; a total of 60 is required
// to treat the page as the target person.
const (
	nameWeight     = 40
	contextWeight  = 30
	interestWeight = 30
	matchThreshold = 60
)

// ScoreProfileMatch verifies a profile page's identity against the
// research target.
func ScoreProfileMatch(profile Profile, identity IdentitySummary) ProfileMatch {
	var m ProfileMatch

	targetName := strings.ToLower(strings.TrimSpace(profile.Name))
	pageName := strings.ToLower(strings.TrimSpace(identity.Name))
	switch {
	case targetName != "" && targetName == pageName:
		m.NameScore = nameWeight
	case targetName != "" && pageName != "" &&
		(strings.Contains(pageName, targetName) || strings.Contains(targetName, pageName)):
		m.NameScore = nameWeight / 2
	}

	pageText := strings.ToLower(identity.Headline + " " + identity.About)
	if ctxText := strings.ToLower(strings.TrimSpace(profile.Context)); ctxText != "" {
		tokens := keywordTokens(ctxText)
		matched := 0
		for _, tok := range tokens {
			if strings.Contains(pageText, tok) {
				matched++
			}
		}
		if len(tokens) > 0 {
			m.ContextScore = contextWeight * matched / len(tokens)
		}
	}

	if len(profile.Interests) > 0 {
		matched := 0
		for _, interest := range profile.Interests {
			if in := strings.ToLower(strings.TrimSpace(interest)); in != "" && strings.Contains(pageText, in) {
				matched++
			}
		}
		m.InterestScore = interestWeight * matched / len(profile.Interests)
	}

	m.Score = m.NameScore + m.ContextScore + m.InterestScore
	m.IsMatch = m.Score >= matchThreshold
	return m
}

// keywordTokens splits context text into matchable keywords, dropping
// short filler words.
func keywordTokens(s string) []string {
	var out []string
	for _, tok := range strings.Fields(s) {
		tok = strings.Trim(tok, ".,;:()\"'")
		if len(tok) > 2 {
			out = append(out, tok)
		}
	}
	return out
}
