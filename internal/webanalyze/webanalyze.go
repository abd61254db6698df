// Package webanalyze fetches a business website and extracts structured
// facts from it: readable content as Markdown, a heuristic business type,
// advertised services, and technology signals. The result seeds the discovery
// conversation's context before the owner has answered anything.
package webanalyze

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/go-shiori/go-readability"

	"github.com/planforge/planforge/internal/models"
)

const (
	// DefaultTimeout bounds one website fetch.
	DefaultTimeout = 15 * time.Second
	// MaxContentSize caps how much of a page body is read.
	MaxContentSize = 2 << 20
	// MaxContentMarkdown caps the extracted Markdown carried into prompts.
	MaxContentMarkdown = 8192
	// maxRedirects bounds redirect chains.
	maxRedirects = 5

	defaultUserAgent = "PlanForge/1.0"
)

// Error variables for better error handling and testability
var (
	ErrUnsupportedScheme = errors.New("URL scheme must be http or https")
	ErrEmptyURL          = errors.New("URL cannot be empty")
)

// Analyzer fetches and analyzes business websites.
type Analyzer struct {
	client    *http.Client
	converter *md.Converter
	userAgent string
}

// Opts holds configuration applied via Option values.
type Opts struct {
	Timeout   time.Duration
	UserAgent string
}

// Option configures the analyzer.
type Option func(*Opts)

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option { return func(o *Opts) { o.Timeout = d } }

// WithUserAgent sets the User-Agent header sent with fetches.
func WithUserAgent(ua string) Option { return func(o *Opts) { o.UserAgent = ua } }

// NewAnalyzer creates a website analyzer.
func NewAnalyzer(opts ...Option) *Analyzer {
	cfg := Opts{Timeout: DefaultTimeout, UserAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(&cfg)
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &Analyzer{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects (max %d)", maxRedirects)
				}
				return nil
			},
		},
		converter: converter,
		userAgent: cfg.UserAgent,
	}
}

// Analyze fetches the given URL and extracts a WebsiteAnalysis. A bare
// domain is assumed to be https.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (*models.WebsiteAnalysis, error) {
	pageURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, err := a.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract readable content from %s: %w", pageURL, err)
	}

	markdown, err := a.converter.ConvertString(article.Content)
	if err != nil {
		slog.Warn("webanalyze.Analyze: markdown conversion failed, using plain text", "url", pageURL, "error", err)
		markdown = article.TextContent
	}
	markdown = truncate(strings.TrimSpace(markdown), MaxContentMarkdown)

	lowerPage := strings.ToLower(string(body))
	analysis := &models.WebsiteAnalysis{
		URL:             pageURL.String(),
		Title:           firstNonEmpty(article.Title, article.SiteName),
		Description:     article.Excerpt,
		BusinessType:    classifyBusiness(strings.ToLower(article.TextContent + " " + article.Title)),
		Services:        extractServices(markdown),
		TechSignals:     detectTechSignals(lowerPage),
		ContentMarkdown: markdown,
	}

	slog.Info("webanalyze.Analyze: website analyzed",
		"url", pageURL,
		"businessType", analysis.BusinessType,
		"services", len(analysis.Services),
		"techSignals", len(analysis.TechSignals))
	return analysis, nil
}

func (a *Analyzer) fetch(ctx context.Context, pageURL *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s returned status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxContentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", pageURL, err)
	}
	return body, nil
}

func normalizeURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrEmptyURL
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}
	return u, nil
}

// businessKeywords maps business types to keywords that indicate them. First
// type whose keywords appear most often wins.
var businessKeywords = []struct {
	Type     string
	Keywords []string
}{
	{"restaurant", []string{"menu", "restaurant", "dine", "reservation", "takeout", "catering"}},
	{"salon", []string{"salon", "haircut", "stylist", "barber", "manicure", "spa"}},
	{"retail", []string{"shop", "store", "cart", "checkout", "in stock", "free shipping"}},
	{"law firm", []string{"attorney", "law firm", "legal", "lawyer", "litigation"}},
	{"medical practice", []string{"clinic", "patient", "appointment", "dental", "physician", "therapy"}},
	{"trades & home services", []string{"plumbing", "electrician", "hvac", "roofing", "landscaping", "contractor", "free estimate"}},
	{"fitness", []string{"gym", "fitness", "training", "yoga", "membership", "class schedule"}},
	{"real estate", []string{"real estate", "listing", "realtor", "property", "for sale"}},
	{"professional services", []string{"consulting", "accounting", "bookkeeping", "agency", "tax"}},
}

func classifyBusiness(text string) string {
	bestType := ""
	bestScore := 0
	for _, entry := range businessKeywords {
		score := 0
		for _, kw := range entry.Keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestType = entry.Type
		}
	}
	if bestScore < 2 {
		return ""
	}
	return bestType
}

// techMarkers maps platform names to substrings that betray their presence
// in page source.
var techMarkers = []struct {
	Name    string
	Markers []string
}{
	{"Shopify", []string{"cdn.shopify.com", "shopify"}},
	{"WordPress", []string{"wp-content", "wp-includes"}},
	{"Wix", []string{"wix.com", "wixstatic"}},
	{"Squarespace", []string{"squarespace"}},
	{"Stripe", []string{"js.stripe.com", "stripe.com"}},
	{"PayPal", []string{"paypal.com"}},
	{"Calendly", []string{"calendly.com"}},
	{"Intercom", []string{"intercom.io", "widget.intercom"}},
	{"Google Analytics", []string{"googletagmanager.com", "google-analytics.com"}},
	{"Mailchimp", []string{"mailchimp", "list-manage.com"}},
	{"Square", []string{"squareup.com"}},
}

func detectTechSignals(lowerPage string) []string {
	var signals []string
	for _, entry := range techMarkers {
		for _, marker := range entry.Markers {
			if strings.Contains(lowerPage, marker) {
				signals = append(signals, entry.Name)
				break
			}
		}
	}
	return signals
}

// extractServices pulls short top-level list items out of the extracted
// Markdown as a rough list of advertised services.
func extractServices(markdown string) []string {
	var services []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- ") && !strings.HasPrefix(trimmed, "* ") {
			continue
		}
		item := strings.TrimSpace(trimmed[2:])
		item = stripMarkdownLinks(item)
		// Long list items are prose, not service names.
		if item == "" || len(item) > 60 {
			continue
		}
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		services = append(services, item)
		if len(services) == 8 {
			break
		}
	}
	return services
}

func stripMarkdownLinks(s string) string {
	// "[label](url)" -> "label"
	for {
		open := strings.Index(s, "[")
		mid := strings.Index(s, "](")
		if open < 0 || mid <= open {
			break
		}
		end := strings.Index(s[mid:], ")")
		if end < 0 {
			break
		}
		s = s[:open] + s[open+1:mid] + s[mid+end+1:]
	}
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
