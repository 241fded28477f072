// Package content turns a source URL into the plain text study material is
// generated from.
package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/Enchanted-Dev-stack/we-study/internal/errs"
	"github.com/Enchanted-Dev-stack/we-study/internal/logger"
)

type PageConfig struct {
	RateLimit      float64 // requests per second
	Timeout        time.Duration
	UserAgent      string
	IgnorePatterns []string
}

// Page is the readable part of one HTML page.
type Page struct {
	URL   string
	Title string
	Text  string
}

// PageSource extracts the main text of web pages.
type PageSource struct {
	config  PageConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewPageSource(config PageConfig, log *logger.Logger) *PageSource {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.UserAgent == "" {
		config.UserAgent = "we-study/1.0"
	}

	return &PageSource{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		log:     logger.OrNop(log),
	}
}

// Extract returns the cleaned main text of the page at rawURL.
func (s *PageSource) Extract(ctx context.Context, rawURL string) (string, error) {
	page, err := s.Fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return page.Text, nil
}

// Fetch downloads rawURL and extracts its title and main text.
func (s *PageSource) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if !s.shouldProcessURL(rawURL) {
		return nil, errs.Newf(errs.KindContentUnavailable, "fetch page", "unsupported url: %s", rawURL)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.New(errs.KindContentUnavailable, "fetch page", err)
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.New(errs.KindContentUnavailable, "fetch page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.KindContentUnavailable, "fetch page", "received status code %d for URL: %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindContentUnavailable, "parse page", err)
	}

	page := &Page{
		URL:   rawURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  extractMainContent(doc),
	}
	s.log.Debug("page extracted", "url", rawURL, "title", page.Title, "bytes", len(page.Text))
	return page, nil
}

func (s *PageSource) shouldProcessURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(rawURL, pattern) {
			return false
		}
	}
	return true
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()

	selectors := []string{
		"main",
		"article",
		"[role=main]",
		".content",
		"#content",
		".post",
		".entry-content",
	}

	var text string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			text = selected.First().Text()
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}

	return cleanContent(text)
}

func (p *Page) String() string {
	return fmt.Sprintf("%s (%s)", p.Title, p.URL)
}
