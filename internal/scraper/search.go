package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/events"
	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/maltedev/wholesale-finder/internal/parser"
)

var (
	marketplaceTerms  = regexp.MustCompile(`(?i)amazon|prime|eligible|asin:|brand:|essentials`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	nonSearchChars    = regexp.MustCompile(`[^\w\s-]`)
	searchStopWords   = map[string]bool{"the": true, "and": true, "or": true, "with": true, "for": true, "in": true, "on": true, "at": true}
	wholesaleFallback = "wholesale"
)

// Requester fetches a URL through whatever anti-blocking strategy it has.
type Requester interface {
	SafeRequest(ctx context.Context, url string) (*Page, error)
}

// Search turns a free-text query into scraped product results.
type Search struct {
	session  Requester
	products ProductSource
	site     config.SiteConfig
	logger   *slog.Logger
	progress events.Sink
}

func NewSearch(session Requester, products ProductSource, site config.SiteConfig, logger *slog.Logger, progress events.Sink) *Search {
	return &Search{
		session:  session,
		products: products,
		site:     site,
		logger:   logger.With("component", "search"),
		progress: events.OrDiscard(progress),
	}
}

// SearchProducts tries each query variant in order and returns the
// successful scrapes of the first variant that yields any. Failures are
// logged and never returned.
func (s *Search) SearchProducts(ctx context.Context, term string, maxResults int) []*models.ScrapeResult {
	if maxResults <= 0 {
		maxResults = s.site.MaxSearchResults
	}

	cleaned := CleanSearchTerm(term)
	variants := SearchVariations(cleaned)

	s.logger.Info("searching products", "term", term, "cleaned", cleaned, "variants", len(variants))
	s.progress.OnProgress(ctx, events.New(events.SearchStarted, "searching products",
		"term", term, "cleaned", cleaned, "variants", variants))

	for i, variant := range variants {
		if i > 0 {
			if err := sleep(ctx, s.site.VariantDelay); err != nil {
				break
			}
		}

		s.progress.OnProgress(ctx, events.New(events.SearchVariant, "trying search variant",
			"variant", variant, "index", i))

		results, err := s.searchSingleTerm(ctx, variant, maxResults)
		if err != nil {
			s.logger.Warn("search variant failed", "variant", variant, "error", err)
			s.progress.OnProgress(ctx, events.New(events.SearchVariantFailed, "search variant failed",
				"variant", variant, "error", err.Error()))
			continue
		}

		if len(results) > 0 {
			s.progress.OnProgress(ctx, events.New(events.SearchCompleted, "search completed",
				"variant", variant, "results", len(results)))
			return results
		}
	}

	s.progress.OnProgress(ctx, events.New(events.SearchCompleted, "search completed", "results", 0))
	return []*models.ScrapeResult{}
}

func (s *Search) searchSingleTerm(ctx context.Context, term string, maxResults int) ([]*models.ScrapeResult, error) {
	searchURL := s.SearchURL(term)

	page, err := s.session.SafeRequest(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	doc, err := page.Document()
	if err != nil {
		return nil, err
	}

	base := page.URL
	if base == "" {
		base = searchURL
	}
	productURLs := s.ExtractProductURLs(doc, base, maxResults)
	s.logger.Info("found product links", "term", term, "count", len(productURLs))

	var results []*models.ScrapeResult
	for i, productURL := range productURLs {
		if i > 0 {
			if err := sleep(ctx, s.site.ProductDelay); err != nil {
				break
			}
		}
		result := s.products.ScrapeProduct(ctx, productURL)
		if result != nil && result.Success {
			results = append(results, result)
		}
	}
	return results, nil
}

// SearchURL builds the site search URL for term.
func (s *Search) SearchURL(term string) string {
	query := strings.ReplaceAll(url.QueryEscape(term), "+", "%20")
	return fmt.Sprintf("%s/wholesale/search.do?act=search&sus=&searchkey=%s",
		strings.TrimRight(s.site.BaseURL, "/"), query)
}

// ExtractProductURLs collects up to max distinct product links from a
// results page using the configured link selectors in order.
func (s *Search) ExtractProductURLs(doc *goquery.Document, base string, max int) []string {
	seen := make(map[string]bool)
	var urls []string

	for _, selector := range s.site.Selectors.ProductLink {
		doc.Find(selector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if len(urls) >= max {
				return false
			}
			href, ok := a.Attr("href")
			if !ok || !strings.Contains(href, "/product/") {
				return true
			}
			full := parser.ResolveURL(base, strings.TrimSpace(href))
			if seen[full] || !parser.IsValidDHgateURL(full) {
				return true
			}
			seen[full] = true
			urls = append(urls, full)
			return true
		})
		if len(urls) >= max {
			break
		}
	}
	return urls
}

// TestConnection reports the first site URL reachable through the session.
func (s *Search) TestConnection(ctx context.Context) (string, error) {
	base := strings.TrimRight(s.site.BaseURL, "/")
	candidates := []string{base + "/robots.txt"}
	if s.site.MobileBaseURL != "" {
		candidates = append(candidates, strings.TrimRight(s.site.MobileBaseURL, "/")+"/")
	}
	candidates = append(candidates, base+"/")

	var lastErr error
	for _, candidate := range candidates {
		if _, err := s.session.SafeRequest(ctx, candidate); err != nil {
			lastErr = err
			s.logger.Warn("connection test failed", "url", candidate, "error", err)
			continue
		}
		s.logger.Info("connection test succeeded", "url", candidate)
		return candidate, nil
	}
	return "", fmt.Errorf("site unreachable: %w", lastErr)
}

// CleanSearchTerm strips marketplace boilerplate, punctuation and stop
// words from a query.
func CleanSearchTerm(term string) string {
	cleaned := marketplaceTerms.ReplaceAllString(term, "")
	cleaned = strings.TrimSpace(whitespaceRun.ReplaceAllString(cleaned, " "))
	cleaned = nonSearchChars.ReplaceAllString(cleaned, "")

	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, w := range words {
		if !searchStopWords[strings.ToLower(w)] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// SearchVariations lists the queries tried for a cleaned term, most
// specific first, ending with a generic wholesale query.
func SearchVariations(term string) []string {
	var variants []string
	add := func(v string) {
		if v = strings.TrimSpace(v); v != "" {
			variants = append(variants, v)
		}
	}

	add(term)
	if term != "" && !strings.Contains(strings.ToLower(term), wholesaleFallback) {
		add(term + " " + wholesaleFallback)
	}
	// single-word terms are already covered by term itself
	if words := strings.Fields(term); len(words) > 1 {
		add(words[0])
		add(words[len(words)-1])
	}
	add(wholesaleFallback)
	return variants
}
