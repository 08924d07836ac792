package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/events"
	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/maltedev/wholesale-finder/internal/parser"
)

// ProductScraper resolves a URL to a product page and extracts it. Listing
// pages are followed to their first product for at most maxDepth hops.
type ProductScraper struct {
	fetcher   Fetcher
	validator *parser.Validator
	extractor *parser.Extractor
	site      config.SiteConfig
	maxDepth  int
	logger    *slog.Logger
	progress  events.Sink
	now       func() time.Time
}

func NewProductScraper(fetcher Fetcher, site config.SiteConfig, logger *slog.Logger, progress events.Sink) *ProductScraper {
	return &ProductScraper{
		fetcher:   fetcher,
		validator: parser.NewValidator(site),
		extractor: parser.NewExtractor(site),
		site:      site,
		maxDepth:  site.MaxCategoryDepth,
		logger:    logger.With("component", "product_scraper"),
		progress:  events.OrDiscard(progress),
		now:       time.Now,
	}
}

// ScrapeProduct never returns nil and never panics; every failure becomes a
// result with Success false and an error kind.
func (s *ProductScraper) ScrapeProduct(ctx context.Context, url string) (result *models.ScrapeResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during scrape", "url", url, "panic", r)
			result = s.fail(ctx, url, models.ErrorScrapingFailed, fmt.Sprint(r))
		}
	}()

	s.progress.OnProgress(ctx, events.New(events.ScrapeStarted, "scraping product", "url", url))

	target := url
	for depth := 0; ; depth++ {
		page, err := s.fetcher.Fetch(ctx, target)
		if err != nil {
			return s.fail(ctx, target, models.ErrorScrapingFailed, err.Error())
		}

		doc, err := page.Document()
		if err != nil {
			return s.fail(ctx, target, models.ErrorScrapingFailed, err.Error())
		}

		pageURL := target
		if page.URL != "" {
			pageURL = page.URL
		}

		if s.validator.IsNotFound(doc, page.StatusCode) {
			return s.fail(ctx, target, models.ErrorNotFound, fmt.Sprintf("page not found (status %d)", page.StatusCode))
		}

		if s.validator.IsCategoryPage(doc, pageURL) {
			next, ok := parser.FirstProductURL(doc, pageURL)
			if !ok {
				return s.fail(ctx, target, models.ErrorCategoryNoProducts, "no product links on listing page")
			}
			if depth >= s.maxDepth {
				return s.fail(ctx, target, models.ErrorCategoryDepthExceeded,
					fmt.Sprintf("listing pages nested deeper than %d", s.maxDepth))
			}
			s.progress.OnProgress(ctx, events.New(events.ScrapeCategoryFollow, "following first product on listing page",
				"from", target, "to", next, "depth", depth+1))
			target = next
			continue
		}

		if !s.validator.IsValidProductPage(doc) {
			return s.fail(ctx, target, models.ErrorInvalidProductPage, "missing title or price markers")
		}

		result := s.assemble(target, doc)
		completeness := result.Completeness()
		s.logger.Info("product scraped", "url", target, "title", result.Title,
			"price", result.PriceValue(), "completeness", completeness.Score)
		s.progress.OnProgress(ctx, events.New(events.ScrapeCompleted, "product scraped",
			"url", target, "title", result.Title, "missing_fields", completeness.MissingFields))
		return result
	}
}

// ScrapeProducts scrapes urls one at a time with the product delay between
// them. The result slice is index-aligned with urls; entries not reached
// before ctx ends are failed results carrying the context error.
func (s *ProductScraper) ScrapeProducts(ctx context.Context, urls []string) []*models.ScrapeResult {
	results := make([]*models.ScrapeResult, len(urls))
	for i, url := range urls {
		if i > 0 {
			if err := sleep(ctx, s.site.ProductDelay); err != nil {
				for j := i; j < len(urls); j++ {
					results[j] = s.fail(ctx, urls[j], models.ErrorScrapingFailed, err.Error())
				}
				break
			}
		}
		if err := ctx.Err(); err != nil {
			results[i] = s.fail(ctx, url, models.ErrorScrapingFailed, err.Error())
			continue
		}
		results[i] = s.ScrapeProduct(ctx, url)
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	s.logger.Info("batch scrape finished", "total", len(urls), "succeeded", succeeded)
	return results
}

func (s *ProductScraper) assemble(url string, doc *goquery.Document) *models.ScrapeResult {
	price := s.extractor.ExtractPrice(doc)
	details := s.extractor.ExtractDetails(doc)

	return &models.ScrapeResult{
		URL:               url,
		Site:              s.site.Name,
		Success:           true,
		ScrapedAt:         s.now(),
		Title:             details.Title,
		Price:             price.Price,
		Currency:          price.Currency,
		OriginalPriceText: price.OriginalText,
		PriceRange:        price.PriceRange,
		BulkPricing:       price.BulkPricing,
		Availability:      s.extractor.ExtractAvailability(doc),
		Shipping:          s.extractor.ExtractShipping(doc),
		Seller:            details.Seller,
		Rating:            details.Rating,
		ReviewCount:       details.ReviewCount,
		Images:            details.Images,
		Specifications:    details.Specifications,
		HasBulkPricing:    s.validator.HasBulkPricing(doc),
		ContactSeller:     s.validator.IsContactSellerPage(doc),
	}
}

func (s *ProductScraper) fail(ctx context.Context, url string, kind models.ErrorKind, message string) *models.ScrapeResult {
	s.logger.Warn("scrape failed", "url", url, "error", kind, "message", message)
	s.progress.OnProgress(ctx, events.New(events.ScrapeFailed, "scrape failed",
		"url", url, "error", string(kind), "message", message))

	result := models.NewFailedResult(url, s.site.Name, kind, message)
	result.ScrapedAt = s.now()
	return result
}
