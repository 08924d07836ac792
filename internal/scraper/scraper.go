package scraper

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/maltedev/wholesale-finder/internal/parser"
)

var (
	ErrAllStrategiesFailed = errors.New("all request strategies failed")
	ErrSearchUnavailable   = errors.New("could not access search page")
	ErrUnexpectedStatus    = errors.New("unexpected status code")
)

// Page is a fetched HTTP response with its body fully read.
type Page struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (p *Page) Document() (*goquery.Document, error) {
	return parser.Parse(p.Body)
}

// Fetcher retrieves a single page. A non-2xx status is returned as a Page,
// not as an error.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// ProductSource scrapes one product URL into a result record.
type ProductSource interface {
	ScrapeProduct(ctx context.Context, url string) *models.ScrapeResult
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
