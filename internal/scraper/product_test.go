package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/events"
	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProductHTML = `<html><body>
	<h1>Wireless Bluetooth Earbuds</h1>
	<span class="price">US $8.99</span>
	<span class="seller-name">Audio Factory</span>
	<button>Buy Now</button>
</body></html>`

func testSite(baseURL string) config.SiteConfig {
	site := config.DefaultSite()
	site.BaseURL = baseURL
	site.MobileBaseURL = ""
	site.RequestDelay = 0
	site.ProductDelay = 0
	site.VariantDelay = 0
	site.WarmupDelay = 0
	site.MinInterval = 0
	site.JitterMin = 0
	site.JitterMax = 0
	return site
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) OnProgress(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// countingServer serves fixed pages by path and counts requests per path.
type countingServer struct {
	*httptest.Server
	mu     sync.Mutex
	hits   map[string]int
	pages  map[string]string
	status map[string]int
}

func newCountingServer(t *testing.T) *countingServer {
	cs := &countingServer{
		hits:   make(map[string]int),
		pages:  make(map[string]string),
		status: make(map[string]int),
	}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		cs.hits[r.URL.Path]++
		body, ok := cs.pages[r.URL.Path]
		status := cs.status[r.URL.Path]
		cs.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		if status == 0 {
			status = http.StatusOK
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *countingServer) hitCount(path string) int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.hits[path]
}

func (cs *countingServer) totalHits() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	total := 0
	for _, n := range cs.hits {
		total += n
	}
	return total
}

func newTestScraper(site config.SiteConfig, sink events.Sink) *ProductScraper {
	return NewProductScraper(NewHTTPFetcher(site), site, slog.Default(), sink)
}

func TestProductScraper_ValidProduct(t *testing.T) {
	srv := newCountingServer(t)
	srv.pages["/product/earbuds/1.html"] = testProductHTML
	sink := &recordingSink{}

	s := newTestScraper(testSite(srv.URL), sink)
	result := s.ScrapeProduct(context.Background(), srv.URL+"/product/earbuds/1.html")

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "dhgate", result.Site)
	assert.Equal(t, "Wireless Bluetooth Earbuds", result.Title)
	require.NotNil(t, result.Price)
	assert.Equal(t, 8.99, *result.Price)
	assert.Equal(t, "USD", result.Currency)
	assert.Equal(t, "Audio Factory", result.Seller)
	assert.True(t, result.Available())
	assert.Equal(t, models.StockInStock, result.Availability.StockStatus)
	assert.Equal(t, []events.Type{events.ScrapeStarted, events.ScrapeCompleted}, sink.types())
}

func TestProductScraper_NotFoundShortCircuits(t *testing.T) {
	srv := newCountingServer(t)
	// product markup on a 404 page must not be extracted
	srv.pages["/product/gone/1.html"] = testProductHTML
	srv.status["/product/gone/1.html"] = http.StatusNotFound

	s := newTestScraper(testSite(srv.URL), nil)
	result := s.ScrapeProduct(context.Background(), srv.URL+"/product/gone/1.html")

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorNotFound, result.Error)
	assert.Empty(t, result.Title)
	assert.Nil(t, result.Price)
	assert.Equal(t, 1, srv.totalHits())
}

func TestProductScraper_ErrorPhrase(t *testing.T) {
	srv := newCountingServer(t)
	srv.pages["/product/x/1.html"] = `<html><body><h1>Oops</h1><span class="price">$1</span><p>Product not found</p></body></html>`

	result := newTestScraper(testSite(srv.URL), nil).ScrapeProduct(context.Background(), srv.URL+"/product/x/1.html")
	assert.Equal(t, models.ErrorNotFound, result.Error)
}

func TestProductScraper_FollowsCategory(t *testing.T) {
	srv := newCountingServer(t)
	srv.pages["/wholesale/earbuds.html"] = `<html><body>
		<a href="/product/earbuds/1.html">Earbuds</a>
		<a href="/product/earbuds/2.html">More earbuds</a>
	</body></html>`
	srv.pages["/product/earbuds/1.html"] = testProductHTML
	sink := &recordingSink{}

	s := newTestScraper(testSite(srv.URL), sink)
	result := s.ScrapeProduct(context.Background(), srv.URL+"/wholesale/earbuds.html")

	require.True(t, result.Success, result.Message)
	assert.Equal(t, srv.URL+"/product/earbuds/1.html", result.URL)
	assert.Equal(t, "Wireless Bluetooth Earbuds", result.Title)
	assert.Equal(t, 0, srv.hitCount("/product/earbuds/2.html"))
	assert.Contains(t, sink.types(), events.ScrapeCategoryFollow)
}

func TestProductScraper_CategoryWithoutProducts(t *testing.T) {
	srv := newCountingServer(t)
	srv.pages["/wholesale/empty.html"] = `<html><body><p>No results</p></body></html>`

	result := newTestScraper(testSite(srv.URL), nil).ScrapeProduct(context.Background(), srv.URL+"/wholesale/empty.html")

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorCategoryNoProducts, result.Error)
}

func TestProductScraper_CategoryDepthBound(t *testing.T) {
	srv := newCountingServer(t)
	// every page is a dense listing whose first link is the next listing
	for i := 0; i < 10; i++ {
		var b strings.Builder
		fmt.Fprintf(&b, `<html><body><ul>`)
		for j := 0; j < 6; j++ {
			fmt.Fprintf(&b, `<li class="goods-item"><a href="/product/loop/%d.html">item</a></li>`, i+1)
		}
		b.WriteString(`</ul></body></html>`)
		srv.pages[fmt.Sprintf("/product/loop/%d.html", i)] = b.String()
	}

	site := testSite(srv.URL)
	site.MaxCategoryDepth = 3

	result := newTestScraper(site, nil).ScrapeProduct(context.Background(), srv.URL+"/product/loop/0.html")

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorCategoryDepthExceeded, result.Error)
	assert.Equal(t, 4, srv.totalHits())
}

func TestProductScraper_InvalidPage(t *testing.T) {
	srv := newCountingServer(t)
	srv.pages["/product/blank/1.html"] = `<html><body><h1>Just a heading</h1></body></html>`

	result := newTestScraper(testSite(srv.URL), nil).ScrapeProduct(context.Background(), srv.URL+"/product/blank/1.html")

	assert.False(t, result.Success)
	assert.Equal(t, models.ErrorInvalidProductPage, result.Error)
}

type stubFetcher struct {
	fetch func(ctx context.Context, url string) (*Page, error)
}

func (s stubFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	return s.fetch(ctx, url)
}

func TestProductScraper_FetchErrorsAreContained(t *testing.T) {
	site := testSite("https://www.dhgate.com")

	t.Run("network error", func(t *testing.T) {
		f := stubFetcher{fetch: func(context.Context, string) (*Page, error) {
			return nil, errors.New("connection reset by peer")
		}}
		result := NewProductScraper(f, site, slog.Default(), nil).ScrapeProduct(context.Background(), "https://www.dhgate.com/product/1.html")

		assert.Equal(t, models.ErrorScrapingFailed, result.Error)
		assert.Contains(t, result.Message, "connection reset")
	})

	t.Run("panic", func(t *testing.T) {
		f := stubFetcher{fetch: func(context.Context, string) (*Page, error) {
			panic("parser exploded")
		}}
		result := NewProductScraper(f, site, slog.Default(), nil).ScrapeProduct(context.Background(), "https://www.dhgate.com/product/1.html")

		require.NotNil(t, result)
		assert.Equal(t, models.ErrorScrapingFailed, result.Error)
		assert.Equal(t, "parser exploded", result.Message)
	})
}

func TestProductScraper_ScrapeProducts(t *testing.T) {
	srv := newCountingServer(t)
	srv.pages["/product/earbuds/1.html"] = testProductHTML
	srv.pages["/product/earbuds/2.html"] = testProductHTML

	urls := []string{
		srv.URL + "/product/earbuds/1.html",
		srv.URL + "/product/missing/9.html",
		srv.URL + "/product/earbuds/2.html",
	}
	results := newTestScraper(testSite(srv.URL), nil).ScrapeProducts(context.Background(), urls)

	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, models.ErrorNotFound, results[1].Error)
	assert.True(t, results[2].Success)
	assert.Equal(t, urls[2], results[2].URL)
}

func TestProductScraper_ScrapeProductsCancelled(t *testing.T) {
	srv := newCountingServer(t)
	srv.pages["/product/earbuds/1.html"] = testProductHTML

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	urls := []string{srv.URL + "/product/earbuds/1.html", srv.URL + "/product/earbuds/1.html"}
	results := newTestScraper(testSite(srv.URL), nil).ScrapeProducts(ctx, urls)

	require.Len(t, results, 2)
	for _, r := range results {
		require.NotNil(t, r)
		assert.False(t, r.Success)
		assert.Equal(t, models.ErrorScrapingFailed, r.Error)
	}
	assert.Equal(t, 0, srv.totalHits())
}
