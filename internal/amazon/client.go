package amazon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/maltedev/wholesale-finder/internal/config"
	"golang.org/x/time/rate"
)

var (
	ErrMissingAPIKey = errors.New("amazon product api key is not configured")
	ErrEmptyQuery    = errors.New("search term cannot be empty")
	ErrAPIFailure    = errors.New("amazon product api request failed")
)

const (
	defaultTitle = "No title"
	defaultASIN  = "N/A"
	defaultPrice = "Price not listed"
	// logBodyLimit caps the number of response bytes logged on errors.
	logBodyLimit = 2048
)

// Product is one retail search hit.
type Product struct {
	Title string `json:"title"`
	ASIN  string `json:"asin"`
	Price string `json:"price"`
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint overrides the API endpoint, primarily for testing.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// Client queries the Rainforest product data API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	domain     string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(cfg config.AmazonConfig, logger *slog.Logger, opts ...Option) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    cfg.BaseURL,
		domain:     cfg.Domain,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger.With("component", "amazon_client"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// TopProducts returns up to maxResults search hits for term, filling
// missing fields with display defaults.
func (c *Client) TopProducts(ctx context.Context, term string, maxResults int) ([]Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptyQuery
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("type", "search")
	params.Set("amazon_domain", c.domain)
	params.Set("search_term", term)
	params.Set("page", strconv.Itoa(1))
	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAPIFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("product api returned error", "status", resp.StatusCode, "body", truncate(body, logBodyLimit))
		return nil, fmt.Errorf("%w: status %d", ErrAPIFailure, resp.StatusCode)
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	products := make([]Product, 0, len(payload.SearchResults))
	for _, item := range payload.SearchResults {
		if maxResults > 0 && len(products) == maxResults {
			break
		}
		products = append(products, item.toProduct())
	}

	c.logger.Info("product search finished", "term", term, "results", len(products))
	return products, nil
}

type searchResponse struct {
	SearchResults []searchResult `json:"search_results"`
}

type searchResult struct {
	Title *string `json:"title"`
	ASIN  *string `json:"asin"`
	Price *struct {
		Raw *string `json:"raw"`
	} `json:"price"`
}

func (r searchResult) toProduct() Product {
	p := Product{Title: defaultTitle, ASIN: defaultASIN, Price: defaultPrice}
	if r.Title != nil {
		p.Title = *r.Title
	}
	if r.ASIN != nil {
		p.ASIN = *r.ASIN
	}
	if r.Price != nil && r.Price.Raw != nil {
		p.Price = *r.Price.Raw
	}
	return p
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit])
}
