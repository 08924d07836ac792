package shopping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maltedev/wholesale-finder/internal/config"
	"golang.org/x/time/rate"
)

var (
	ErrMissingAPIKey = errors.New("shopping api key is not configured")
	ErrEmptyQuery    = errors.New("shopping query cannot be empty")
	ErrAPIFailure    = errors.New("shopping api request failed")
)

const (
	// logBodyLimit caps the number of response bytes logged on errors.
	logBodyLimit     = 2048
	noResultsMessage = "hasn't returned any results"
)

// Result is one Google Shopping listing.
type Result struct {
	ProductID      string  `json:"product_id"`
	Title          string  `json:"title"`
	Price          string  `json:"price,omitempty"`
	ExtractedPrice float64 `json:"extracted_price,omitempty"`
	Source         string  `json:"source,omitempty"`
	Link           string  `json:"link,omitempty"`
}

// Seller is one online offer for a product.
type Seller struct {
	Name       string `json:"name"`
	Link       string `json:"link,omitempty"`
	BasePrice  string `json:"base_price,omitempty"`
	TotalPrice string `json:"total_price,omitempty"`
	Price      string `json:"price,omitempty"`
}

type Option func(*Client)

// WithHTTPClient overrides the HTTP client used to call the API.
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
			c.endpoint = trimmed
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

// Client queries SerpApi's Google Shopping engines.
type Client struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	location   string
	country    string
	language   string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(cfg config.ShoppingConfig, logger *slog.Logger, opts ...Option) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   cfg.BaseURL,
		location:   cfg.Location,
		country:    cfg.Country,
		language:   cfg.Language,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger.With("component", "shopping_client"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// ShoppingSearch runs a Google Shopping query; q may be an ASIN, UPC or a
// product title.
func (c *Client) ShoppingSearch(ctx context.Context, q string) ([]Result, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}

	var payload shoppingResponse
	err := c.get(ctx, map[string]string{
		"engine":   "google_shopping",
		"q":        q,
		"location": c.location,
	}, &payload)
	if err != nil {
		return nil, err
	}

	if payload.ShoppingResults == nil {
		return []Result{}, nil
	}
	return payload.ShoppingResults, nil
}

// ProductSellers lists the online offers for a shopping product id.
func (c *Client) ProductSellers(ctx context.Context, productID string) ([]Seller, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, ErrEmptyQuery
	}

	var payload productResponse
	err := c.get(ctx, map[string]string{
		"engine":     "google_shopping_product",
		"product_id": productID,
		"offers":     "true",
		"location":   c.location,
		"gl":         c.country,
		"hl":         c.language,
	}, &payload)
	if err != nil {
		return nil, err
	}

	sellers := payload.Product.SellersResults.OnlineSellers
	if sellers == nil {
		sellers = payload.SellersResults.OnlineSellers
	}
	if sellers == nil {
		return []Seller{}, nil
	}
	return sellers, nil
}

// FindWholesalers looks the identifier up and returns the sellers of the
// best shopping match. No match yields an empty list.
func (c *Client) FindWholesalers(ctx context.Context, identifier string) ([]Seller, error) {
	results, err := c.ShoppingSearch(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || results[0].ProductID == "" {
		c.logger.Info("no shopping match", "identifier", identifier)
		return []Seller{}, nil
	}

	best := results[0]
	c.logger.Info("shopping match found", "identifier", identifier, "product_id", best.ProductID, "title", best.Title)
	return c.ProductSellers(ctx, best.ProductID)
}

func (c *Client) get(ctx context.Context, params map[string]string, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	query := req.URL.Query()
	for k, v := range params {
		if v != "" {
			query.Set(k, v)
		}
	}
	query.Set("api_key", c.apiKey)
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("outgoing request", "engine", params["engine"])

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAPIFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("shopping api returned error", "status", resp.StatusCode, "body", truncate(body, logBodyLimit))
		return fmt.Errorf("%w: status %d", ErrAPIFailure, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		// an empty result set is reported as an error body
		if strings.Contains(apiErr.Error, noResultsMessage) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrAPIFailure, apiErr.Error)
	}
	return nil
}

type shoppingResponse struct {
	ShoppingResults []Result `json:"shopping_results"`
}

type sellersResults struct {
	OnlineSellers []Seller `json:"online_sellers"`
}

type productResponse struct {
	Product struct {
		SellersResults sellersResults `json:"sellers_results"`
	} `json:"product"`
	SellersResults sellersResults `json:"sellers_results"`
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit])
}
