package amazon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(apiKey string) config.AmazonConfig {
	cfg := config.Default().Amazon
	cfg.APIKey = apiKey
	cfg.RequestsPerSecond = 1000
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestTopProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("api_key"))
		assert.Equal(t, "search", q.Get("type"))
		assert.Equal(t, "amazon.com", q.Get("amazon_domain"))
		assert.Equal(t, "wireless earbuds", q.Get("search_term"))
		assert.Equal(t, "1", q.Get("page"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"search_results": [
			{"title": "Wireless Earbuds", "asin": "B0001", "price": {"raw": "$29.99", "value": 29.99}},
			{"asin": "B0002"},
			{"title": "Earbuds Case", "price": {}},
			{"title": "Fourth"}
		]}`)
	}))
	defer srv.Close()

	client := NewClient(testConfig("secret"), slog.Default(), WithEndpoint(srv.URL))
	products, err := client.TopProducts(context.Background(), "wireless earbuds", 3)
	require.NoError(t, err)

	assert.Equal(t, []Product{
		{Title: "Wireless Earbuds", ASIN: "B0001", Price: "$29.99"},
		{Title: "No title", ASIN: "B0002", Price: "Price not listed"},
		{Title: "Earbuds Case", ASIN: "N/A", Price: "Price not listed"},
	}, products)
}

func TestTopProducts_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	client := NewClient(testConfig("secret"), slog.Default(), WithEndpoint(srv.URL))
	products, err := client.TopProducts(context.Background(), "nothing", 10)

	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestTopProducts_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"request_info": {"success": false}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	t.Run("status", func(t *testing.T) {
		client := NewClient(testConfig("bad"), slog.Default(), WithEndpoint(srv.URL))
		_, err := client.TopProducts(context.Background(), "earbuds", 5)
		assert.ErrorIs(t, err, ErrAPIFailure)
	})

	t.Run("missing key", func(t *testing.T) {
		client := NewClient(testConfig(""), slog.Default(), WithEndpoint(srv.URL))
		_, err := client.TopProducts(context.Background(), "earbuds", 5)
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("empty term", func(t *testing.T) {
		client := NewClient(testConfig("secret"), slog.Default(), WithEndpoint(srv.URL))
		_, err := client.TopProducts(context.Background(), "  ", 5)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})
}
