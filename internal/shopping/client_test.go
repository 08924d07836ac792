package shopping

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(apiKey string) config.ShoppingConfig {
	cfg := config.Default().Shopping
	cfg.APIKey = apiKey
	cfg.RequestsPerSecond = 1000
	cfg.Timeout = 5 * time.Second
	return cfg
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestShoppingSearch(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google_shopping", q.Get("engine"))
		assert.Equal(t, "B000TEST", q.Get("q"))
		assert.Equal(t, "Boston,Massachusetts,United States of America", q.Get("location"))
		assert.Equal(t, "key", q.Get("api_key"))

		fmt.Fprint(w, `{"shopping_results": [
			{"product_id": "123", "title": "Wireless Earbuds", "price": "$24.99", "extracted_price": 24.99, "source": "Walmart"}
		]}`)
	})

	client := NewClient(testConfig("key"), slog.Default(), WithEndpoint(srv.URL))
	results, err := client.ShoppingSearch(context.Background(), "B000TEST")

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "123", results[0].ProductID)
	assert.Equal(t, 24.99, results[0].ExtractedPrice)
	assert.Equal(t, "Walmart", results[0].Source)
}

func TestProductSellers(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "google_shopping_product", q.Get("engine"))
		assert.Equal(t, "123", q.Get("product_id"))
		assert.Equal(t, "true", q.Get("offers"))
		assert.Equal(t, "us", q.Get("gl"))
		assert.Equal(t, "en", q.Get("hl"))

		fmt.Fprint(w, `{"product": {"sellers_results": {"online_sellers": [
			{"name": "Wholesaler A", "price": "$18.99"},
			{"name": "Wholesaler B", "price": "$17.99"}
		]}}}`)
	})

	client := NewClient(testConfig("key"), slog.Default(), WithEndpoint(srv.URL))
	sellers, err := client.ProductSellers(context.Background(), "123")

	require.NoError(t, err)
	require.Len(t, sellers, 2)
	assert.Equal(t, "Wholesaler A", sellers[0].Name)
	assert.Equal(t, "$17.99", sellers[1].Price)
}

func TestFindWholesalers(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Query().Get("engine") {
		case "google_shopping":
			fmt.Fprint(w, `{"shopping_results": [{"product_id": "best"}, {"product_id": "other"}]}`)
		case "google_shopping_product":
			assert.Equal(t, "best", r.URL.Query().Get("product_id"))
			fmt.Fprint(w, `{"sellers_results": {"online_sellers": [{"name": "Wholesaler A", "base_price": "$18.99"}]}}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	client := NewClient(testConfig("key"), slog.Default(), WithEndpoint(srv.URL))
	sellers, err := client.FindWholesalers(context.Background(), "Wireless Earbuds")

	require.NoError(t, err)
	require.Len(t, sellers, 1)
	assert.Equal(t, "Wholesaler A", sellers[0].Name)
	assert.Equal(t, "$18.99", sellers[0].BasePrice)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFindWholesalers_NoMatch(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"error": "Google Shopping hasn't returned any results for this query."}`)
	})

	client := NewClient(testConfig("key"), slog.Default(), WithEndpoint(srv.URL))
	sellers, err := client.FindWholesalers(context.Background(), "zzzz")

	require.NoError(t, err)
	assert.NotNil(t, sellers)
	assert.Empty(t, sellers)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientErrors(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "reported" {
			fmt.Fprint(w, `{"error": "Invalid API key."}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := NewClient(testConfig("key"), slog.Default(), WithEndpoint(srv.URL))

	_, err := client.ShoppingSearch(context.Background(), "status")
	assert.ErrorIs(t, err, ErrAPIFailure)

	_, err = client.ShoppingSearch(context.Background(), "reported")
	assert.ErrorIs(t, err, ErrAPIFailure)
	assert.Contains(t, err.Error(), "Invalid API key")

	_, err = client.ShoppingSearch(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	noKey := NewClient(testConfig(""), slog.Default(), WithEndpoint(srv.URL))
	_, err = noKey.ProductSellers(context.Background(), "123")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
