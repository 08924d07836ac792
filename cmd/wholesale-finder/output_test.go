package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/maltedev/wholesale-finder/internal/wholesale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRankedAndComparison(t *testing.T) {
	price := 5.0
	results := []*models.RankedResult{{
		ScrapeResult: models.ScrapeResult{
			URL:          "https://www.dhgate.com/product/earbuds/1.html",
			Success:      true,
			Title:        "TWS Wireless Earbuds Bluetooth 5.3",
			Price:        &price,
			Currency:     "USD",
			Availability: models.Availability{Available: true, StockStatus: models.StockInStock},
			BulkPricing:  []models.BulkTier{{Quantity: 10, Price: 4}},
		},
		SimilarityScore: 0.85,
	}}

	var buf bytes.Buffer
	renderRanked(&buf, "Wireless Earbuds", results)
	out := buf.String()
	assert.Contains(t, out, "TWS Wireless Earbuds Bluetooth 5.3")
	assert.Contains(t, out, "USD 5.00")
	assert.Contains(t, out, "0.85")

	comparison, err := wholesale.Compare(20, results)
	require.NoError(t, err)
	buf.Reset()
	renderComparison(&buf, comparison)
	out = buf.String()
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "10+ @ $4.00 (80%)")
}

func TestRenderScrape_Failure(t *testing.T) {
	var buf bytes.Buffer
	renderScrape(&buf, models.NewFailedResult("https://www.dhgate.com/product/x/1.html", "dhgate", models.ErrorNotFound, "HTTP 404"))
	assert.Contains(t, buf.String(), "not_found")
	assert.Contains(t, buf.String(), "HTTP 404")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]int{"count": 2}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["count"])
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "short", shorten("short", 10))
	assert.Equal(t, "abc...", shorten("abcdef", 3))
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	var names []string
	for _, cmd := range app.Commands {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"find", "search", "scrape", "check", "amazon", "sellers"}, names)
}
