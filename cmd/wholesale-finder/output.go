package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/maltedev/wholesale-finder/internal/amazon"
	"github.com/maltedev/wholesale-finder/internal/models"
	"github.com/maltedev/wholesale-finder/internal/shopping"
	"github.com/maltedev/wholesale-finder/internal/wholesale"
)

const titleWidth = 60

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func renderRanked(w io.Writer, title string, results []*models.RankedResult) {
	t := newTable(w, "Wholesale matches for "+shorten(title, titleWidth))
	t.AppendHeader(table.Row{"#", "Title", "Price", "Score", "Available", "URL"})
	for i, r := range results {
		t.AppendRow(table.Row{i + 1, shorten(r.Title, titleWidth), formatPrice(&r.ScrapeResult), fmt.Sprintf("%.2f", r.SimilarityScore), yesNo(r.Available()), r.URL})
	}
	if len(results) == 0 {
		t.AppendRow(table.Row{"", "no wholesale matches found"})
	}
	t.Render()
}

func renderComparison(w io.Writer, c *wholesale.Comparison) {
	t := newTable(w, fmt.Sprintf("Margins against retail $%.2f", c.RetailPrice))
	t.AppendHeader(table.Row{"#", "Wholesale", "Savings", "Margin", "Tier", "Bulk"})
	for i, opt := range c.Options {
		t.AppendRow(table.Row{
			i + 1,
			fmt.Sprintf("$%.2f", opt.WholesalePrice),
			fmt.Sprintf("$%.2f", opt.Savings),
			fmt.Sprintf("%.1f%%", opt.MarginPercent),
			string(opt.Tier),
			formatBulk(opt.BulkMargins),
		})
	}
	if c.Best != nil {
		t.AppendSeparator()
		t.AppendFooter(table.Row{"Best", fmt.Sprintf("$%.2f", c.Best.WholesalePrice), fmt.Sprintf("$%.2f", c.Best.Savings), fmt.Sprintf("%.1f%%", c.Best.MarginPercent), string(c.Best.Tier), ""})
	}
	t.Render()
}

func renderSearch(w io.Writer, term string, results []*models.ScrapeResult) {
	t := newTable(w, "DHgate results for "+term)
	t.AppendHeader(table.Row{"#", "Title", "Price", "Seller", "URL"})
	for i, r := range results {
		t.AppendRow(table.Row{i + 1, shorten(r.Title, titleWidth), formatPrice(r), r.Seller, r.URL})
	}
	t.Render()
}

func renderScrape(w io.Writer, r *models.ScrapeResult) {
	t := newTable(w, r.URL)
	if !r.Success {
		t.AppendRows([]table.Row{
			{"Success", "no"},
			{"Error", string(r.Error)},
			{"Message", r.Message},
		})
		t.Render()
		return
	}

	completeness := r.Completeness()
	rows := []table.Row{
		{"Title", r.Title},
		{"Price", formatPrice(r)},
		{"Price Range", r.PriceRange},
		{"Available", yesNo(r.Available())},
		{"Stock", string(r.Availability.StockStatus)},
		{"Seller", r.Seller},
		{"Images", len(r.Images)},
		{"Bulk Pricing", yesNo(r.HasBulkPricing)},
		{"Contact Seller", yesNo(r.ContactSeller)},
		{"Completeness", fmt.Sprintf("%.0f%%", completeness.Score*100)},
	}
	if r.Rating != nil {
		rows = append(rows, table.Row{"Rating", fmt.Sprintf("%.1f", *r.Rating)})
	}
	if !r.Shipping.IsEmpty() {
		rows = append(rows, table.Row{"Shipping", formatShipping(r.Shipping)})
	}
	t.AppendRows(rows)

	if len(r.BulkPricing) > 0 {
		t.AppendSeparator()
		for _, tier := range r.BulkPricing {
			t.AppendRow(table.Row{fmt.Sprintf("%d+ pcs", tier.Quantity), fmt.Sprintf("%.2f", tier.Price)})
		}
	}
	t.Render()
}

func renderAmazon(w io.Writer, products []amazon.Product) {
	t := newTable(w, "Amazon products")
	t.AppendHeader(table.Row{"#", "Title", "ASIN", "Price"})
	for i, p := range products {
		t.AppendRow(table.Row{i + 1, shorten(p.Title, titleWidth), p.ASIN, p.Price})
	}
	t.Render()
}

func renderSellers(w io.Writer, q string, sellers []shopping.Seller) {
	t := newTable(w, "Sellers for "+q)
	t.AppendHeader(table.Row{"#", "Seller", "Price", "Total", "Link"})
	for i, s := range sellers {
		price := s.BasePrice
		if price == "" {
			price = s.Price
		}
		t.AppendRow(table.Row{i + 1, s.Name, price, s.TotalPrice, s.Link})
	}
	if len(sellers) == 0 {
		t.AppendRow(table.Row{"", "no sellers found"})
	}
	t.Render()
}

func formatPrice(r *models.ScrapeResult) string {
	if r.Price == nil {
		return "-"
	}
	return fmt.Sprintf("%s %.2f", r.Currency, *r.Price)
}

func formatBulk(margins []wholesale.BulkMargin) string {
	parts := make([]string, 0, len(margins))
	for _, m := range margins {
		parts = append(parts, fmt.Sprintf("%d+ @ $%.2f (%.0f%%)", m.Quantity, m.UnitPrice, m.MarginPercent))
	}
	return strings.Join(parts, ", ")
}

func formatShipping(s *models.ShippingInfo) string {
	var parts []string
	switch {
	case s.FreeShipping:
		parts = append(parts, "free")
	case s.Cost != nil:
		parts = append(parts, fmt.Sprintf("%.2f", *s.Cost))
	}
	if s.DeliveryTime != "" {
		parts = append(parts, s.DeliveryTime)
	}
	if len(s.Methods) > 0 {
		parts = append(parts, strings.Join(s.Methods, "/"))
	}
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
