package models

import (
	"time"
)

// ErrorKind classifies why a scrape did not produce a product.
type ErrorKind string

const (
	ErrorNotFound              ErrorKind = "not_found"
	ErrorCategoryNoProducts    ErrorKind = "category_page_no_products"
	ErrorCategoryDepthExceeded ErrorKind = "category_depth_exceeded"
	ErrorInvalidProductPage    ErrorKind = "invalid_product_page"
	ErrorScrapingFailed        ErrorKind = "scraping_failed"
)

type StockStatus string

const (
	StockUnknown    StockStatus = "unknown"
	StockInStock    StockStatus = "in_stock"
	StockOutOfStock StockStatus = "out_of_stock"
)

type BulkTier struct {
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	OriginalText string  `json:"original_text,omitempty"`
}

type Availability struct {
	Available     bool        `json:"available"`
	StockStatus   StockStatus `json:"stock_status"`
	StockQuantity *int        `json:"stock_quantity,omitempty"`
}

type ShippingInfo struct {
	Cost         *float64 `json:"cost,omitempty"`
	FreeShipping bool     `json:"free_shipping"`
	DeliveryTime string   `json:"delivery_time,omitempty"`
	Methods      []string `json:"methods,omitempty"`
}

func (s *ShippingInfo) IsEmpty() bool {
	return s == nil || (s.Cost == nil && !s.FreeShipping && s.DeliveryTime == "" && len(s.Methods) == 0)
}

// ScrapeResult is the record produced for one product URL. Every field other
// than URL, Site, Success and ScrapedAt is optional: a zero value means the
// page did not show it, not that it is confirmed absent.
type ScrapeResult struct {
	URL       string    `json:"url"`
	Site      string    `json:"site"`
	Success   bool      `json:"success"`
	Error     ErrorKind `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`

	Title             string     `json:"title,omitempty"`
	Price             *float64   `json:"price,omitempty"`
	Currency          string     `json:"currency,omitempty"`
	OriginalPriceText string     `json:"original_price_text,omitempty"`
	PriceRange        string     `json:"price_range,omitempty"`
	BulkPricing       []BulkTier `json:"bulk_pricing,omitempty"`

	Availability Availability  `json:"availability"`
	Shipping     *ShippingInfo `json:"shipping,omitempty"`

	Seller         string            `json:"seller,omitempty"`
	Rating         *float64          `json:"rating,omitempty"`
	ReviewCount    *int              `json:"review_count,omitempty"`
	Images         []string          `json:"images,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`

	HasBulkPricing bool `json:"has_bulk_pricing"`
	ContactSeller  bool `json:"contact_seller"`
}

// NewFailedResult builds a terminal failure record for url.
func NewFailedResult(url, site string, kind ErrorKind, message string) *ScrapeResult {
	return &ScrapeResult{
		URL:          url,
		Site:         site,
		Success:      false,
		Error:        kind,
		Message:      message,
		ScrapedAt:    time.Now(),
		Availability: Availability{StockStatus: StockUnknown},
	}
}

func (r *ScrapeResult) Available() bool {
	return r.Availability.Available
}

// PriceValue returns the numeric price, or 0 when none was found.
func (r *ScrapeResult) PriceValue() float64 {
	if r.Price == nil {
		return 0
	}
	return *r.Price
}

// Completeness reports which required fields a successful scrape is missing.
type Completeness struct {
	IsValid       bool     `json:"is_valid"`
	MissingFields []string `json:"missing_fields"`
	Score         float64  `json:"completeness_score"`
}

var RequiredFields = []string{"title", "price", "availability"}

func (r *ScrapeResult) Completeness() Completeness {
	missing := make([]string, 0, len(RequiredFields))
	for _, field := range RequiredFields {
		switch field {
		case "title":
			if r.Title == "" {
				missing = append(missing, field)
			}
		case "price":
			if r.Price == nil {
				missing = append(missing, field)
			}
		case "availability":
			if !r.Availability.Available && r.Availability.StockStatus != StockOutOfStock {
				missing = append(missing, field)
			}
		}
	}

	return Completeness{
		IsValid:       len(missing) == 0,
		MissingFields: missing,
		Score:         float64(len(RequiredFields)-len(missing)) / float64(len(RequiredFields)),
	}
}

// RankedResult is a ScrapeResult scored against a reference title.
type RankedResult struct {
	ScrapeResult
	SimilarityScore float64 `json:"similarity_score"`
	OriginalTitle   string  `json:"original_title"`
}
