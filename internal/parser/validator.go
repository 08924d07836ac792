package parser

import (
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/wholesale-finder/internal/config"
)

const listingItemSelector = `div[class*="product"], div[class*="item"], li[class*="product"], li[class*="item"]`

// Validator classifies fetched pages.
type Validator struct {
	site config.SiteConfig
}

func NewValidator(site config.SiteConfig) *Validator {
	return &Validator{site: site}
}

// IsNotFound reports a 404 status or an error-page fingerprint in the text.
func (v *Validator) IsNotFound(doc *goquery.Document, status int) bool {
	if status == http.StatusNotFound {
		return true
	}
	return containsAny(pageText(doc), v.site.Phrases.Error)
}

// IsCategoryPage reports whether the page lists many products instead of
// describing one, either by URL shape or by listing density.
func (v *Validator) IsCategoryPage(doc *goquery.Document, pageURL string) bool {
	if !strings.Contains(pageURL, "/product/") && !strings.Contains(pageURL, "/store/") {
		return true
	}
	return doc.Find(listingItemSelector).Length() > v.site.ListingDensityThreshold
}

func (v *Validator) IsValidProductPage(doc *goquery.Document) bool {
	return anyMatch(doc, v.site.Selectors.Title) && anyMatch(doc, v.site.Selectors.Price)
}

// IsAvailable is optimistic: only an out-of-stock phrase makes it false.
func (v *Validator) IsAvailable(doc *goquery.Document) bool {
	return !containsAny(pageText(doc), v.site.Phrases.OutOfStock)
}

func (v *Validator) HasBulkPricing(doc *goquery.Document) bool {
	return containsAny(pageText(doc), v.site.Phrases.BulkPricing)
}

func (v *Validator) IsContactSellerPage(doc *goquery.Document) bool {
	return containsAny(pageText(doc), v.site.Phrases.ContactSeller)
}
