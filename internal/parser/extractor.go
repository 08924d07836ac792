package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/models"
)

const (
	bulkTableSelector   = `table[class*="price"], table[class*="bulk"]`
	specTableSelector   = `table[class*="spec"], table[class*="detail"], table[class*="attribute"]`
	ratingSelector      = `span[class*="rating"], span[class*="star"], span[class*="review"], div[class*="rating"], div[class*="star"], div[class*="review"]`
	actionSelector      = "button, a"
	sellerFallbackQuery = "a, span"
)

var (
	pagePricePattern    = regexp.MustCompile(`\$[\d,]+\.?\d*`)
	priceRangePattern   = regexp.MustCompile(`\$\d+.*-.*\$\d+`)
	actionButtonPattern = regexp.MustCompile(`(?i)add to cart|buy now|purchase|order now`)
	stockPatterns       = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*pieces?\s+available`),
		regexp.MustCompile(`(?i)(\d+)\s*in stock`),
		regexp.MustCompile(`(?i)stock:\s*(\d+)`),
		regexp.MustCompile(`(?i)quantity:\s*(\d+)`),
	}
	freeShippingPattern = regexp.MustCompile(`(?i)free shipping`)
	shippingCostPattern = regexp.MustCompile(`(?i)shipping.*\$\d+`)
	dollarAmountPattern = regexp.MustCompile(`\$(\d+\.?\d*)`)
	deliveryPatterns    = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)-(\d+)\s*days?`),
		regexp.MustCompile(`(?i)delivery.*?(\d+)\s*days?`),
		regexp.MustCompile(`(?i)(\d+)\s*business days?`),
	}
	sellerTextPattern  = regexp.MustCompile(`(?i)seller|store`)
	ratingValuePattern = regexp.MustCompile(`(\d+\.?\d*)`)
	reviewCountPattern = regexp.MustCompile(`(?i)([\d,]+)\s*reviews?`)
)

// PriceInfo is everything the price extraction found on a page.
type PriceInfo struct {
	Price        *float64
	Currency     string
	OriginalText string
	PriceRange   string
	BulkPricing  []models.BulkTier
}

// Details holds descriptive product fields.
type Details struct {
	Title          string
	Seller         string
	Rating         *float64
	ReviewCount    *int
	Images         []string
	Specifications map[string]string
}

type priceHit struct {
	value float64
	text  string
}

type shippingMethod struct {
	name    string
	pattern *regexp.Regexp
}

// Extractor pulls structured product fields out of a parsed page. Every
// method degrades to an absent field instead of failing.
type Extractor struct {
	site             config.SiteConfig
	priceStrategies  []Strategy[priceHit]
	titleStrategies  []Strategy[string]
	sellerStrategies []Strategy[string]
	shippingMethods  []shippingMethod
}

func NewExtractor(site config.SiteConfig) *Extractor {
	e := &Extractor{site: site}

	e.priceStrategies = SelectorStrategies(site.Selectors.Price, func(s *goquery.Selection) (priceHit, bool) {
		text := strings.TrimSpace(s.Text())
		value, ok := NormalizePrice(text)
		if !ok || value <= 0 {
			return priceHit{}, false
		}
		return priceHit{value: value, text: text}, true
	})
	e.priceStrategies = append(e.priceStrategies,
		Strategy[priceHit]{Name: "page-scan", Extract: e.scanPagePrice},
		Strategy[priceHit]{Name: "bulk-table", Extract: e.lowestBulkPrice},
	)

	e.titleStrategies = SelectorStrategies(site.Selectors.Title, nonEmptyText)

	e.sellerStrategies = append(SelectorStrategies(site.Selectors.Seller, nonEmptyText),
		Strategy[string]{Name: "seller-phrase", Extract: sellerFromText})

	for _, method := range site.ShippingMethods {
		method = strings.ToLower(strings.TrimSpace(method))
		if method == "" {
			continue
		}
		e.shippingMethods = append(e.shippingMethods, shippingMethod{
			name:    displayMethodName(method),
			pattern: regexp.MustCompile(`\b` + regexp.QuoteMeta(method) + `\b`),
		})
	}

	return e
}

func (e *Extractor) ExtractPrice(doc *goquery.Document) PriceInfo {
	info := PriceInfo{Currency: e.site.DefaultCurrency}

	if hit, _, ok := FirstMatch(doc, e.priceStrategies...); ok {
		value := hit.value
		info.Price = &value
		if hit.text != "" {
			info.OriginalText = hit.text
			info.Currency = CurrencyFromText(hit.text, e.site.DefaultCurrency)
		}
	}

	for _, text := range textNodes(doc) {
		if priceRangePattern.MatchString(text) {
			info.PriceRange = text
			break
		}
	}

	info.BulkPricing = e.ExtractBulkPricing(doc)
	return info
}

// scanPagePrice picks the lowest dollar amount in the page text that falls
// inside the configured plausible band.
func (e *Extractor) scanPagePrice(doc *goquery.Document) (priceHit, bool) {
	best := math.Inf(1)
	bestText := ""
	for _, match := range pagePricePattern.FindAllString(doc.Text(), -1) {
		value, ok := NormalizePrice(match)
		if !ok || value < e.site.MinPrice || value > e.site.MaxPrice {
			continue
		}
		if value < best {
			best = value
			bestText = match
		}
	}
	if bestText == "" {
		return priceHit{}, false
	}
	return priceHit{value: best, text: bestText}, true
}

func (e *Extractor) lowestBulkPrice(doc *goquery.Document) (priceHit, bool) {
	tiers := e.ExtractBulkPricing(doc)
	if len(tiers) == 0 {
		return priceHit{}, false
	}
	lowest := tiers[0]
	for _, tier := range tiers[1:] {
		if tier.Price < lowest.Price {
			lowest = tier
		}
	}
	return priceHit{value: lowest.Price, text: lowest.OriginalText}, true
}

// ExtractBulkPricing reads quantity/price rows from price or bulk tables.
func (e *Extractor) ExtractBulkPricing(doc *goquery.Document) []models.BulkTier {
	var tiers []models.BulkTier
	doc.Find(bulkTableSelector).Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if cells.Length() < 2 {
				return
			}
			quantityText := strings.TrimSpace(cells.Eq(0).Text())
			priceText := strings.TrimSpace(cells.Eq(1).Text())

			quantities := ExtractNumbers(quantityText, nil)
			price, ok := NormalizePrice(priceText)
			if len(quantities) == 0 || !ok || price <= 0 {
				return
			}
			tiers = append(tiers, models.BulkTier{
				Quantity:     int(quantities[0]),
				Price:        price,
				OriginalText: quantityText + ": " + priceText,
			})
		})
	})
	return tiers
}

func (e *Extractor) ExtractAvailability(doc *goquery.Document) models.Availability {
	availability := models.Availability{StockStatus: models.StockUnknown}

	text := pageText(doc)
	if containsAny(text, e.site.Phrases.OutOfStock) {
		availability.StockStatus = models.StockOutOfStock
		return availability
	}

	doc.Find(actionSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if actionButtonPattern.MatchString(s.Text()) {
			availability.Available = true
			availability.StockStatus = models.StockInStock
			return false
		}
		return true
	})

	for _, pattern := range stockPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if qty, err := strconv.Atoi(m[1]); err == nil {
				availability.StockQuantity = &qty
				break
			}
		}
	}

	return availability
}

// ExtractShipping returns nil when the page mentions no shipping details.
func (e *Extractor) ExtractShipping(doc *goquery.Document) *models.ShippingInfo {
	info := &models.ShippingInfo{}
	nodes := textNodes(doc)

	for _, text := range nodes {
		if freeShippingPattern.MatchString(text) {
			zero := 0.0
			info.Cost = &zero
			info.FreeShipping = true
			break
		}
	}

	if !info.FreeShipping {
		for _, text := range nodes {
			if !shippingCostPattern.MatchString(text) {
				continue
			}
			if m := dollarAmountPattern.FindStringSubmatch(text); m != nil {
				if cost, err := strconv.ParseFloat(m[1], 64); err == nil {
					info.Cost = &cost
					break
				}
			}
		}
	}

	fullText := doc.Text()
	for _, pattern := range deliveryPatterns {
		m := pattern.FindStringSubmatch(fullText)
		if m == nil {
			continue
		}
		if len(m) == 3 {
			info.DeliveryTime = m[1] + "-" + m[2] + " days"
		} else {
			info.DeliveryTime = m[1] + " days"
		}
		break
	}

	lower := strings.ToLower(fullText)
	for _, method := range e.shippingMethods {
		if method.pattern.MatchString(lower) {
			info.Methods = append(info.Methods, method.name)
		}
	}

	if info.IsEmpty() {
		return nil
	}
	return info
}

func (e *Extractor) ExtractDetails(doc *goquery.Document) Details {
	var d Details

	d.Title, _, _ = FirstMatch(doc, e.titleStrategies...)
	d.Seller, _, _ = FirstMatch(doc, e.sellerStrategies...)
	d.Rating = extractRating(doc)
	d.ReviewCount = extractReviewCount(doc)
	d.Images = e.extractImages(doc)
	d.Specifications = extractSpecifications(doc)

	return d
}

func sellerFromText(doc *goquery.Document) (string, bool) {
	var seller string
	doc.Find(sellerFallbackQuery).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		text := CleanText(s.Text())
		if text != "" && sellerTextPattern.MatchString(text) {
			seller = text
			return false
		}
		return true
	})
	return seller, seller != ""
}

func extractRating(doc *goquery.Document) *float64 {
	var rating *float64
	doc.Find(ratingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := ratingValuePattern.FindStringSubmatch(s.Text())
		if m == nil {
			return true
		}
		if v, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64); err == nil {
			rating = &v
			return false
		}
		return true
	})
	return rating
}

func extractReviewCount(doc *goquery.Document) *int {
	for _, text := range textNodes(doc) {
		m := reviewCountPattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if count, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			return &count
		}
	}
	return nil
}

func (e *Extractor) extractImages(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var images []string
	for _, selector := range e.site.Selectors.Image {
		doc.Find(selector).Each(func(_ int, img *goquery.Selection) {
			src := firstAttr(img, "src", "data-src", "data-original")
			if src == "" || seen[src] {
				return
			}
			seen[src] = true
			images = append(images, src)
		})
	}
	return images
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v, ok := s.Attr(name); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func extractSpecifications(doc *goquery.Document) map[string]string {
	specs := make(map[string]string)
	doc.Find(specTableSelector).Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if cells.Length() < 2 {
				return
			}
			key := CleanText(cells.Eq(0).Text())
			value := CleanText(cells.Eq(1).Text())
			if key != "" && value != "" {
				specs[key] = value
			}
		})
	})
	if len(specs) == 0 {
		return nil
	}
	return specs
}

// displayMethodName upper-cases short carrier codes and title-cases the rest.
func displayMethodName(method string) string {
	if !strings.Contains(method, " ") && len(method) <= 4 {
		return strings.ToUpper(method)
	}
	words := strings.Fields(method)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
