package wholesale

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/wholesale-finder/internal/models"
)

var ErrNoRetailPrice = errors.New("retail price is required to compare margins")

var retailPricePattern = regexp.MustCompile(`\d+\.?\d*`)

type MarginTier string

const (
	MarginHigh    MarginTier = "high"
	MarginGood    MarginTier = "good"
	MarginLow     MarginTier = "low"
	MarginVeryLow MarginTier = "very_low"
)

const maxBulkTiers = 3

// TierFor buckets a gross margin percentage.
func TierFor(marginPercent float64) MarginTier {
	switch {
	case marginPercent > 50:
		return MarginHigh
	case marginPercent > 30:
		return MarginGood
	case marginPercent > 15:
		return MarginLow
	default:
		return MarginVeryLow
	}
}

type BulkMargin struct {
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	MarginPercent float64 `json:"margin_percent"`
}

// Option is one wholesale listing compared with the retail price.
type Option struct {
	URL             string       `json:"url"`
	Title           string       `json:"title"`
	SimilarityScore float64      `json:"similarity_score"`
	WholesalePrice  float64      `json:"wholesale_price"`
	Savings         float64      `json:"savings"`
	MarginPercent   float64      `json:"margin_percent"`
	Tier            MarginTier   `json:"tier"`
	BulkMargins     []BulkMargin `json:"bulk_margins,omitempty"`
}

type Comparison struct {
	RetailPrice float64  `json:"retail_price"`
	Options     []Option `json:"options"`
	Best        *Option  `json:"best,omitempty"`
}

// Compare computes savings and margins of each priced result against
// retailPrice. Best is the highest ranked result that has a price.
func Compare(retailPrice float64, results []*models.RankedResult) (*Comparison, error) {
	if retailPrice <= 0 {
		return nil, ErrNoRetailPrice
	}

	c := &Comparison{RetailPrice: retailPrice, Options: []Option{}}
	for _, r := range results {
		price := r.PriceValue()
		if price <= 0 {
			continue
		}
		savings := retailPrice - price
		margin := savings / retailPrice * 100

		opt := Option{
			URL:             r.URL,
			Title:           r.Title,
			SimilarityScore: r.SimilarityScore,
			WholesalePrice:  price,
			Savings:         savings,
			MarginPercent:   margin,
			Tier:            TierFor(margin),
		}
		for i, tier := range r.BulkPricing {
			if i == maxBulkTiers {
				break
			}
			if tier.Quantity <= 0 || tier.Price <= 0 {
				continue
			}
			opt.BulkMargins = append(opt.BulkMargins, BulkMargin{
				Quantity:      tier.Quantity,
				UnitPrice:     tier.Price,
				MarginPercent: (retailPrice - tier.Price) / retailPrice * 100,
			})
		}
		c.Options = append(c.Options, opt)
	}

	if len(c.Options) > 0 {
		c.Best = &c.Options[0]
	}
	return c, nil
}

// ParseRetailPrice reads the first number out of a display price such as
// "$1,299.99". The second return value is false when there is none.
func ParseRetailPrice(s string) (float64, bool) {
	m := retailPricePattern.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(m, "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
