package wholesale

import (
	"math"
	"sort"
	"strings"

	"github.com/maltedev/wholesale-finder/internal/config"
	"github.com/maltedev/wholesale-finder/internal/models"
)

// Scorer rates candidate listings against a reference title.
type Scorer struct {
	cfg config.RankingConfig
}

func NewScorer(cfg config.RankingConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score combines word overlap, shared key features, price plausibility and
// availability into a value capped at MaxScore.
func (s *Scorer) Score(originalTitle string, candidate *models.ScrapeResult) float64 {
	original := wordSet(originalTitle)
	words := wordSet(candidate.Title)

	var score float64

	if len(original) > 0 {
		common := 0
		for w := range original {
			if words[w] {
				common++
			}
		}
		score += float64(common) / float64(len(original)) * s.cfg.WordOverlapWeight
	}

	if len(s.cfg.KeyFeatures) > 0 {
		matches := 0
		for _, feature := range s.cfg.KeyFeatures {
			if anyWordContains(original, feature) && anyWordContains(words, feature) {
				matches++
			}
		}
		score += float64(matches) / float64(len(s.cfg.KeyFeatures)) * s.cfg.FeatureOverlapWeight
	}

	if price := candidate.PriceValue(); price > 0 {
		switch {
		case price < s.cfg.FullCreditPrice:
			score += s.cfg.PriceWeight
		case price < s.cfg.HalfCreditPrice:
			score += s.cfg.PriceWeight / 2
		}
	}

	if candidate.Available() {
		score += s.cfg.AvailabilityWeight
	}

	return math.Min(score, s.cfg.MaxScore)
}

// Rank scores every candidate against originalTitle.
func (s *Scorer) Rank(originalTitle string, candidates []*models.ScrapeResult) []*models.RankedResult {
	ranked := make([]*models.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		ranked = append(ranked, &models.RankedResult{
			ScrapeResult:    *c,
			SimilarityScore: s.Score(originalTitle, c),
			OriginalTitle:   originalTitle,
		})
	}
	return ranked
}

// Deduplicate keeps the first result for each URL and drops later results
// whose title is a near duplicate of one already kept.
func (s *Scorer) Deduplicate(results []*models.RankedResult) []*models.RankedResult {
	seenURLs := make(map[string]bool)
	var unique []*models.RankedResult
	var kept []map[string]bool

	for _, r := range results {
		if seenURLs[r.URL] {
			continue
		}
		title := wordSet(r.Title)
		duplicate := false
		for _, existing := range kept {
			if TitleSimilarity(title, existing) >= s.cfg.DuplicateThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		seenURLs[r.URL] = true
		unique = append(unique, r)
		kept = append(kept, title)
	}
	return unique
}

// SortByScore orders results by descending score; ties go to the lower
// price, then to the earlier result.
func SortByScore(results []*models.RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		return sortablePrice(results[i]) < sortablePrice(results[j])
	})
}

// TitleSimilarity is the Jaccard index of two word sets. Empty sets are
// never similar.
func TitleSimilarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

func anyWordContains(words map[string]bool, fragment string) bool {
	for w := range words {
		if strings.Contains(w, fragment) {
			return true
		}
	}
	return false
}

func sortablePrice(r *models.RankedResult) float64 {
	if r.Price == nil || *r.Price <= 0 {
		return math.Inf(1)
	}
	return *r.Price
}
