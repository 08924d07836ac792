package wholesale

import (
	"regexp"
	"strings"
	"unicode"
)

const maxCoreKeywords = 6

var (
	asinClause       = regexp.MustCompile(`(?i)\(?\s*asin:\s*[a-z0-9]+\s*\)?`)
	marketplaceNoise = regexp.MustCompile(`(?i)fulfillment by amazon|amazon\.com|- amazon|amazon|prime|eligible|brand:`)
	nonWordChars     = regexp.MustCompile(`[^\p{L}\p{N}_]`)
	spaceRun         = regexp.MustCompile(`\s+`)
	brandPattern     = regexp.MustCompile(`(?i)\b(?:` + strings.Join([]string{
		"apple", "samsung", "sony", "beats", "bose", "jbl", "anker",
		"logitech", "razer", "corsair", "hp", "dell", "lenovo",
		"nike", "adidas", "amazon", "google", "microsoft",
	}, "|") + `)\b`)

	productTypes = map[string]bool{
		"headphones": true, "earbuds": true, "speaker": true, "case": true, "charger": true,
		"cable": true, "watch": true, "tracker": true, "mouse": true, "keyboard": true,
		"stand": true, "bluetooth": true, "wireless": true, "usb": true, "led": true,
		"smart": true, "portable": true,
	}
	specWords  = []string{"wireless", "bluetooth", "usb", "led"}
	colorWords = []string{"black", "white", "blue", "red", "silver"}

	techPatterns = []*regexp.Regexp{
		regexp.MustCompile(`bluetooth\s*\d*\.?\d*`),
		regexp.MustCompile(`wireless`),
		regexp.MustCompile(`usb[-\s]?c?`),
		regexp.MustCompile(`\d+gb`),
		regexp.MustCompile(`\d+tb`),
		regexp.MustCompile(`\d+w\b`),
		regexp.MustCompile(`\d+v\b`),
		regexp.MustCompile(`\d+\s*inch`),
		regexp.MustCompile(`\d+\s*ft`),
		regexp.MustCompile(`waterproof`),
		regexp.MustCompile(`fast\s*charg\w*`),
		regexp.MustCompile(`quick\s*charg\w*`),
	}
)

// ExtractCoreKeywords keeps product types, technical specs, colors and any
// token with a digit, in title order, up to six words. Marketplace
// identifiers such as "(ASIN: B000TEST)" are dropped first.
func ExtractCoreKeywords(title string) string {
	clean := asinClause.ReplaceAllString(strings.ToLower(title), " ")
	clean = marketplaceNoise.ReplaceAllString(clean, " ")

	var keep []string
	for _, word := range strings.Fields(clean) {
		word = nonWordChars.ReplaceAllString(word, "")
		if len(word) <= 2 {
			continue
		}
		if productTypes[word] || containsAnyOf(word, specWords) || containsAnyOf(word, colorWords) || hasDigit(word) {
			keep = append(keep, word)
		}
		if len(keep) == maxCoreKeywords {
			break
		}
	}
	return strings.Join(keep, " ")
}

// RemoveBrandNames strips well-known retail brand names.
func RemoveBrandNames(title string) string {
	clean := brandPattern.ReplaceAllString(title, "")
	return strings.TrimSpace(spaceRun.ReplaceAllString(clean, " "))
}

// ExtractKeyFeatures returns the first three words of the title followed by
// any technical spec tokens found in it.
func ExtractKeyFeatures(title string) string {
	lower := strings.ToLower(title)

	var features []string
	for _, pattern := range techPatterns {
		for _, m := range pattern.FindAllString(lower, -1) {
			if m = strings.TrimSpace(m); m != "" {
				features = append(features, m)
			}
		}
	}

	words := strings.Fields(title)
	if len(words) > 3 {
		words = words[:3]
	}
	productType := strings.Join(words, " ")

	if len(features) == 0 {
		return productType
	}
	return strings.TrimSpace(productType + " " + strings.Join(features, " "))
}

// SearchVariations derives the query variants tried for a retail title:
// core keywords, brandless title, feature focus, then wholesale and bulk
// forms. Blank, short and repeated variants are dropped.
func SearchVariations(title string, minLength int) []string {
	core := ExtractCoreKeywords(title)
	generic := RemoveBrandNames(title)
	features := ExtractKeyFeatures(title)

	candidates := []string{
		core,
		generic,
		features,
		core + " wholesale",
		features + " bulk",
	}

	seen := make(map[string]bool, len(candidates))
	var variants []string
	for _, v := range candidates {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if len(v) < minLength || seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, v)
	}
	return variants
}

func containsAnyOf(word string, parts []string) bool {
	for _, p := range parts {
		if strings.Contains(word, p) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
