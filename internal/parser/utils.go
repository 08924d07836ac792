package parser

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespacePattern  = regexp.MustCompile(`\s+`)
	symbolRunPattern   = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)
	disallowedPattern  = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,$%()\[\]/]`)
	nonPricePattern    = regexp.MustCompile(`[^\d.,]`)
	defaultNumberRegex = regexp.MustCompile(`\d+\.?\d*`)
	dhgateURLPattern   = regexp.MustCompile(`(?i)dhgate\.com|/product/|/store/`)
)

// CleanText collapses whitespace and drops symbol runs that contain any
// character outside word chars, spaces and -.,$%()[]/.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = symbolRunPattern.ReplaceAllStringFunc(s, func(run string) string {
		if disallowedPattern.MatchString(run) {
			return ""
		}
		return run
	})
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// NormalizePrice parses a price string such as "US $1,234.56". The second
// return value is false when nothing numeric remains.
func NormalizePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	cleaned := nonPricePattern.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ExtractNumbers returns every number matched by pattern, in order. A nil
// pattern matches integers and decimals.
func ExtractNumbers(s string, pattern *regexp.Regexp) []float64 {
	if pattern == nil {
		pattern = defaultNumberRegex
	}
	var numbers []float64
	for _, match := range pattern.FindAllString(s, -1) {
		if value, err := strconv.ParseFloat(strings.TrimSuffix(match, "."), 64); err == nil {
			numbers = append(numbers, value)
		}
	}
	return numbers
}

// IsValidDHgateURL reports whether u looks like a marketplace product or
// store link.
func IsValidDHgateURL(u string) bool {
	if u == "" {
		return false
	}
	return dhgateURLPattern.MatchString(u)
}

// OnSiteHost reports whether u is an http(s) URL whose host matches the
// host of one of bases. Ports are ignored.
func OnSiteHost(u string, bases ...string) bool {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Hostname() == "" {
		return false
	}
	for _, base := range bases {
		b, err := url.Parse(base)
		if err != nil || b.Hostname() == "" {
			continue
		}
		if strings.EqualFold(parsed.Hostname(), b.Hostname()) {
			return true
		}
	}
	return false
}

// FirstProductURL returns the first /product/ link in doc resolved
// against base.
func FirstProductURL(doc *goquery.Document, base string) (string, bool) {
	var found string
	doc.Find(`a[href*="/product/"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}
		found = ResolveURL(base, href)
		return false
	})
	return found, found != ""
}

// ResolveURL resolves href against base, returning href unchanged when
// either fails to parse.
func ResolveURL(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	return b.ResolveReference(ref).String()
}

// FormatShippingTime normalizes delivery estimates using the first numbers
// in s: one number gives "N days", two or more give "N-M days". Text without
// numbers is returned trimmed.
func FormatShippingTime(s string) string {
	numbers := ExtractNumbers(s, nil)
	switch {
	case len(numbers) >= 2:
		return formatDays(numbers[0]) + "-" + formatDays(numbers[1]) + " days"
	case len(numbers) == 1:
		return formatDays(numbers[0]) + " days"
	default:
		return strings.TrimSpace(s)
	}
}

func formatDays(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
}

// CurrencyFromText maps the first known currency symbol in s to its ISO
// code, or returns fallback.
func CurrencyFromText(s, fallback string) string {
	for _, c := range currencySymbols {
		if strings.Contains(s, c.symbol) {
			return c.code
		}
	}
	return fallback
}
