package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one named way of pulling a value out of a page.
type Strategy[T any] struct {
	Name    string
	Extract func(doc *goquery.Document) (T, bool)
}

// FirstMatch runs strategies in order and returns the first value that was
// found, together with the name of the strategy that produced it.
func FirstMatch[T any](doc *goquery.Document, strategies ...Strategy[T]) (T, string, bool) {
	for _, s := range strategies {
		if v, ok := s.Extract(doc); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

// SelectorStrategies turns an ordered selector list into strategies that
// convert the first element each selector matches.
func SelectorStrategies[T any](selectors []string, convert func(*goquery.Selection) (T, bool)) []Strategy[T] {
	strategies := make([]Strategy[T], 0, len(selectors))
	for _, selector := range selectors {
		sel := selector
		strategies = append(strategies, Strategy[T]{
			Name: sel,
			Extract: func(doc *goquery.Document) (T, bool) {
				node := doc.Find(sel).First()
				if node.Length() == 0 {
					var zero T
					return zero, false
				}
				return convert(node)
			},
		})
	}
	return strategies
}

// nonEmptyText converts a selection to its cleaned text.
func nonEmptyText(s *goquery.Selection) (string, bool) {
	text := CleanText(strings.TrimSpace(s.Text()))
	return text, text != ""
}

// anyMatch reports whether any selector matches at least one element.
func anyMatch(doc *goquery.Document, selectors []string) bool {
	for _, selector := range selectors {
		if doc.Find(selector).Length() > 0 {
			return true
		}
	}
	return false
}
