// Package content models the monthly content items that feed a newsletter
// and the sources they are fetched from.
package content

import (
	"context"
	"strings"
	"time"
)

// Fixed category labels. Their declaration order is the order sections appear in.
const (
	CategoryStudentOfMonth = "Student of the month"
	CategoryFestive        = "Festive Season"
	CategoryEvents         = "Other Event"
	CategoryGeneral        = "General"
)

// FixedCategories returns the category enumeration in declared order.
func FixedCategories() []string {
	return []string{CategoryStudentOfMonth, CategoryFestive, CategoryEvents, CategoryGeneral}
}

// IsFixed reports whether name is one of the fixed categories.
func IsFixed(name string) bool {
	for _, c := range FixedCategories() {
		if c == name {
			return true
		}
	}
	return false
}

// Item is one unit of monthly material. Category is already normalized.
type Item struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Images      []string  `json:"images" yaml:"images"`
	Category    string    `json:"category" yaml:"category"`
	CreatedAt   time.Time `json:"createdAt" yaml:"created_at"`
}

// Record is an item as a source returns it, before category normalization.
// Categories holds every raw tag value the source knows for the item
// (for example a category title and a slug), most specific first.
type Record struct {
	ID          string
	Title       string
	Description string
	Images      []string
	Categories  []string
	CreatedAt   time.Time
}

// Query selects records for one calendar month.
type Query struct {
	Categories []string
	From       time.Time // inclusive
	To         time.Time // exclusive
}

// Source is the content store adapter.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]Record, error)
}

// MonthWindow returns the UTC bounds of the given calendar month:
// the first instant of the month and the first instant of the next.
func MonthWindow(year, month int) (time.Time, time.Time) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

type categoryRule struct {
	tokens   []string
	category string
}

// Substring heuristics, evaluated in this order. The first rule whose tokens
// all appear in the lowercased tag wins.
var categoryRules = []categoryRule{
	{tokens: []string{"student", "month"}, category: CategoryStudentOfMonth},
	{tokens: []string{"festive"}, category: CategoryFestive},
	{tokens: []string{"event"}, category: CategoryEvents},
	{tokens: []string{"general"}, category: CategoryGeneral},
}

// NormalizeCategory maps raw category tags onto the fixed enumeration.
// Exact case-insensitive matches are tried first across all values, then the
// substring heuristics. Unmatched tags keep the first non-empty raw value
// verbatim; with no usable value the item falls into General.
func NormalizeCategory(raw ...string) string {
	for _, r := range raw {
		r = strings.TrimSpace(r)
		for _, c := range FixedCategories() {
			if strings.EqualFold(r, c) {
				return c
			}
		}
	}

	for _, r := range raw {
		lower := strings.ToLower(r)
		if strings.TrimSpace(lower) == "" {
			continue
		}
		for _, rule := range categoryRules {
			if containsAll(lower, rule.tokens) {
				return rule.category
			}
		}
	}

	for _, r := range raw {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			return trimmed
		}
	}
	return CategoryGeneral
}

func containsAll(s string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}
