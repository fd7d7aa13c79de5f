package content

import (
	"context"
	"log/slog"
)

// Grouped partitions items by category. Every fixed category is always
// present, possibly empty; ad-hoc categories follow in encounter order.
type Grouped struct {
	buckets map[string][]Item
	adHoc   []string
}

// NewGrouped returns a grouping with an empty bucket per fixed category.
func NewGrouped() *Grouped {
	g := &Grouped{buckets: make(map[string][]Item)}
	for _, c := range FixedCategories() {
		g.buckets[c] = nil
	}
	return g
}

// Add places item into the bucket named by its Category.
func (g *Grouped) Add(item Item) {
	if item.Category == "" {
		item.Category = CategoryGeneral
	}
	if _, ok := g.buckets[item.Category]; !ok {
		g.adHoc = append(g.adHoc, item.Category)
	}
	g.buckets[item.Category] = append(g.buckets[item.Category], item)
}

// Categories returns fixed categories in declared order followed by ad-hoc ones.
func (g *Grouped) Categories() []string {
	out := FixedCategories()
	return append(out, g.adHoc...)
}

// AdHocCategories returns the categories outside the fixed enumeration.
func (g *Grouped) AdHocCategories() []string {
	return append([]string(nil), g.adHoc...)
}

// Items returns the bucket for category.
func (g *Grouped) Items(category string) []Item {
	return g.buckets[category]
}

// Len is the total number of items across buckets.
func (g *Grouped) Len() int {
	n := 0
	for _, items := range g.buckets {
		n += len(items)
	}
	return n
}

// IsEmpty reports whether every bucket is empty.
func (g *Grouped) IsEmpty() bool {
	return g.Len() == 0
}

// Grouper fetches a month of records and partitions them by category.
type Grouper struct {
	source Source
	log    *slog.Logger
}

// NewGrouper creates a Grouper over source.
func NewGrouper(source Source, log *slog.Logger) *Grouper {
	if log == nil {
		log = slog.Default()
	}
	return &Grouper{source: source, log: log}
}

// Group returns the items created within the given month. A failing or
// missing source yields the all-empty grouping rather than an error.
func (g *Grouper) Group(ctx context.Context, year, month int) *Grouped {
	grouped := NewGrouped()
	if g.source == nil {
		g.log.Warn("No content source configured, using empty grouping")
		return grouped
	}

	from, to := MonthWindow(year, month)
	records, err := g.source.Fetch(ctx, Query{
		Categories: FixedCategories(),
		From:       from,
		To:         to,
	})
	if err != nil {
		g.log.Error("Content fetch failed, using empty grouping",
			"year", year, "month", month, "error", err)
		return grouped
	}

	for _, r := range records {
		created := r.CreatedAt.UTC()
		if created.Before(from) || !created.Before(to) {
			continue
		}
		grouped.Add(Item{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Images:      append([]string(nil), r.Images...),
			Category:    NormalizeCategory(r.Categories...),
			CreatedAt:   created,
		})
	}

	g.log.Debug("Grouped content", "year", year, "month", month,
		"items", grouped.Len(), "ad_hoc_categories", len(grouped.adHoc))
	return grouped
}
