package newsletter

import (
	"context"
	"log/slog"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"reach/internal/content"
	"reach/internal/document"
	"reach/internal/enhance"
	"reach/internal/markdown"
)

const (
	fallbackTitle = "Updates"
	fallbackText  = "No new updates this month. Thank you for standing with our students, your support keeps them in school."
)

// SectionStats counts how section text was produced.
type SectionStats struct {
	Items     int `json:"items"`
	LLMCalls  int `json:"llmCalls"`
	CacheHits int `json:"cacheHits"`
	Fallbacks int `json:"fallbacks"`
}

// SectionBuilder turns grouped content into ordered sections. Only the
// first item of each category is enhanced; the rest pass through verbatim.
type SectionBuilder struct {
	enhancer *enhance.Enhancer
	policy   *bluemonday.Policy
	log      *slog.Logger
}

// NewSectionBuilder creates a builder around enhancer.
func NewSectionBuilder(enhancer *enhance.Enhancer, log *slog.Logger) *SectionBuilder {
	if log == nil {
		log = slog.Default()
	}
	return &SectionBuilder{enhancer: enhancer, policy: bodyPolicy(), log: log}
}

// bodyPolicy allows exactly the markup produced by the markdown converter.
func bodyPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "strong", "em")
	return p
}

// Build walks categories in order: student of the month first, then the
// remaining fixed categories, then ad-hoc ones in encounter order. An empty
// grouping produces the single fallback section.
func (b *SectionBuilder) Build(ctx context.Context, grouped *content.Grouped) ([]document.Section, SectionStats) {
	var (
		sections []document.Section
		stats    SectionStats
	)

	for _, category := range grouped.Categories() {
		items := grouped.Items(category)
		if len(items) == 0 {
			continue
		}

		if category == content.CategoryStudentOfMonth {
			items = items[:1]
		}

		for i, item := range items {
			stats.Items++
			text := rawText(item)
			if i == 0 {
				res := b.enhancer.Enhance(ctx, taskFor(category, item))
				switch {
				case res.FromCache:
					stats.CacheHits++
				case res.Fallback:
					stats.Fallbacks++
					if res.Attempts > 0 {
						stats.LLMCalls++
					}
				default:
					stats.LLMCalls++
				}
				text = res.Text
			}
			sections = append(sections, b.section(category, item.Title, text, item.Images))
		}
	}

	if len(sections) == 0 {
		b.log.Info("No content for month, using fallback section")
		sections = append(sections, b.section(content.CategoryGeneral, fallbackTitle, fallbackText, nil))
	}
	return sections, stats
}

func (b *SectionBuilder) section(category, title, text string, images []string) document.Section {
	return document.Section{
		Category: category,
		Title:    strings.TrimSpace(title),
		BodyHTML: b.policy.Sanitize(markdown.ToHTML(text)),
		Images:   document.AbsoluteImageURLs(images),
	}
}

// taskFor picks the prompt variant for the first item of category.
func taskFor(category string, item content.Item) enhance.Task {
	raw := rawText(item)
	name := enhance.ExtractName(item.Title, item.Description)

	switch category {
	case content.CategoryStudentOfMonth:
		return enhance.Task{
			Key:      enhance.Key{Scope: enhance.ScopeStudentOfMonth, ItemID: item.ID},
			Kind:     enhance.PromptStudentOfMonth,
			Name:     name,
			Caption:  raw,
			Fallback: raw,
		}
	case content.CategoryGeneral:
		return enhance.Task{
			Key:      enhance.Key{Scope: enhance.ScopeGratitude, ItemID: item.ID},
			Kind:     enhance.PromptGratitude,
			Fallback: raw,
		}
	default:
		return enhance.Task{
			Key:      enhance.Key{Scope: enhance.ScopeAchievement, ItemID: item.ID},
			Kind:     enhance.PromptAchievement,
			Name:     name,
			Caption:  raw,
			Fallback: raw,
		}
	}
}

// rawText is the item's description, or its title when there is none.
func rawText(item content.Item) string {
	if strings.TrimSpace(item.Description) != "" {
		return item.Description
	}
	return item.Title
}
