// Package document assembles newsletter sections into a standalone HTML
// document suitable for both email bodies and print rendering.
package document

import (
	"html/template"
	"net/url"
	"strings"
)

// Section is one rendered block of the newsletter, built from one content item.
type Section struct {
	Category string   `json:"category"`
	Title    string   `json:"title"`
	BodyHTML string   `json:"bodyHtml"`
	Images   []string `json:"images"`
}

// Body returns the already-sanitized body markup for templates.
func (s Section) Body() template.HTML {
	return template.HTML(s.BodyHTML)
}

// Block is a run of sections sharing one category.
type Block struct {
	Category string
	Sections []Section
}

// GroupBlocks folds consecutive sections of the same category into blocks,
// keeping their order.
func GroupBlocks(sections []Section) []Block {
	var blocks []Block
	for _, s := range sections {
		if n := len(blocks); n > 0 && blocks[n-1].Category == s.Category {
			blocks[n-1].Sections = append(blocks[n-1].Sections, s)
			continue
		}
		blocks = append(blocks, Block{Category: s.Category, Sections: []Section{s}})
	}
	return blocks
}

// AbsoluteImageURLs keeps only absolute http(s) URLs. The PDF renderer loads
// the document by content injection, so relative paths can never resolve.
func AbsoluteImageURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		out = append(out, raw)
	}
	return out
}
