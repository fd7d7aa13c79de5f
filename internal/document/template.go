package document

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"reach/internal/content"
	"reach/internal/markdown"
)

//go:embed templates/base.html
var baseTemplate string

// Placeholder tokens recognised in the base template.
const (
	TokenSubject         = "{{SUBJECT}}"
	TokenStyles          = "{{STYLES}}"
	TokenOrgName         = "{{ORG_NAME}}"
	TokenStudentOfMonth  = "{{STUDENT_OF_THE_MONTH}}"
	TokenFestiveSeason   = "{{FESTIVE_SEASON}}"
	TokenOtherEvents     = "{{OTHER_EVENTS}}"
	TokenGeneral         = "{{GENERAL}}"
	TokenOtherCategories = "{{OTHER_CATEGORIES}}"
)

var (
	leftoverToken = regexp.MustCompile(`\{\{[A-Z0-9_]+\}\}`)

	categoryTokens = map[string]string{
		content.CategoryStudentOfMonth: TokenStudentOfMonth,
		content.CategoryFestive:        TokenFestiveSeason,
		content.CategoryEvents:         TokenOtherEvents,
		content.CategoryGeneral:        TokenGeneral,
	}
)

// TemplateAssembler fills a base HTML document's placeholder tokens with
// per-category blocks.
type TemplateAssembler struct {
	opts Options
	base string
}

// NewTemplateAssembler loads the base template from opts.TemplatePath, or
// uses the embedded one when no path is set.
func NewTemplateAssembler(opts Options) (*TemplateAssembler, error) {
	if opts.Theme == (Theme{}) {
		opts.Theme = DefaultTheme()
	}
	base := baseTemplate
	if opts.TemplatePath != "" {
		data, err := os.ReadFile(opts.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read base template %s: %w", opts.TemplatePath, err)
		}
		base = string(data)
	}
	return &TemplateAssembler{opts: opts, base: base}, nil
}

// Assemble implements Assembler. Tokens without content are removed.
func (a *TemplateAssembler) Assemble(subject string, sections []Section) (string, error) {
	byToken := make(map[string][]Block)
	for _, block := range GroupBlocks(sections) {
		token, ok := categoryTokens[block.Category]
		if !ok {
			token = TokenOtherCategories
		}
		byToken[token] = append(byToken[token], block)
	}

	pairs := []string{
		TokenSubject, markdown.Escape(subject),
		TokenStyles, a.opts.Theme.CSS(),
		TokenOrgName, markdown.Escape(a.opts.OrgName),
	}
	for _, token := range []string{TokenStudentOfMonth, TokenFestiveSeason, TokenOtherEvents, TokenGeneral, TokenOtherCategories} {
		rendered, err := renderBlocks(byToken[token])
		if err != nil {
			return "", err
		}
		pairs = append(pairs, token, rendered)
	}

	known := make(map[string]bool, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		known[pairs[i]] = true
	}
	// Unknown tokens are dropped from the base only, so token-like text in
	// section content survives.
	base := leftoverToken.ReplaceAllStringFunc(a.base, func(token string) string {
		if known[token] {
			return token
		}
		return ""
	})

	// One pass, so substituted content is never rescanned for tokens.
	out := strings.NewReplacer(pairs...).Replace(base)
	return markdown.StripUnmatchedBold(out), nil
}
