package document

import (
	"fmt"
	"html/template"
	"strings"
)

// AssemblyStrategy selects how sections become a document.
type AssemblyStrategy int

const (
	// StrategyInline concatenates sections into a generated page with embedded styles.
	StrategyInline AssemblyStrategy = iota
	// StrategyTemplate substitutes category blocks into a base HTML file.
	StrategyTemplate
)

func (s AssemblyStrategy) String() string {
	switch s {
	case StrategyInline:
		return "inline"
	case StrategyTemplate:
		return "template"
	default:
		return fmt.Sprintf("AssemblyStrategy(%d)", int(s))
	}
}

// StrategyFor maps the useTemplate flag onto a strategy.
func StrategyFor(useTemplate bool) AssemblyStrategy {
	if useTemplate {
		return StrategyTemplate
	}
	return StrategyInline
}

// Assembler turns a subject and ordered sections into a complete HTML document.
type Assembler interface {
	Assemble(subject string, sections []Section) (string, error)
}

// Options configures both strategies.
type Options struct {
	OrgName string
	Theme   Theme
	// TemplatePath overrides the embedded base template for StrategyTemplate.
	TemplatePath string
}

// New returns the assembler for strategy.
func New(strategy AssemblyStrategy, opts Options) (Assembler, error) {
	if opts.Theme == (Theme{}) {
		opts.Theme = DefaultTheme()
	}
	switch strategy {
	case StrategyInline:
		return NewInlineAssembler(opts), nil
	case StrategyTemplate:
		return NewTemplateAssembler(opts)
	default:
		return nil, fmt.Errorf("unknown assembly strategy %v", strategy)
	}
}

const blockTemplate = `{{define "block"}}<section class="category-block">
<h2 class="category-title">{{.Category}}</h2>
{{range .Sections}}<article class="section">
{{if .Title}}<h3 class="section-title">{{.Title}}</h3>
{{end}}<div class="section-body">{{.Body}}</div>
{{if .Images}}<div class="section-images">{{range .Images}}<img src="{{.}}" alt="">{{end}}</div>
{{end}}</article>
{{end}}</section>
{{end}}`

var blockTmpl = template.Must(template.New("blocks").Parse(blockTemplate))

// renderBlocks renders blocks with the shared block template.
func renderBlocks(blocks []Block) (string, error) {
	var b strings.Builder
	for _, block := range blocks {
		if err := blockTmpl.ExecuteTemplate(&b, "block", block); err != nil {
			return "", fmt.Errorf("failed to render %q block: %w", block.Category, err)
		}
	}
	return b.String(), nil
}
