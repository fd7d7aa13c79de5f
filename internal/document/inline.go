package document

import (
	"bytes"
	"fmt"
	"html/template"
)

const inlinePage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
{{.CSS}}
</head>
<body>
<div class="container">
<div class="header">
<h1>{{.Subject}}</h1>
<p class="org">{{.OrgName}}</p>
</div>
<div class="content">
{{range .Blocks}}{{template "block" .}}{{end}}</div>
<div class="footer">
<p>You are receiving this because you support {{.OrgName}}. Thank you for keeping students in school.</p>
</div>
</div>
</body>
</html>
`

// InlineAssembler renders sections in encounter order inside a generated page.
type InlineAssembler struct {
	opts Options
	tmpl *template.Template
}

// NewInlineAssembler builds the inline-styled strategy.
func NewInlineAssembler(opts Options) *InlineAssembler {
	if opts.Theme == (Theme{}) {
		opts.Theme = DefaultTheme()
	}
	tmpl := template.Must(template.New("page").Parse(blockTemplate + inlinePage))
	return &InlineAssembler{opts: opts, tmpl: tmpl}
}

// Assemble implements Assembler.
func (a *InlineAssembler) Assemble(subject string, sections []Section) (string, error) {
	data := struct {
		Subject string
		OrgName string
		CSS     template.HTML
		Blocks  []Block
	}{
		Subject: subject,
		OrgName: a.opts.OrgName,
		CSS:     template.HTML(a.opts.Theme.CSS()),
		Blocks:  GroupBlocks(sections),
	}

	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute inline template: %w", err)
	}
	return buf.String(), nil
}
