package handlers

import (
	"fmt"
	"strings"

	"reach/internal/newsletter"
	"reach/internal/render"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).Padding(0, 1)
)

// summarize renders a run result for the terminal.
func summarize(result *newsletter.Result, files render.Artifacts) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(result.Subject))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	row("Run", result.RunID)
	row("Strategy", result.Stats.Strategy)
	row("Sections", fmt.Sprintf("%d from %d items", len(result.Sections), result.Stats.Items))
	row("LLM", fmt.Sprintf("%d calls, %d cache hits, %d fallbacks",
		result.Stats.LLMCalls, result.Stats.CacheHits, result.Stats.Fallbacks))
	if result.Stats.PDFBytes > 0 {
		row("PDF", fmt.Sprintf("%d bytes", result.Stats.PDFBytes))
	} else {
		row("PDF", "not rendered")
	}
	if files.HTMLPath != "" {
		row("HTML file", files.HTMLPath)
	}
	if files.PDFPath != "" {
		row("PDF file", files.PDFPath)
	}

	switch {
	case result.Sent == nil:
		row("Email", "dry run, nothing sent")
	case result.Sent.Success:
		row("Email", okStyle.Render(fmt.Sprintf("sent to %d recipients", result.Sent.Count)))
	default:
		row("Email", errStyle.Render(fmt.Sprintf("failed after %d recipients: %s", result.Sent.Count, result.Sent.Error)))
	}
	row("Duration", result.Stats.Duration.String())

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
