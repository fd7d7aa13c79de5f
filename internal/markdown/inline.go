// Package markdown converts plain section text into the small HTML subset
// used in newsletter bodies: paragraphs, <strong> and <em>.
package markdown

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	htmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	strongEmPattern  = regexp.MustCompile(`\*\*\*(.+?)\*\*\*`)
	boldPattern      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	paragraphPattern = regexp.MustCompile(`\n{2,}`)
)

// Escape replaces the five HTML-sensitive characters with entities.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

// ConvertInline turns ***bold italic***, **bold** and *italic* spans into
// markup. Input must already be escaped; unmatched ** runs are removed.
func ConvertInline(s string) string {
	s = strongEmPattern.ReplaceAllString(s, "<strong><em>$1</em></strong>")
	s = boldPattern.ReplaceAllString(s, "<strong>$1</strong>")
	s = convertItalic(s)
	return StripUnmatchedBold(s)
}

// StripUnmatchedBold removes any remaining ** sequences.
func StripUnmatchedBold(s string) string {
	return strings.ReplaceAll(s, "**", "")
}

// convertItalic wraps *span* in <em> when the asterisks stand alone (not part
// of a ** run), hug the span, and are bounded by whitespace, punctuation or
// the string edges. An opening star whose span would cross a <strong>
// boundary is dropped.
func convertItalic(s string) string {
	if !strings.Contains(s, "*") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for i < len(s) {
		if s[i] != '*' || !isLoneStar(s, i) || !leftBounded(s, i) {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := findClosingStar(s, i+1)
		if end < 0 {
			b.WriteByte(s[i])
			i++
			continue
		}
		if !balancedStrong(s[i+1 : end]) {
			i++
			continue
		}
		b.WriteString("<em>")
		b.WriteString(s[i+1 : end])
		b.WriteString("</em>")
		i = end + 1
	}
	return b.String()
}

func isLoneStar(s string, i int) bool {
	if i > 0 && s[i-1] == '*' {
		return false
	}
	if i+1 < len(s) && s[i+1] == '*' {
		return false
	}
	return true
}

func leftBounded(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isBoundary(r)
}

func rightBounded(s string, i int) bool {
	if i+1 >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i+1:])
	return isBoundary(r)
}

// findClosingStar returns the index of the star closing a span opened just
// before start, or -1.
func findClosingStar(s string, start int) int {
	if start >= len(s) {
		return -1
	}
	first, _ := utf8.DecodeRuneInString(s[start:])
	if unicode.IsSpace(first) || first == '*' {
		return -1
	}
	for j := start + 1; j < len(s); j++ {
		if s[j] != '*' {
			continue
		}
		if !isLoneStar(s, j) {
			return -1
		}
		last, _ := utf8.DecodeLastRuneInString(s[:j])
		if unicode.IsSpace(last) || !rightBounded(s, j) {
			return -1
		}
		return j
	}
	return -1
}

// balancedStrong reports whether every <strong> in s is closed inside s.
func balancedStrong(s string) bool {
	depth := 0
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], "<strong>"):
			depth++
			i += len("<strong>")
		case strings.HasPrefix(s[i:], "</strong>"):
			depth--
			if depth < 0 {
				return false
			}
			i += len("</strong>")
		default:
			i++
		}
	}
	return depth == 0
}

func isBoundary(r rune) bool {
	if r == '*' {
		return false
	}
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

// Paragraphs splits text on blank lines and returns the trimmed, non-empty segments.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, seg := range paragraphPattern.Split(text, -1) {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// ToHTML escapes text, applies inline markup and wraps each paragraph in <p>.
// Text without paragraphs still produces a single empty <p></p>.
func ToHTML(text string) string {
	paras := Paragraphs(text)
	if len(paras) == 0 {
		return "<p></p>"
	}

	var b strings.Builder
	for _, p := range paras {
		b.WriteString("<p>")
		b.WriteString(ConvertInline(Escape(p)))
		b.WriteString("</p>")
	}
	return b.String()
}
