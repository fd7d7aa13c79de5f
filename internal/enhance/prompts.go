package enhance

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// PromptKind selects one of the three prompt variants.
type PromptKind string

const (
	PromptGratitude      PromptKind = "gratitude"
	PromptAchievement    PromptKind = "achievement"
	PromptStudentOfMonth PromptKind = "student_of_month"
)

// RoleFraming is the system message sent with every prompt.
const RoleFraming = `You are the newsletter writer for %s, a charity that funds the education of underprivileged students. ` +
	`You write warm, sincere and concise prose for donors. Never invent facts that are not in the material you are given. ` +
	`Do not start with a greeting or salutation and do not sign off.`

const gratitudePromptTemplate = `Write a short message (2-3 sentences, under 80 words) thanking our donors for their continued support this month. ` +
	`Mention that their generosity keeps students in school. Use plain text; you may use **bold** for one key phrase.`

const achievementPromptTemplate = `Write one short paragraph (under 90 words) celebrating this update for our donors.
Student: %s
Caption: %s

Keep every fact from the caption. Use plain text; you may use **bold** for the student's name.`

const studentOfMonthPromptTemplate = `Write a 2-paragraph feature (120-180 words) introducing our Student of the Month to donors.
Student: %s
Caption: %s

Paragraph one describes the achievement using only facts from the caption. Paragraph two explains how donor support made it possible. ` +
	`Separate paragraphs with a blank line. Use plain text; you may use **bold** for the student's name and *italics* for one phrase.`

// BuildPrompt renders the task prompt for kind. Gratitude takes no item input.
func BuildPrompt(kind PromptKind, name, caption string) string {
	if name == "" {
		name = "one of our students"
	}
	caption = strings.TrimSpace(caption)

	switch kind {
	case PromptStudentOfMonth:
		return fmt.Sprintf(studentOfMonthPromptTemplate, name, caption)
	case PromptAchievement:
		return fmt.Sprintf(achievementPromptTemplate, name, caption)
	default:
		return gratitudePromptTemplate
	}
}

// BuildRoleFraming returns the system message for orgName.
func BuildRoleFraming(orgName string) string {
	if orgName == "" {
		orgName = "our organisation"
	}
	return fmt.Sprintf(RoleFraming, orgName)
}

var (
	titleSeparators = []string{":", " - ", " – ", " — ", "|"}
	capitalizedRun  = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2}\b`)
	nameStopwords   = map[string]bool{
		"the": true, "a": true, "an": true, "our": true, "this": true, "we": true,
		"student": true, "students": true, "month": true, "of": true, "congratulations": true,
		"project": true, "reach": true, "meet": true, "festive": true, "season": true,
		"event": true, "general": true, "update": true, "updates": true, "she": true, "he": true,
		"they": true, "her": true, "his": true, "their": true, "in": true, "on": true, "at": true,
		"january": true, "february": true, "march": true, "april": true, "may": true, "june": true,
		"july": true, "august": true, "september": true, "october": true, "november": true, "december": true,
	}
)

// ExtractName makes a best-effort guess at the student's name, first from a
// "Label: Name" style title, then from the first capitalized run in the
// caption that is not a common word. It returns "" when nothing fits.
func ExtractName(title, caption string) string {
	for _, sep := range titleSeparators {
		if idx := strings.LastIndex(title, sep); idx >= 0 {
			if candidate := strings.TrimSpace(title[idx+len(sep):]); looksLikeName(candidate) {
				return candidate
			}
		}
	}

	for _, text := range []string{caption, title} {
		for _, run := range capitalizedRun.FindAllString(text, -1) {
			words := strings.Fields(run)
			for len(words) > 0 && nameStopwords[strings.ToLower(words[0])] {
				words = words[1:]
			}
			for len(words) > 0 && nameStopwords[strings.ToLower(words[len(words)-1])] {
				words = words[:len(words)-1]
			}
			if len(words) > 0 {
				return strings.Join(words, " ")
			}
		}
	}
	return ""
}

func looksLikeName(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) || nameStopwords[strings.ToLower(w)] {
			return false
		}
	}
	return true
}
