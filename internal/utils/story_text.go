package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultStoryTitle is used when the model output has no "# " title line
const DefaultStoryTitle = "Untitled Story"

var blankLinesPattern = regexp.MustCompile(`\n[ \t\f\v]*\n\s*`)

// ExtractTitle splits generated story text into its title and body.
// The title is taken from the first line only when it starts with "# ".
func ExtractTitle(text string) (title string, body string, found bool) {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "# ") {
		title = strings.TrimSpace(strings.Trim(lines[0], "# "))
		body = strings.TrimSpace(strings.Join(lines[1:], "\n"))
		return title, body, true
	}
	return DefaultStoryTitle, strings.TrimSpace(text), false
}

// SplitParagraphs splits a story body on blank lines
func SplitParagraphs(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.TrimSpace(body)
	if body == "" {
		return []string{}
	}

	parts := blankLinesPattern.Split(body, -1)
	paragraphs := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			paragraphs = append(paragraphs, part)
		}
	}
	return paragraphs
}

// SummarizeParagraph collapses whitespace and cuts the paragraph at a word
// boundary so it fits in maxRunes (plus the "..." suffix).
func SummarizeParagraph(paragraph string, maxRunes int) string {
	summary := strings.Join(strings.Fields(paragraph), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(summary) <= maxRunes {
		return summary
	}

	runes := []rune(summary)
	cut := string(runes[:maxRunes])
	// A space right after the limit means the last word is already complete
	if runes[maxRunes] != ' ' {
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = cut[:idx]
		}
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}
