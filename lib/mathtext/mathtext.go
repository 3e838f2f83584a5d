// Package mathtext normalizes text extracted from community-edited wiki
// pages. Embedded LaTeX is opaque payload here: whitespace outside math
// delimiters is collapsed, the math itself is never rewritten.
package mathtext

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	collapseWhitespace = regexp.MustCompile(`[ \t]+`)
	collapseNewlines   = regexp.MustCompile(`\n{3,}`)
)

// Normalize strips non-printable characters, collapses runs of spaces and
// blank lines, and trims the result. Line structure is kept because solution
// bodies use it to separate paragraphs from attribution lines.
func Normalize(text string) string {
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(collapseWhitespace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = collapseNewlines.ReplaceAllString(text, "\n\n")
	return strings.Trim(text, " \n")
}

// NormalizeKey lowercases and removes all whitespace, producing a string
// suitable for loose comparisons of section headings and answer values.
func NormalizeKey(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}

var attributionLine = regexp.MustCompile(`(?m)^~\s*(.+?)\s*$`)

// Attribution returns the author credit of a solution body, if present.
// Wiki convention is a trailing line of the form "~username".
func Attribution(body string) string {
	matches := attributionLine.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1][1]
}
