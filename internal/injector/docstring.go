package injector

import (
	"strings"

	"github.com/mitchellh/go-wordwrap"
)

const (
	lineLimit = 88
	minWidth  = 40
	quote     = `"""`
)

// Width returns the wrap width for docstring text at the given indentation.
func Width(indent string) int {
	return max(minWidth, lineLimit-len(indent))
}

// Normalize collapses whitespace and escapes the summary so it is safe inside
// a triple-quoted string.
func Normalize(summary string) string {
	s := strings.Join(strings.Fields(summary), " ")
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, quote, `\"\"\"`)
	if strings.HasSuffix(s, `"`) && trailingBackslashes(s[:len(s)-1])%2 == 0 {
		s = s[:len(s)-1] + `\"`
	}
	return s
}

func trailingBackslashes(s string) int {
	return len(s) - len(strings.TrimRight(s, `\`))
}

// breakLongWords splits any word longer than width into width-sized pieces
// so the wrapper can place them on separate lines. A piece never ends inside
// an escape sequence.
func breakLongWords(text string, width int) string {
	words := strings.Split(text, " ")
	for i, w := range words {
		r := []rune(w)
		if len(r) <= width {
			continue
		}
		var parts []string
		for len(r) > width {
			cut := width
			if trailingBackslashes(string(r[:cut]))%2 == 1 {
				cut--
			}
			parts = append(parts, string(r[:cut]))
			r = r[cut:]
		}
		words[i] = strings.Join(append(parts, string(r)), " ")
	}
	return strings.Join(words, " ")
}

// FormatDocstring renders summary as docstring lines, without terminators.
// Text that fits the width becomes a single line; anything longer becomes a
// block with the quotes on their own lines.
func FormatDocstring(summary, indent string) []string {
	text := Normalize(summary)
	if text == "" {
		return nil
	}
	width := Width(indent)
	wrapped := strings.Split(wordwrap.WrapString(breakLongWords(text, width), uint(width)), "\n")
	if len(wrapped) == 1 {
		return []string{indent + quote + text + quote}
	}

	out := make([]string, 0, len(wrapped)+2)
	out = append(out, indent+quote)
	for _, l := range wrapped {
		out = append(out, indent+strings.TrimRight(l, " "))
	}
	return append(out, indent+quote)
}

// isDocstring reports whether a trimmed source line opens a string literal
// with triple quotes, optionally behind a string prefix.
func isDocstring(trimmed string) bool {
	rest := strings.TrimLeft(trimmed, "rRuUbBfF")
	if len(trimmed)-len(rest) > 2 {
		return false
	}
	return strings.HasPrefix(rest, `"""`) || strings.HasPrefix(rest, `'''`)
}
