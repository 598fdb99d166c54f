// Package segment splits plain text into an ordered sequence of typed
// elements: paragraph detection, bounded packing and rule-based
// classification.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// A line shorter than this is not the product of soft wrapping, so the next
// line starts a new paragraph.
const shortLineRunes = 40

var blankLineRe = regexp.MustCompile(`\n[ \t\f\v]*\n`)

// Normalize unifies line endings, drops NUL characters and applies NFC.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return norm.NFC.String(text)
}

// Paragraphs splits text on logical paragraph boundaries, preserving order.
// Blank lines always separate paragraphs. Inside a block a new paragraph
// starts at a bulleted line, after a line ending in a colon, and after a line
// too short to be soft-wrapped prose; other lines are joined with a space.
func Paragraphs(text string) []string {
	var out []string
	for _, block := range blankLineRe.Split(Normalize(text), -1) {
		var (
			cur  strings.Builder
			prev string
		)
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if cur.Len() > 0 && startsParagraph(prev, line) {
				out = append(out, cur.String())
				cur.Reset()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(line)
			prev = line
		}
		if cur.Len() > 0 {
			out = append(out, cur.String())
		}
	}
	return out
}

func startsParagraph(prev, line string) bool {
	switch {
	case IsBulleted(line):
		return true
	case strings.HasSuffix(prev, ":"):
		return true
	case utf8.RuneCountInString(prev) < shortLineRunes:
		return true
	}
	return false
}
