package segment

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dhcgn/msg-partition/element"
)

const titleMaxWords = 12

const bulletChars = "\u0095·•‣⁃⁌⁍∙■□▪►○●◘◦☙❥❧➢➤⦾⦿"

var (
	bulletRe   = regexp.MustCompile(`^\s*(?:[` + bulletChars + `]\s*|[-*+]\s+|o\s+)`)
	numberedRe = regexp.MustCompile(`^\s*\(?(?:\d{1,3}|[a-z])[.)]\s+\S`)
	midStopRe  = regexp.MustCompile(`[.!?]\s+\S`)
)

// IsBulleted reports whether text starts with a bullet or list-number marker.
func IsBulleted(text string) bool {
	return bulletRe.MatchString(text) || numberedRe.MatchString(text)
}

func isEmptyBullet(text string) bool {
	if utf8.RuneCountInString(text) != 1 {
		return false
	}
	return strings.ContainsAny(text, bulletChars+"-*+")
}

// Classify assigns an element kind to a chunk of text and returns the text
// to emit. ok is false for chunks that carry no content.
func Classify(text string) (kind element.Kind, clean string, ok bool) {
	clean, bullet := stripBullet(text)
	if clean == "" {
		return "", "", false
	}
	if bullet {
		return element.KindListItem, clean, true
	}
	return classifyText(clean), clean, true
}

// stripBullet removes a leading bullet marker. bullet reports whether one
// was present; a bare bullet leaves clean empty.
func stripBullet(text string) (clean string, bullet bool) {
	text = strings.TrimSpace(text)
	if isEmptyBullet(text) {
		return "", true
	}
	if loc := bulletRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[1]:]), true
	}
	return text, false
}

// classifyText classifies text that carries no bullet marker.
func classifyText(text string) element.Kind {
	switch {
	case numberedRe.MatchString(text):
		return element.KindListItem
	case !hasLetter(text):
		return element.KindText
	case isTitle(text):
		return element.KindTitle
	}
	return element.KindNarrativeText
}

func isTitle(text string) bool {
	if len(strings.Fields(text)) > titleMaxWords {
		return false
	}
	if midStopRe.MatchString(text) {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(text)
	return !strings.ContainsRune(".!?;,", last)
}

func hasLetter(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
