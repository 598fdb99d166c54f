package segment

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLText extracts the readable text of an HTML document. Block-level
// elements become line breaks and list items become bulleted lines, so the
// result feeds straight into Paragraphs.
func HTMLText(r io.Reader) (string, error) {
	var (
		t        = html.NewTokenizer(r)
		b        strings.Builder
		tagStack []string
		pre      int
	)

	skipping := func() bool {
		for _, tag := range tagStack {
			switch tag {
			case "script", "style", "title", "svg":
				return true
			}
		}
		return false
	}

	for {
		tt := t.Next()
		switch tt {
		case html.ErrorToken:
			if err := t.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			return strings.TrimSpace(b.String()), nil
		case html.TextToken:
			if skipping() {
				continue
			}
			text := string(t.Text())
			if pre == 0 {
				text = collapseSpace(text)
			}
			b.WriteString(text)
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := t.TagName()
			tag := string(name)
			writeBreak(&b, tag)
			if tag == "li" {
				b.WriteString("• ")
			}
			switch tag {
			case "area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "param", "source", "track", "wbr":
				continue
			}
			if tt == html.SelfClosingTagToken {
				continue
			}
			if tag == "pre" {
				pre++
			}
			tagStack = append(tagStack, tag)
		case html.EndTagToken:
			name, _ := t.TagName()
			tag := string(name)
			writeBreak(&b, tag)
			// Pop up to and including the matching tag; stray end tags are ignored.
			for i := len(tagStack) - 1; i >= 0; i-- {
				if tagStack[i] == tag {
					tagStack = tagStack[:i]
					break
				}
			}
			if tag == "pre" && pre > 0 {
				pre--
			}
		}
	}
}

func writeBreak(b *strings.Builder, tag string) {
	switch tag {
	case "br", "div", "li", "tr", "dt", "dd":
		b.WriteString("\n")
	case "p", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "table", "blockquote", "pre", "hr":
		b.WriteString("\n\n")
	}
}

func collapseSpace(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		if s == "" {
			return ""
		}
		return " "
	}
	out := strings.Join(f, " ")
	if strings.TrimLeft(s, " \t\r\n") != s {
		out = " " + out
	}
	if strings.TrimRight(s, " \t\r\n") != s {
		out += " "
	}
	return out
}
