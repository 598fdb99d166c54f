// Package chunking combines partitioned elements into larger sections.
package chunking

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/partition"
)

const (
	StrategyNone    = ""
	StrategyByTitle = "by_title"

	DefaultMaxCharacters = 500
)

// Strategy rewrites an element sequence.
type Strategy func([]element.Element) []element.Element

// Lookup returns the strategy registered under key. The empty key returns a
// nil strategy, meaning elements pass through unchanged.
func Lookup(key string) (Strategy, error) {
	switch key {
	case StrategyNone:
		return nil, nil
	case StrategyByTitle:
		return func(els []element.Element) []element.Element {
			return ByTitle(els, Options{})
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown chunking strategy %q", partition.ErrInvalidArgument, key)
}

// Options for ByTitle. Zero fields take their defaults.
type Options struct {
	// MaxCharacters is the hard limit on chunk text length.
	MaxCharacters int
	// NewAfterNChars closes a section once it reaches this length.
	NewAfterNChars int
	// CombineTextUnderN merges a section shorter than this into the next one
	// when the result still fits MaxCharacters.
	CombineTextUnderN int
}

func (o Options) withDefaults() Options {
	if o.MaxCharacters <= 0 {
		o.MaxCharacters = DefaultMaxCharacters
	}
	if o.NewAfterNChars <= 0 || o.NewAfterNChars > o.MaxCharacters {
		o.NewAfterNChars = o.MaxCharacters
	}
	if o.CombineTextUnderN <= 0 || o.CombineTextUnderN > o.MaxCharacters {
		o.CombineTextUnderN = o.MaxCharacters
	}
	return o
}

const separator = "\n\n"

type section struct {
	els []element.Element
	n   int
}

func (s *section) add(e element.Element) {
	if len(s.els) > 0 {
		s.n += len(separator)
	}
	s.els = append(s.els, e)
	s.n += utf8.RuneCountInString(e.Text)
}

// ByTitle groups elements into CompositeElement chunks. Every Title starts a
// new section; sections are closed at NewAfterNChars, small neighbours are
// combined and oversized text is split at MaxCharacters.
func ByTitle(els []element.Element, opts Options) []element.Element {
	opts = opts.withDefaults()

	var sections []*section
	cur := &section{}
	flush := func() {
		if len(cur.els) > 0 {
			sections = append(sections, cur)
		}
		cur = &section{}
	}
	for _, e := range els {
		n := utf8.RuneCountInString(e.Text)
		switch {
		case e.Kind == element.KindTitle:
			flush()
		case len(cur.els) > 0 && cur.n+len(separator)+n > opts.NewAfterNChars:
			flush()
		}
		cur.add(e)
	}
	flush()

	var merged []*section
	for _, s := range sections {
		if last := len(merged) - 1; last >= 0 {
			prev := merged[last]
			if prev.n < opts.CombineTextUnderN && prev.n+len(separator)+s.n <= opts.MaxCharacters {
				for _, e := range s.els {
					prev.add(e)
				}
				continue
			}
		}
		merged = append(merged, s)
	}

	var out []element.Element
	for _, s := range merged {
		texts := make([]string, 0, len(s.els))
		for _, e := range s.els {
			texts = append(texts, e.Text)
		}
		md := sectionMetadata(s.els)
		for _, part := range splitText(strings.Join(texts, separator), opts.MaxCharacters) {
			out = append(out, element.New(element.KindComposite, part).WithMetadata(md))
		}
	}
	element.AssignIDs(out)
	return out
}

// sectionMetadata takes the first element's record and unions the languages
// of the section.
func sectionMetadata(els []element.Element) element.Metadata {
	md := els[0].Metadata.Clone()
	for _, e := range els[1:] {
		for _, l := range e.Metadata.Languages {
			if !slices.Contains(md.Languages, l) {
				md.Languages = append(md.Languages, l)
			}
		}
	}
	return md
}

// splitText cuts text into pieces of at most max runes, preferring
// whitespace.
func splitText(text string, max int) []string {
	var out []string
	for utf8.RuneCountInString(text) > max {
		runes := []rune(text)
		cut := max
		for i := max; i > max/2; i-- {
			if runes[i] == ' ' || runes[i] == '\n' {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[:cut])))
		text = strings.TrimSpace(string(runes[cut:]))
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
