package filter

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dhcgn/msg-partition/element"
)

// Options captures the filtering configuration. Header patterns decide
// whether a whole message is partitioned; text and kind filters select the
// emitted elements.
type Options struct {
	IncludeHeader []string
	IncludeText   []string
	ExcludeHeader []string
	ExcludeText   []string
	IncludeKinds  []string
}

// Filter holds compiled regex patterns for filtering messages and elements.
type Filter struct {
	includeMode   bool
	excludeMode   bool
	includeHeader []*regexp.Regexp
	includeText   []*regexp.Regexp
	excludeHeader []*regexp.Regexp
	excludeText   []*regexp.Regexp
	kinds         map[element.Kind]bool
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeHeader, err := compilePatterns(opts.IncludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile include-header pattern: %w", err)
	}
	includeText, err := compilePatterns(opts.IncludeText)
	if err != nil {
		return nil, fmt.Errorf("compile include-text pattern: %w", err)
	}
	excludeHeader, err := compilePatterns(opts.ExcludeHeader)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-header pattern: %w", err)
	}
	excludeText, err := compilePatterns(opts.ExcludeText)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-text pattern: %w", err)
	}

	includeActive := len(includeHeader) > 0 || len(includeText) > 0
	excludeActive := len(excludeHeader) > 0 || len(excludeText) > 0
	if includeActive && excludeActive {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	var kinds map[element.Kind]bool
	for _, k := range opts.IncludeKinds {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		kind := element.Kind(k)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown element kind %q", k)
		}
		if kinds == nil {
			kinds = make(map[element.Kind]bool)
		}
		kinds[kind] = true
	}

	return &Filter{
		includeMode:   includeActive,
		excludeMode:   excludeActive,
		includeHeader: includeHeader,
		includeText:   includeText,
		excludeHeader: excludeHeader,
		excludeText:   excludeText,
		kinds:         kinds,
	}, nil
}

// AllowsHeader reports whether a message with the given header fields passes
// the header patterns. Fields are matched as "Key: value" lines.
func (f *Filter) AllowsHeader(header map[string]string) bool {
	if f == nil || (len(f.includeHeader) == 0 && len(f.excludeHeader) == 0) {
		return true
	}
	return f.allowsHeaderText(renderHeader(header))
}

// AllowsRaw applies the header patterns to the header block of a raw RFC 5322
// message.
func (f *Filter) AllowsRaw(raw []byte) bool {
	if f == nil || (len(f.includeHeader) == 0 && len(f.excludeHeader) == 0) {
		return true
	}
	header, _ := SplitRawMessage(raw)
	return f.allowsHeaderText(string(header))
}

func (f *Filter) allowsHeaderText(text string) bool {
	if len(f.includeHeader) > 0 {
		return matchAny(f.includeHeader, text)
	}
	return !matchAny(f.excludeHeader, text)
}

// Elements returns the elements that pass the text and kind filters, in
// order.
func (f *Filter) Elements(els []element.Element) []element.Element {
	if f == nil {
		return els
	}
	out := make([]element.Element, 0, len(els))
	for _, e := range els {
		if f.allowsElement(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f *Filter) allowsElement(e element.Element) bool {
	if f.kinds != nil && !f.kinds[e.Kind] {
		return false
	}
	if len(f.includeText) > 0 {
		return matchAny(f.includeText, e.Text)
	}
	if f.excludeMode && matchAny(f.excludeText, e.Text) {
		return false
	}
	return true
}

// Active reports whether any pattern or kind is configured.
func (f *Filter) Active() bool {
	return f != nil && (f.includeMode || f.excludeMode || f.kinds != nil)
}

func renderHeader(header map[string]string) string {
	keys := make([]string, 0, len(header))
	for k := range header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(header[k])
		b.WriteByte('\n')
	}
	return b.String()
}

// SplitRawMessage splits a raw email message into header and body parts.
func SplitRawMessage(raw []byte) (header, body []byte) {
	if len(raw) == 0 {
		return nil, nil
	}

	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[:idx], raw[idx+4:]
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[:idx], raw[idx+2:]
	}

	return raw, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
