// Package element defines the typed document elements produced by the
// partitioners, together with their provenance metadata.
package element

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrTypeMismatch reports a value of the wrong shape, e.g. a scalar where a
// list of language codes is expected.
var ErrTypeMismatch = errors.New("type mismatch")

// DefaultLanguage is applied when the caller does not override languages.
const DefaultLanguage = "eng"

// Kind is the variant tag of an Element.
type Kind string

const (
	KindTitle         Kind = "Title"
	KindNarrativeText Kind = "NarrativeText"
	KindListItem      Kind = "ListItem"
	KindText          Kind = "UncategorizedText"
	KindComposite     Kind = "CompositeElement"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindTitle, KindNarrativeText, KindListItem, KindText, KindComposite:
		return true
	}
	return false
}

// Metadata carries provenance for an element. Empty strings and nil slices
// mean the field is absent.
type Metadata struct {
	Filename           string   `json:"filename,omitempty"`
	FileDirectory      string   `json:"file_directory,omitempty"`
	LastModified       string   `json:"last_modified,omitempty"`
	SentFrom           []string `json:"sent_from,omitempty"`
	SentTo             []string `json:"sent_to,omitempty"`
	Subject            string   `json:"subject,omitempty"`
	Filetype           string   `json:"filetype,omitempty"`
	Languages          []string `json:"languages,omitempty"`
	ParentID           string   `json:"parent_id,omitempty"`
	AttachedToFilename string   `json:"attached_to_filename,omitempty"`
	DetectionOrigin    string   `json:"detection_origin,omitempty"`
}

// IsZero reports whether every field is absent.
func (m Metadata) IsZero() bool {
	return m.Equal(Metadata{})
}

// Equal compares all fields. Nil and empty slices compare equal.
func (m Metadata) Equal(o Metadata) bool {
	return m.Filename == o.Filename &&
		m.FileDirectory == o.FileDirectory &&
		m.LastModified == o.LastModified &&
		slices.Equal(m.SentFrom, o.SentFrom) &&
		slices.Equal(m.SentTo, o.SentTo) &&
		m.Subject == o.Subject &&
		m.Filetype == o.Filetype &&
		slices.Equal(m.Languages, o.Languages) &&
		m.ParentID == o.ParentID &&
		m.AttachedToFilename == o.AttachedToFilename &&
		m.DetectionOrigin == o.DetectionOrigin
}

// Clone returns a copy that shares no slices with m.
func (m Metadata) Clone() Metadata {
	m.SentFrom = cloneStrings(m.SentFrom)
	m.SentTo = cloneStrings(m.SentTo)
	m.Languages = cloneStrings(m.Languages)
	return m
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

// Element is one classified unit of extracted text.
type Element struct {
	ID       string   `json:"element_id"`
	Kind     Kind     `json:"type"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// New returns an element without metadata or id.
func New(kind Kind, text string) Element {
	return Element{Kind: kind, Text: text}
}

// Equal compares kind and text, the way callers compare expected output.
func (e Element) Equal(o Element) bool {
	return e.Kind == o.Kind && e.Text == o.Text
}

// String returns the element text.
func (e Element) String() string {
	return e.Text
}

// WithMetadata returns a copy of e carrying md.
func (e Element) WithMetadata(md Metadata) Element {
	e.Metadata = md.Clone()
	return e
}

// AssignIDs sets a deterministic id on every element, derived from kind, text,
// position and parent id.
func AssignIDs(els []Element) {
	for i := range els {
		els[i].ID = hashID(els[i], i)
	}
}

func hashID(e Element, idx int) string {
	h := sha256.New()
	h.Write([]byte(e.Kind))
	h.Write([]byte{0})
	h.Write([]byte(e.Text))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(idx)))
	h.Write([]byte{0})
	h.Write([]byte(e.Metadata.ParentID))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// EqualAll reports whether a and b hold pairwise Equal elements.
func EqualAll(a, b []Element) bool {
	return slices.EqualFunc(a, b, Element.Equal)
}

// Languages returns override when it is non-empty, else the default list.
func Languages(override []string) []string {
	if len(override) == 0 {
		return []string{DefaultLanguage}
	}
	return slices.Clone(override)
}

// ParseLanguages converts a loosely typed value, as decoded from YAML or JSON,
// into an ordered list of language codes. A scalar string is rejected with
// ErrTypeMismatch.
func ParseLanguages(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return validateCodes(t)
	case []any:
		codes := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: languages[%d] is %T, want string", ErrTypeMismatch, i, item)
			}
			codes = append(codes, s)
		}
		return validateCodes(codes)
	default:
		return nil, fmt.Errorf("%w: languages must be a list of codes, got %T", ErrTypeMismatch, v)
	}
}

func validateCodes(codes []string) ([]string, error) {
	for i, c := range codes {
		if c == "" {
			return nil, fmt.Errorf("%w: languages[%d] is empty", ErrTypeMismatch, i)
		}
	}
	if len(codes) == 0 {
		return nil, nil
	}
	return slices.Clone(codes), nil
}
