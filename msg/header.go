package msg

import (
	"bufio"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/textproto"
)

// Header holds the header fields of a message, one value per key. Keys are
// canonicalized by go-message.
type Header struct {
	message.Header
}

// Set replaces the value of key. An empty value removes it.
func (h *Header) Set(key, value string) {
	if value == "" {
		h.Del(key)
		return
	}
	h.Header.Set(key, value)
}

// FirstValues returns the first value of every field by canonical key.
func (h *Header) FirstValues() map[string]string {
	out := make(map[string]string, h.Len())
	fields := h.Fields()
	for fields.Next() {
		if _, seen := out[fields.Key()]; !seen {
			out[fields.Key()] = fields.Value()
		}
	}
	return out
}

// parseTransportHeaders reads a raw RFC 5322 header block. Encoded words
// are decoded. A block that does not parse yields the fields read so far.
func parseTransportHeaders(raw string) Header {
	var out Header
	raw = strings.TrimLeft(raw, "\r\n")
	if strings.TrimSpace(raw) == "" {
		return out
	}
	if !strings.HasSuffix(raw, "\r\n\r\n") && !strings.HasSuffix(raw, "\n\n") {
		raw += "\r\n\r\n"
	}

	th, _ := textproto.ReadHeader(bufio.NewReader(strings.NewReader(raw)))
	h := message.Header{Header: th}
	fields := h.Fields()
	for fields.Next() {
		key := fields.Key()
		if out.Has(key) {
			continue
		}
		// Text returns the raw value alongside an unknown-charset error.
		v, _ := h.Text(key)
		out.Set(key, strings.TrimSpace(v))
	}
	return out
}
