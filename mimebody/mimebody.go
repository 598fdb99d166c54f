// Package mimebody reads an RFC 5322 message and collects its header, its
// text bodies and its attachments.
package mimebody

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/dhcgn/msg-partition/segment"
)

// Attachment is a non-inline part of a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Body is the decoded content of a message.
type Body struct {
	Header      mail.Header
	Text        string
	HTML        string
	Attachments []Attachment
}

// Read parses a message. Parts in an unknown charset are kept undecoded.
func Read(r io.Reader) (*Body, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message: %w", err)
	}
	defer mr.Close()

	b := &Body{Header: mr.Header}
	for idx := 0; ; idx++ {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return b, nil
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("part %d: %w", idx, err)
		}

		data, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("part %d read: %w", idx, err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			switch {
			case ct == "text/plain" || ct == "":
				if b.Text == "" {
					b.Text = string(data)
				}
			case ct == "text/html":
				if b.HTML == "" {
					b.HTML = string(data)
				}
			default:
				b.Attachments = append(b.Attachments, Attachment{
					Filename:    fmt.Sprintf("part-%d", idx),
					ContentType: ct,
					Data:        data,
				})
			}
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			ct, _, _ := h.ContentType()
			// A part without Content-Type is text/plain.
			if name == "" && ct == "" && b.Text == "" {
				b.Text = string(data)
				continue
			}
			if name == "" {
				name = fmt.Sprintf("attachment-%d", idx)
			}
			b.Attachments = append(b.Attachments, Attachment{Filename: name, ContentType: ct, Data: data})
		}
	}
}

// PlainText returns the text body, falling back to the text of the HTML
// body.
func (b *Body) PlainText() (string, error) {
	if strings.TrimSpace(b.Text) != "" {
		return b.Text, nil
	}
	if b.HTML == "" {
		return "", nil
	}
	return segment.HTMLText(strings.NewReader(b.HTML))
}

// Addresses formats an address header as "Name <addr>" strings. An
// unparsable value is returned as is.
func Addresses(h mail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err != nil || len(list) == 0 {
		v, _ := h.Text(key)
		if v = strings.TrimSpace(v); v != "" {
			return []string{v}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, FormatAddress(a.Name, a.Address))
	}
	return out
}

// FormatAddress renders a display name and an address.
func FormatAddress(name, addr string) string {
	name = strings.TrimSpace(name)
	addr = strings.TrimSpace(addr)
	switch {
	case name != "" && addr != "" && !strings.EqualFold(name, addr):
		return name + " <" + addr + ">"
	case addr != "":
		return addr
	default:
		return name
	}
}
