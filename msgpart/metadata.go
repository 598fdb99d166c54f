package msgpart

import (
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/dhcgn/msg-partition/mimebody"
	"github.com/dhcgn/msg-partition/msg"
	"github.com/dhcgn/msg-partition/partition"
)

// SentFrom returns the From header as "Name <addr>" strings.
func SentFrom(h msg.Header) []string {
	return addressList(h.Get("From"))
}

// SentTo returns the To header as a list. Values that do not parse as an
// address list are split on commas and semicolons.
func SentTo(h msg.Header) []string {
	return addressList(h.Get("To"))
}

func Subject(h msg.Header) string {
	return strings.TrimSpace(h.Get("Subject"))
}

func addressList(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	list, err := mail.ParseAddressList(v)
	if err == nil && len(list) > 0 {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, mimebody.FormatAddress(a.Name, a.Address))
		}
		return out
	}

	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// HeaderDate returns the Date header in metadata form, keeping the zone of
// the header. It is empty when the header is absent or unparsable.
func HeaderDate(h msg.Header) string {
	v := h.Get("Date")
	if v == "" {
		return ""
	}
	var mh mail.Header
	mh.Set("Date", v)
	t, err := mh.Date()
	if err != nil || t.IsZero() {
		return ""
	}
	return partition.FormatTime(t)
}

// LastModified returns the first non-empty candidate. Callers pass, in
// order: the override, the header date, and the path or stream modification
// time.
func LastModified(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
