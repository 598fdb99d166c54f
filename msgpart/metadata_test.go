package msgpart

import (
	"slices"
	"testing"

	"github.com/dhcgn/msg-partition/msg"
)

func TestAddressMetadata(t *testing.T) {
	tests := []struct {
		name string
		to   string
		want []string
	}{
		{"empty", "", nil},
		{"name only", "Matthew Robinson", []string{"Matthew Robinson"}},
		{"address list", "Ann <ann@example.com>, bob@example.com", []string{"Ann <ann@example.com>", "bob@example.com"}},
		{"semicolons", "Ann Lee; Bob Roe", []string{"Ann Lee", "Bob Roe"}},
		{"encoded name", "=?utf-8?q?J=C3=BCrgen?= <j@example.com>", []string{"Jürgen <j@example.com>"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := msg.Header{}
			h.Set("To", tt.to)
			if got := SentTo(h); !slices.Equal(got, tt.want) {
				t.Errorf("SentTo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSentFromAndSubject(t *testing.T) {
	h := msg.Header{}
	h.Set("From", "Matthew Robinson <mrobinson@unstructured.io>")
	h.Set("Subject", "  Test Email ")

	if got := SentFrom(h); !slices.Equal(got, []string{"Matthew Robinson <mrobinson@unstructured.io>"}) {
		t.Errorf("SentFrom() = %q", got)
	}
	if got := Subject(h); got != "Test Email" {
		t.Errorf("Subject() = %q", got)
	}
}

func TestHeaderDate(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"Fri, 16 Dec 2022 17:04:16 -0500", "2022-12-16T17:04:16-05:00"},
		{"Wed, 22 Feb 2023 14:51:41 +0000", "2023-02-22T14:51:41+00:00"},
		{"", ""},
		{"not a date", ""},
	}
	for _, tt := range tests {
		h := msg.Header{}
		h.Set("Date", tt.date)
		if got := HeaderDate(h); got != tt.want {
			t.Errorf("HeaderDate(%q) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestLastModified(t *testing.T) {
	tests := []struct {
		candidates []string
		want       string
	}{
		{[]string{"override", "header", "mtime"}, "override"},
		{[]string{"", "header", "mtime"}, "header"},
		{[]string{"", "", "mtime"}, "mtime"},
		{[]string{"", "", ""}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := LastModified(tt.candidates...); got != tt.want {
			t.Errorf("LastModified(%q) = %q, want %q", tt.candidates, got, tt.want)
		}
	}
}
