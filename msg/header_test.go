package msg

import "testing"

func TestParseTransportHeaders(t *testing.T) {
	raw := "Received: from a\r\n" +
		"Received: from b\r\n" +
		"Subject: =?utf-8?q?Caf=C3=A9?=\r\n" +
		"content-type: text/plain; charset=utf-8\r\n"

	h := parseTransportHeaders(raw)
	tests := map[string]string{
		"Received":     "from a",
		"Subject":      "Café",
		"Content-Type": "text/plain; charset=utf-8",
		"X-Missing":    "",
	}
	for k, want := range tests {
		if got := h.Get(k); got != want {
			t.Errorf("Get(%q) = %q, want %q", k, got, want)
		}
	}
}

func TestParseTransportHeadersEmpty(t *testing.T) {
	h := parseTransportHeaders("\r\n")
	if n := h.Len(); n != 0 {
		t.Errorf("parseTransportHeaders() has %d fields, want none", n)
	}
}

func TestParseTransportHeadersCharsets(t *testing.T) {
	raw := "subject: =?iso-8859-1?q?caf=E9?=\r\n" +
		"From: =?utf-8?b?SsO8cmdlbg==?= <j@example.com>\r\n" +
		"x-mailer: outlook\r\n" +
		"X-Empty:   \r\n"

	h := parseTransportHeaders(raw)
	tests := map[string]string{
		"Subject":  "café",
		"From":     "Jürgen <j@example.com>",
		"X-Mailer": "outlook",
	}
	for k, want := range tests {
		if got := h.Get(k); got != want {
			t.Errorf("Get(%q) = %q, want %q", k, got, want)
		}
	}
	if h.Has("X-Empty") {
		t.Error("empty field was kept")
	}

	values := h.FirstValues()
	if len(values) != len(tests) || values["X-Mailer"] != "outlook" {
		t.Errorf("FirstValues() = %v", values)
	}
}

func TestHeaderSetEmptyRemoves(t *testing.T) {
	var h Header
	h.Set("message-id", "abc@example.com")
	if got := h.Get("Message-Id"); got != "abc@example.com" {
		t.Fatalf("Get() = %q", got)
	}
	h.Set("Message-ID", "")
	if h.Has("Message-Id") || h.Len() != 0 {
		t.Errorf("Set(\"\") left %d fields", h.Len())
	}
}

func TestEncryptedContentType(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{`multipart/encrypted; protocol="application/pgp-encrypted"; boundary=x`, true},
		{"application/pgp-encrypted", true},
		{"application/pkcs7-mime; smime-type=enveloped-data; name=smime.p7m", true},
		{"application/x-pkcs7-mime; smime-type=authEnveloped-data", true},
		{"application/pkcs7-mime; smime-type=signed-data", false},
		{"multipart/signed; protocol=\"application/pkcs7-signature\"", false},
		{"text/plain", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := encryptedContentType(tt.ct); got != tt.want {
			t.Errorf("encryptedContentType(%q) = %v, want %v", tt.ct, got, tt.want)
		}
	}
}

func TestCodepageEncoding(t *testing.T) {
	tests := []struct {
		cp   int64
		in   []byte
		want string
	}{
		{1252, []byte{0x80}, "€"},
		{1251, []byte{0xC0}, "А"},
		{28592, []byte{0xA1}, "Ą"},
		{65001, []byte("ü"), "ü"},
		{99999, []byte{0xE9}, "é"},
	}
	for _, tt := range tests {
		if got := decodeString8(tt.in, codepageEncoding(tt.cp)); got != tt.want {
			t.Errorf("codepage %d: got %q, want %q", tt.cp, got, tt.want)
		}
	}
}
