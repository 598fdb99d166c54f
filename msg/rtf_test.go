package msg

import (
	"encoding/binary"
	"testing"
)

func rtfStream(compType uint32, payload []byte, rawSize int) []byte {
	b := make([]byte, rtfHeaderSize, rtfHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(b[0:], uint32(len(payload)+12))
	binary.LittleEndian.PutUint32(b[4:], uint32(rawSize))
	binary.LittleEndian.PutUint32(b[8:], compType)
	return append(b, payload...)
}

func uncompressedRTF(s string) []byte {
	return rtfStream(rtfUncompressed, []byte(s), len(s))
}

func TestDecompressRTF(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    string
	}{
		{
			name: "literals",
			payload: append(append([]byte{0x00}, `{\rtf1 H`...),
				0x04, 'i', '}', 0x0D, 0x90), // end reference at write offset 217
			want: `{\rtf1 Hi}`,
		},
		{
			name:    "dictionary reference",
			payload: []byte{0x03, 0x00, 0x03, 0x0D, 0x40}, // offset 0 length 5, then end at 212
			want:    `{\rtf`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressRTF(rtfStream(rtfCompressed, tt.payload, len(tt.want)))
			if err != nil {
				t.Fatalf("decompressRTF() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("decompressRTF() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecompressRTFErrors(t *testing.T) {
	if _, err := decompressRTF([]byte{1, 2, 3}); err == nil {
		t.Error("short stream: want error")
	}
	if _, err := decompressRTF(rtfStream(0x12345678, []byte("x"), 1)); err == nil {
		t.Error("unknown compression type: want error")
	}
	if _, err := decompressRTF(rtfStream(rtfCompressed, []byte{0x01, 0x00}, 5)); err == nil {
		t.Error("truncated reference: want error")
	}
}

func TestRTFText(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		want     string
		wantHTML bool
	}{
		{
			name: "plain",
			in:   `{\rtf1\ansi\ansicpg1252{\fonttbl{\f0 Arial;}}\pard Hello\par World \'e9\u8364?}`,
			want: "Hello\nWorld é€",
		},
		{
			name: "ignorable destination",
			in:   `{\rtf1{\*\generator Riched20;}Text}`,
			want: "Text",
		},
		{
			name: "escaped braces",
			in:   `{\rtf1 a\{b\}c\\d}`,
			want: `a{b}c\d`,
		},
		{
			name:     "encapsulated html",
			in:       `{\rtf1\ansi\fromhtml1 {\*\htmltag64 <p>}Hello{\*\htmltag72 </p>}\htmlrtf \par\htmlrtf0 }`,
			want:     "<p>Hello</p>",
			wantHTML: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, isHTML := rtfText([]byte(tt.in))
			if got != tt.want || isHTML != tt.wantHTML {
				t.Errorf("rtfText() = (%q, %v), want (%q, %v)", got, isHTML, tt.want, tt.wantHTML)
			}
		})
	}
}
