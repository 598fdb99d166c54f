package msg

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func decodeUTF16(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	out, err := utf16LE.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.TrimRight(string(out), "\x00")
}

func decodeString8(b []byte, enc encoding.Encoding) string {
	if enc == nil {
		enc = charmap.Windows1252
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		out = b
	}
	return strings.TrimRight(string(out), "\x00")
}

// codepageNames maps Windows code page numbers to IANA names.
var codepageNames = map[int64]string{
	437:   "IBM437",
	850:   "IBM850",
	866:   "IBM866",
	874:   "windows-874",
	932:   "Shift_JIS",
	936:   "GBK",
	949:   "EUC-KR",
	950:   "Big5",
	1200:  "UTF-16LE",
	1201:  "UTF-16BE",
	10000: "macintosh",
	20127: "US-ASCII",
	20866: "KOI8-R",
	21866: "KOI8-U",
	50220: "ISO-2022-JP",
	51932: "EUC-JP",
	52936: "HZ-GB-2312",
	54936: "GB18030",
	65001: "UTF-8",
}

// codepageEncoding resolves a Windows code page. Unknown pages fall back to
// windows-1252.
func codepageEncoding(cp int64) encoding.Encoding {
	name, ok := codepageNames[cp]
	switch {
	case ok:
	case cp >= 1250 && cp <= 1258:
		name = fmt.Sprintf("windows-%d", cp)
	case cp >= 28591 && cp <= 28606:
		name = fmt.Sprintf("ISO-8859-%d", cp-28590)
	default:
		return charmap.Windows1252
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return charmap.Windows1252
	}
	return enc
}
