package msg

import (
	"encoding/binary"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	rtfCompressed   = 0x75465A4C // "LZFu"
	rtfUncompressed = 0x414C454D // "MELA"

	rtfHeaderSize = 16
	rtfDictSize   = 4096
)

const rtfPrebuf = `{\rtf1\ansi\mac\deff0\deftab720{\fonttbl;}{\f0\fnil \froman \fswiss \fmodern \fscript \fdecor MS Sans SerifSymbolArialTimes New RomanCourier{\colortbl\red0\green0\blue0` + "\r\n" + `\par \pard\plain\f0\fs20\b\i\u\tab\tx`

var errCorruptRTF = errors.New("corrupt compressed rtf")

// decompressRTF expands a PR_RTF_COMPRESSED stream.
func decompressRTF(data []byte) ([]byte, error) {
	if len(data) < rtfHeaderSize {
		return nil, errCorruptRTF
	}
	compSize := binary.LittleEndian.Uint32(data[0:])
	rawSize := binary.LittleEndian.Uint32(data[4:])
	compType := binary.LittleEndian.Uint32(data[8:])

	end := len(data)
	if n := int(compSize) + 4; n >= rtfHeaderSize && n < end {
		end = n
	}
	in := data[rtfHeaderSize:end]

	switch compType {
	case rtfUncompressed:
		if int(rawSize) < len(in) {
			in = in[:rawSize]
		}
		return in, nil
	case rtfCompressed:
	default:
		return nil, errCorruptRTF
	}

	var dict [rtfDictSize]byte
	copy(dict[:], rtfPrebuf)
	wpos := len(rtfPrebuf)
	out := make([]byte, 0, rawSize)

	for pos := 0; pos < len(in); {
		control := in[pos]
		pos++
		for bit := 0; bit < 8 && pos < len(in); bit++ {
			if control&(1<<bit) == 0 {
				c := in[pos]
				pos++
				out = append(out, c)
				dict[wpos] = c
				wpos = (wpos + 1) % rtfDictSize
				continue
			}
			if pos+2 > len(in) {
				return nil, errCorruptRTF
			}
			ref := binary.BigEndian.Uint16(in[pos:])
			pos += 2
			offset := int(ref >> 4)
			length := int(ref&0xF) + 2
			if offset == wpos {
				return out, nil
			}
			for i := 0; i < length; i++ {
				c := dict[(offset+i)%rtfDictSize]
				out = append(out, c)
				dict[wpos] = c
				wpos = (wpos + 1) % rtfDictSize
			}
		}
	}
	return out, nil
}

// Destinations whose content is not document text.
var rtfSkipDestinations = map[string]bool{
	"colortbl": true, "datastore": true, "fonttbl": true, "footer": true,
	"generator": true, "header": true, "info": true, "latentstyles": true,
	"listoverridetable": true, "listtable": true, "object": true, "pict": true,
	"rsidtbl": true, "stylesheet": true, "themedata": true, "xmlnstbl": true,
	"colorschememapping": true, "pgdsctbl": true, "filetbl": true, "revtbl": true,
}

type rtfGroup struct {
	skip    bool // inside an ignored destination
	html    bool // inside \*\htmltag
	htmlrtf bool // inside a \htmlrtf block
	uc      int
}

// rtfText extracts the text of an RTF document. For HTML encapsulated in
// RTF (\fromhtml1) it returns the HTML source and html is true.
func rtfText(rtf []byte) (text string, html bool) {
	var (
		b       strings.Builder
		pending []byte
		enc     encoding.Encoding = charmap.Windows1252
		stack   []rtfGroup
		cur     = rtfGroup{uc: 1}
		star    bool
		skipN   int
	)
	fromHTML := strings.Contains(string(rtf[:min(len(rtf), 512)]), `\fromhtml`)

	emitting := func() bool {
		if cur.skip {
			return false
		}
		if fromHTML {
			return cur.html || !cur.htmlrtf
		}
		return !cur.htmlrtf
	}
	flush := func() {
		if len(pending) == 0 {
			return
		}
		out, err := enc.NewDecoder().Bytes(pending)
		if err != nil {
			out = pending
		}
		b.Write(out)
		pending = pending[:0]
	}
	write := func(s string) {
		if skipN > 0 {
			skipN--
			return
		}
		if emitting() {
			flush()
			b.WriteString(s)
		}
	}

	for i := 0; i < len(rtf); i++ {
		c := rtf[i]
		switch c {
		case '{':
			stack = append(stack, cur)
			star = false
		case '}':
			if len(stack) > 0 {
				cur = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			star = false
		case '\r', '\n':
		case '\\':
			if i+1 >= len(rtf) {
				break
			}
			i++
			c = rtf[i]
			switch {
			case isRTFLetter(c):
				start := i
				for i < len(rtf) && isRTFLetter(rtf[i]) {
					i++
				}
				word := string(rtf[start:i])
				pstart := i
				if i < len(rtf) && (rtf[i] == '-' || isDigit(rtf[i])) {
					i++
					for i < len(rtf) && isDigit(rtf[i]) {
						i++
					}
				}
				param, hasParam := 0, i > pstart
				if hasParam {
					param, _ = strconv.Atoi(string(rtf[pstart:i]))
				}
				if i >= len(rtf) || rtf[i] != ' ' {
					i--
				}

				switch {
				case star && fromHTML && strings.HasPrefix(word, "htmltag"):
					cur.html = true
				case star || rtfSkipDestinations[word]:
					cur.skip = true
				}
				star = false

				switch word {
				case "par", "line":
					write("\n")
				case "tab":
					write("\t")
				case "emdash":
					write("—")
				case "endash":
					write("–")
				case "bullet":
					write("•")
				case "lquote":
					write("‘")
				case "rquote":
					write("’")
				case "ldblquote":
					write("“")
				case "rdblquote":
					write("”")
				case "u":
					if param < 0 {
						param += 65536
					}
					write(string(rune(param)))
					skipN = cur.uc
				case "uc":
					cur.uc = param
				case "ansicpg":
					enc = codepageEncoding(int64(param))
				case "htmlrtf":
					cur.htmlrtf = !hasParam || param != 0
				}
			case c == '\'':
				if i+2 >= len(rtf) {
					break
				}
				v, err := strconv.ParseUint(string(rtf[i+1:i+3]), 16, 8)
				i += 2
				if err != nil {
					break
				}
				if skipN > 0 {
					skipN--
					break
				}
				if emitting() {
					pending = append(pending, byte(v))
				}
			case c == '*':
				star = true
			case c == '~':
				write(" ")
			case c == '_':
				write("-")
			case c == '-':
			case c == '\r' || c == '\n':
				write("\n")
			default:
				write(string(c))
			}
		default:
			write(string(c))
		}
	}
	flush()
	return b.String(), fromHTML
}

func isRTFLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
