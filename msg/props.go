package msg

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
)

// Property ids.
const (
	propMessageClass            = 0x001A
	propSubject                 = 0x0037
	propClientSubmitTime        = 0x0039
	propSentRepresentingName    = 0x0042
	propSentRepresentingEmail   = 0x0065
	propTransportMessageHeaders = 0x007D
	propSenderName              = 0x0C1A
	propSenderEmail             = 0x0C1F
	propRecipientType           = 0x0C15
	propDisplayCc               = 0x0E03
	propDisplayTo               = 0x0E04
	propMessageDeliveryTime     = 0x0E06
	propAttachSize              = 0x0E20
	propBody                    = 0x1000
	propRTFCompressed           = 0x1009
	propBodyHTML                = 0x1013
	propInternetMessageID       = 0x1035
	propDisplayName             = 0x3001
	propEmailAddress            = 0x3003
	propLastModificationTime    = 0x3008
	propSMTPAddress             = 0x39FE
	propAttachData              = 0x3701
	propAttachExtension         = 0x3703
	propAttachFilename          = 0x3704
	propAttachMethod            = 0x3705
	propAttachLongFilename      = 0x3707
	propAttachMIMETag           = 0x370E
	propAttachContentID         = 0x3712
	propInternetCPID            = 0x3FDE
	propMessageCodepage         = 0x3FFD
	propSenderSMTPAddress       = 0x5D01
	propSentRepresentingSMTP    = 0x5D02
)

// Property types.
const (
	typeShort   = 0x0002
	typeLong    = 0x0003
	typeBoolean = 0x000B
	typeObject  = 0x000D
	typeI8      = 0x0014
	typeString8 = 0x001E
	typeUnicode = 0x001F
	typeSystime = 0x0040
	typeBinary  = 0x0102

	typeMultiple = 0x1000
)

// Header sizes of a __properties_version1.0 stream.
const (
	headerTopLevel = 32
	headerEmbedded = 24
	headerChild    = 8

	propEntrySize = 16
)

const (
	substgPrefix     = "__substg1.0_"
	propertiesStream = "__properties_version1.0"
	recipPrefix      = "__recip_version1.0_"
	attachPrefix     = "__attach_version1.0_"
)

// value is one property. Fixed-size values hold the raw 8-byte slot,
// variable ones hold the stream data.
type value struct {
	typ  uint16
	data []byte
}

// props is the property set of one storage.
type props struct {
	values map[uint16]value
	enc    encoding.Encoding
}

// readProps collects the properties of a storage. headerLen is the size of
// the property stream header for the storage kind.
func readProps(s *storage, headerLen int) (*props, error) {
	p := &props{values: make(map[uint16]value)}

	if data, ok := s.streams[propertiesStream]; ok {
		if len(data) < headerLen {
			return nil, fmt.Errorf("%w: property stream of %d bytes", ErrNotMessage, len(data))
		}
		for off := headerLen; off+propEntrySize <= len(data); off += propEntrySize {
			tag := binary.LittleEndian.Uint32(data[off:])
			typ, id := uint16(tag), uint16(tag>>16)
			if typ&typeMultiple != 0 || !fixedSize(typ) {
				continue
			}
			p.values[id] = value{typ: typ, data: data[off+8 : off+16]}
		}
	}

	for name, data := range s.streams {
		id, typ, ok := parseSubstg(name)
		if !ok || typ&typeMultiple != 0 {
			continue
		}
		// Prefer the Unicode copy when both string forms are present.
		if cur, dup := p.values[id]; dup && cur.typ == typeUnicode && typ == typeString8 {
			continue
		}
		p.values[id] = value{typ: typ, data: data}
	}
	return p, nil
}

func fixedSize(typ uint16) bool {
	switch typ {
	case typeShort, typeLong, typeBoolean, typeI8, typeSystime:
		return true
	}
	return false
}

// parseSubstg splits a "__substg1.0_IIIITTTT" stream name.
func parseSubstg(name string) (id, typ uint16, ok bool) {
	if !strings.HasPrefix(name, substgPrefix) {
		return 0, 0, false
	}
	hex := name[len(substgPrefix):]
	if len(hex) != 8 {
		return 0, 0, false
	}
	tag, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint16(tag >> 16), uint16(tag), true
}

func (p *props) has(id uint16) bool {
	_, ok := p.values[id]
	return ok
}

// text decodes a string property. Binary values are decoded with the
// message code page.
func (p *props) text(id uint16) string {
	v, ok := p.values[id]
	if !ok {
		return ""
	}
	switch v.typ {
	case typeUnicode:
		return decodeUTF16(v.data)
	case typeString8, typeBinary:
		return decodeString8(v.data, p.enc)
	}
	return ""
}

func (p *props) blob(id uint16) []byte {
	v, ok := p.values[id]
	if !ok || v.typ != typeBinary {
		return nil
	}
	return v.data
}

func (p *props) integer(id uint16) (int64, bool) {
	v, ok := p.values[id]
	if !ok || len(v.data) < 8 {
		return 0, false
	}
	switch v.typ {
	case typeShort:
		return int64(int16(binary.LittleEndian.Uint16(v.data))), true
	case typeLong:
		return int64(int32(binary.LittleEndian.Uint32(v.data))), true
	case typeI8:
		return int64(binary.LittleEndian.Uint64(v.data)), true
	case typeBoolean:
		return int64(binary.LittleEndian.Uint16(v.data)), true
	}
	return 0, false
}

// filetimeEpoch is the Unix epoch in 100ns units since 1601-01-01.
const filetimeEpoch = 116444736000000000

func (p *props) timestamp(id uint16) (time.Time, bool) {
	v, ok := p.values[id]
	if !ok || v.typ != typeSystime || len(v.data) < 8 {
		return time.Time{}, false
	}
	ft := binary.LittleEndian.Uint64(v.data)
	if ft == 0 || ft < filetimeEpoch {
		return time.Time{}, false
	}
	d := ft - filetimeEpoch
	return time.Unix(int64(d/10000000), int64(d%10000000)*100).UTC(), true
}
