package msgtest

import (
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"
)

// MAPI property types.
const (
	TypeLong    = 0x0003
	TypeBoolean = 0x000B
	TypeObject  = 0x000D
	TypeString8 = 0x001E
	TypeUnicode = 0x001F
	TypeSystime = 0x0040
	TypeBinary  = 0x0102
)

// Prop is one MAPI property. Data holds the encoded value: the 8-byte slot
// for fixed types, the stream content for variable ones.
type Prop struct {
	ID   uint16
	Type uint16
	Data []byte
}

// String is a PT_UNICODE property.
func String(id uint16, s string) Prop {
	u := utf16.Encode([]rune(s))
	b := make([]byte, len(u)*2)
	for i, c := range u {
		binary.LittleEndian.PutUint16(b[i*2:], c)
	}
	return Prop{ID: id, Type: TypeUnicode, Data: b}
}

// String8 is a PT_STRING8 property holding already encoded bytes.
func String8(id uint16, b []byte) Prop {
	return Prop{ID: id, Type: TypeString8, Data: b}
}

func Binary(id uint16, b []byte) Prop {
	return Prop{ID: id, Type: TypeBinary, Data: b}
}

func Long(id uint16, v int32) Prop {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return Prop{ID: id, Type: TypeLong, Data: b}
}

func Time(id uint16, t time.Time) Prop {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, filetime(t))
	return Prop{ID: id, Type: TypeSystime, Data: b}
}

func (p Prop) fixed() bool {
	switch p.Type {
	case TypeLong, TypeBoolean, TypeSystime:
		return true
	}
	return false
}

// Attachment is an attachment storage. Embedded, when set, is stored as an
// attached message object.
type Attachment struct {
	Props    []Prop
	Embedded *Message
}

// Message describes an Outlook message.
type Message struct {
	Props       []Prop
	Recipients  [][]Prop
	Attachments []Attachment
	// Modified is the root modification time of the compound file.
	Modified time.Time
}

// Bytes encodes m as a .msg compound file.
func (m *Message) Bytes() []byte {
	return WriteCFB(m.nodes(32), m.Modified)
}

func (m *Message) nodes(headerLen int) []*Node {
	var nodes []*Node
	if headerLen == 32 {
		nodes = append(nodes, Storage("__nameid_version1.0",
			Stream("__substg1.0_00020102", nil),
			Stream("__substg1.0_00030102", nil),
			Stream("__substg1.0_00040102", nil),
		))
	}

	hdr := make([]byte, headerLen)
	if headerLen >= 24 {
		binary.LittleEndian.PutUint32(hdr[8:], uint32(len(m.Recipients)))
		binary.LittleEndian.PutUint32(hdr[12:], uint32(len(m.Attachments)))
		binary.LittleEndian.PutUint32(hdr[16:], uint32(len(m.Recipients)))
		binary.LittleEndian.PutUint32(hdr[20:], uint32(len(m.Attachments)))
	}
	nodes = append(nodes, propNodes(hdr, m.Props)...)

	for i, r := range m.Recipients {
		nodes = append(nodes, Storage(fmt.Sprintf("__recip_version1.0_#%08X", i),
			propNodes(make([]byte, 8), r)...))
	}
	for i, a := range m.Attachments {
		children := propNodes(make([]byte, 8), a.Props)
		if a.Embedded != nil {
			children = append(children, Storage("__substg1.0_3701000D", a.Embedded.nodes(24)...))
			entry := make([]byte, 16)
			binary.LittleEndian.PutUint32(entry, 0x3701<<16|TypeObject)
			binary.LittleEndian.PutUint32(entry[4:], 6)
			binary.LittleEndian.PutUint32(entry[8:], 0xFFFFFFFF)
			props := children[0]
			props.Data = append(props.Data, entry...)
		}
		nodes = append(nodes, Storage(fmt.Sprintf("__attach_version1.0_#%08X", i), children...))
	}
	return nodes
}

// propNodes returns the property stream first, then one substg stream per
// variable-size property.
func propNodes(hdr []byte, props []Prop) []*Node {
	stream := append([]byte(nil), hdr...)
	var subs []*Node
	for _, p := range props {
		entry := make([]byte, 16)
		binary.LittleEndian.PutUint32(entry, uint32(p.ID)<<16|uint32(p.Type))
		binary.LittleEndian.PutUint32(entry[4:], 6)
		if p.fixed() {
			copy(entry[8:], p.Data)
		} else {
			size := len(p.Data)
			if p.Type == TypeUnicode {
				size += 2
			} else if p.Type == TypeString8 {
				size++
			}
			binary.LittleEndian.PutUint32(entry[8:], uint32(size))
			subs = append(subs, Stream(fmt.Sprintf("__substg1.0_%04X%04X", p.ID, p.Type), p.Data))
		}
		stream = append(stream, entry...)
	}
	return append([]*Node{Stream("__properties_version1.0", stream)}, subs...)
}
