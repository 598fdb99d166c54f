// Package msg decodes Outlook .msg files: OLE compound files that carry the
// MAPI properties of one message, its recipients and its attachments.
package msg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/encoding"

	"github.com/dhcgn/msg-partition/mimebody"
	"github.com/dhcgn/msg-partition/partition"
	"github.com/dhcgn/msg-partition/segment"
)

var (
	// ErrNotCompoundFile means the input is not an OLE compound file.
	ErrNotCompoundFile = errors.New("not a compound file")
	// ErrNotMessage means the compound file does not hold a message.
	ErrNotMessage = errors.New("not an outlook message")
)

// RecipientType is PR_RECIPIENT_TYPE.
type RecipientType int

const (
	RecipientTo  RecipientType = 1
	RecipientCc  RecipientType = 2
	RecipientBcc RecipientType = 3
)

type Recipient struct {
	Name  string
	Email string
	Type  RecipientType
}

func (r Recipient) String() string {
	return mimebody.FormatAddress(r.Name, r.Email)
}

// Attachment methods (PR_ATTACH_METHOD).
const (
	AttachByValue     = 1
	AttachEmbeddedMsg = 5
	AttachOLE         = 6
)

type Attachment struct {
	Name      string
	Extension string
	// Size is PR_ATTACH_SIZE, or -1 when the property is absent.
	Size      int64
	MIMEType  string
	ContentID string
	Method    int
	Payload   []byte
	// Embedded is set for attached messages; Payload is empty then.
	Embedded *Message
}

type Message struct {
	Header      Header
	Class       string
	Subject     string
	Body        string
	HTML        []byte
	Recipients  []Recipient
	Attachments []Attachment
	Encrypted   bool
	// Modified is the modification time of the compound file root.
	Modified time.Time
}

// Open decodes the message stored at path.
func Open(path string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", partition.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a message from a random-access source.
func Read(ra io.ReaderAt) (*Message, error) {
	root, modified, err := readTree(ra)
	if err != nil {
		return nil, err
	}
	if _, ok := root.streams[propertiesStream]; !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrNotMessage, propertiesStream)
	}
	m, err := decodeMessage(root, headerTopLevel)
	if err != nil {
		return nil, err
	}
	m.Modified = modified
	return m, nil
}

// ReadBytes decodes a message held in memory.
func ReadBytes(data []byte) (*Message, error) {
	return Read(bytes.NewReader(data))
}

func decodeMessage(s *storage, headerLen int) (*Message, error) {
	p, err := readProps(s, headerLen)
	if err != nil {
		return nil, err
	}
	p.enc = messageEncoding(p)

	m := &Message{
		Class:   p.text(propMessageClass),
		Subject: p.text(propSubject),
	}

	for _, name := range sortedChildren(s, recipPrefix) {
		r, err := decodeRecipient(s.children[name], p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		m.Recipients = append(m.Recipients, r)
	}
	for _, name := range sortedChildren(s, attachPrefix) {
		a, err := decodeAttachment(s.children[name], p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		m.Attachments = append(m.Attachments, a)
	}

	m.fillHeader(p)
	m.fillBody(p)
	return m, nil
}

func messageEncoding(p *props) encoding.Encoding {
	for _, id := range []uint16{propInternetCPID, propMessageCodepage} {
		if cp, ok := p.integer(id); ok && cp > 0 {
			return codepageEncoding(cp)
		}
	}
	return nil
}

// sortedChildren returns the child storages with the given prefix in index
// order. The suffix is a fixed-width hex number.
func sortedChildren(s *storage, prefix string) []string {
	var names []string
	for name := range s.children {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToUpper(names[i]) < strings.ToUpper(names[j])
	})
	return names
}

func decodeRecipient(s *storage, msgProps *props) (Recipient, error) {
	p, err := readProps(s, headerChild)
	if err != nil {
		return Recipient{}, err
	}
	p.enc = msgProps.enc

	r := Recipient{Name: p.text(propDisplayName), Type: RecipientTo}
	r.Email = p.text(propSMTPAddress)
	if r.Email == "" {
		r.Email = smtpOnly(p.text(propEmailAddress))
	}
	if t, ok := p.integer(propRecipientType); ok {
		r.Type = RecipientType(t &^ 0x10000000)
	}
	return r, nil
}

func decodeAttachment(s *storage, msgProps *props) (Attachment, error) {
	p, err := readProps(s, headerChild)
	if err != nil {
		return Attachment{}, err
	}
	p.enc = msgProps.enc

	a := Attachment{
		Name:      p.text(propAttachLongFilename),
		Extension: p.text(propAttachExtension),
		MIMEType:  p.text(propAttachMIMETag),
		ContentID: p.text(propAttachContentID),
		Size:      -1,
		Method:    AttachByValue,
	}
	if a.Name == "" {
		a.Name = p.text(propAttachFilename)
	}
	if a.Name == "" {
		a.Name = p.text(propDisplayName)
	}
	if a.Extension == "" {
		a.Extension = filepath.Ext(a.Name)
	}
	if n, ok := p.integer(propAttachSize); ok && n >= 0 {
		a.Size = n
	}
	if n, ok := p.integer(propAttachMethod); ok {
		a.Method = int(n)
	}

	if sub, ok := s.children[fmt.Sprintf("%s%04X%04X", substgPrefix, propAttachData, typeObject)]; ok {
		if _, isMsg := sub.streams[propertiesStream]; isMsg {
			em, err := decodeMessage(sub, headerEmbedded)
			if err != nil {
				return Attachment{}, fmt.Errorf("embedded message: %w", err)
			}
			a.Embedded = em
			a.Method = AttachEmbeddedMsg
			if a.Name == "" {
				a.Name = em.Subject + ".msg"
			}
			return a, nil
		}
	}
	a.Payload = p.blob(propAttachData)
	return a, nil
}

// smtpOnly drops Exchange legacy DNs, which are not mail addresses.
func smtpOnly(addr string) string {
	if strings.HasPrefix(addr, "/") || !strings.Contains(addr, "@") {
		return ""
	}
	return addr
}

func (m *Message) fillHeader(p *props) {
	name := p.text(propSenderName)
	addr := p.text(propSenderSMTPAddress)
	if addr == "" {
		addr = smtpOnly(p.text(propSenderEmail))
	}
	if name == "" && addr == "" {
		name = p.text(propSentRepresentingName)
		addr = p.text(propSentRepresentingSMTP)
		if addr == "" {
			addr = smtpOnly(p.text(propSentRepresentingEmail))
		}
	}
	m.Header.Set("From", mimebody.FormatAddress(name, addr))
	m.Header.Set("Subject", m.Subject)

	to, cc := m.recipientList(RecipientTo), m.recipientList(RecipientCc)
	if to == "" {
		to = displayList(p.text(propDisplayTo))
	}
	if cc == "" {
		cc = displayList(p.text(propDisplayCc))
	}
	m.Header.Set("To", to)
	m.Header.Set("Cc", cc)

	for _, id := range []uint16{propClientSubmitTime, propMessageDeliveryTime} {
		if t, ok := p.timestamp(id); ok {
			m.Header.Set("Date", t.Format(time.RFC1123Z))
			break
		}
	}
	m.Header.Set("Message-Id", p.text(propInternetMessageID))

	transport := parseTransportHeaders(p.text(propTransportMessageHeaders))
	fields := transport.Fields()
	for fields.Next() {
		m.Header.Set(fields.Key(), fields.Value())
	}
	if m.Subject == "" {
		m.Subject = m.Header.Get("Subject")
	}
}

func (m *Message) recipientList(t RecipientType) string {
	var list []string
	for _, r := range m.Recipients {
		if r.Type == t {
			if s := r.String(); s != "" {
				list = append(list, s)
			}
		}
	}
	return strings.Join(list, ", ")
}

// displayList turns PR_DISPLAY_TO ("a; b") into an address list.
func displayList(s string) string {
	var list []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return strings.Join(list, ", ")
}

// fillBody resolves the body text and the encryption state.
func (m *Message) fillBody(p *props) {
	m.HTML = p.blob(propBodyHTML)
	if m.HTML == nil && p.has(propBodyHTML) {
		m.HTML = []byte(p.text(propBodyHTML))
	}

	m.Body = p.text(propBody)
	if strings.TrimSpace(m.Body) == "" && len(m.HTML) > 0 {
		if text, err := segment.HTMLText(bytes.NewReader(m.HTML)); err == nil {
			m.Body = text
		}
	}
	if strings.TrimSpace(m.Body) == "" {
		if rtf := p.blob(propRTFCompressed); len(rtf) > 0 {
			m.Body = bodyFromRTF(rtf)
		}
	}

	signed, encrypted := classifySMIME(m)
	switch {
	case encrypted, encryptedContentType(m.Header.Get("Content-Type")), isPGPArmored(m.Body):
		m.Encrypted = true
		m.Body = ""
		m.HTML = nil
	case signed != nil && strings.TrimSpace(m.Body) == "":
		m.Body = signedBody(signed)
	}
}

func bodyFromRTF(compressed []byte) string {
	raw, err := decompressRTF(compressed)
	if err != nil {
		return ""
	}
	text, isHTML := rtfText(raw)
	if !isHTML {
		return text
	}
	out, err := segment.HTMLText(strings.NewReader(text))
	if err != nil {
		return ""
	}
	return out
}
