package msg

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dhcgn/msg-partition/internal/msgtest"
	"github.com/dhcgn/msg-partition/partition"
)

func TestReadFakeEmail(t *testing.T) {
	m, err := ReadBytes(msgtest.FakeEmail().Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}

	if m.Subject != "Test Email" {
		t.Errorf("Subject = %q", m.Subject)
	}
	if m.Body != msgtest.FakeEmailBody {
		t.Errorf("Body = %q", m.Body)
	}
	if m.Class != "IPM.Note" {
		t.Errorf("Class = %q", m.Class)
	}
	if m.Encrypted {
		t.Error("Encrypted = true for a plain message")
	}
	if !m.Modified.Equal(msgtest.RootModified) {
		t.Errorf("Modified = %v, want %v", m.Modified, msgtest.RootModified)
	}

	headers := map[string]string{
		"From":    "Matthew Robinson <mrobinson@unstructured.io>",
		"To":      "Matthew Robinson",
		"Subject": "Test Email",
		// transport headers win over the submit time property
		"Date": "Fri, 16 Dec 2022 17:04:16 -0500",
	}
	for k, want := range headers {
		if got := m.Header.Get(k); got != want {
			t.Errorf("Header.Get(%q) = %q, want %q", k, got, want)
		}
	}
	if len(m.Recipients) != 1 || m.Recipients[0].Name != "Matthew Robinson" || m.Recipients[0].Type != RecipientTo {
		t.Errorf("Recipients = %+v", m.Recipients)
	}
}

func TestReadAttachment(t *testing.T) {
	m, err := ReadBytes(msgtest.FakeEmailAttachment().Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if len(m.Attachments) != 1 {
		t.Fatalf("len(Attachments) = %d, want 1", len(m.Attachments))
	}
	a := m.Attachments[0]
	if a.Name != "fake-attachment.txt" || a.Extension != ".txt" || a.MIMEType != "text/plain" {
		t.Errorf("Attachment = %+v", a)
	}
	if a.Size != -1 {
		t.Errorf("Size = %d, want -1 without PR_ATTACH_SIZE", a.Size)
	}
	if string(a.Payload) != msgtest.AttachmentPayload {
		t.Errorf("Payload = %q", a.Payload)
	}
	if got := m.Header.Get("To"); got != "Mallori Harrell <mallori@unstructured.io>" {
		t.Errorf("To = %q", got)
	}
}

func TestReadEmbeddedMessage(t *testing.T) {
	inner := msgtest.FakeEmail()
	inner.Modified = msgtest.RootModified
	outer := &msgtest.Message{
		Props: []msgtest.Prop{
			msgtest.String(msgtest.PropSubject, "Fwd: Test Email"),
			msgtest.String(msgtest.PropBody, "See below."),
		},
		Attachments: []msgtest.Attachment{{
			Props: []msgtest.Prop{
				msgtest.String(msgtest.PropDisplayName, "Test Email"),
				msgtest.Long(msgtest.PropAttachMethod, AttachEmbeddedMsg),
			},
			Embedded: inner,
		}},
	}

	m, err := ReadBytes(outer.Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if len(m.Attachments) != 1 || m.Attachments[0].Embedded == nil {
		t.Fatalf("Attachments = %+v, want one embedded message", m.Attachments)
	}
	em := m.Attachments[0].Embedded
	if em.Subject != "Test Email" || em.Body != msgtest.FakeEmailBody {
		t.Errorf("embedded = %q / %q", em.Subject, em.Body)
	}
	if m.Attachments[0].Name != "Test Email" {
		t.Errorf("Name = %q", m.Attachments[0].Name)
	}
}

func TestReadEncrypted(t *testing.T) {
	m, err := ReadBytes(msgtest.FakeEncrypted().Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if !m.Encrypted {
		t.Error("Encrypted = false")
	}
	if m.Body != "" {
		t.Errorf("Body = %q, want empty", m.Body)
	}
}

func TestReadPGPBody(t *testing.T) {
	src := &msgtest.Message{Props: []msgtest.Prop{
		msgtest.String(msgtest.PropBody, "-----BEGIN PGP MESSAGE-----\r\n\r\nhQEMA5k\r\n-----END PGP MESSAGE-----\r\n"),
	}}
	m, err := ReadBytes(src.Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if !m.Encrypted || m.Body != "" {
		t.Errorf("Encrypted = %v, Body = %q", m.Encrypted, m.Body)
	}
}

func TestReadHTMLFallback(t *testing.T) {
	src := &msgtest.Message{Props: []msgtest.Prop{
		msgtest.Binary(msgtest.PropBodyHTML, []byte("<html><body><p>Hello there</p><ul><li>one</li></ul></body></html>")),
	}}
	m, err := ReadBytes(src.Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if m.Body != "Hello there\n\n\n\n\n• one" {
		t.Errorf("Body = %q", m.Body)
	}
}

func TestReadRTFFallback(t *testing.T) {
	src := &msgtest.Message{Props: []msgtest.Prop{
		msgtest.Binary(msgtest.PropRTFCompressed, uncompressedRTF(`{\rtf1\ansi Hello\par World}`)),
	}}
	m, err := ReadBytes(src.Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if m.Body != "Hello\nWorld" {
		t.Errorf("Body = %q", m.Body)
	}
}

func TestReadCodepage(t *testing.T) {
	src := &msgtest.Message{Props: []msgtest.Prop{
		msgtest.Long(msgtest.PropInternetCPID, 1251),
		msgtest.String8(msgtest.PropSubject, []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}),
	}}
	m, err := ReadBytes(src.Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if m.Subject != "Привет" {
		t.Errorf("Subject = %q", m.Subject)
	}
}

func TestReadMissingFields(t *testing.T) {
	m, err := ReadBytes((&msgtest.Message{}).Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if m.Body != "" || m.Subject != "" || m.Header.Len() != 0 {
		t.Errorf("Message = %+v, want empty fields", m)
	}
}

func TestOpenNotFound(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "doesnt-exist.msg"))
	if !errors.Is(err, partition.ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestReadNotCompoundFile(t *testing.T) {
	_, err := ReadBytes([]byte("From: a@example.com\r\n\r\nplain text"))
	if !errors.Is(err, ErrNotCompoundFile) {
		t.Errorf("ReadBytes() error = %v, want ErrNotCompoundFile", err)
	}
}

func TestReadNotMessage(t *testing.T) {
	data := msgtest.WriteCFB([]*msgtest.Node{msgtest.Stream("WordDocument", []byte("x"))}, msgtest.RootModified)
	_, err := ReadBytes(data)
	if !errors.Is(err, ErrNotMessage) {
		t.Errorf("ReadBytes() error = %v, want ErrNotMessage", err)
	}
}

func TestReadLargeStream(t *testing.T) {
	big := make([]byte, 10000)
	for i := range big {
		big[i] = 'a' + byte(i%26)
	}
	src := &msgtest.Message{
		Props: []msgtest.Prop{msgtest.String(msgtest.PropSubject, "big")},
		Attachments: []msgtest.Attachment{{Props: []msgtest.Prop{
			msgtest.String(msgtest.PropAttachLongFilename, "big.bin"),
			msgtest.Binary(msgtest.PropAttachData, big),
		}}},
	}
	m, err := ReadBytes(src.Bytes())
	if err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if string(m.Attachments[0].Payload) != string(big) {
		t.Error("payload stored in regular sectors did not round trip")
	}
}

func BenchmarkRead(b *testing.B) {
	data := msgtest.FakeEmailAttachment().Bytes()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ReadBytes(data); err != nil {
			b.Fatal(err)
		}
	}
}
