// Package mbox partitions RFC 5322 messages, both single .eml files and
// messages stored in mbox archives.
package mbox

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	mboxlib "github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"go.uber.org/zap"

	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/filter"
	"github.com/dhcgn/msg-partition/mimebody"
	"github.com/dhcgn/msg-partition/model"
	"github.com/dhcgn/msg-partition/msg"
	"github.com/dhcgn/msg-partition/msgpart"
	"github.com/dhcgn/msg-partition/partition"
	"github.com/dhcgn/msg-partition/segment"
)

const (
	// EMLFiletype is the filetype metadata of .eml elements.
	EMLFiletype = "message/rfc822"
	// ArchiveFiletype is the filetype metadata of mbox archive elements.
	ArchiveFiletype = "application/mbox"
)

// Reader streams the messages of an archive.
type Reader interface {
	Stream(ctx context.Context, out chan<- model.Envelope) error
}

// NewReader returns a Reader over an mbox archive. Messages rejected by the
// header patterns of f are skipped; a nil filter passes everything.
func NewReader(r io.Reader, f *filter.Filter, logger *zap.Logger) Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &archiveReader{r: r, filter: f, logger: logger}
}

type archiveReader struct {
	r      io.Reader
	filter *filter.Filter
	logger *zap.Logger
}

func (a *archiveReader) Stream(ctx context.Context, out chan<- model.Envelope) error {
	reader := mboxlib.NewReader(a.r)

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgReader, err := reader.NextMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return a.emitError(ctx, out, fmt.Errorf("message %d: %w", idx, err))
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return a.emitError(ctx, out, fmt.Errorf("message %d read: %w", idx, err))
		}

		if !a.filter.AllowsRaw(raw) {
			continue
		}

		m, err := parseMail(raw)
		if err != nil {
			if err := a.emitEnvelope(ctx, out, model.Envelope{Err: fmt.Errorf("message %d parse: %w", idx, err)}); err != nil {
				return err
			}
			continue
		}
		m.Index = idx

		if err := a.emitEnvelope(ctx, out, model.Envelope{Message: m}); err != nil {
			return err
		}
	}
}

func (a *archiveReader) emitError(ctx context.Context, out chan<- model.Envelope, err error) error {
	a.logger.Error("mbox stream error", zap.Error(err))
	return a.emitEnvelope(ctx, out, model.Envelope{Err: err})
}

func (a *archiveReader) emitEnvelope(ctx context.Context, out chan<- model.Envelope, env model.Envelope) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- env:
		return nil
	}
}

// parseMail reads the header block of raw. A message without Message-Id gets
// its content hash as id.
func parseMail(raw []byte) (model.Message, error) {
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return model.Message{}, err
	}
	h := mail.Header{Header: message.Header{Header: th}}

	sum := sha256.Sum256(raw)
	hash := base64.StdEncoding.EncodeToString(sum[:])

	id, _ := h.MessageID()
	if id == "" {
		id = strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
	}
	if id == "" {
		id = hash
	}

	m := model.Message{
		ID:   id,
		Hash: hash,
		Size: int64(len(raw)),
		Raw:  raw,
	}
	if t, err := h.Date(); err == nil {
		m.ReceivedAt = t
	}
	return m, nil
}

// headerFields extracts the fields metadata is built from, decoding encoded
// words.
func headerFields(h mail.Header) msg.Header {
	out := msg.Header{}
	for _, key := range []string{"From", "To", "Cc", "Subject", "Date", "Message-Id"} {
		v, err := h.Text(key)
		if err != nil {
			v = h.Get(key)
		}
		out.Set(key, strings.TrimSpace(v))
	}
	return out
}

// messageElements segments one RFC 5322 message and stamps the metadata of
// its header on every element.
func messageElements(raw []byte, name, modTime, filetype string, opts partition.Options) ([]element.Element, error) {
	body, err := mimebody.Read(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	text, err := body.PlainText()
	if err != nil {
		return nil, fmt.Errorf("html body: %w", err)
	}

	els := segment.Segment(text, segment.Options{
		MinPartition: opts.MinPartition,
		MaxPartition: opts.MaxPartition,
	})

	h := headerFields(body.Header)
	filename, dir := partition.SplitName(name)
	md := element.Metadata{
		Filename:      filename,
		FileDirectory: dir,
		LastModified:  msgpart.LastModified(opts.MetadataLastModified, msgpart.HeaderDate(h), modTime),
		SentFrom:      msgpart.SentFrom(h),
		SentTo:        msgpart.SentTo(h),
		Subject:       msgpart.Subject(h),
		Filetype:      filetype,
		Languages:     element.Languages(opts.Languages),
		ParentID:      msgpart.ParentID(raw),
	}
	if opts.IncludeDebugMetadata {
		md.DetectionOrigin = "eml"
	}
	for i := range els {
		els[i] = els[i].WithMetadata(md)
	}
	return els, nil
}

func modTime(src partition.Source) string {
	if t, ok := src.ModTime(); ok {
		return partition.FormatTime(t)
	}
	return ""
}
