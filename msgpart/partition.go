// Package msgpart partitions Outlook .msg messages into elements: header
// metadata, segmented body text, and optionally the elements of every
// attachment.
package msgpart

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhcgn/msg-partition/chunking"
	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/filter"
	"github.com/dhcgn/msg-partition/msg"
	"github.com/dhcgn/msg-partition/partition"
	"github.com/dhcgn/msg-partition/segment"
)

const (
	// Filetype is the filetype metadata of message elements.
	Filetype = "application/vnd.ms-outlook"

	// EncryptedWarning is logged when an encrypted message is skipped.
	EncryptedWarning = "Encrypted email detected. Partition function will return an empty list."

	detectionOrigin = "msg"
)

// parentNamespace scopes the parent ids derived from message bytes.
var parentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/dhcgn/msg-partition/parent"))

// ParentID derives the parent_id shared by all elements of one message from
// its raw bytes.
func ParentID(raw []byte) string {
	return uuid.NewSHA1(parentNamespace, raw).String()
}

// Options extends the common partition options with message specifics. Like
// partition.Options its zero value excludes metadata; use DefaultOptions.
type Options struct {
	partition.Options
	// ProcessAttachments partitions attachments with AttachmentPartitioner
	// and appends their elements after the body.
	ProcessAttachments    bool
	AttachmentPartitioner partition.Partitioner
	// ChunkingStrategy is a chunking.Lookup key; empty disables chunking.
	ChunkingStrategy string
	// Filter drops messages by header and elements by text or kind.
	Filter *filter.Filter
}

// DefaultOptions returns options with metadata enabled.
func DefaultOptions() Options {
	return Options{Options: partition.DefaultOptions()}
}

// Validate checks languages, bounds, the attachment partitioner and the
// chunking key, in that order.
func (o Options) Validate() error {
	if err := o.Options.Validate(); err != nil {
		return err
	}
	if o.ProcessAttachments && o.AttachmentPartitioner == nil {
		return fmt.Errorf("%w: processing attachments requires an attachment partitioner", partition.ErrInvalidArgument)
	}
	if _, err := chunking.Lookup(o.ChunkingStrategy); err != nil {
		return err
	}
	return nil
}

// Partitioner adapts Partition to partition.Partitioner so messages
// attached to messages can be routed back here.
type Partitioner struct {
	Options Options
}

func (p Partitioner) Partition(src partition.Source, opts partition.Options) ([]element.Element, error) {
	o := p.Options
	o.Options = opts
	return Partition(src, o)
}

// origin carries what body metadata needs to know about the container.
type origin struct {
	name     string
	modTime  string
	parentID string
}

// Partition decodes a message and returns its elements. An encrypted message
// yields an empty list and a warning.
func Partition(src partition.Source, opts Options) ([]element.Element, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	strategy, _ := chunking.Lookup(opts.ChunkingStrategy)
	log := opts.Log()

	data, err := src.Bytes()
	if err != nil {
		return nil, err
	}
	m, err := msg.ReadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	name := partition.SourceName(src, opts.Options)
	if m.Encrypted {
		log.Warn(EncryptedWarning, zap.String("source", name))
		return []element.Element{}, nil
	}
	if !opts.Filter.AllowsHeader(m.Header.FirstValues()) {
		log.Debug("message excluded by header filter", zap.String("source", name))
		return []element.Element{}, nil
	}

	o := origin{
		name:     name,
		parentID: ParentID(data),
	}
	if t, ok := src.ModTime(); ok {
		o.modTime = partition.FormatTime(t)
	}

	els, err := messageElements(m, o, opts)
	if err != nil {
		return nil, err
	}
	els = opts.Filter.Elements(els)
	els = partition.Finalize(els, opts.Options)
	if strategy != nil {
		els = strategy(els)
	}
	log.Debug("partitioned message",
		zap.String("source", name),
		zap.Int("elements", len(els)),
		zap.Int("attachments", len(m.Attachments)),
	)
	return els, nil
}

// messageElements segments the body of m and, when enabled, appends the
// elements of its attachments.
func messageElements(m *msg.Message, o origin, opts Options) ([]element.Element, error) {
	els := segment.Segment(m.Body, segment.Options{
		MinPartition: opts.MinPartition,
		MaxPartition: opts.MaxPartition,
	})

	filename, dir := partition.SplitName(o.name)
	md := element.Metadata{
		Filename:      filename,
		FileDirectory: dir,
		LastModified:  LastModified(opts.MetadataLastModified, HeaderDate(m.Header), o.modTime),
		SentFrom:      SentFrom(m.Header),
		SentTo:        SentTo(m.Header),
		Subject:       Subject(m.Header),
		Filetype:      Filetype,
		Languages:     element.Languages(opts.Languages),
		ParentID:      o.parentID,
	}
	if opts.IncludeDebugMetadata {
		md.DetectionOrigin = detectionOrigin
	}
	for i := range els {
		els[i] = els[i].WithMetadata(md)
	}

	if !opts.ProcessAttachments || len(m.Attachments) == 0 {
		return els, nil
	}
	att, err := attachmentElements(m, o.name, o.parentID, opts)
	if err != nil {
		return nil, err
	}
	return append(els, att...), nil
}
