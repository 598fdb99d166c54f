package mbox

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/filter"
	"github.com/dhcgn/msg-partition/model"
	"github.com/dhcgn/msg-partition/partition"
)

// EMLPartitioner partitions a single RFC 5322 message.
type EMLPartitioner struct{}

func (EMLPartitioner) Partition(src partition.Source, opts partition.Options) ([]element.Element, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	raw, err := src.Bytes()
	if err != nil {
		return nil, err
	}

	name := partition.SourceName(src, opts)
	els, err := messageElements(raw, name, modTime(src), EMLFiletype, opts)
	if err != nil {
		return nil, err
	}
	opts.Log().Debug("partitioned eml",
		zap.String("source", name),
		zap.Int("elements", len(els)),
	)
	return partition.Finalize(els, opts), nil
}

// ArchivePartitioner partitions every message of an mbox archive. Elements
// of one message share a parent id; messages that fail to parse are skipped.
type ArchivePartitioner struct {
	// Filter drops messages by header and elements by text or kind.
	Filter *filter.Filter
}

func (p ArchivePartitioner) Partition(src partition.Source, opts partition.Options) ([]element.Element, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	raw, err := src.Bytes()
	if err != nil {
		return nil, err
	}

	log := opts.Log()
	name := partition.SourceName(src, opts)
	mt := modTime(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan model.Envelope, 8)
	done := make(chan error, 1)
	go func() {
		done <- NewReader(bytes.NewReader(raw), p.Filter, log).Stream(ctx, out)
		close(out)
	}()

	els := []element.Element{}
	var messages, skipped int
	for env := range out {
		if env.Err != nil {
			skipped++
			log.Warn("skipping archive message", zap.String("source", name), zap.Error(env.Err))
			continue
		}
		m := env.Message
		msgEls, err := messageElements(m.Raw, name, mt, ArchiveFiletype, opts)
		if err != nil {
			skipped++
			log.Warn("skipping archive message",
				zap.String("source", name),
				zap.Int("index", m.Index),
				zap.String("message_id", m.ID),
				zap.Error(err),
			)
			continue
		}
		messages++
		els = append(els, msgEls...)
	}
	if err := <-done; err != nil {
		return nil, err
	}

	log.Debug("partitioned archive",
		zap.String("source", name),
		zap.Int("messages", messages),
		zap.Int("skipped", skipped),
		zap.Int("elements", len(els)),
	)
	els = p.Filter.Elements(els)
	return partition.Finalize(els, opts), nil
}
