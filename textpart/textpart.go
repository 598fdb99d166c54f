// Package textpart partitions plain-text documents.
package textpart

import (
	"bytes"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/dhcgn/msg-partition/element"
	"github.com/dhcgn/msg-partition/partition"
	"github.com/dhcgn/msg-partition/segment"
)

const Filetype = "text/plain"

// Partitioner implements partition.Partitioner for text files.
type Partitioner struct{}

func (Partitioner) Partition(src partition.Source, opts partition.Options) ([]element.Element, error) {
	return Partition(src, opts)
}

// Partition segments a text source. Input that is not valid UTF-8 is read
// as windows-1252; a UTF-16 byte order mark selects UTF-16.
func Partition(src partition.Source, opts partition.Options) ([]element.Element, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	data, err := src.Bytes()
	if err != nil {
		return nil, err
	}

	els := segment.Segment(Decode(data), segment.Options{
		MinPartition: opts.MinPartition,
		MaxPartition: opts.MaxPartition,
	})
	opts.Log().Debug("partitioned text",
		zap.String("source", partition.SourceName(src, opts)),
		zap.Int("elements", len(els)),
	)

	md := metadata(src, opts)
	for i := range els {
		els[i] = els[i].WithMetadata(md)
	}
	return partition.Finalize(els, opts), nil
}

func metadata(src partition.Source, opts partition.Options) element.Metadata {
	filename, dir := partition.SplitName(partition.SourceName(src, opts))
	md := element.Metadata{
		Filename:      filename,
		FileDirectory: dir,
		Filetype:      Filetype,
		Languages:     element.Languages(opts.Languages),
		LastModified:  opts.MetadataLastModified,
	}
	if md.LastModified == "" {
		if t, ok := src.ModTime(); ok {
			md.LastModified = partition.FormatTime(t)
		}
	}
	if opts.IncludeDebugMetadata {
		md.DetectionOrigin = "text"
	}
	return md
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Decode turns raw bytes into text.
func Decode(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		data = data[len(bomUTF8):]
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		out, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err == nil {
			return string(out)
		}
	}
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}
