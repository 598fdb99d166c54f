// Package partition holds the contract shared by every partitioner: the
// input source, the common options, the collaborator interface and the error
// taxonomy.
package partition

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dhcgn/msg-partition/element"
)

var (
	ErrNotFound          = errors.New("file not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrTypeMismatch      = element.ErrTypeMismatch
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// DefaultMaxPartition is the upper bound on element length applied by
// DefaultOptions.
const DefaultMaxPartition = 1500

// Source is the input of a partitioning call. Exactly one of Path and Reader
// must be set.
type Source struct {
	Path   string
	Reader io.Reader
}

// Validate checks the mutually exclusive input modes.
func (s Source) Validate() error {
	switch {
	case s.Path != "" && s.Reader != nil:
		return fmt.Errorf("%w: exactly one of path or stream must be specified, got both", ErrInvalidArgument)
	case s.Path == "" && s.Reader == nil:
		return fmt.Errorf("%w: exactly one of path or stream must be specified, got neither", ErrInvalidArgument)
	}
	return nil
}

// Bytes loads the whole source.
func (s Source) Bytes() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.Reader != nil {
		data, err := io.ReadAll(s.Reader)
		if err != nil {
			return nil, fmt.Errorf("read stream: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, wrapPathError(s.Path, err)
	}
	return data, nil
}

// Stat verifies that a path source names an existing regular file.
func (s Source) Stat() (fs.FileInfo, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("%w: stat needs a path source", ErrInvalidArgument)
	}
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, wrapPathError(s.Path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidArgument, s.Path)
	}
	return info, nil
}

// ModTime returns the modification time of the path, or of the stream when
// it exposes Stat (as *os.File does).
func (s Source) ModTime() (time.Time, bool) {
	if s.Path != "" {
		info, err := os.Stat(s.Path)
		if err != nil {
			return time.Time{}, false
		}
		return info.ModTime(), true
	}
	st, ok := s.Reader.(interface{ Stat() (fs.FileInfo, error) })
	if !ok {
		return time.Time{}, false
	}
	info, err := st.Stat()
	if err != nil || info.ModTime().IsZero() {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

func wrapPathError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return fmt.Errorf("open %s: %w", path, err)
}

// Options are the parameters every partitioner understands. The zero value
// excludes metadata and leaves element length unbounded; start from
// DefaultOptions for metadata on and the default maximum.
type Options struct {
	// MetadataFilename replaces the source path in filename metadata.
	MetadataFilename string
	// MetadataLastModified overrides every other last-modified source.
	MetadataLastModified string
	// IncludeMetadata false yields elements with an empty metadata record.
	IncludeMetadata bool
	// Languages overrides the default ["eng"].
	Languages []string
	// MinPartition and MaxPartition bound element text length in runes.
	// MaxPartition 0 disables the upper bound.
	MinPartition int
	MaxPartition int
	// IncludeDebugMetadata sets detection_origin on emitted elements.
	IncludeDebugMetadata bool
	Logger               *zap.Logger
}

// DefaultOptions returns options with metadata enabled and the default
// maximum partition size.
func DefaultOptions() Options {
	return Options{
		IncludeMetadata: true,
		MaxPartition:    DefaultMaxPartition,
	}
}

// Validate checks languages and partition bounds.
func (o Options) Validate() error {
	for i, l := range o.Languages {
		if strings.TrimSpace(l) == "" {
			return fmt.Errorf("%w: languages[%d] is empty", ErrTypeMismatch, i)
		}
	}
	return ValidateBounds(o.MinPartition, o.MaxPartition)
}

// Log returns the configured logger or a no-op logger.
func (o Options) Log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// ValidateBounds checks a min/max partition pair.
func ValidateBounds(min, max int) error {
	if min < 0 {
		return fmt.Errorf("%w: min partition must not be negative", ErrInvalidArgument)
	}
	if max < 0 {
		return fmt.Errorf("%w: max partition must not be negative", ErrInvalidArgument)
	}
	if max > 0 && min > max {
		return fmt.Errorf("%w: min partition %d exceeds max partition %d", ErrInvalidArgument, min, max)
	}
	return nil
}

// SourceName is the name metadata is derived from: the metadata filename when
// given, else the source path. It is empty for anonymous streams.
func SourceName(src Source, opts Options) string {
	if opts.MetadataFilename != "" {
		return opts.MetadataFilename
	}
	return src.Path
}

// SplitName splits a source name into the filename and file_directory
// metadata fields.
func SplitName(name string) (filename, dir string) {
	if name == "" {
		return "", ""
	}
	dir, filename = filepath.Split(name)
	dir = strings.TrimRight(dir, string(filepath.Separator))
	if dir == "" && strings.HasPrefix(name, string(filepath.Separator)) {
		dir = string(filepath.Separator)
	}
	return filename, dir
}

// FormatTime renders a timestamp in the ISO-8601 form used in metadata.
func FormatTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05-07:00")
}

// Partitioner turns a source into an ordered element sequence.
type Partitioner interface {
	Partition(src Source, opts Options) ([]element.Element, error)
}

// PartitionerFunc adapts a function to Partitioner.
type PartitionerFunc func(src Source, opts Options) ([]element.Element, error)

func (f PartitionerFunc) Partition(src Source, opts Options) ([]element.Element, error) {
	return f(src, opts)
}

// Finalize applies the metadata policy shared by all partitioners: when
// metadata is excluded every record is zeroed, and ids are assigned last.
func Finalize(els []element.Element, opts Options) []element.Element {
	if !opts.IncludeMetadata {
		for i := range els {
			els[i].Metadata = element.Metadata{}
		}
	}
	element.AssignIDs(els)
	return els
}
