package partition

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dhcgn/msg-partition/element"
)

// Router dispatches to a partitioner by file extension. Extensions are
// matched case-insensitively and include the leading dot.
type Router struct {
	Routes   map[string]Partitioner
	Fallback Partitioner
}

// Partition implements Partitioner.
func (r Router) Partition(src Source, opts Options) ([]element.Element, error) {
	p, err := r.Lookup(SourceName(src, opts))
	if err != nil {
		return nil, err
	}
	return p.Partition(src, opts)
}

// Lookup returns the partitioner responsible for name.
func (r Router) Lookup(name string) (Partitioner, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if p, ok := r.Routes[ext]; ok && p != nil {
		return p, nil
	}
	if r.Fallback != nil {
		return r.Fallback, nil
	}
	if ext == "" {
		return nil, fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}
