package msg

import (
	"fmt"
	"io"
	"time"

	"github.com/richardlehane/mscfb"
)

// storage is one directory level of the compound file.
type storage struct {
	streams  map[string][]byte
	children map[string]*storage
}

func newStorage() *storage {
	return &storage{
		streams:  make(map[string][]byte),
		children: make(map[string]*storage),
	}
}

func (s *storage) child(name string) *storage {
	c, ok := s.children[name]
	if !ok {
		c = newStorage()
		s.children[name] = c
	}
	return c
}

// readTree loads every stream of the compound file into memory.
//
// Entries arrive in depth-first order, so the parent of an entry is the most
// recent storage one level up. Only the length of File.Path is used: its
// backing array is shared between siblings and deep names can be stale.
func readTree(ra io.ReaderAt) (*storage, time.Time, error) {
	doc, err := mscfb.New(ra)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrNotCompoundFile, err)
	}
	if len(doc.File) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: no directory entries", ErrNotCompoundFile)
	}

	root := newStorage()
	modified := doc.File[0].Modified()
	levels := []*storage{root}
	for _, f := range doc.File[1:] {
		depth := len(f.Path)
		if depth >= len(levels) {
			return nil, time.Time{}, fmt.Errorf("%w: orphan entry %s", ErrNotCompoundFile, f.Name)
		}
		parent := levels[depth]
		if f.FileInfo().IsDir() {
			levels = append(levels[:depth+1], parent.child(f.Name))
			continue
		}
		data := make([]byte, f.Size)
		if _, err := io.ReadFull(f, data); err != nil {
			return nil, time.Time{}, fmt.Errorf("read stream %s: %w", f.Name, err)
		}
		parent.streams[f.Name] = data
	}
	return root, modified, nil
}
