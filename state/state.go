package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Tracker remembers which inputs were already partitioned, keyed by content
// hash.
type Tracker interface {
	AlreadyProcessed(hash string) bool
	MarkProcessed(hash, output string) error
	Snapshot() Snapshot
	Close() error
}

type Snapshot struct {
	Processed int
}

type MemoryTracker struct {
	mu        sync.RWMutex
	processed map[string]string
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{processed: make(map[string]string)}
}

func (m *MemoryTracker) AlreadyProcessed(hash string) bool {
	if hash == "" {
		return false
	}

	m.mu.RLock()
	_, ok := m.processed[hash]
	m.mu.RUnlock()
	return ok
}

func (m *MemoryTracker) MarkProcessed(hash, output string) error {
	if hash == "" {
		return nil
	}

	m.mu.Lock()
	m.processed[hash] = output
	m.mu.Unlock()
	return nil
}

// Output returns the output recorded for hash.
func (m *MemoryTracker) Output(hash string) (string, bool) {
	m.mu.RLock()
	out, ok := m.processed[hash]
	m.mu.RUnlock()
	return out, ok
}

func (m *MemoryTracker) Snapshot() Snapshot {
	m.mu.RLock()
	count := len(m.processed)
	m.mu.RUnlock()
	return Snapshot{Processed: count}
}

func (m *MemoryTracker) Close() error { return nil }

const (
	stateFile     = "processed.db"
	processedName = "processed"
)

var processedBucket = []byte(processedName)

// BoltTracker persists processed input hashes in a bbolt database so future
// runs can skip them.
type BoltTracker struct {
	*MemoryTracker
	path    string
	persist bool
	db      *bolt.DB
}

// NewBoltTracker opens (or creates) the state database in stateDir. With
// persist false the database is only read; new marks stay in memory.
func NewBoltTracker(stateDir string, persist bool) (*BoltTracker, error) {
	if strings.TrimSpace(stateDir) == "" {
		return nil, fmt.Errorf("state directory is empty")
	}

	tracker := &BoltTracker{
		MemoryTracker: NewMemoryTracker(),
		path:          filepath.Join(stateDir, stateFile),
		persist:       persist,
	}

	if !persist {
		if _, err := os.Stat(tracker.path); errors.Is(err, os.ErrNotExist) {
			return tracker, nil
		}
	} else if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := bolt.Open(tracker.path, 0o600, &bolt.Options{Timeout: time.Second, ReadOnly: !persist})
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	tracker.db = db

	if persist {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(processedBucket)
			return err
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create state bucket: %w", err)
		}
	}

	if err := tracker.load(); err != nil {
		db.Close()
		return nil, err
	}

	return tracker, nil
}

func (b *BoltTracker) load() error {
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(processedBucket)
		if bucket == nil {
			return nil
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		return bucket.ForEach(func(k, v []byte) error {
			b.processed[string(k)] = string(v)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("read state database: %w", err)
	}
	return nil
}

func (b *BoltTracker) MarkProcessed(hash, output string) error {
	if hash == "" {
		return nil
	}

	b.mu.Lock()
	if prev, exists := b.processed[hash]; exists && prev == output {
		b.mu.Unlock()
		return nil
	}
	b.processed[hash] = output
	b.mu.Unlock()

	if !b.persist {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(processedBucket).Put([]byte(hash), []byte(output))
	})
	if err != nil {
		return fmt.Errorf("write state record: %w", err)
	}
	return nil
}

// Path returns the location of the state database.
func (b *BoltTracker) Path() string {
	return b.path
}

// Close closes the state database.
func (b *BoltTracker) Close() error {
	if b.db == nil {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close state database: %w", err)
	}
	b.db = nil
	return nil
}
