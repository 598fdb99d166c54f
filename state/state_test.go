package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryTracker(t *testing.T) {
	tracker := NewMemoryTracker()

	if tracker.AlreadyProcessed("abc") {
		t.Fatal("empty tracker reports a hash as processed")
	}
	if err := tracker.MarkProcessed("abc", "a.json"); err != nil {
		t.Fatal(err)
	}
	if err := tracker.MarkProcessed("", "ignored.json"); err != nil {
		t.Fatal(err)
	}
	if !tracker.AlreadyProcessed("abc") || tracker.AlreadyProcessed("") {
		t.Error("AlreadyProcessed() mismatch")
	}
	if out, ok := tracker.Output("abc"); !ok || out != "a.json" {
		t.Errorf("Output() = %q, %v", out, ok)
	}
	if got := tracker.Snapshot().Processed; got != 1 {
		t.Errorf("Snapshot().Processed = %d, want 1", got)
	}
}

func TestBoltTrackerPersists(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewBoltTracker(dir, true)
	if err != nil {
		t.Fatalf("NewBoltTracker() error = %v", err)
	}
	for _, h := range []string{"h1", "h2", "h2"} {
		if err := tracker.MarkProcessed(h, h+".json"); err != nil {
			t.Fatalf("MarkProcessed() error = %v", err)
		}
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, stateFile)); err != nil {
		t.Fatalf("state database missing: %v", err)
	}

	reopened, err := NewBoltTracker(dir, false)
	if err != nil {
		t.Fatalf("NewBoltTracker() reopen error = %v", err)
	}
	defer reopened.Close()

	if got := reopened.Snapshot().Processed; got != 2 {
		t.Errorf("Snapshot().Processed = %d, want 2", got)
	}
	if !reopened.AlreadyProcessed("h1") || reopened.AlreadyProcessed("h3") {
		t.Error("AlreadyProcessed() mismatch after reopen")
	}

	// Read-only trackers keep new marks in memory.
	if err := reopened.MarkProcessed("h3", "h3.json"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if !reopened.AlreadyProcessed("h3") {
		t.Error("in-memory mark lost")
	}
}

func TestBoltTrackerDryRunWithoutDatabase(t *testing.T) {
	dir := t.TempDir()
	tracker, err := NewBoltTracker(dir, false)
	if err != nil {
		t.Fatalf("NewBoltTracker() error = %v", err)
	}
	defer tracker.Close()

	if err := tracker.MarkProcessed("h1", "h1.json"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, stateFile)); !os.IsNotExist(err) {
		t.Errorf("dry run created the state database: %v", err)
	}
}

func TestNewBoltTrackerEmptyDir(t *testing.T) {
	if _, err := NewBoltTracker("  ", true); err == nil {
		t.Error("NewBoltTracker() with empty dir succeeded")
	}
}
