package watch

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func waitForBatch(t *testing.T, ch <-chan []string, timeout time.Duration) []string {
	t.Helper()
	select {
	case batch := <-ch:
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a change batch")
		return nil
	}
}

func startWatcher(t *testing.T, dir string, debounce time.Duration) chan []string {
	t.Helper()
	changes := make(chan []string, 10)
	w, err := NewWatcher(debounce, func(paths []string) {
		changes <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })

	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}
	// Let the event loop come up before mutating the tree.
	time.Sleep(50 * time.Millisecond)
	return changes
}

func TestWatcherDetectsSourceChange(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir, 100*time.Millisecond)

	path := filepath.Join(dir, "Alpha.psc")
	if err := os.WriteFile(path, []byte("Scriptname Alpha\n"), 0644); err != nil {
		t.Fatal(err)
	}

	batch := waitForBatch(t, changes, 2*time.Second)
	if len(batch) != 1 || batch[0] != path {
		t.Errorf("expected batch [%s], got %v", path, batch)
	}
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir, 100*time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-changes:
		t.Fatalf("expected no batch for a text file, got %v", batch)
	case <-time.After(400 * time.Millisecond):
	}

	path := filepath.Join(dir, "Beta.pex")
	if err := os.WriteFile(path, []byte("pex"), 0644); err != nil {
		t.Fatal(err)
	}
	batch := waitForBatch(t, changes, 2*time.Second)
	if len(batch) != 1 || batch[0] != path {
		t.Errorf("expected batch [%s], got %v", path, batch)
	}
}

func TestWatcherBatchesRapidChanges(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir, 300*time.Millisecond)

	first := filepath.Join(dir, "First.psc")
	second := filepath.Join(dir, "Second.psc")
	if err := os.WriteFile(first, []byte("Scriptname First\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("Scriptname Second\n"), 0644); err != nil {
		t.Fatal(err)
	}

	batch := waitForBatch(t, changes, 2*time.Second)
	sort.Strings(batch)
	want := []string{first, second}
	if len(batch) != 2 || batch[0] != want[0] || batch[1] != want[1] {
		t.Errorf("expected one batch %v, got %v", want, batch)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	changes := startWatcher(t, dir, 100*time.Millisecond)

	sub := filepath.Join(dir, "Source")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the loop time to register the new directory.
	time.Sleep(200 * time.Millisecond)

	path := filepath.Join(sub, "Gamma.psc")
	if err := os.WriteFile(path, []byte("Scriptname Gamma\n"), 0644); err != nil {
		t.Fatal(err)
	}

	batch := waitForBatch(t, changes, 2*time.Second)
	found := false
	for _, p := range batch {
		if p == path {
			found = true
		}
	}
	if !found {
		t.Errorf("expected batch to contain %s, got %v", path, batch)
	}
}

func TestWatcherDetectsRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Doomed.psc")
	if err := os.WriteFile(path, []byte("Scriptname Doomed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	changes := startWatcher(t, dir, 100*time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	batch := waitForBatch(t, changes, 2*time.Second)
	if len(batch) != 1 || batch[0] != path {
		t.Errorf("expected batch [%s], got %v", path, batch)
	}
}

func TestWatcherRequiresExistingRoot(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("expected an error when no root exists")
	}
}

func TestWatcherCloseStopsCallbacks(t *testing.T) {
	dir := t.TempDir()
	changes := make(chan []string, 10)
	w, err := NewWatcher(100*time.Millisecond, func(paths []string) {
		changes <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Watch([]string{dir}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Late.psc"), []byte("Scriptname Late\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case batch := <-changes:
		t.Errorf("expected no batch after close, got %v", batch)
	case <-time.After(400 * time.Millisecond):
	}
}
