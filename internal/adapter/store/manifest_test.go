package store

import (
	"path/filepath"
	"testing"
)

func openManifest(t *testing.T, path string) *Manifest {
	t.Helper()
	m, err := NewManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManifestPutGet(t *testing.T) {
	m := openManifest(t, filepath.Join(t.TempDir(), "manifest.db"))

	rec := Record{
		SourcePath:  "/data/Scripts/Source/foo.psc",
		SourceMod:   1700000000,
		HeaderPath:  "/out/Foo.psc",
		GeneratedAt: 1700000100,
	}
	if err := m.Put("foo", rec); err != nil {
		t.Fatal(err)
	}

	got, found, err := m.Get("foo")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected record for foo")
	}
	if got != rec {
		t.Errorf("got %+v, want %+v", got, rec)
	}

	_, found, err = m.Get("missing")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("did not expect a record for missing")
	}
}

func TestManifestPutAllAndAll(t *testing.T) {
	m := openManifest(t, filepath.Join(t.TempDir(), "manifest.db"))

	batch := map[string]Record{
		"a": {SourcePath: "a.psc", SourceMod: 1},
		"b": {SourcePath: "b.psc", SourceMod: 2},
	}
	if err := m.PutAll(batch); err != nil {
		t.Fatal(err)
	}

	all, err := m.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all["b"].SourceMod != 2 {
		t.Errorf("unexpected record for b: %+v", all["b"])
	}
}

func TestManifestPrune(t *testing.T) {
	m := openManifest(t, filepath.Join(t.TempDir(), "manifest.db"))

	if err := m.PutAll(map[string]Record{
		"keep": {SourcePath: "keep.psc"},
		"gone": {SourcePath: "gone.psc"},
	}); err != nil {
		t.Fatal(err)
	}

	pruned, err := m.Prune(map[string]bool{"keep": true})
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned record, got %d", pruned)
	}

	all, err := m.All()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := all["gone"]; ok {
		t.Error("expected gone to be pruned")
	}
	if _, ok := all["keep"]; !ok {
		t.Error("expected keep to survive pruning")
	}
}

func TestManifestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.db")

	m, err := NewManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Put("foo", Record{SourcePath: "foo.psc", SourceMod: 42}); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	m = openManifest(t, path)
	got, found, err := m.Get("foo")
	if err != nil {
		t.Fatal(err)
	}
	if !found || got.SourceMod != 42 {
		t.Errorf("record did not survive reopen: %+v %v", got, found)
	}
}
