package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryLoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, filepath.Join(dir, "base.yaml"), `
rules:
  - id: first-rule
    pattern: 'a'
    condition: must_contain
    message: m
    severity: LOW
  - id: second-rule
    pattern: 'b'
    condition: must_contain
    message: m
    severity: HIGH
`)

	registry, err := NewRegistryWithDirectory(dir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error: %v", err)
	}
	if registry.Count() != 2 {
		t.Errorf("Count() = %d, want 2", registry.Count())
	}

	snapshot := registry.Snapshot()
	if len(snapshot.Rules) != 2 {
		t.Fatalf("snapshot rules = %d, want 2", len(snapshot.Rules))
	}
	if snapshot.Rules[0].ID != "first-rule" {
		t.Errorf("first rule = %q", snapshot.Rules[0].ID)
	}
}

func TestRegistryMissingDirectoryIsEmpty(t *testing.T) {
	registry, err := NewRegistryWithDirectory(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("missing directory should load empty, got error: %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Count() = %d, want 0", registry.Count())
	}
}

func TestRegistrySnapshotIsStable(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, filepath.Join(dir, "base.yaml"), `
rules:
  - id: kept-rule
    pattern: 'a'
    condition: must_contain
    message: m
    severity: LOW
`)

	registry, err := NewRegistryWithDirectory(dir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error: %v", err)
	}
	snapshot := registry.Snapshot()

	// A reload after the snapshot must not change the handed-out catalog.
	if err := os.Remove(filepath.Join(dir, "base.yaml")); err != nil {
		t.Fatal(err)
	}
	if err := registry.Reload(); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}

	if registry.Count() != 0 {
		t.Errorf("Count() after reload = %d, want 0", registry.Count())
	}
	if len(snapshot.Rules) != 1 || snapshot.Rules[0].ID != "kept-rule" {
		t.Errorf("snapshot mutated by reload: %+v", snapshot.Rules)
	}
}

func TestRegistryFileLifecycle(t *testing.T) {
	dir := t.TempDir()
	registry, err := NewRegistryWithDirectory(dir)
	if err != nil {
		t.Fatalf("NewRegistryWithDirectory() error: %v", err)
	}

	path := filepath.Join(dir, "extra.yaml")
	writeCatalog(t, path, `
rules:
  - id: extra-rule
    pattern: 'x'
    condition: must_contain
    message: m
    severity: LOW
`)
	if err := registry.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if registry.Count() != 1 {
		t.Fatalf("Count() after load = %d, want 1", registry.Count())
	}

	// Replacing a file's catalog keeps one entry per file.
	if err := registry.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() reload error: %v", err)
	}
	if registry.Count() != 1 {
		t.Errorf("Count() after replace = %d, want 1", registry.Count())
	}

	registry.Remove(path)
	if registry.Count() != 0 {
		t.Errorf("Count() after remove = %d, want 0", registry.Count())
	}
}
