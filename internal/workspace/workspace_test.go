package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPersistentCreateIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build")
	m := NewPersistentManager(dir)

	if err := m.Create(); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := m.Create(); err != nil {
		t.Fatalf("second create should be a no-op: %v", err)
	}
	if m.Path() != dir {
		t.Fatalf("expected path %s got %s", dir, m.Path())
	}
}

func TestPersistentCleanupKeepsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build")
	m := NewPersistentManager(dir)
	if err := m.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("persistent directory should survive cleanup: %v", err)
	}
}

func TestEphemeralCleanupRemovesDirectory(t *testing.T) {
	m := NewManager(t.TempDir())
	if err := m.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	path := m.Path()
	if err := m.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("ephemeral directory should be removed, stat err=%v", err)
	}
	if m.Path() != "" {
		t.Fatalf("path should be cleared after cleanup")
	}
}

func TestSubdirRequiresCreate(t *testing.T) {
	m := NewManager(t.TempDir())
	if _, err := m.Subdir("deps"); err == nil {
		t.Fatalf("expected error before Create")
	}
	if err := m.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	sub, err := m.Subdir("deps")
	if err != nil {
		t.Fatalf("subdir: %v", err)
	}
	if _, err := os.Stat(sub); err != nil {
		t.Fatalf("subdir missing: %v", err)
	}
}
