package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/logfields"
)

// Manager handles build directory operations (both temporary and persistent).
//
// The persistent mode is the default for smoke runs: dependency checkouts and
// unpacked archives must survive between runs for the bootstrap to be
// idempotent. Ephemeral mode exists for throwaway discovery runs.
type Manager struct {
	baseDir    string
	dir        string
	persistent bool
}

// NewPersistentManager creates a manager bound to a fixed directory that is
// never removed on Cleanup().
func NewPersistentManager(dir string) *Manager {
	if dir == "" {
		dir = "./build"
	}
	return &Manager{baseDir: dir, dir: dir, persistent: true}
}

// NewManager creates a workspace manager with ephemeral timestamped directories.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// Create creates the workspace directory.
// For persistent mode: ensures the fixed directory exists.
// For ephemeral mode: creates a timestamped directory.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("failed to create build directory: %w", err)
		}
		slog.Debug("Using persistent build directory", logfields.Path(m.dir))
		return nil
	}

	timestamp := time.Now().Format("20060102-150405")
	dir := filepath.Join(m.baseDir, fmt.Sprintf("docsmoke-%s", timestamp))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.dir = dir
	slog.Info("Created workspace", logfields.Path(dir))
	return nil
}

// Path returns the path to the workspace directory.
func (m *Manager) Path() string { return m.dir }

// Cleanup removes the workspace directory in ephemeral mode. Persistent
// directories are kept for incremental bootstrap.
func (m *Manager) Cleanup() error {
	if m.dir == "" {
		return nil
	}
	if m.persistent {
		slog.Debug("Skipping cleanup for persistent build directory", logfields.Path(m.dir))
		return nil
	}
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Info("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}

// Subdir ensures and returns a subdirectory within the workspace.
func (m *Manager) Subdir(name string) (string, error) {
	if m.dir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	subdir := filepath.Join(m.dir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}
