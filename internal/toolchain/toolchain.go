// Package toolchain invokes the configured compiler on discovered examples
// and runs the resulting binaries.
package toolchain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/examples"
)

// Toolchain holds the resolved compiler invocation shared by every example.
type Toolchain struct {
	Compiler    string
	Standard    string
	Flags       []string
	IncludeDirs []string
	BinDir      string
	RunTimeout  time.Duration
}

// New builds a toolchain from config plus the bootstrapped include directories.
func New(cfg config.ToolchainConfig, includeDirs []string, binDir string) *Toolchain {
	return &Toolchain{
		Compiler:    cfg.Compiler,
		Standard:    cfg.Standard,
		Flags:       cfg.Flags,
		IncludeDirs: includeDirs,
		BinDir:      binDir,
		RunTimeout:  cfg.RunTimeout,
	}
}

// Signature returns a stable hash of everything that influences compilation.
// Two runs with equal signatures and equal example hashes produce identical
// binaries, which is what incremental skipping relies on.
func (t *Toolchain) Signature() string {
	parts := []string{t.Compiler, t.Standard}
	parts = append(parts, t.Flags...)
	parts = append(parts, t.IncludeDirs...)
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}

// compileArgs builds the argument list for compiling src into out.
func (t *Toolchain) compileArgs(src, out string) []string {
	args := make([]string, 0, len(t.Flags)+len(t.IncludeDirs)+4)
	if t.Standard != "" {
		args = append(args, "-std="+t.Standard)
	}
	args = append(args, t.Flags...)
	for _, dir := range t.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	args = append(args, src, "-o", out)
	return args
}

// sourcePath returns the path to compile for an example. Whole-file examples
// compile in place; extracted snippets are materialized under BinDir/src so
// compiler diagnostics have a real file to point at.
func (t *Toolchain) sourcePath(ex examples.Example) (string, error) {
	if ex.Kind == examples.KindFile {
		return ex.Path, nil
	}
	srcDir := filepath.Join(t.BinDir, "src")
	if err := os.MkdirAll(srcDir, 0o750); err != nil {
		return "", fmt.Errorf("create snippet source dir: %w", err)
	}
	src := filepath.Join(srcDir, ex.BinaryName()+".cpp")
	if err := os.WriteFile(src, ex.Content, 0o644); err != nil {
		return "", fmt.Errorf("write snippet source: %w", err)
	}
	return src, nil
}

// binaryPath returns where the example's compiled binary lands.
func (t *Toolchain) binaryPath(ex examples.Example) string {
	return filepath.Join(t.BinDir, ex.BinaryName())
}
