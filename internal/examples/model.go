// Package examples discovers compilable documentation examples: standalone
// source files, fenced code blocks in Markdown tutorials, and code blocks in
// generated HTML reference pages.
package examples

import (
	"strings"
)

// SourceKind identifies where an example was extracted from.
type SourceKind string

const (
	KindFile     SourceKind = "file"
	KindMarkdown SourceKind = "markdown"
	KindHTML     SourceKind = "html"
)

// Example is a single compilable documentation example.
type Example struct {
	Name    string     // unique within a corpus, e.g. "tips/out-params" or "tips/intro#return-values-1"
	Path    string     // source document path
	Kind    SourceKind
	Line    int        // 1-based start line for snippets, 0 for whole files
	Content []byte
	Hash    string     // sha256 of Content
}

// BinaryName returns a filesystem-safe name for the compiled binary.
func (e Example) BinaryName() string {
	r := strings.NewReplacer("/", "_", "#", "_", " ", "_")
	return r.Replace(e.Name)
}
