package examples

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
)

// Discovery walks the configured source roots and collects examples.
type Discovery struct {
	cfg config.SourcesConfig
}

// NewDiscovery creates a discovery instance for the given sources section.
func NewDiscovery(cfg config.SourcesConfig) *Discovery {
	return &Discovery{cfg: cfg}
}

// Discover returns every example under the roots, sorted by name so the
// fail-fast loop is deterministic.
func (d *Discovery) Discover() ([]Example, error) {
	var out []Example

	for _, root := range d.cfg.Roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			slog.Warn("Source root not found", logfields.Path(root))
			continue
		}

		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			docName := relName(root, path)
			switch {
			case d.matchesExtension(path):
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				out = append(out, Example{
					Name:    strings.TrimSuffix(docName, filepath.Ext(docName)),
					Path:    path,
					Kind:    KindFile,
					Content: content,
					Hash:    HashBytes(content),
				})
			case d.cfg.MarkdownSnippets && isMarkdown(path):
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				snippets, err := ExtractMarkdownSnippets(content, strings.TrimSuffix(docName, filepath.Ext(docName)), d.cfg.SnippetLanguage, d.cfg.SnippetPrelude)
				if err != nil {
					return fmt.Errorf("extract snippets from %s: %w", path, err)
				}
				for i := range snippets {
					snippets[i].Path = path
				}
				out = append(out, snippets...)
			case d.cfg.HTMLSnippets && isHTML(path):
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				snippets, err := ExtractHTMLSnippets(content, strings.TrimSuffix(docName, filepath.Ext(docName)), d.cfg.SnippetLanguage, d.cfg.SnippetPrelude)
				if err != nil {
					return fmt.Errorf("extract snippets from %s: %w", path, err)
				}
				for i := range snippets {
					snippets[i].Path = path
				}
				out = append(out, snippets...)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	slog.Info("Examples discovered", slog.Int("count", len(out)))
	return out, nil
}

func (d *Discovery) matchesExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, want := range d.cfg.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

func isHTML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// relName returns the slash-separated path of file relative to root,
// prefixed with the root's base name so names stay unique across roots.
func relName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return filepath.ToSlash(filepath.Join(filepath.Base(root), rel))
}
