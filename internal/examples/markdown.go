package examples

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const noCompileMarker = "no-compile"

// ExtractMarkdownSnippets parses a Markdown document and returns the fenced
// code blocks whose info string names the wanted language. Blocks marked
// no-compile are skipped. Snippet names derive from the nearest preceding
// heading, disambiguated by an index.
func ExtractMarkdownSnippets(source []byte, docName, language, prelude string) ([]Example, error) {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(source))

	var out []Example
	currentHeading := ""
	perHeading := map[string]int{}

	err := gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading:
			currentHeading = Slugify(nodeText(node, source))
		case *gmast.FencedCodeBlock:
			info := fenceInfo(node, source)
			if !fenceMatches(info, language) {
				return gmast.WalkContinue, nil
			}
			content := fenceContent(node, source)
			if prelude != "" {
				content = append([]byte(prelude), content...)
			}

			base := currentHeading
			if base == "" {
				base = "snippet"
			}
			perHeading[base]++
			name := fmt.Sprintf("%s#%s-%d", docName, base, perHeading[base])

			out = append(out, Example{
				Name:    name,
				Path:    docName,
				Kind:    KindMarkdown,
				Line:    fenceLine(node, source),
				Content: content,
				Hash:    HashBytes(content),
			})
		}
		return gmast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// fenceInfo returns the full info string of a fenced block ("cpp no-compile").
func fenceInfo(node *gmast.FencedCodeBlock, source []byte) string {
	if node.Info == nil {
		return ""
	}
	return string(node.Info.Segment.Value(source))
}

// fenceMatches reports whether the info string selects the wanted language
// and is not opted out.
func fenceMatches(info, language string) bool {
	fields := strings.Fields(info)
	if len(fields) == 0 || fields[0] != language {
		return false
	}
	for _, f := range fields[1:] {
		if f == noCompileMarker {
			return false
		}
	}
	return true
}

// fenceContent concatenates the block's lines from the source.
func fenceContent(node *gmast.FencedCodeBlock, source []byte) []byte {
	var buf bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.Bytes()
}

// fenceLine returns the 1-based line of the block's first content line.
func fenceLine(node *gmast.FencedCodeBlock, source []byte) int {
	lines := node.Lines()
	if lines.Len() == 0 {
		return 0
	}
	return 1 + bytes.Count(source[:lines.At(0).Start], []byte("\n"))
}

// nodeText concatenates the text segments under a node.
func nodeText(n gmast.Node, source []byte) string {
	var sb strings.Builder
	_ = gmast.Walk(n, func(c gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*gmast.Text); ok {
				sb.Write(t.Segment.Value(source))
			}
		}
		return gmast.WalkContinue, nil
	})
	return sb.String()
}
