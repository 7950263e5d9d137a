package examples

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ExtractHTMLSnippets parses a generated reference page and returns the
// <pre><code> blocks whose class names the wanted language
// (class="language-cpp" or class="cpp").
func ExtractHTMLSnippets(source []byte, docName, language, prelude string) ([]Example, error) {
	doc, err := html.Parse(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []Example
	index := 0

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "pre" {
			if code := findCodeChild(n); code != nil && codeMatchesLanguage(code, language) {
				content := []byte(textContent(code))
				if prelude != "" {
					content = append([]byte(prelude), content...)
				}
				index++
				out = append(out, Example{
					Name:    fmt.Sprintf("%s#code-%d", docName, index),
					Path:    docName,
					Kind:    KindHTML,
					Content: content,
					Hash:    HashBytes(content),
				})
				return // do not descend into the matched block
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func findCodeChild(pre *html.Node) *html.Node {
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			return c
		}
	}
	return nil
}

func codeMatchesLanguage(code *html.Node, language string) bool {
	for _, attr := range code.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(attr.Val) {
			if class == language || class == "language-"+language {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
