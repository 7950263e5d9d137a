package examples

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tutorial = "# Avoiding Out-Parameters\n" +
	"\n" +
	"Prefer return values:\n" +
	"\n" +
	"```cpp\n" +
	"int main() { return 0; }\n" +
	"```\n" +
	"\n" +
	"Not C++:\n" +
	"\n" +
	"```sh\n" +
	"echo hi\n" +
	"```\n" +
	"\n" +
	"## Optional Results\n" +
	"\n" +
	"```cpp no-compile\n" +
	"std::optional<int> f(); // fragment, not a program\n" +
	"```\n" +
	"\n" +
	"```cpp\n" +
	"int main() { return 0; } // second\n" +
	"```\n"

func TestExtractMarkdownSnippets(t *testing.T) {
	snippets, err := ExtractMarkdownSnippets([]byte(tutorial), "tips/out-params", "cpp", "")
	require.NoError(t, err)
	require.Len(t, snippets, 2, "sh block and no-compile block must be skipped")

	assert.Equal(t, "tips/out-params#avoiding-out-parameters-1", snippets[0].Name)
	assert.Equal(t, "int main() { return 0; }\n", string(snippets[0].Content))
	assert.Equal(t, KindMarkdown, snippets[0].Kind)
	assert.Equal(t, 6, snippets[0].Line)

	assert.Equal(t, "tips/out-params#optional-results-1", snippets[1].Name)
	assert.Contains(t, string(snippets[1].Content), "// second")
}

func TestExtractMarkdownSnippetsPrelude(t *testing.T) {
	doc := "```cpp\nint main() {}\n```\n"
	snippets, err := ExtractMarkdownSnippets([]byte(doc), "d", "cpp", "#include <cstdio>\n")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "#include <cstdio>\nint main() {}\n", string(snippets[0].Content))
}

func TestExtractMarkdownSnippetsNoHeading(t *testing.T) {
	doc := "```cpp\nint main() {}\n```\n"
	snippets, err := ExtractMarkdownSnippets([]byte(doc), "d", "cpp", "")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
	assert.Equal(t, "d#snippet-1", snippets[0].Name)
}

func TestFenceMatches(t *testing.T) {
	assert.True(t, fenceMatches("cpp", "cpp"))
	assert.True(t, fenceMatches("cpp linenums", "cpp"))
	assert.False(t, fenceMatches("cpp no-compile", "cpp"))
	assert.False(t, fenceMatches("", "cpp"))
	assert.False(t, fenceMatches("c", "cpp"))
}

func TestSnippetHashesDiffer(t *testing.T) {
	doc := "```cpp\nint main() { return 1; }\n```\n```cpp\nint main() { return 2; }\n```\n"
	snippets, err := ExtractMarkdownSnippets([]byte(doc), "d", "cpp", "")
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.NotEqual(t, snippets[0].Hash, snippets[1].Hash)
}
