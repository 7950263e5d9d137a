package examples

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCorpusHashDeterministic(t *testing.T) {
	a := Example{Name: "a", Path: "docs/a.cpp", Kind: KindFile, Hash: HashBytes([]byte("a"))}
	b := Example{Name: "b", Path: "docs/b.cpp", Kind: KindFile, Hash: HashBytes([]byte("b"))}

	h1, err := ComputeCorpusHash([]Example{a, b})
	require.NoError(t, err)
	h2, err := ComputeCorpusHash([]Example{b, a})
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "order must not matter")
}

func TestComputeCorpusHashChangesWithContent(t *testing.T) {
	a := Example{Name: "a", Path: "docs/a.cpp", Kind: KindFile, Hash: HashBytes([]byte("v1"))}
	h1, err := ComputeCorpusHash([]Example{a})
	require.NoError(t, err)

	a.Hash = HashBytes([]byte("v2"))
	h2, err := ComputeCorpusHash([]Example{a})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestComputeCorpusHashEmpty(t *testing.T) {
	h, err := ComputeCorpusHash(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, h)
}
