package examples

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// HashBytes returns the hex sha256 of content.
func HashBytes(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// corpusEntry is the canonical per-example record hashed into the corpus hash.
type corpusEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	ContentHash string `json:"content_hash"`
}

// ComputeCorpusHash computes a deterministic hash for a set of examples.
// The hash covers names, source paths, kinds and content hashes, enabling
// detection of any change in the example set.
func ComputeCorpusHash(examples []Example) (string, error) {
	if len(examples) == 0 {
		h := sha256.Sum256([]byte("empty-example-set"))
		return hex.EncodeToString(h[:]), nil
	}

	entries := make([]corpusEntry, 0, len(examples))
	for _, e := range examples {
		entries = append(entries, corpusEntry{
			Name:        e.Name,
			Path:        e.Path,
			Kind:        string(e.Kind),
			ContentHash: e.Hash,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshal corpus entries: %w", err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}
