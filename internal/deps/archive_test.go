package deps

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/metrics"
	"git.home.luguber.info/inful/docsmoke/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRecorder records IncFetchRetry calls per op.
type countingRecorder struct {
	metrics.NoopRecorder
	retries map[string]int
}

func (c *countingRecorder) IncFetchRetry(op string) {
	if c.retries == nil {
		c.retries = make(map[string]int)
	}
	c.retries[op]++
}

// buildTarGz builds an in-memory tar.gz with the given name->content entries.
func buildTarGz(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func quickPolicy() retry.Policy {
	return retry.Policy{Mode: config.RetryBackoffFixed, Initial: 1, Max: 1, MaxRetries: 1}
}

func TestEnsureDownloadsAndUnpacks(t *testing.T) {
	archive := buildTarGz(t, map[string]string{
		"lib-1.0/include/lib.hpp": "#pragma once\n",
		"lib-1.0/README":          "hello\n",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	depsDir := t.TempDir()
	f := NewArchiveFetcher(depsDir, quickPolicy(), nil)
	path, err := f.Ensure(config.ArchiveDependency{Name: "lib", URL: srv.URL + "/lib.tar.gz"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(depsDir, "lib"), path)

	content, err := os.ReadFile(filepath.Join(path, "lib-1.0", "include", "lib.hpp"))
	require.NoError(t, err)
	assert.Equal(t, "#pragma once\n", string(content))
}

func TestEnsureSkipsWhenPresent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	depsDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(depsDir, "boost"), 0o750))

	f := NewArchiveFetcher(depsDir, quickPolicy(), nil)
	path, err := f.Ensure(config.ArchiveDependency{Name: "boost", URL: srv.URL + "/boost.tar.gz"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(depsDir, "boost"), path)
	assert.Zero(t, hits.Load(), "existing directory must skip the download entirely")
}

func TestEnsureVerifiesChecksum(t *testing.T) {
	archive := buildTarGz(t, map[string]string{"x/a.txt": "a"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	depsDir := t.TempDir()
	f := NewArchiveFetcher(depsDir, quickPolicy(), nil)

	// Wrong pin: permanent failure, no retries, no directory left behind.
	_, err := f.Ensure(config.ArchiveDependency{Name: "x", URL: srv.URL + "/x.tar.gz", SHA256: "deadbeef"})
	require.Error(t, err)
	var ce *ChecksumError
	require.ErrorAs(t, err, &ce)
	_, statErr := os.Stat(filepath.Join(depsDir, "x"))
	assert.True(t, os.IsNotExist(statErr))

	// Correct pin succeeds.
	sum := sha256.Sum256(archive)
	_, err = f.Ensure(config.ArchiveDependency{Name: "x", URL: srv.URL + "/x.tar.gz", SHA256: hex.EncodeToString(sum[:])})
	require.NoError(t, err)
}

func TestEnsureNotFoundIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewArchiveFetcher(t.TempDir(), quickPolicy(), nil)
	_, err := f.Ensure(config.ArchiveDependency{Name: "gone", URL: srv.URL + "/gone.tar.gz"})
	require.Error(t, err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int32(1), hits.Load(), "404 must not be retried")
}

func TestEnsureRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	archive := buildTarGz(t, map[string]string{"y/a.txt": "a"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	f := NewArchiveFetcher(t.TempDir(), quickPolicy(), nil)
	_, err := f.Ensure(config.ArchiveDependency{Name: "y", URL: srv.URL + "/y.tar.gz"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestEnsureRecordsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := &countingRecorder{}
	f := NewArchiveFetcher(t.TempDir(), retry.Policy{Mode: config.RetryBackoffFixed, Initial: 1, Max: 1, MaxRetries: 2}, rec)
	_, err := f.Ensure(config.ArchiveDependency{Name: "z", URL: srv.URL + "/z.tar.gz"})
	require.Error(t, err)
	assert.Equal(t, 2, rec.retries["download"], "every retry must be counted")
}

func TestExtractRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "../../escape.txt",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     4,
	}))
	_, err := tw.Write([]byte("oops"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	require.NoError(t, os.WriteFile(archivePath, buf.Bytes(), 0o644))

	// safeJoin strips the traversal, so the entry lands inside dest.
	dest := filepath.Join(dir, "out")
	require.NoError(t, extractTarball(archivePath, "evil.tar.gz", dest))
	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr), "entry must not escape the destination")
	_, statErr = os.Stat(filepath.Join(dest, "escape.txt"))
	assert.NoError(t, statErr)
}
