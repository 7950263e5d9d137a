package deps

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
	"git.home.luguber.info/inful/docsmoke/internal/metrics"
	"git.home.luguber.info/inful/docsmoke/internal/retry"
)

// ArchiveFetcher downloads and unpacks pinned tarball dependencies.
type ArchiveFetcher struct {
	depsDir    string
	policy     retry.Policy
	recorder   metrics.Recorder
	httpClient *http.Client
}

// NewArchiveFetcher creates a fetcher rooted at the dependency directory. A
// nil recorder defaults to noop.
func NewArchiveFetcher(depsDir string, policy retry.Policy, recorder metrics.Recorder) *ArchiveFetcher {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &ArchiveFetcher{
		depsDir:  depsDir,
		policy:   policy,
		recorder: recorder,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // large source archives
		},
	}
}

// Ensure downloads and unpacks the archive unless the target directory is
// already present. The returned path is the unpacked root.
func (f *ArchiveFetcher) Ensure(dep config.ArchiveDependency) (string, error) {
	target := filepath.Join(f.depsDir, dep.Name)
	if _, err := os.Stat(target); err == nil {
		slog.Debug("Archive already unpacked, skipping download", logfields.Dependency(dep.Name), logfields.Path(target))
		return target, nil
	}

	var lastErr error
	for attempt := 0; attempt <= f.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying archive fetch", logfields.Dependency(dep.Name), slog.Int("attempt", attempt))
			f.recorder.IncFetchRetry("download")
		}
		err := f.fetchOnce(dep, target)
		if err == nil {
			return target, nil
		}
		lastErr = err
		if isPermanent(err) {
			return "", err
		}
		if attempt == f.policy.MaxRetries {
			break
		}
		time.Sleep(f.policy.Delay(attempt + 1))
	}
	return "", fmt.Errorf("archive fetch failed after retries: %w", lastErr)
}

func (f *ArchiveFetcher) fetchOnce(dep config.ArchiveDependency, target string) error {
	slog.Info("Downloading archive", logfields.Dependency(dep.Name), logfields.URL(dep.URL))

	tmpFile, err := os.CreateTemp(f.depsDir, dep.Name+"-*.download")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if err := f.download(dep.URL, tmpFile); err != nil {
		tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close download: %w", err)
	}

	if dep.SHA256 != "" {
		if err := verifySHA256(tmpPath, dep.URL, dep.SHA256); err != nil {
			return err
		}
	}

	// Unpack into a staging directory and rename into place so a partially
	// extracted tree is never mistaken for a completed bootstrap.
	staging := target + ".extracting"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clean staging dir: %w", err)
	}
	if err := extractTarball(tmpPath, dep.URL, staging); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}
	if err := os.Rename(staging, target); err != nil {
		_ = os.RemoveAll(staging)
		return fmt.Errorf("finalize archive dir: %w", err)
	}

	slog.Info("Archive unpacked", logfields.Dependency(dep.Name), logfields.Path(target))
	return nil
}

func (f *ArchiveFetcher) download(url string, w io.Writer) error {
	resp, err := f.httpClient.Get(url)
	if err != nil {
		return &NetworkTimeoutError{Op: "download", URL: url, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Op: "download", URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Op: "download", URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Op: "download", URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return &NetworkTimeoutError{Op: "download", URL: url, Err: err}
	}
	return nil
}

func verifySHA256(path, url, want string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open for checksum: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return fmt.Errorf("hash download: %w", err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, want) {
		return &ChecksumError{URL: url, Want: strings.ToLower(want), Got: got}
	}
	return nil
}

// extractTarball unpacks a .tar.gz/.tgz/.tar.bz2 file under dest, guarding
// against path traversal entries.
func extractTarball(archivePath, url, dest string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var reader io.Reader
	switch {
	case strings.HasSuffix(url, ".tar.gz") || strings.HasSuffix(url, ".tgz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case strings.HasSuffix(url, ".tar.bz2"):
		reader = bzip2.NewReader(file)
	default:
		return fmt.Errorf("unsupported archive format: %s", url)
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar: %w", err)
		}

		path, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o750); err != nil {
				return fmt.Errorf("mkdir %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return fmt.Errorf("mkdir parent of %s: %w", header.Name, err)
			}
			mode := os.FileMode(header.Mode & 0o777)
			out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
			if err != nil {
				return fmt.Errorf("create %s: %w", header.Name, err)
			}
			if _, err := io.Copy(out, tr); err != nil { // #nosec G110 -- pinned release archives from config
				out.Close()
				return fmt.Errorf("write %s: %w", header.Name, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("close %s: %w", header.Name, err)
			}
		case tar.TypeSymlink, tar.TypeLink:
			// Header-only links are skipped; the corpus dependencies are
			// plain source trees and link entries are not needed for -I use.
			slog.Debug("Skipping link entry in archive", logfields.Path(header.Name))
		}
	}
}

// safeJoin joins name under dest, rejecting entries that escape dest.
func safeJoin(dest, name string) (string, error) {
	path := filepath.Join(dest, filepath.Clean("/"+name))
	if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) && path != filepath.Clean(dest) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return path, nil
}
