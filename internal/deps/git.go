package deps

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
	"git.home.luguber.info/inful/docsmoke/internal/metrics"
	"git.home.luguber.info/inful/docsmoke/internal/retry"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitClient ensures git dependency checkouts exist and are current.
type GitClient struct {
	depsDir  string
	policy   retry.Policy
	recorder metrics.Recorder
}

// NewGitClient creates a client rooted at the dependency directory. A nil
// recorder defaults to noop.
func NewGitClient(depsDir string, policy retry.Policy, recorder metrics.Recorder) *GitClient {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &GitClient{depsDir: depsDir, policy: policy, recorder: recorder}
}

// Ensure clones the dependency if its checkout is missing, otherwise pulls the
// configured branch. The returned path is the checkout root.
func (c *GitClient) Ensure(dep config.GitDependency) (string, error) {
	op := "clone"
	if _, err := os.Stat(filepath.Join(c.depsDir, dep.Name, ".git")); err == nil {
		op = "pull"
	}
	return c.withRetry(op, dep.Name, func() (string, error) { return c.ensureOnce(dep) })
}

func (c *GitClient) ensureOnce(dep config.GitDependency) (string, error) {
	repoPath := filepath.Join(c.depsDir, dep.Name)
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		return c.pull(repoPath, dep)
	}
	return c.clone(repoPath, dep)
}

func (c *GitClient) clone(repoPath string, dep config.GitDependency) (string, error) {
	slog.Debug("Cloning dependency", logfields.URL(dep.URL), logfields.Dependency(dep.Name), slog.String("branch", dep.Branch), logfields.Path(repoPath))
	if err := os.RemoveAll(repoPath); err != nil {
		return "", fmt.Errorf("failed to remove existing directory: %w", err)
	}

	cloneOptions := &gogit.CloneOptions{URL: dep.URL}
	if dep.Branch != "" {
		cloneOptions.ReferenceName = plumbing.ReferenceName("refs/heads/" + dep.Branch)
		cloneOptions.SingleBranch = true
	}
	repository, err := gogit.PlainClone(repoPath, false, cloneOptions)
	if err != nil {
		return "", classifyGitError("clone", dep.URL, err)
	}
	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Dependency cloned", logfields.Dependency(dep.Name), logfields.URL(dep.URL), slog.String("commit", ref.Hash().String()[:8]))
	} else {
		slog.Info("Dependency cloned", logfields.Dependency(dep.Name), logfields.URL(dep.URL))
	}
	return repoPath, nil
}

func (c *GitClient) pull(repoPath string, dep config.GitDependency) (string, error) {
	repository, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}

	pullOptions := &gogit.PullOptions{RemoteName: "origin"}
	if dep.Branch != "" {
		pullOptions.ReferenceName = plumbing.ReferenceName("refs/heads/" + dep.Branch)
		pullOptions.SingleBranch = true
	}
	if err := wt.Pull(pullOptions); err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return "", classifyGitError("pull", dep.URL, err)
	}

	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Dependency updated", logfields.Dependency(dep.Name), slog.String("commit", ref.Hash().String()[:8]))
	}
	return repoPath, nil
}

// withRetry wraps an operation with the client's backoff policy. Permanent
// failures (auth, not-found) short-circuit.
func (c *GitClient) withRetry(op, name string, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying git operation", slog.String("operation", op), logfields.Dependency(name), slog.Int("attempt", attempt))
			c.recorder.IncFetchRetry(op)
		}
		path, err := fn()
		if err == nil {
			return path, nil
		}
		lastErr = err
		if isPermanent(err) {
			slog.Error("Permanent git error", slog.String("operation", op), logfields.Dependency(name), logfields.Error(err))
			return "", err
		}
		if attempt == c.policy.MaxRetries {
			break
		}
		time.Sleep(c.policy.Delay(attempt + 1))
	}
	return "", fmt.Errorf("git %s failed after retries: %w", op, lastErr)
}
