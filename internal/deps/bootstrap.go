package deps

import (
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/docsmoke/internal/config"
	"git.home.luguber.info/inful/docsmoke/internal/logfields"
	"git.home.luguber.info/inful/docsmoke/internal/metrics"
	"git.home.luguber.info/inful/docsmoke/internal/retry"
	"git.home.luguber.info/inful/docsmoke/internal/workspace"
)

// Layout describes the bootstrapped dependency tree.
type Layout struct {
	// Paths maps dependency name to its checkout/unpacked root.
	Paths map[string]string
	// IncludeDirs lists resolved -I directories in declaration order.
	IncludeDirs []string
}

// Bootstrapper ensures every configured dependency exists on disk, idempotently.
type Bootstrapper struct {
	ws      *workspace.Manager
	git     *GitClient
	fetcher *ArchiveFetcher
}

// NewBootstrapper wires a bootstrapper for the given build directory. A nil
// recorder defaults to noop.
func NewBootstrapper(ws *workspace.Manager, policy retry.Policy, recorder metrics.Recorder) (*Bootstrapper, error) {
	if err := ws.Create(); err != nil {
		return nil, err
	}
	depsDir, err := ws.Subdir("deps")
	if err != nil {
		return nil, err
	}
	return &Bootstrapper{
		ws:      ws,
		git:     NewGitClient(depsDir, policy, recorder),
		fetcher: NewArchiveFetcher(depsDir, policy, recorder),
	}, nil
}

// Ensure brings every declared dependency into existence. Checkouts that
// already exist are pulled; unpacked archives are left untouched.
func (b *Bootstrapper) Ensure(cfg config.DependencyConfig) (*Layout, error) {
	layout := &Layout{Paths: make(map[string]string)}

	for _, dep := range cfg.Git {
		slog.Info("Ensuring git dependency", logfields.Dependency(dep.Name), logfields.URL(dep.URL), slog.String("branch", dep.Branch))
		path, err := b.git.Ensure(dep)
		if err != nil {
			return nil, err
		}
		layout.Paths[dep.Name] = path
		for _, inc := range dep.Includes {
			layout.IncludeDirs = append(layout.IncludeDirs, filepath.Join(path, inc))
		}
	}

	for _, dep := range cfg.Archives {
		slog.Info("Ensuring archive dependency", logfields.Dependency(dep.Name), logfields.URL(dep.URL))
		path, err := b.fetcher.Ensure(dep)
		if err != nil {
			return nil, err
		}
		layout.Paths[dep.Name] = path
		if len(dep.Includes) == 0 {
			layout.IncludeDirs = append(layout.IncludeDirs, path)
			continue
		}
		for _, inc := range dep.Includes {
			layout.IncludeDirs = append(layout.IncludeDirs, filepath.Join(path, inc))
		}
	}

	slog.Info("Dependencies ready", slog.Int("count", len(layout.Paths)), slog.Int("include_dirs", len(layout.IncludeDirs)))
	return layout, nil
}
