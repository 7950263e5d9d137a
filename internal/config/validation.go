package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for problems a run would otherwise hit
// halfway through. Messages name the offending field.
func Validate(cfg *Config) error {
	if cfg.BuildDir == "" {
		return fmt.Errorf("build_dir must not be empty")
	}
	if cfg.Toolchain.Compiler == "" {
		return fmt.Errorf("toolchain.compiler must not be empty")
	}
	if cfg.Toolchain.RunTimeout <= 0 {
		return fmt.Errorf("toolchain.run_timeout must be positive")
	}

	seen := map[string]string{}
	for i, dep := range cfg.Dependencies.Git {
		if dep.Name == "" {
			return fmt.Errorf("dependencies.git[%d]: name is required", i)
		}
		if dep.URL == "" {
			return fmt.Errorf("dependencies.git[%d] (%s): url is required", i, dep.Name)
		}
		if prev, dup := seen[dep.Name]; dup {
			return fmt.Errorf("dependency name %q used by both %s entries", dep.Name, prev)
		}
		seen[dep.Name] = "git"
	}
	for i, dep := range cfg.Dependencies.Archives {
		if dep.Name == "" {
			return fmt.Errorf("dependencies.archives[%d]: name is required", i)
		}
		if dep.URL == "" {
			return fmt.Errorf("dependencies.archives[%d] (%s): url is required", i, dep.Name)
		}
		if !supportedArchiveURL(dep.URL) {
			return fmt.Errorf("dependencies.archives[%d] (%s): unsupported archive format (want .tar.gz, .tgz or .tar.bz2)", i, dep.Name)
		}
		if prev, dup := seen[dep.Name]; dup {
			return fmt.Errorf("dependency name %q used by both %s and archive entries", dep.Name, prev)
		}
		seen[dep.Name] = "archive"
	}

	for i, ext := range cfg.Sources.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("sources.extensions[%d]: %q must start with a dot", i, ext)
		}
	}

	if cfg.Retry.Backoff != "" && NormalizeRetryBackoff(cfg.Retry.Backoff) == "" {
		return fmt.Errorf("retry.backoff: unknown mode %q (want fixed, linear or exponential)", cfg.Retry.Backoff)
	}

	if cfg.Events != nil && cfg.Events.Enabled && cfg.Events.NATSURL == "" {
		return fmt.Errorf("events.nats_url is required when events are enabled")
	}

	return nil
}

func supportedArchiveURL(url string) bool {
	return strings.HasSuffix(url, ".tar.gz") ||
		strings.HasSuffix(url, ".tgz") ||
		strings.HasSuffix(url, ".tar.bz2")
}
