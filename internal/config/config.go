package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables honored as overrides. Both have config-file fallbacks.
const (
	EnvCompiler = "CXX"
	EnvBranch   = "DOCSMOKE_BRANCH"
)

// Config represents the application configuration
type Config struct {
	BuildDir     string           `yaml:"build_dir"`
	Toolchain    ToolchainConfig  `yaml:"toolchain"`
	Dependencies DependencyConfig `yaml:"dependencies"`
	Sources      SourcesConfig    `yaml:"sources"`
	Retry        RetryConfig      `yaml:"retry,omitempty"`
	State        StateConfig      `yaml:"state,omitempty"`
	Events       *EventsConfig    `yaml:"events,omitempty"`
	Daemon       DaemonConfig     `yaml:"daemon,omitempty"`
}

// ToolchainConfig selects the compiler and the flags every example is built with.
type ToolchainConfig struct {
	Compiler   string        `yaml:"compiler,omitempty"` // overridden by $CXX
	Standard   string        `yaml:"standard,omitempty"` // e.g. "c++17"
	Flags      []string      `yaml:"flags,omitempty"`
	RunTimeout time.Duration `yaml:"run_timeout,omitempty"`
}

// DependencyConfig declares what the examples build against.
type DependencyConfig struct {
	Git      []GitDependency     `yaml:"git,omitempty"`
	Archives []ArchiveDependency `yaml:"archives,omitempty"`
}

// GitDependency is a library fetched as a git checkout.
type GitDependency struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Branch   string   `yaml:"branch,omitempty"` // overridden by $DOCSMOKE_BRANCH
	Includes []string `yaml:"includes,omitempty"` // include dirs relative to the checkout root
}

// ArchiveDependency is a library fetched as a pinned tarball release.
type ArchiveDependency struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	SHA256   string   `yaml:"sha256,omitempty"`
	Includes []string `yaml:"includes,omitempty"` // include dirs relative to the unpacked root
}

// SourcesConfig describes where examples live and how they are discovered.
type SourcesConfig struct {
	Roots            []string `yaml:"roots,omitempty"`
	Extensions       []string `yaml:"extensions,omitempty"`
	MarkdownSnippets bool     `yaml:"markdown_snippets"`
	HTMLSnippets     bool     `yaml:"html_snippets"`
	SnippetLanguage  string   `yaml:"snippet_language,omitempty"`
	SnippetPrelude   string   `yaml:"snippet_prelude,omitempty"` // prepended to extracted snippets (e.g. common includes)
}

// RetryConfig controls backoff for transient fetch failures.
type RetryConfig struct {
	Backoff    string        `yaml:"backoff,omitempty"` // fixed|linear|exponential
	Initial    time.Duration `yaml:"initial,omitempty"`
	Max        time.Duration `yaml:"max,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty"`
}

// StateConfig locates the run/result store.
type StateConfig struct {
	Path string `yaml:"path,omitempty"`
}

// EventsConfig enables NATS publishing of run results.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DaemonConfig controls watch mode.
type DaemonConfig struct {
	Listen   string        `yaml:"listen,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"` // periodic run; 0 disables
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	config.applyEnvOverrides()

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// applyDefaults fills zero values after unmarshal.
func (c *Config) applyDefaults() {
	if c.BuildDir == "" {
		c.BuildDir = "./build"
	}
	if c.Toolchain.Compiler == "" {
		c.Toolchain.Compiler = "c++"
	}
	if c.Toolchain.Standard == "" {
		c.Toolchain.Standard = "c++17"
	}
	if len(c.Toolchain.Flags) == 0 {
		c.Toolchain.Flags = []string{"-Wall", "-Wextra", "-Werror"}
	}
	if c.Toolchain.RunTimeout <= 0 {
		c.Toolchain.RunTimeout = 30 * time.Second
	}
	if len(c.Sources.Roots) == 0 {
		c.Sources.Roots = []string{"docs"}
	}
	if len(c.Sources.Extensions) == 0 {
		c.Sources.Extensions = []string{".cpp"}
	}
	if c.Sources.SnippetLanguage == "" {
		c.Sources.SnippetLanguage = "cpp"
	}
	if c.State.Path == "" {
		c.State.Path = ".docsmoke/state.db"
	}
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = ":8750"
	}
	if c.Daemon.Debounce <= 0 {
		c.Daemon.Debounce = 2 * time.Second
	}
	for i := range c.Dependencies.Git {
		if c.Dependencies.Git[i].Branch == "" {
			c.Dependencies.Git[i].Branch = "master"
		}
		if len(c.Dependencies.Git[i].Includes) == 0 {
			c.Dependencies.Git[i].Includes = []string{""}
		}
	}
	if c.Events != nil && c.Events.Subject == "" {
		c.Events.Subject = "docsmoke.runs"
	}
}

// applyEnvOverrides applies the documented environment overrides: $CXX wins
// over the configured compiler and $DOCSMOKE_BRANCH wins over every git
// dependency's branch.
func (c *Config) applyEnvOverrides() {
	if cxx := os.Getenv(EnvCompiler); cxx != "" {
		c.Toolchain.Compiler = cxx
	}
	if branch := os.Getenv(EnvBranch); branch != "" {
		for i := range c.Dependencies.Git {
			c.Dependencies.Git[i].Branch = branch
		}
	}
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := `# docsmoke configuration
build_dir: ./build

toolchain:
  compiler: c++        # override with $CXX
  standard: c++17
  flags: [-Wall, -Wextra, -Werror]
  run_timeout: 30s

dependencies:
  git:
    - name: concurrency-lib
      url: https://github.com/example/concurrency-lib.git
      branch: master    # override with $DOCSMOKE_BRANCH
      includes: ["include"]
  archives:
    - name: boost
      url: https://archives.boost.io/release/1.84.0/source/boost_1_84_0.tar.bz2
      includes: ["boost_1_84_0"]

sources:
  roots: [docs]
  extensions: [.cpp]
  markdown_snippets: true
  html_snippets: false
  snippet_language: cpp
`
	if err := os.WriteFile(configPath, []byte(example), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
