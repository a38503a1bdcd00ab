// Package config loads ~/.promptbuffer/config.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sahilm/fuzzy"
	dark "github.com/thiagokokada/dark-mode-go"
)

// FileName is the TOML config file inside the state directory.
const FileName = "config.toml"

// HomeEnv overrides the state directory.
const HomeEnv = "PROMPTBUFFER_HOME"

// SocketName is the daemon socket inside the state directory.
const SocketName = "daemon.sock"

// Defaults applied by the getters.
const (
	DefaultDialect         = "bash"
	DefaultTheme           = "dark"
	DefaultComputeBudgetMS = 100
	DefaultIdleTimeoutSecs = 600
	DefaultMaxWorkers      = 1
	DefaultMaxFiles        = 25
	DefaultMaxOutgoing     = 10
	DefaultSummaryWidth    = 50
	DefaultGitTimeoutMS    = 2000
)

// DefaultPlugins is the plugin list when [prompt] plugins is unset.
var DefaultPlugins = []string{"git"}

// Config is the user configuration.
type Config struct {
	// Prompt selects the escape dialect, theme and plugins
	Prompt PromptSettings `toml:"prompt"`

	// Worker tunes the per-path render goroutine
	Worker WorkerSettings `toml:"worker"`

	// Supervisor tunes the worker registry
	Supervisor SupervisorSettings `toml:"supervisor"`

	// Git tunes the git plugin
	Git GitSettings `toml:"git"`

	// Daemon configures the background server
	Daemon DaemonSettings `toml:"daemon"`

	// Logs configures debug logging
	Logs LogSettings `toml:"logs"`
}

// PromptSettings defines what is drawn and how.
type PromptSettings struct {
	// Dialect is "bash" (default), "zsh" or "raw"
	Dialect string `toml:"dialect"`

	// Theme is "dark" (default), "light" or "system"; used by preview
	Theme string `toml:"theme"`

	// Plugins run in this order (default: ["git"])
	Plugins []string `toml:"plugins"`
}

// WorkerSettings defines worker timing.
type WorkerSettings struct {
	// ComputeBudgetMS is how long a request waits for a fresh render (default: 100)
	ComputeBudgetMS int `toml:"compute_budget_ms"`

	// IdleTimeoutSecs retires a worker with no requests (default: 600)
	IdleTimeoutSecs int `toml:"idle_timeout_secs"`
}

// ComputeBudget returns the budget with the default applied.
func (w WorkerSettings) ComputeBudget() time.Duration {
	if w.ComputeBudgetMS <= 0 {
		return DefaultComputeBudgetMS * time.Millisecond
	}
	return time.Duration(w.ComputeBudgetMS) * time.Millisecond
}

// IdleTimeout returns the idle timeout with the default applied.
func (w WorkerSettings) IdleTimeout() time.Duration {
	if w.IdleTimeoutSecs <= 0 {
		return DefaultIdleTimeoutSecs * time.Second
	}
	return time.Duration(w.IdleTimeoutSecs) * time.Second
}

// SupervisorSettings defines the worker registry.
type SupervisorSettings struct {
	// MaxWorkers is how many paths keep a worker (default: 1, 8 in the daemon)
	MaxWorkers int `toml:"max_workers"`

	// SpawnRate limits new workers per second (default: 0, unlimited)
	SpawnRate float64 `toml:"spawn_rate"`

	// SpawnBurst is the limiter burst (default: 1)
	SpawnBurst int `toml:"spawn_burst"`
}

// GetMaxWorkers returns MaxWorkers with the default applied.
func (s SupervisorSettings) GetMaxWorkers() int {
	if s.MaxWorkers <= 0 {
		return DefaultMaxWorkers
	}
	return s.MaxWorkers
}

// GitSettings defines the git plugin limits.
type GitSettings struct {
	// Enabled toggles the plugin without editing the plugin list (default: true)
	Enabled *bool `toml:"enabled"`

	// MaxFiles caps status lines (default: 25)
	MaxFiles int `toml:"max_files"`

	// MaxOutgoing caps outgoing commits (default: 10)
	MaxOutgoing int `toml:"max_outgoing"`

	// SummaryWidth truncates commit summaries (default: 50)
	SummaryWidth int `toml:"summary_width"`

	// TimeoutMS bounds each git command (default: 2000)
	TimeoutMS int `toml:"timeout_ms"`
}

// IsEnabled reports whether the git plugin runs. Unset means enabled.
func (g GitSettings) IsEnabled() bool {
	return g.Enabled == nil || *g.Enabled
}

// WithDefaults fills unset limits.
func (g GitSettings) WithDefaults() GitSettings {
	if g.MaxFiles <= 0 {
		g.MaxFiles = DefaultMaxFiles
	}
	if g.MaxOutgoing <= 0 {
		g.MaxOutgoing = DefaultMaxOutgoing
	}
	if g.SummaryWidth <= 0 {
		g.SummaryWidth = DefaultSummaryWidth
	}
	if g.TimeoutMS <= 0 {
		g.TimeoutMS = DefaultGitTimeoutMS
	}
	return g
}

// DaemonSettings defines the background server.
type DaemonSettings struct {
	// Socket is the unix socket path (default: <state dir>/daemon.sock)
	Socket string `toml:"socket"`

	// MetricsAddr serves prometheus /metrics when set, e.g. "127.0.0.1:9464"
	MetricsAddr string `toml:"metrics_addr"`
}

// LogSettings defines debug logging.
type LogSettings struct {
	// Level is "debug", "info" (default), "warn" or "error"
	Level string `toml:"level"`

	// Format is "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB rotates debug.log at this size (default: 10)
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups is rotated files kept (default: 3)
	MaxBackups int `toml:"max_backups"`

	// MaxAgeDays is days rotated files are kept (default: 7)
	MaxAgeDays int `toml:"max_age_days"`

	// Compress rotated files
	Compress bool `toml:"compress"`

	// Debug writes logs to <state dir>/debug.log
	Debug bool `toml:"debug"`

	// Pprof serves net/http/pprof on this address when set
	Pprof string `toml:"pprof"`
}

// Dir returns the state directory: $PROMPTBUFFER_HOME or ~/.promptbuffer.
func Dir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".promptbuffer"), nil
}

// Path returns the path to config.toml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// SocketPath returns the configured socket or the default inside the state dir.
func (c *Config) SocketPath() (string, error) {
	if c.Daemon.Socket != "" {
		return expandHome(c.Daemon.Socket), nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SocketName), nil
}

// GetDialect returns the dialect name with the default applied.
func (c *Config) GetDialect() string {
	if c.Prompt.Dialect == "" {
		return DefaultDialect
	}
	return strings.ToLower(c.Prompt.Dialect)
}

// GetPlugins returns the enabled plugins in run order.
func (c *Config) GetPlugins() []string {
	names := c.Prompt.Plugins
	if names == nil {
		names = DefaultPlugins
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "git" && !c.Git.IsEnabled() {
			continue
		}
		out = append(out, n)
	}
	return out
}

// GetTheme returns the configured theme, defaulting to "dark".
func (c *Config) GetTheme() string {
	switch c.Prompt.Theme {
	case "dark", "light", "system":
		return c.Prompt.Theme
	default:
		return DefaultTheme
	}
}

// ResolveTheme resolves the theme to "dark" or "light". "system" asks the
// OS and falls back to dark when detection fails.
func (c *Config) ResolveTheme() string {
	theme := c.GetTheme()
	if theme != "system" {
		return theme
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return "dark"
	}
	return "light"
}

// UnknownPluginError names a plugin that is not registered.
type UnknownPluginError struct {
	Name       string
	Suggestion string
}

func (e *UnknownPluginError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown plugin %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown plugin %q", e.Name)
}

// ErrInvalid matches every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks the dialect, theme and plugin names against known.
func (c *Config) Validate(known []string) error {
	var errs []error
	switch c.GetDialect() {
	case "bash", "zsh", "raw":
	default:
		errs = append(errs, fmt.Errorf("unknown dialect %q", c.Prompt.Dialect))
	}
	switch c.Prompt.Theme {
	case "", "dark", "light", "system":
	default:
		errs = append(errs, fmt.Errorf("unknown theme %q", c.Prompt.Theme))
	}
	for _, name := range c.Prompt.Plugins {
		if !contains(known, name) {
			errs = append(errs, &UnknownPluginError{Name: name, Suggestion: suggest(name, known)})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// suggest returns the closest known name, matching either direction.
func suggest(name string, known []string) string {
	if matches := fuzzy.Find(name, known); len(matches) > 0 {
		return matches[0].Str
	}
	for _, k := range known {
		if len(fuzzy.Find(k, []string{name})) > 0 {
			return k
		}
	}
	return ""
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

var (
	cache   *Config
	cacheMu sync.RWMutex
)

// Load reads config.toml. The result is cached; a missing file yields the
// defaults. On a parse error the defaults are cached and the error returned.
func Load() (*Config, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := Path()
	if err != nil {
		cache = &Config{}
		return cache, nil
	}
	cfg, err := LoadFile(path)
	if err != nil {
		cache = &Config{}
		return cache, err
	}
	cache = cfg
	return cache, nil
}

// LoadFile reads one config file without touching the cache.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config.toml parse error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return &cfg, fmt.Errorf("%w: unknown keys: %s", ErrInvalid, strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// Reload drops the cache and reads config.toml again.
func Reload() (*Config, error) {
	ClearCache()
	return Load()
}

// ClearCache forgets the cached config.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// writeAtomic writes to a temp file, fsyncs it and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}
	return nil
}

// ExampleConfig is written by CreateExampleConfig.
const ExampleConfig = `# promptbuffer configuration
# Changes are picked up by a running daemon.

[prompt]
# Escape dialect: "bash", "zsh" or "raw"
# dialect = "bash"
# Preview theme: "dark", "light" or "system"
# theme = "dark"
# Plugins run in order
# plugins = ["git"]

[worker]
# How long a prompt waits for a fresh render before using the last one
# compute_budget_ms = 100
# Workers with no requests exit after this long
# idle_timeout_secs = 600

[supervisor]
# Paths that keep a worker. Defaults to 1 (only the current directory) for
# in-process renders and 8 for the daemon, which serves every open shell.
# max_workers = 8
# New workers per second during cd storms (0 = unlimited)
# spawn_rate = 0
# spawn_burst = 1

[git]
# enabled = true
# max_files = 25
# max_outgoing = 10
# summary_width = 50
# timeout_ms = 2000

[daemon]
# socket = "~/.promptbuffer/daemon.sock"
# metrics_addr = "127.0.0.1:9464"

[logs]
# debug = false
# level = "info"
# format = "json"
# max_size_mb = 10
# max_backups = 3
# max_age_days = 7
# compress = false
# pprof = "127.0.0.1:6060"
`

// CreateExampleConfig writes ExampleConfig if no config exists and returns
// the config path.
func CreateExampleConfig() (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := writeAtomic(path, []byte(ExampleConfig)); err != nil {
		return "", err
	}
	return path, nil
}
