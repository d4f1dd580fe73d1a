// Package config handles Beatrice configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/beatrice/config.yaml, /etc/beatrice/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "beatrice", "config.yaml"))
	}

	paths = append(paths, "/etc/beatrice/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Beatrice configuration.
type Config struct {
	Model       string          `yaml:"model"`
	OllamaURL   string          `yaml:"ollama_url"`
	PersonaName string          `yaml:"persona_name"`
	PersonaFile string          `yaml:"persona_file"`
	DataDir     string          `yaml:"data_dir"`
	LogLevel    string          `yaml:"log_level"`
	LogFormat   string          `yaml:"log_format"`
	Chat        ChatConfig      `yaml:"chat"`
	Memory      MemoryConfig    `yaml:"memory"`
	Tools       ToolsConfig     `yaml:"tools"`
	ShellExec   ShellExecConfig `yaml:"shell_exec"`
	Archive     ArchiveConfig   `yaml:"archive"`
}

// ChatConfig controls how turns talk to the completion service.
type ChatConfig struct {
	// Streaming selects NDJSON streaming requests. When false, both
	// phases of a turn use single-response requests.
	Streaming bool `yaml:"streaming"`
	// TimeoutSec bounds each streaming completion request (default 120).
	TimeoutSec int `yaml:"timeout_sec"`
	// SyncTimeoutSec bounds each non-streaming request (default 60).
	SyncTimeoutSec int `yaml:"sync_timeout_sec"`
	// HistoryCap is the session window size in messages (default 20).
	HistoryCap int `yaml:"history_cap"`
}

// MemoryConfig defines the persisted cross-session memory.
type MemoryConfig struct {
	// File is the JSON memory file. Relative paths resolve under DataDir.
	File     string `yaml:"file"`
	Cap      int    `yaml:"cap"`
	MaxFacts int    `yaml:"max_facts"`
}

// ToolsConfig controls whether tool schemas are sent to the model.
type ToolsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Models lists case-insensitive substrings of model names known to
	// handle tool calls correctly. Tools are attached only for these.
	Models []string `yaml:"models"`
}

// ShellExecConfig defines shell execution capabilities.
type ShellExecConfig struct {
	// Enabled allows the execute_shell tool to run commands.
	Enabled bool `yaml:"enabled"`
	// WorkingDir sets the default working directory for commands.
	WorkingDir string `yaml:"working_dir"`
	// DeniedPatterns are command patterns to block (e.g., "rm -rf /").
	DeniedPatterns []string `yaml:"denied_patterns"`
	// AllowedPrefixes limits commands to those starting with these prefixes.
	// Empty means all commands are allowed (subject to denied patterns).
	AllowedPrefixes []string `yaml:"allowed_prefixes"`
	// DefaultTimeoutSec is the per-command timeout in seconds (default 30).
	DefaultTimeoutSec int `yaml:"default_timeout_sec"`
}

// ArchiveConfig defines the SQLite turn archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// Load reads configuration from a YAML file. Fields absent from the file
// keep the values from [Default].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.DataDir = ExpandHome(cfg.DataDir)
	cfg.PersonaFile = ExpandHome(cfg.PersonaFile)
	cfg.ShellExec.WorkingDir = ExpandHome(cfg.ShellExec.WorkingDir)

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Model:       "qwen2.5:3b",
		OllamaURL:   "http://localhost:11434",
		PersonaName: "Beatrice",
		DataDir:     "data",
		LogLevel:    "warn",
		LogFormat:   "text",
		Chat: ChatConfig{
			Streaming:      true,
			TimeoutSec:     120,
			SyncTimeoutSec: 60,
			HistoryCap:     20,
		},
		Memory: MemoryConfig{
			File:     "memories.json",
			Cap:      100,
			MaxFacts: 5,
		},
		Tools: ToolsConfig{
			Models: []string{"qwen", "mistral"},
		},
		ShellExec: ShellExecConfig{
			Enabled:           true,
			DefaultTimeoutSec: 30,
		},
		Archive: ArchiveConfig{
			Enabled: true,
			File:    "archive.db",
		},
	}
}

// applyDefaults fills zero values left behind by a sparse YAML file.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.OllamaURL == "" {
		c.OllamaURL = def.OllamaURL
	}
	if c.PersonaName == "" {
		c.PersonaName = def.PersonaName
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.Memory.File == "" {
		c.Memory.File = def.Memory.File
	}
	if c.Archive.File == "" {
		c.Archive.File = def.Archive.File
	}
}

// ApplyEnv overlays the BEATRICE_* environment variables onto the config.
// getenv is injected so tests do not touch the process environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("BEATRICE_MODEL"); v != "" {
		c.Model = v
	}
	if v := getenv("BEATRICE_OLLAMA_URL"); v != "" {
		c.OllamaURL = v
	}
	switch getenv("BEATRICE_TOOLS") {
	case "1":
		c.Tools.Enabled = true
	case "0":
		c.Tools.Enabled = false
	}
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat)
	}
	if c.Chat.HistoryCap <= 0 {
		return fmt.Errorf("chat.history_cap must be positive, got %d", c.Chat.HistoryCap)
	}
	if c.Memory.Cap <= 0 {
		return fmt.Errorf("memory.cap must be positive, got %d", c.Memory.Cap)
	}
	if c.Memory.MaxFacts <= 0 {
		return fmt.Errorf("memory.max_facts must be positive, got %d", c.Memory.MaxFacts)
	}
	if c.Chat.TimeoutSec <= 0 || c.Chat.SyncTimeoutSec <= 0 {
		return fmt.Errorf("chat timeouts must be positive")
	}
	return nil
}

// ToolsAllowed reports whether tool schemas should be attached to
// requests for model. Tool use must be enabled and the model name must
// contain one of the configured substrings.
func (c *Config) ToolsAllowed(model string) bool {
	if !c.Tools.Enabled {
		return false
	}
	lower := strings.ToLower(model)
	for _, m := range c.Tools.Models {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// RequestTimeout returns the per-request timeout for the configured mode.
func (c *Config) RequestTimeout() time.Duration {
	if c.Chat.Streaming {
		return time.Duration(c.Chat.TimeoutSec) * time.Second
	}
	return time.Duration(c.Chat.SyncTimeoutSec) * time.Second
}

// DataPath resolves name relative to DataDir unless it is already absolute.
func (c *Config) DataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// ExpandHome replaces a leading ~ with the user's home directory. Paths
// without one, and paths when the home directory is unknown, are
// returned unchanged.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return filepath.Join(home, path[2:])
	}
	return path
}
