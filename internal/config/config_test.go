package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("model: mistral\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("model: mistral\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_SparseFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("model: mistral:7b\ntools:\n  enabled: true\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Model != "mistral:7b" {
		t.Errorf("model = %q, want %q", cfg.Model, "mistral:7b")
	}
	if !cfg.Tools.Enabled {
		t.Error("tools.enabled should be true")
	}
	if cfg.Chat.HistoryCap != 20 {
		t.Errorf("history_cap = %d, want 20", cfg.Chat.HistoryCap)
	}
	if cfg.Memory.Cap != 100 {
		t.Errorf("memory.cap = %d, want 100", cfg.Memory.Cap)
	}
	if !cfg.Chat.Streaming {
		t.Error("streaming should default to true")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("ollama_url: ${BEATRICE_TEST_URL}\n"), 0600)
	t.Setenv("BEATRICE_TEST_URL", "http://gpu-box:11434")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.OllamaURL != "http://gpu-box:11434" {
		t.Errorf("ollama_url = %q", cfg.OllamaURL)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"BEATRICE_MODEL":      "qwen2.5:7b",
		"BEATRICE_TOOLS":      "1",
		"BEATRICE_OLLAMA_URL": "http://other:11434",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.Model != "qwen2.5:7b" {
		t.Errorf("model = %q", cfg.Model)
	}
	if !cfg.Tools.Enabled {
		t.Error("BEATRICE_TOOLS=1 should enable tools")
	}
	if cfg.OllamaURL != "http://other:11434" {
		t.Errorf("ollama_url = %q", cfg.OllamaURL)
	}

	env["BEATRICE_TOOLS"] = "0"
	cfg.ApplyEnv(func(k string) string { return env[k] })
	if cfg.Tools.Enabled {
		t.Error("BEATRICE_TOOLS=0 should disable tools")
	}
}

func TestToolsAllowed(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		models  []string
		model   string
		want    bool
	}{
		{"disabled", false, []string{"qwen"}, "qwen2.5:3b", false},
		{"enabled matching", true, []string{"qwen", "mistral"}, "qwen2.5:3b", true},
		{"case insensitive", true, []string{"Mistral"}, "MISTRAL-nemo", true},
		{"enabled non-matching", true, []string{"qwen", "mistral"}, "gemma2:9b", false},
		{"empty allow-list", true, nil, "qwen2.5:3b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Tools.Enabled = tt.enabled
			cfg.Tools.Models = tt.models
			if got := cfg.ToolsAllowed(tt.model); got != tt.want {
				t.Errorf("ToolsAllowed(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, false},
		{"zero history cap", func(c *Config) { c.Chat.HistoryCap = 0 }, false},
		{"negative memory cap", func(c *Config) { c.Memory.Cap = -1 }, false},
		{"zero facts", func(c *Config) { c.Memory.MaxFacts = 0 }, false},
		{"zero timeout", func(c *Config) { c.Chat.TimeoutSec = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	cfg := Default()
	if got := cfg.RequestTimeout(); got != 120*time.Second {
		t.Errorf("streaming timeout = %v, want 2m", got)
	}
	cfg.Chat.Streaming = false
	if got := cfg.RequestTimeout(); got != 60*time.Second {
		t.Errorf("sync timeout = %v, want 1m", got)
	}
}

func TestDataPath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/beatrice"
	if got := cfg.DataPath("memories.json"); got != "/var/lib/beatrice/memories.json" {
		t.Errorf("DataPath relative = %q", got)
	}
	if got := cfg.DataPath("/tmp/m.json"); got != "/tmp/m.json" {
		t.Errorf("DataPath absolute = %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in, want string
	}{
		{"~", home},
		{"~/beatrice/data", filepath.Join(home, "beatrice", "data")},
		{"/abs/data", "/abs/data"},
		{"data", "data"},
		{"~other/data", "~other/data"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandHome(tt.in); got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("data_dir: ~/.beatrice\npersona_file: ~/persona.md\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DataDir != filepath.Join(home, ".beatrice") {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
	if cfg.PersonaFile != filepath.Join(home, "persona.md") {
		t.Errorf("persona_file = %q", cfg.PersonaFile)
	}
	if got := cfg.DataPath("memories.json"); got != filepath.Join(home, ".beatrice", "memories.json") {
		t.Errorf("DataPath = %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		err  bool
	}{
		{"", slog.LevelInfo, false},
		{"TRACE", LevelTrace, false},
		{" debug ", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseLogLevel(%q) err = %v, want err %v", tt.in, err, tt.err)
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_TraceName(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace, "text")
	logger.Log(context.Background(), LevelTrace, "wire")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE level name, got %q", buf.String())
	}
}
