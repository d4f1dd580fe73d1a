package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/nugget/beatrice/internal/agent"
	"github.com/nugget/beatrice/internal/archive"
	"github.com/nugget/beatrice/internal/config"
	"github.com/nugget/beatrice/internal/llm"
	"github.com/nugget/beatrice/internal/memory"
	"github.com/nugget/beatrice/internal/prompts"
	"github.com/nugget/beatrice/internal/tools"
)

// app holds the wired components shared by chat and ask.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *llm.OllamaClient
	memory   *memory.Store
	registry *tools.Registry
	archive  *archive.Archive // nil when disabled or unavailable
	loop     *agent.Loop
}

// loadConfig finds, loads, and validates the configuration. Without an
// explicit path a missing file is not an error: the defaults are used.
// Environment overrides are applied before model, which wins when set.
func loadConfig(explicit, model string) (*config.Config, string, error) {
	var cfg *config.Config
	path, err := config.FindConfig(explicit)
	switch {
	case err == nil:
		cfg, err = config.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("load config %s: %w", path, err)
		}
	case explicit != "":
		return nil, "", err
	default:
		cfg, path = config.Default(), ""
	}

	cfg.ApplyEnv(os.Getenv)
	if model != "" {
		cfg.Model = model
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, nil
}

// newLogger builds the process logger from cfg. The level was checked
// by Validate.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	return config.NewLogger(w, level, cfg.LogFormat)
}

// newApp wires configuration into a ready turn loop. Only a persona
// that cannot be read is fatal; an unavailable archive is logged and
// skipped.
func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	persona, err := prompts.LoadPersona(cfg.PersonaFile)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		client: llm.NewOllamaClient(cfg.OllamaURL, logger),
		memory: memory.Open(cfg.DataPath(cfg.Memory.File), cfg.Memory.Cap, logger,
			memory.WithMaxFacts(cfg.Memory.MaxFacts)),
		registry: tools.NewRegistry(logger),
	}

	tools.RegisterBuiltins(a.registry, tools.NewShellExec(tools.ShellExecConfig{
		Enabled:         cfg.ShellExec.Enabled,
		WorkingDir:      cfg.ShellExec.WorkingDir,
		AllowedPrefixes: cfg.ShellExec.AllowedPrefixes,
		DeniedPatterns:  cfg.ShellExec.DeniedPatterns,
		DefaultTimeout:  time.Duration(cfg.ShellExec.DefaultTimeoutSec) * time.Second,
	}))

	var recorder agent.TurnRecorder
	if cfg.Archive.Enabled {
		arc, err := archive.Open(cfg.DataPath(cfg.Archive.File))
		if err != nil {
			logger.Warn("turn archive unavailable", "error", err)
		} else {
			a.archive = arc
			recorder = arc
		}
	}

	a.loop = agent.NewLoop(agent.Config{
		Model:     cfg.Model,
		Persona:   persona,
		Tools:     cfg.ToolsAllowed(cfg.Model),
		Streaming: cfg.Chat.Streaming,
		Timeout:   cfg.RequestTimeout(),
	}, a.client, a.registry, a.memory, recorder, logger)

	logger.Debug("components wired",
		"model", cfg.Model,
		"ollama_url", cfg.OllamaURL,
		"tools", a.registry.Names(),
		"tools_attached", cfg.ToolsAllowed(cfg.Model),
		"memory_file", a.memory.Path(),
		"memories", a.memory.Len(),
		"archive", a.archive != nil,
	)
	return a, nil
}

// Close releases the archive database, if open.
func (a *app) Close() error {
	var errs []error
	if a.archive != nil {
		errs = append(errs, a.archive.Close())
	}
	return errors.Join(errs...)
}
