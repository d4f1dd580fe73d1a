package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nugget/beatrice/internal/agent"
	"github.com/nugget/beatrice/internal/archive"
	"github.com/nugget/beatrice/internal/memory"
)

// runAsk runs a single turn and prints the answer. A failed turn prints
// its Error text; only setup problems return an error.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath string, words []string) error {
	cfg, _, err := loadConfig(configPath, "")
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(words, " ")
	text, err := agent.Collect(a.loop.RunTurn(ctx, question, memory.NewSession(cfg.Chat.HistoryCap)))
	if err != nil {
		logger.Warn("ask failed", "error", err)
	}
	fmt.Fprintln(stdout, text)
	return nil
}

// historyEntry is the JSON form of an archived turn.
type historyEntry struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Model        string    `json:"model"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	User         string    `json:"user"`
	Response     string    `json:"response"`
	ToolCalls    []string  `json:"tool_calls,omitempty"`
	Error        string    `json:"error,omitempty"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
}

// runHistory prints the n most recent archived turns, oldest first.
func runHistory(ctx context.Context, stdout, stderr io.Writer, configPath string, n int, outputFmt string) error {
	cfg, _, err := loadConfig(configPath, "")
	if err != nil {
		return err
	}
	if !cfg.Archive.Enabled {
		return fmt.Errorf("turn archive is disabled (archive.enabled: false)")
	}

	arc, err := archive.Open(cfg.DataPath(cfg.Archive.File))
	if err != nil {
		return err
	}
	defer arc.Close()

	turns, err := arc.Recent(ctx, n)
	if err != nil {
		return err
	}
	total, err := arc.Count(ctx)
	if err != nil {
		return err
	}
	newLogger(stderr, cfg).Debug("history loaded", "turns", len(turns), "total", total)

	if outputFmt == "json" {
		entries := make([]historyEntry, 0, len(turns))
		for _, t := range turns {
			entries = append(entries, historyEntry{
				ID:           t.ID,
				SessionID:    t.SessionID,
				Model:        t.Model,
				StartedAt:    t.StartedAt,
				DurationMS:   t.Duration.Milliseconds(),
				User:         t.UserText,
				Response:     t.Response,
				ToolCalls:    t.ToolCalls,
				Error:        t.Error,
				InputTokens:  t.InputTokens,
				OutputTokens: t.OutputTokens,
			})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(turns) == 0 {
		fmt.Fprintln(stdout, "No archived turns.")
		return nil
	}
	fmt.Fprintf(stdout, "Showing %d of %d archived turns.\n\n", len(turns), total)
	for _, t := range turns {
		header := fmt.Sprintf("%s  %s  %s", t.StartedAt.Format("2006-01-02 15:04:05"), t.Model, t.Duration.Round(time.Millisecond))
		if len(t.ToolCalls) > 0 {
			header += "  [" + strings.Join(t.ToolCalls, ", ") + "]"
		}
		fmt.Fprintln(stdout, header)
		fmt.Fprintf(stdout, "  You: %s\n", t.UserText)
		if t.Failed() {
			fmt.Fprintf(stdout, "  Error: %s\n", t.Error)
		} else {
			fmt.Fprintf(stdout, "  %s: %s\n", cfg.PersonaName, t.Response)
		}
		fmt.Fprintln(stdout)
	}
	return nil
}
