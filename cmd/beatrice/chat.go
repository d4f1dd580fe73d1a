package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/nugget/beatrice/internal/memory"
)

const (
	farewellQuit      = "Fine, leave then. Not that I care, I suppose..."
	farewellInterrupt = "Leaving so soon? How typical, I suppose..."
	thinkingMessage   = "Gathering thoughts"
	pingTimeout       = 3 * time.Second
	maxInputLine      = 1024 * 1024
)

// runChat runs the interactive REPL until quit, end of input, or ctx
// cancellation.
func runChat(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, configPath, model string) error {
	cfg, path, err := loadConfig(configPath, model)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, cfg)
	if path == "" {
		logger.Info("no config file found, using defaults")
	} else {
		logger.Info("config loaded", "path", path)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	r := &repl{
		app:     a,
		out:     stdout,
		styles:  newStyles(stdout),
		animate: isTerminal(stdout),
		session: memory.NewSession(cfg.Chat.HistoryCap),
	}
	r.banner(ctx)
	r.loop(ctx, readLines(stdin, logger))
	return nil
}

// repl is one interactive chat session.
type repl struct {
	app     *app
	out     io.Writer
	styles  styles
	animate bool
	session *memory.Session
}

// banner prints the model and memory status followed by the command
// help. Reachability problems are warnings only; the first turn will
// report them again as an Error fragment.
func (r *repl) banner(ctx context.Context) {
	model := r.app.cfg.Model
	fmt.Fprintln(r.out, r.styles.ok.Render("✓ Model: "+model))
	fmt.Fprintln(r.out, r.styles.ok.Render(fmt.Sprintf("✓ Memory: %d memories", r.app.memory.Len())))
	if r.app.cfg.ToolsAllowed(model) {
		fmt.Fprintln(r.out, r.styles.ok.Render(fmt.Sprintf("✓ Tools: %d enabled", r.app.registry.Len())))
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := r.app.client.Ping(pctx); err != nil {
		r.app.logger.Warn("ollama unreachable", "url", r.app.client.BaseURL(), "error", err)
		fmt.Fprintln(r.out, r.styles.warn.Render(fmt.Sprintf("! Ollama not reachable at %s", r.app.client.BaseURL())))
	} else if models, err := r.app.client.ListModels(pctx); err == nil && !hasModel(models, model) {
		fmt.Fprintln(r.out, r.styles.warn.Render(fmt.Sprintf("! Model %s not pulled (try: ollama pull %s)", model, model)))
	}

	rule := r.styles.rule.Render(strings.Repeat("=", 50))
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "  Beatrice AI - Terminal Chat")
	fmt.Fprintln(r.out, "  Commands: 'quit', 'clear' (reset memory)")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out)
}

// loop reads commands until quit, end of input, or cancellation.
func (r *repl) loop(ctx context.Context, lines <-chan string) {
	for {
		fmt.Fprint(r.out, r.styles.user.Render("You:")+" ")

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
		case line, ok = <-lines:
		}
		if !ok || ctx.Err() != nil {
			fmt.Fprint(r.out, "\n\n")
			r.say(farewellInterrupt)
			return
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "quit", "exit", "bye":
			fmt.Fprintln(r.out)
			r.say(farewellQuit)
			return
		case "clear":
			r.app.memory.Clear()
			r.session.Reset()
			fmt.Fprintln(r.out, r.styles.warn.Render("✓ Memory cleared"))
			fmt.Fprintln(r.out)
			continue
		case "":
			continue
		}

		r.turn(ctx, line)
		if ctx.Err() != nil {
			fmt.Fprint(r.out, "\n\n")
			r.say(farewellInterrupt)
			return
		}
	}
}

// turn runs one exchange, animating until the first fragment arrives.
func (r *repl) turn(ctx context.Context, text string) {
	ind := startIndicator(r.out, thinkingMessage, r.styles.thinking, r.animate)
	first := true
	for f := range r.app.loop.RunTurn(ctx, text, r.session) {
		if first {
			ind.Stop()
			fmt.Fprint(r.out, r.speakerLabel()+" ")
			first = false
		}
		fmt.Fprint(r.out, f.Text)
	}
	ind.Stop()
	if !first {
		fmt.Fprint(r.out, "\n\n")
	}
}

func (r *repl) say(text string) {
	fmt.Fprintln(r.out, r.speakerLabel()+" "+text)
}

func (r *repl) speakerLabel() string {
	return r.styles.speaker.Render(r.app.cfg.PersonaName + ":")
}

// readLines feeds input lines to a channel that is closed at end of
// input or on a read error, which is logged. The reader goroutine
// outlives the REPL when input never ends; it is abandoned with the
// process.
func readLines(in io.Reader, logger *slog.Logger) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Error("input read failed", "error", err)
		}
	}()
	return lines
}

// hasModel reports whether name is among the installed models. Ollama
// lists untagged pulls with an implicit ":latest".
func hasModel(models []string, name string) bool {
	return slices.Contains(models, name) ||
		(!strings.Contains(name, ":") && slices.Contains(models, name+":latest"))
}
