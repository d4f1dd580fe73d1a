// Package agent implements the turn loop: compose the prompt, ask the
// model, resolve one round of tool calls, and stream the answer back.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nugget/beatrice/internal/archive"
	"github.com/nugget/beatrice/internal/llm"
	"github.com/nugget/beatrice/internal/memory"
	"github.com/nugget/beatrice/internal/prompts"
	"github.com/nugget/beatrice/internal/tools"
)

// DefaultRequestTimeout bounds each completion request when Config
// leaves Timeout unset.
const DefaultRequestTimeout = 120 * time.Second

// Fragment is one piece of a turn's output. A fragment with Err set
// carries the user-visible error text and is the last of its turn.
type Fragment struct {
	Text string
	Err  error
}

// TurnRecorder receives every finished turn, failed ones included.
type TurnRecorder interface {
	Record(ctx context.Context, t archive.Turn) error
}

// Config holds the per-run settings of a Loop.
type Config struct {
	Model string
	// Persona is the base system prompt that facts are appended to.
	Persona string
	// Tools attaches tool schemas to the first request of each turn.
	// Callers resolve the model allow-list before setting it.
	Tools bool
	// Streaming selects NDJSON requests. When false, both phases use
	// single-response requests and the answer arrives as one fragment.
	Streaming bool
	// Timeout bounds each completion request.
	Timeout time.Duration
}

// Loop runs turns against a model. A Loop may serve many sessions but
// each session must run one turn at a time.
type Loop struct {
	cfg      Config
	llm      llm.Client
	tools    *tools.Registry
	memory   *memory.Store
	recorder TurnRecorder
	logger   *slog.Logger
	turns    atomic.Int64
}

// NewLoop creates a Loop. A nil registry disables tool dispatch and a
// nil recorder disables archiving.
func NewLoop(cfg Config, client llm.Client, registry *tools.Registry, mem *memory.Store, recorder TurnRecorder, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Persona == "" {
		cfg.Persona = prompts.BaseSystemPrompt()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if registry == nil {
		registry = tools.NewRegistry(logger)
		cfg.Tools = false
	}
	return &Loop{
		cfg:      cfg,
		llm:      client,
		tools:    registry,
		memory:   mem,
		recorder: recorder,
		logger:   logger,
	}
}

// Model returns the model this loop talks to.
func (l *Loop) Model() string { return l.cfg.Model }

// RunTurn starts a turn and returns its fragments. The channel is
// closed after memory, session and archive side effects are done, so a
// caller that drains it sees a consistent session for the next turn.
// Cancelling ctx aborts the in-flight request; a cancelled turn leaves
// no assistant record behind.
func (l *Loop) RunTurn(ctx context.Context, userText string, session *memory.Session) <-chan Fragment {
	out := make(chan Fragment)
	go l.runTurn(ctx, userText, session, out)
	return out
}

func (l *Loop) runTurn(ctx context.Context, userText string, session *memory.Session, out chan<- Fragment) {
	defer close(out)

	start := time.Now()
	turn := l.turns.Add(1)
	log := l.logger.With("session", session.ID(), "turn", turn)

	emit := func(f Fragment) {
		select {
		case out <- f:
		case <-ctx.Done():
		}
	}

	l.memory.Store(memory.SpeakerUser, userText)
	messages := l.buildMessages(userText, session)

	var schemas []map[string]any
	if l.cfg.Tools {
		schemas = l.tools.Describe()
	}

	log.Info("turn started",
		"model", l.cfg.Model,
		"history", session.Len(),
		"tools", len(schemas),
		"streaming", l.cfg.Streaming,
	)

	rec := archive.Turn{
		SessionID: session.ID(),
		Model:     l.cfg.Model,
		UserText:  userText,
		Streamed:  l.cfg.Streaming,
		StartedAt: start,
	}

	response, err := l.execute(ctx, messages, schemas, emit, &rec, log)
	switch {
	case ctx.Err() != nil:
		log.Info("turn interrupted", "elapsed", time.Since(start))
		response = ""
		rec.Error = "interrupted"
	case err != nil:
		msg := l.describeError(ctx, err)
		log.Warn("turn failed", "error", err, "elapsed", time.Since(start))
		emit(Fragment{Text: "Error: " + msg, Err: err})
		rec.Error = msg
	default:
		l.memory.Store(memory.SpeakerAssistant, response)
		session.Append(userText, response)
		log.Info("turn complete",
			"tool_calls", len(rec.ToolCalls),
			"response_len", len(response),
			"elapsed", time.Since(start),
		)
	}

	rec.Response = response
	rec.Duration = time.Since(start)
	if l.recorder != nil {
		if err := l.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
			log.Warn("turn not archived", "error", err)
		}
	}
}

// buildMessages assembles system, history and the new user message.
func (l *Loop) buildMessages(userText string, session *memory.Session) []llm.Message {
	history := session.Messages()
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: prompts.Compose(l.cfg.Persona, l.memory.RecentFacts()),
	})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userText})
	return messages
}

// execute runs both phases and returns the text shown to the user.
func (l *Loop) execute(ctx context.Context, messages []llm.Message, schemas []map[string]any, emit func(Fragment), rec *archive.Turn, log *slog.Logger) (string, error) {
	draft, err := l.complete(ctx, messages, schemas, nil, rec)
	if err != nil {
		return "", err
	}

	calls := draft.Message.ToolCalls
	content := draft.Message.Content
	if len(calls) == 0 && len(schemas) > 0 {
		if parsed := llm.ParseTextToolCalls(content, llm.ToolNames(schemas)); len(parsed) > 0 {
			log.Debug("tool calls parsed from text", "count", len(parsed))
			calls = parsed
			content = ""
		}
	}

	// An empty answer is still one fragment.
	if len(calls) == 0 {
		emit(Fragment{Text: content})
		return content, nil
	}

	// Every argument set must decode before any capability runs.
	decoded := make([]map[string]any, len(calls))
	for i, tc := range calls {
		args, err := tc.Function.Arguments.Decode()
		if err != nil {
			return "", fmt.Errorf("tool %s: %w", tc.Function.Name, err)
		}
		decoded[i] = args
	}

	results := make([]string, 0, len(calls))
	for i, tc := range calls {
		name := tc.Function.Name
		log.Debug("dispatching tool", "tool", name)
		results = append(results, fmt.Sprintf("[%s] %s", name, l.tools.Call(ctx, name, decoded[i])))
		rec.ToolCalls = append(rec.ToolCalls, name)
	}

	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: calls},
		llm.Message{Role: llm.RoleTool, Content: strings.Join(results, "\n")},
	)

	var final strings.Builder
	_, err = l.complete(ctx, messages, nil, func(tok string) {
		final.WriteString(tok)
		emit(Fragment{Text: tok})
	}, rec)
	if err != nil {
		return "", err
	}
	return final.String(), nil
}

// complete performs one completion request under the per-request
// timeout. In non-streaming mode callback receives the whole content at
// once.
func (l *Loop) complete(ctx context.Context, messages []llm.Message, schemas []map[string]any, callback llm.StreamCallback, rec *archive.Turn) (*llm.ChatResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	var (
		resp *llm.ChatResponse
		err  error
	)
	if l.cfg.Streaming {
		resp, err = l.llm.ChatStream(reqCtx, l.cfg.Model, messages, schemas, callback)
	} else {
		resp, err = l.llm.Chat(reqCtx, l.cfg.Model, messages, schemas)
		if err == nil && callback != nil && resp.Message.Content != "" {
			callback(resp.Message.Content)
		}
	}
	if err != nil {
		return nil, err
	}

	rec.InputTokens += resp.InputTokens
	rec.OutputTokens += resp.OutputTokens
	return resp, nil
}

// describeError renders err for the user. A per-request deadline reads
// as a timeout; everything else is the error text.
func (l *Loop) describeError(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Sprintf("request timed out after %s", l.cfg.Timeout)
	}
	return err.Error()
}

// Collect drains a turn and returns its text. Error fragments are
// included in the text; the first error is also returned.
func Collect(fragments <-chan Fragment) (string, error) {
	var (
		sb       strings.Builder
		firstErr error
	)
	for f := range fragments {
		sb.WriteString(f.Text)
		if f.Err != nil && firstErr == nil {
			firstErr = f.Err
		}
	}
	return sb.String(), firstErr
}
