package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nugget/beatrice/internal/httpkit"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// levelTrace mirrors config.LevelTrace without importing config.
const levelTrace = slog.Level(-8)

// StatusError is returned when the completion service answers with a
// non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama: API error %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// OllamaClient is a client for the Ollama API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama client. The HTTP client carries
// no overall timeout; callers bound each request with a context deadline.
func NewOllamaClient(baseURL string, logger *slog.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpkit.NewClient(httpkit.WithTimeout(0)),
		logger:     logger,
	}
}

// BaseURL returns the service root this client talks to.
func (c *OllamaClient) BaseURL() string { return c.baseURL }

type ollamaRequest struct {
	Model    string           `json:"model"`
	Messages []Message        `json:"messages"`
	Stream   bool             `json:"stream"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

// ollamaChunk is one NDJSON line of a streaming reply, or the whole
// body of a non-streaming one.
type ollamaChunk struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Message   Message `json:"message"`
	Done      bool    `json:"done"`

	TotalDuration   int64 `json:"total_duration,omitempty"`
	LoadDuration    int64 `json:"load_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
	EvalDuration    int64 `json:"eval_duration,omitempty"`
}

func (ch *ollamaChunk) applyTo(resp *ChatResponse) {
	resp.Model = ch.Model
	resp.Done = ch.Done
	if t, err := time.Parse(time.RFC3339Nano, ch.CreatedAt); err == nil {
		resp.CreatedAt = t
	}
	resp.InputTokens = ch.PromptEvalCount
	resp.OutputTokens = ch.EvalCount
	resp.TotalDuration = time.Duration(ch.TotalDuration)
	resp.LoadDuration = time.Duration(ch.LoadDuration)
	resp.EvalDuration = time.Duration(ch.EvalDuration)
}

// Chat sends a non-streaming chat request to Ollama.
func (c *OllamaClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	body, err := c.post(ctx, model, messages, tools, false)
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(body, 4096)

	var chunk ollamaChunk
	if err := json.NewDecoder(body).Decode(&chunk); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	resp := &ChatResponse{Message: chunk.Message}
	chunk.applyTo(resp)
	if resp.Message.Role == "" {
		resp.Message.Role = RoleAssistant
	}

	c.logger.Log(ctx, levelTrace, "chat response",
		"model", model,
		"content_len", len(resp.Message.Content),
		"tool_calls", len(resp.Message.ToolCalls),
	)
	return resp, nil
}

// ChatStream sends a streaming chat request to Ollama and reads the
// newline-delimited JSON reply until a chunk reports done or the body
// ends. Tool calls are collected from every chunk in order.
func (c *OllamaClient) ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error) {
	body, err := c.post(ctx, model, messages, tools, true)
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(body, 4096)

	resp := &ChatResponse{Message: Message{Role: RoleAssistant}}
	var content strings.Builder
	decoder := json.NewDecoder(body)

	for {
		var chunk ollamaChunk
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("decode stream chunk: %w", err)
		}

		if chunk.Message.Content != "" {
			content.WriteString(chunk.Message.Content)
			if callback != nil {
				callback(chunk.Message.Content)
			}
		}
		resp.Message.ToolCalls = append(resp.Message.ToolCalls, chunk.Message.ToolCalls...)

		if chunk.Done {
			chunk.applyTo(resp)
			break
		}
	}

	resp.Message.Content = content.String()

	c.logger.Log(ctx, levelTrace, "stream complete",
		"model", model,
		"content_len", len(resp.Message.Content),
		"tool_calls", len(resp.Message.ToolCalls),
		"eval_count", resp.OutputTokens,
	)
	return resp, nil
}

// post issues a chat request and returns the body of a 200 response.
func (c *OllamaClient) post(ctx context.Context, model string, messages []Message, tools []map[string]any, stream bool) (io.ReadCloser, error) {
	payload, err := json.Marshal(ollamaRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
		Tools:    tools,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, levelTrace, "chat request",
		"model", model,
		"stream", stream,
		"messages", len(messages),
		"tools", len(tools),
		"payload", string(payload),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: httpkit.ReadErrorBody(resp.Body, 2048)}
	}
	return resp.Body, nil
}

// Ping checks if Ollama is reachable.
func (c *OllamaClient) Ping(ctx context.Context) error {
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return err
	}
	httpkit.DrainAndClose(resp.Body, 64*1024)
	return nil
}

// ListModels returns the names of locally available models.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.get(ctx, "/api/tags")
	if err != nil {
		return nil, err
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

func (c *OllamaClient) get(ctx context.Context, path string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: httpkit.ReadErrorBody(resp.Body, 2048)}
	}
	return resp, nil
}
