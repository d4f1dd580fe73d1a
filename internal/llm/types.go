package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Message roles understood by the completion protocol.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall represents a tool call from the model.
type ToolCall struct {
	Function ToolFunction `json:"function"`
}

// ToolFunction names the capability to invoke and carries its arguments.
type ToolFunction struct {
	Name      string    `json:"name"`
	Arguments Arguments `json:"arguments"`
}

// NewToolCall builds a ToolCall with object arguments.
func NewToolCall(name string, args map[string]any) ToolCall {
	return ToolCall{Function: ToolFunction{Name: name, Arguments: NewArguments(args)}}
}

// Arguments holds tool-call arguments exactly as the model sent them.
// Ollama normally sends a JSON object, but some models emit a JSON
// string containing an encoded object. The raw form is kept so the
// assistant message can be replayed verbatim; [Arguments.Decode]
// produces the mapping handed to a tool.
type Arguments json.RawMessage

// NewArguments encodes m as object arguments.
func NewArguments(m map[string]any) Arguments {
	if m == nil {
		return Arguments("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return Arguments("{}")
	}
	return Arguments(b)
}

// MarshalJSON emits the raw arguments, or {} when none were received.
func (a Arguments) MarshalJSON() ([]byte, error) {
	if len(bytes.TrimSpace(a)) == 0 {
		return []byte("{}"), nil
	}
	return []byte(a), nil
}

// UnmarshalJSON stores the raw JSON value without interpreting it.
func (a *Arguments) UnmarshalJSON(b []byte) error {
	*a = append((*a)[:0], b...)
	return nil
}

// Decode returns the arguments as a mapping. Absent and null arguments
// decode to an empty map. A JSON string is decoded a second time as an
// object. Anything else is an error.
func (a Arguments) Decode() (map[string]any, error) {
	raw := bytes.TrimSpace(a)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}

	switch raw[0] {
	case '{':
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode tool arguments: %w", err)
		}
		return m, nil
	case '"':
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("decode tool arguments: %w", err)
		}
		if strings.TrimSpace(encoded) == "" {
			return map[string]any{}, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(encoded), &m); err != nil {
			return nil, fmt.Errorf("decode encoded tool arguments %q: %w", encoded, err)
		}
		if m == nil {
			m = map[string]any{}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("decode tool arguments: expected object or string, got %s", truncate(string(raw), 64))
	}
}

// ChatResponse is the provider-neutral result of a completion request.
// Wire format conversion happens in ollama.go.
type ChatResponse struct {
	Model     string
	CreatedAt time.Time
	Message   Message
	Done      bool

	// Token usage, populated from the final chunk.
	InputTokens  int
	OutputTokens int

	TotalDuration time.Duration
	LoadDuration  time.Duration
	EvalDuration  time.Duration
}

// StreamCallback receives each content token as it arrives.
type StreamCallback func(token string)

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
