package llm

import (
	"encoding/json"
	"strings"
)

// textToolCall is the shape small models use when they write a tool
// call into the content instead of the native tool_calls field.
type textToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ParseTextToolCalls extracts tool calls that a model emitted as text.
// It handles these formats:
//   - a single object: {"name": "...", "arguments": {...}}
//   - concatenated objects: {...}{...} (trailing prose is ignored)
//   - an array: [{"name": "...", "arguments": {...}}]
//   - a tagged call: <tool_call>...</tool_call>
//   - a bare name followed by arguments: get_time {}
//
// When validTools is non-empty, calls naming anything else are dropped.
// The bare-name form is only recognised against a non-empty validTools.
func ParseTextToolCalls(content string, validTools []string) []ToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	valid := make(map[string]bool, len(validTools))
	for _, n := range validTools {
		valid[n] = true
	}
	allowed := func(name string) bool {
		return name != "" && (len(valid) == 0 || valid[name])
	}

	if start := strings.Index(content, "<tool_call>"); start != -1 {
		rest := content[start+len("<tool_call>"):]
		if end := strings.Index(rest, "</tool_call>"); end != -1 {
			rest = rest[:end]
		}
		content = strings.TrimSpace(rest)
	}

	switch {
	case strings.HasPrefix(content, "["):
		var calls []textToolCall
		if err := json.Unmarshal([]byte(content), &calls); err != nil {
			return nil
		}
		return collectCalls(calls, allowed)

	case strings.HasPrefix(content, "{"):
		var calls []textToolCall
		dec := json.NewDecoder(strings.NewReader(content))
		for {
			var c textToolCall
			if err := dec.Decode(&c); err != nil {
				break
			}
			calls = append(calls, c)
		}
		return collectCalls(calls, allowed)

	default:
		if len(valid) == 0 {
			return nil
		}
		name, rest, ok := strings.Cut(content, " ")
		if !ok || !valid[name] {
			return nil
		}
		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, "{") {
			return nil
		}
		var args json.RawMessage
		if err := json.NewDecoder(strings.NewReader(rest)).Decode(&args); err != nil {
			return nil
		}
		return []ToolCall{{Function: ToolFunction{Name: name, Arguments: Arguments(args)}}}
	}
}

func collectCalls(calls []textToolCall, allowed func(string) bool) []ToolCall {
	var out []ToolCall
	for _, c := range calls {
		if !allowed(c.Name) {
			continue
		}
		out = append(out, ToolCall{Function: ToolFunction{Name: c.Name, Arguments: Arguments(c.Arguments)}})
	}
	return out
}

// ToolNames extracts function names from tool definitions in the
// {"type": "function", "function": {...}} shape.
func ToolNames(tools []map[string]any) []string {
	if len(tools) == 0 {
		return nil
	}
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		fn, ok := t["function"].(map[string]any)
		if !ok {
			continue
		}
		if name, ok := fn["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names
}
