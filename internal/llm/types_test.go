package llm

import (
	"encoding/json"
	"testing"
)

func TestArguments_Decode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "absent", raw: ``, want: map[string]any{}},
		{name: "null", raw: `null`, want: map[string]any{}},
		{name: "object", raw: `{"path": "/tmp"}`, want: map[string]any{"path": "/tmp"}},
		{name: "empty object", raw: `{}`, want: map[string]any{}},
		{name: "encoded string", raw: `"{\"command\": \"uptime\"}"`, want: map[string]any{"command": "uptime"}},
		{name: "empty string", raw: `""`, want: map[string]any{}},
		{name: "string not JSON", raw: `"ls -la"`, wantErr: true},
		{name: "array", raw: `["a"]`, wantErr: true},
		{name: "number", raw: `42`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Arguments(tt.raw).Decode()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Decode() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got == nil {
				t.Fatal("Decode() returned nil map")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Decode() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Decode()[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestArguments_ReplayedVerbatim(t *testing.T) {
	// A string-encoded argument must go back to the model exactly as it
	// arrived when the assistant draft is added to the conversation.
	raw := `{"role":"assistant","content":"","tool_calls":[{"function":{"name":"get_time","arguments":"{}"}}]}`

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := string(msg.ToolCalls[0].Function.Arguments); got != `"{}"` {
		t.Errorf("raw arguments = %s, want \"{}\"", got)
	}

	out, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("round trip:\n got %s\nwant %s", out, raw)
	}
}

func TestArguments_MarshalEmpty(t *testing.T) {
	tc := ToolCall{Function: ToolFunction{Name: "get_time"}}
	out, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"function":{"name":"get_time","arguments":{}}}` {
		t.Errorf("marshal = %s", out)
	}
}

func TestNewToolCall(t *testing.T) {
	tc := NewToolCall("list_files", map[string]any{"path": "/etc"})
	args, err := tc.Function.Arguments.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if args["path"] != "/etc" {
		t.Errorf("path = %v, want /etc", args["path"])
	}
}
