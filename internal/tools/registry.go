// Package tools provides the capabilities the model may invoke during a
// turn and the registry that dispatches them.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Capability is a named action the model can request.
type Capability interface {
	Name() string
	Description() string
	// Parameters returns the JSON-schema object describing the arguments.
	Parameters() map[string]any
	Invoke(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds capabilities in registration order.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	caps   map[string]Capability
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		caps:   make(map[string]Capability),
		logger: logger,
	}
}

// Register adds a capability. Registering a name twice replaces the
// capability but keeps its original position.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := c.Name()
	if _, exists := r.caps[name]; !exists {
		r.order = append(r.order, name)
	}
	r.caps[name] = c
}

// Lookup returns the named capability or *ErrToolUnavailable.
func (r *Registry) Lookup(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[name]
	if !ok {
		return nil, &ErrToolUnavailable{ToolName: name}
	}
	return c, nil
}

// Call invokes the named capability and always returns text for the
// model. Unknown names, invocation errors and panics are all rendered
// as result strings.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (result string) {
	c, err := r.Lookup(name)
	if err != nil {
		r.logger.Warn("tool not found", "tool", name)
		return fmt.Sprintf("Tool %s not found.", name)
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", name, "panic", p)
			result = fmt.Sprintf("Error: tool %s failed: %v", name, p)
		}
	}()

	out, err := c.Invoke(ctx, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err, "elapsed", time.Since(start))
		return "Error: " + err.Error()
	}

	r.logger.Debug("tool executed", "tool", name, "result_len", len(out), "elapsed", time.Since(start))
	return out
}

// Describe returns the tool schemas for the completion request, in
// registration order.
func (r *Registry) Describe() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		c := r.caps[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        c.Name(),
				"description": c.Description(),
				"parameters":  c.Parameters(),
			},
		})
	}
	return result
}

// Names returns the registered capability names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered capabilities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// RegisterBuiltins adds get_time, list_files and, when shell is non-nil
// and enabled, execute_shell.
func RegisterBuiltins(r *Registry, shell *ShellExec) {
	r.Register(NewClock(nil))
	r.Register(ListFiles{})
	if shell != nil && shell.Enabled() {
		r.Register(NewExecuteShell(shell))
	}
}

// stringArg returns args[key] when it is a non-empty string.
func stringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// intArg accepts JSON numbers and integers. Non-finite numbers read as
// zero and finite ones are clamped to the int32 range.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		switch {
		case math.IsNaN(v), math.IsInf(v, 0):
			return 0
		case v > math.MaxInt32:
			return math.MaxInt32
		case v < math.MinInt32:
			return math.MinInt32
		}
		return int(v)
	case int:
		return v
	}
	return 0
}
