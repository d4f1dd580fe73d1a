package tools

import "fmt"

// ErrToolUnavailable is returned by [Registry.Lookup] when no capability
// with the requested name is registered.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not registered", e.ToolName)
}
