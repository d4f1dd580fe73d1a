package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ListFiles is the list_files capability.
type ListFiles struct{}

func (ListFiles) Name() string { return "list_files" }

func (ListFiles) Description() string {
	return "List the names of the entries in a directory."
}

func (ListFiles) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to list (default: current directory)",
			},
		},
	}
}

// Invoke returns the entry names, one per line, sorted by name.
func (ListFiles) Invoke(ctx context.Context, args map[string]any) (string, error) {
	path, ok := stringArg(args, "path")
	if !ok {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", path, err)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return strings.Join(names, "\n"), nil
}
