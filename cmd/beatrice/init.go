package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nugget/beatrice/internal/config"
	"github.com/nugget/beatrice/internal/defaults"
	"github.com/nugget/beatrice/internal/memory"
)

// runInit writes an example config.yaml and persona.md into dir and
// creates its data directory with an empty memory file. Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Beatrice in %s\n", dir)

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dataDir, err)
	}

	// The config may carry credentials in ${VAR} expansions.
	if err := writeIfMissing(w, filepath.Join(dir, "config.yaml"), defaults.ConfigYAML, 0o600); err != nil {
		return err
	}
	if err := writeIfMissing(w, filepath.Join(dir, "persona.md"), defaults.PersonaMD, 0o644); err != nil {
		return err
	}
	if err := seedMemory(w, filepath.Join(dataDir, config.Default().Memory.File)); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml to pick a model, then set persona_file to use persona.md.")
	return nil
}

// writeIfMissing writes data to path with mode unless the file already
// exists, and reports what it did on w.
func writeIfMissing(w io.Writer, path string, data []byte, mode os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  - %s (exists, skipping)\n", path)
		return nil
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  ✓ %s\n", path)
	return nil
}

// seedMemory writes an empty memory file at path unless one exists.
func seedMemory(w io.Writer, path string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(w, "  - %s (exists, skipping)\n", path)
		return nil
	}
	if err := memory.Open(path, memory.DefaultCap, nil).Save(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  ✓ %s\n", path)
	return nil
}
