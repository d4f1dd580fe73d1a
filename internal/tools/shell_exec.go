package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// MaxShellTimeout caps any per-command timeout.
const MaxShellTimeout = 5 * time.Minute

// DefaultDeniedPatterns are blocked when the configuration names none.
var DefaultDeniedPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	"rm -rf ~",
	"mkfs",
	"dd if=",
	"> /dev/sd",
	"chmod -R 777 /",
	"shutdown",
	"reboot",
	":(){ :|:& };:",
}

// ShellExec runs commands through sh -c under a timeout and policy.
type ShellExec struct {
	enabled         bool
	workingDir      string
	allowedPrefixes []string
	deniedPatterns  []string
	defaultTimeout  time.Duration
	maxOutputBytes  int
}

// ShellExecConfig configures the shell executor.
type ShellExecConfig struct {
	Enabled    bool
	WorkingDir string
	// AllowedPrefixes, when non-empty, restricts commands to those
	// starting with one of the prefixes.
	AllowedPrefixes []string
	// DeniedPatterns are matched case-insensitively anywhere in the
	// command. Nil selects DefaultDeniedPatterns.
	DeniedPatterns []string
	DefaultTimeout time.Duration
	MaxOutputBytes int
}

// NewShellExec creates a new shell executor.
func NewShellExec(cfg ShellExecConfig) *ShellExec {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	if cfg.DefaultTimeout > MaxShellTimeout {
		cfg.DefaultTimeout = MaxShellTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 100 * 1024
	}
	if cfg.DeniedPatterns == nil {
		cfg.DeniedPatterns = DefaultDeniedPatterns
	}
	return &ShellExec{
		enabled:         cfg.Enabled,
		workingDir:      cfg.WorkingDir,
		allowedPrefixes: cfg.AllowedPrefixes,
		deniedPatterns:  cfg.DeniedPatterns,
		defaultTimeout:  cfg.DefaultTimeout,
		maxOutputBytes:  cfg.MaxOutputBytes,
	}
}

// Enabled reports whether shell execution is available.
func (s *ShellExec) Enabled() bool {
	return s.enabled
}

// ExecResult contains the result of a command execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Check reports whether command passes the denied and allowed lists.
func (s *ShellExec) Check(command string) error {
	lower := strings.ToLower(command)
	for _, denied := range s.deniedPatterns {
		if denied != "" && strings.Contains(lower, strings.ToLower(denied)) {
			return fmt.Errorf("command blocked: matches denied pattern %q", denied)
		}
	}

	if len(s.allowedPrefixes) == 0 {
		return nil
	}
	trimmed := strings.TrimSpace(command)
	for _, prefix := range s.allowedPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return nil
		}
	}
	return fmt.Errorf("command blocked: not in allowed prefixes")
}

// Exec runs command. A timeoutSec of zero uses the default timeout.
// Non-zero exit codes and timeouts are reported in the result, not as
// errors.
func (s *ShellExec) Exec(ctx context.Context, command string, timeoutSec int) (*ExecResult, error) {
	if !s.enabled {
		return nil, fmt.Errorf("shell execution is disabled")
	}
	if err := s.Check(command); err != nil {
		return nil, err
	}

	// Clamp in seconds; multiplying first overflows for large requests.
	timeout := s.defaultTimeout
	switch {
	case timeoutSec > int(MaxShellTimeout/time.Second):
		timeout = MaxShellTimeout
	case timeoutSec > 0:
		timeout = time.Duration(timeoutSec) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if s.workingDir != "" {
		cmd.Dir = s.workingDir
	}
	// Children that inherit the pipes must not keep Run waiting past
	// the deadline.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &ExecResult{
		Stdout: truncateOutput(stdout.String(), s.maxOutputBytes),
		Stderr: truncateOutput(stderr.String(), s.maxOutputBytes),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run command: %w", err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	return result, nil
}

// truncateOutput truncates output to maxBytes, adding a note if truncated.
func truncateOutput(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "\n\n[... output truncated ...]"
}

// ExecuteShell is the execute_shell capability.
type ExecuteShell struct {
	shell *ShellExec
}

// NewExecuteShell wraps shell as a capability.
func NewExecuteShell(shell *ShellExec) *ExecuteShell {
	return &ExecuteShell{shell: shell}
}

func (e *ExecuteShell) Name() string { return "execute_shell" }

func (e *ExecuteShell) Description() string {
	return "Run a shell command on the local machine and return its standard output and standard error."
}

func (e *ExecuteShell) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default 30, max 300)",
			},
		},
		"required": []string{"command"},
	}
}

// Invoke runs the command and renders both streams.
func (e *ExecuteShell) Invoke(ctx context.Context, args map[string]any) (string, error) {
	command, ok := stringArg(args, "command")
	if !ok {
		return "", fmt.Errorf("command is required")
	}

	res, err := e.shell.Exec(ctx, command, intArg(args, "timeout"))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Stdout: %s\nStderr: %s", res.Stdout, res.Stderr)
	if res.TimedOut {
		sb.WriteString("\n(command timed out)")
	} else if res.ExitCode != 0 {
		fmt.Fprintf(&sb, "\n(exit code %d)", res.ExitCode)
	}
	return sb.String(), nil
}
