// Command beatrice is a terminal companion backed by a local Ollama model.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/nugget/beatrice/internal/buildinfo"
)

func main() {
	// SIGINT/SIGTERM cancel the context that every turn and the REPL
	// read loop share.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the beatrice command. All OS-level
// dependencies are injected so tests can drive it end to end. Arguments
// are parsed by hand; the flag package's globals get in the way of
// calling run from parallel tests.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "chat", "":
		model := ""
		if len(cmdArgs) > 0 {
			model = cmdArgs[0]
		}
		return runChat(ctx, stdin, stdout, stderr, configPath, model)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: beatrice ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs)
	case "history":
		n := 10
		if len(cmdArgs) > 0 {
			v, err := strconv.Atoi(cmdArgs[0])
			if err != nil || v <= 0 {
				return fmt.Errorf("usage: beatrice history [count]")
			}
			n = v
		}
		return runHistory(ctx, stdout, stderr, configPath, n, outputFmt)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "help":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Beatrice - terminal companion for a local Ollama model")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: beatrice [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  chat [model]     Start an interactive chat (default command)")
	fmt.Fprintln(w, "  ask <question>   Ask a single question and print the answer")
	fmt.Fprintln(w, "  history [count]  Show recently archived turns (default: 10)")
	fmt.Fprintln(w, "  init [dir]       Write an example config.yaml and persona.md (default: .)")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format for version and history: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  BEATRICE_MODEL, BEATRICE_OLLAMA_URL, BEATRICE_TOOLS=1|0")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/beatrice/config.yaml, /etc/beatrice/config.yaml")
	return nil
}
