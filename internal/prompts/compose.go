package prompts

import (
	"fmt"
	"os"
	"strings"
)

const (
	factsHeader = "\n\nTHINGS YOU REMEMBER ABOUT YOUR CONTRACTOR:\n"
	factsFooter = "\nUse these facts naturally. Address them by name if you know it!"
)

// Compose returns base with the remembered facts appended. With no
// facts, base is returned unchanged.
func Compose(base string, facts []string) string {
	if len(facts) == 0 {
		return base
	}

	var sb strings.Builder
	sb.Grow(len(base) + len(factsHeader) + len(factsFooter) + 64*len(facts))
	sb.WriteString(base)
	sb.WriteString(factsHeader)
	for _, f := range facts {
		sb.WriteString("- ")
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	sb.WriteString(factsFooter)
	return sb.String()
}

// LoadPersona returns the persona text at path, or the built-in persona
// when path is empty. An empty file is an error.
func LoadPersona(path string) (string, error) {
	if path == "" {
		return BaseSystemPrompt(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load persona %s: %w", path, err)
	}
	persona := strings.TrimSpace(string(data))
	if persona == "" {
		return "", fmt.Errorf("load persona %s: file is empty", path)
	}
	return persona, nil
}
