package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		facts []string
		want  string
	}{
		{
			name: "no facts",
			base: "BASE",
			want: "BASE",
		},
		{
			name:  "empty slice",
			base:  "BASE",
			facts: []string{},
			want:  "BASE",
		},
		{
			name:  "one fact",
			base:  "BASE",
			facts: []string{"my name is Alex"},
			want:  "BASE\n\nTHINGS YOU REMEMBER ABOUT YOUR CONTRACTOR:\n- my name is Alex\n\nUse these facts naturally. Address them by name if you know it!",
		},
		{
			name:  "facts keep order",
			base:  "B",
			facts: []string{"I like tea", "call me Al"},
			want:  "B\n\nTHINGS YOU REMEMBER ABOUT YOUR CONTRACTOR:\n- I like tea\n- call me Al\n\nUse these facts naturally. Address them by name if you know it!",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compose(tt.base, tt.facts); got != tt.want {
				t.Errorf("Compose() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestBaseSystemPrompt(t *testing.T) {
	p := BaseSystemPrompt()
	for _, want := range []string{"You are Beatrice", "I suppose", "USE THE TOOLS"} {
		if !strings.Contains(p, want) {
			t.Errorf("base prompt missing %q", want)
		}
	}
}

func TestLoadPersona(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "persona.md")
	os.WriteFile(custom, []byte("\n  You are a librarian.\n"), 0600)
	empty := filepath.Join(dir, "empty.md")
	os.WriteFile(empty, []byte("  \n"), 0600)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"built-in", "", BaseSystemPrompt(), false},
		{"custom file", custom, "You are a librarian.", false},
		{"empty file", empty, "", true},
		{"missing file", filepath.Join(dir, "nope.md"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadPersona(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadPersona() err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("LoadPersona() = %q, want %q", got, tt.want)
			}
		})
	}
}
