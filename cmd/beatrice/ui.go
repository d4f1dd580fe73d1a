package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// isTerminal reports whether w is a terminal. Anything that is not an
// *os.File (buffers in tests, pipes wrapped by callers) is not.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// styles are the REPL's text styles. They render through a renderer
// bound to the output writer, so plain writers get plain text.
type styles struct {
	user     lipgloss.Style
	speaker  lipgloss.Style
	ok       lipgloss.Style
	warn     lipgloss.Style
	thinking lipgloss.Style
	rule     lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		user:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		speaker:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		ok:       r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("11")),
		thinking: r.NewStyle().Foreground(lipgloss.Color("13")),
		rule:     r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// indicator animates a "thinking" line until stopped. A disabled
// indicator writes nothing.
type indicator struct {
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// startIndicator begins animating msg on w. The animation runs in its
// own goroutine and clears its line before Stop returns.
func startIndicator(w io.Writer, msg string, style lipgloss.Style, enabled bool) *indicator {
	ind := &indicator{stop: make(chan struct{})}
	if !enabled {
		return ind
	}

	frames := spinner.MiniDot.Frames
	ind.wg.Add(1)
	go func() {
		defer ind.wg.Done()
		ticker := time.NewTicker(spinner.MiniDot.FPS)
		defer ticker.Stop()

		var width int
		for i := 0; ; i++ {
			line := style.Render(fmt.Sprintf("%s %s...", frames[i%len(frames)], msg))
			width = max(width, lipgloss.Width(line))
			fmt.Fprint(w, "\r"+line)
			select {
			case <-ind.stop:
				fmt.Fprint(w, "\r"+strings.Repeat(" ", width)+"\r")
				return
			case <-ticker.C:
			}
		}
	}()
	return ind
}

// Stop ends the animation and waits for the line to be cleared. It is
// safe to call more than once.
func (ind *indicator) Stop() {
	ind.once.Do(func() { close(ind.stop) })
	ind.wg.Wait()
}
