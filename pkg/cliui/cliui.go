// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// markdown rendering) for recall CLI commands.
package cliui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	defaultWrap = 80
	maxWrap     = 120
)

var (
	SuccessMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	HeadingStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	KeyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ValueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	DimStyle       = lipgloss.NewStyle().Faint(true)
	UserStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	AssistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// spinnerFrames are the frames of bubbles' spinner.Dot without their padding.
var spinnerFrames = func() []string {
	frames := make([]string, len(spinner.Dot.Frames))
	for i, f := range spinner.Dot.Frames {
		frames[i] = strings.TrimSpace(f)
	}
	return frames
}()

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RoleLabel renders a turn role as a colored label.
func RoleLabel(role string) string {
	switch role {
	case "user":
		return UserStyle.Render("User")
	case "assistant":
		return AssistantStyle.Render("Assistant")
	default:
		return StepStyle.Render(role)
	}
}

// KV is one labelled value in a key/value listing.
type KV struct {
	Key   string
	Value string
}

// RenderKV writes pairs as aligned "key  value" lines under an optional
// heading.
func RenderKV(w io.Writer, heading string, pairs []KV) {
	if heading != "" {
		fmt.Fprintln(w, HeadingStyle.Render(heading))
	}

	width := 0
	for _, p := range pairs {
		width = max(width, ansi.StringWidth(p.Key))
	}
	for _, p := range pairs {
		pad := strings.Repeat(" ", width-ansi.StringWidth(p.Key))
		fmt.Fprintf(w, "  %s  %s\n", KeyStyle.Render(p.Key+pad), p.Value)
	}
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// Output that is not a terminal gets the plain "notty" style.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(markdownStyle(os.Stdout)),
		glamour.WithWordWrap(WrapWidth(os.Stdout)),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// WrapWidth returns the width to wrap text at for f: the terminal width
// capped at 120 columns, or 80 when f is not a terminal.
func WrapWidth(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return defaultWrap
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWrap
	}
	return min(w, maxWrap)
}

func markdownStyle(f *os.File) string {
	if !term.IsTerminal(int(f.Fd())) {
		return "notty"
	}
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}
