// Package cliio provides the per-invocation output channel. Every command
// in cmd/taskctl is handed a *Channel instead of writing to
// os.Stdout/os.Stderr or a package-level warning slice directly, so
// warning collection and format selection never leak across invocations.
package cliio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Format selects how a Channel renders its Emit payload.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Channel is the per-invocation output sink. JSON mode writes a single
// well-formed object to Stdout and every warning to Stderr; text mode
// writes both to Stdout.
type Channel struct {
	Format   Format
	Stdout   io.Writer
	Stderr   io.Writer
	color    bool
	warnings []string
}

// New constructs a Channel. color is forced off when NO_COLOR is set or
// stdout is not a terminal.
func New(format Format, color bool) *Channel {
	if os.Getenv("NO_COLOR") != "" {
		color = false
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color = false
	}
	return &Channel{Format: format, Stdout: os.Stdout, Stderr: os.Stderr, color: color}
}

// Warn records a non-fatal warning. In JSON mode it is only ever flushed
// to Stderr; in text mode it is also available for inline rendering.
func (c *Channel) Warn(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

// Warnings returns every warning recorded so far.
func (c *Channel) Warnings() []string { return append([]string(nil), c.warnings...) }

// FlushWarnings writes every recorded warning to Stderr (JSON mode) or
// inline to Stdout (text mode), then clears the buffer.
func (c *Channel) FlushWarnings() {
	for _, w := range c.warnings {
		if c.Format == FormatJSON {
			fmt.Fprintf(c.Stderr, "warning: %s\n", w)
		} else {
			fmt.Fprintln(c.Stdout, c.styleWarning(w))
		}
	}
	c.warnings = nil
}

// EmitJSON writes v as a single indented JSON object with warnings
// attached under a top-level "warnings" key so JSON mode's "one
// well-formed object to stdout" guarantee holds even when there were
// non-fatal warnings along the way.
func (c *Channel) EmitJSON(v any) error {
	envelope := struct {
		Data     any      `json:"data"`
		Warnings []string `json:"warnings,omitempty"`
	}{Data: v, Warnings: c.warnings}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return err
	}
	for _, w := range c.warnings {
		fmt.Fprintf(c.Stderr, "warning: %s\n", w)
	}
	c.warnings = nil
	_, err = fmt.Fprintln(c.Stdout, string(data))
	return err
}

// Println writes a plain line to Stdout, used by text-mode renderers.
func (c *Channel) Println(args ...any) { fmt.Fprintln(c.Stdout, args...) }

// Printf writes a formatted line to Stdout.
func (c *Channel) Printf(format string, args ...any) { fmt.Fprintf(c.Stdout, format, args...) }

var (
	styleOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleMuted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func (c *Channel) render(style lipgloss.Style, s string) string {
	if !c.color {
		return s
	}
	return style.Render(s)
}

// StyleOK, StyleWarning, StyleError, StyleMuted render s with the
// corresponding status colour when the channel is in colour mode (a TTY
// with NO_COLOR unset), and return s verbatim otherwise — JSON mode never
// reaches these.
func (c *Channel) StyleOK(s string) string      { return c.render(styleOK, s) }
func (c *Channel) StyleWarning(s string) string { return c.render(styleWarn, s) }
func (c *Channel) StyleError(s string) string   { return c.render(styleErr, s) }
func (c *Channel) StyleMuted(s string) string   { return c.render(styleMuted, s) }

func (c *Channel) styleWarning(s string) string { return c.StyleWarning("warning: " + s) }

// Progress shows a spinner with msg while a long-running external call is
// in flight, and returns a stop function. It is a no-op in JSON mode or
// when not attached to a colour-capable terminal, so machine-readable
// output never sees spinner frames.
func (c *Channel) Progress(msg string) func() {
	if c.Format == FormatJSON || !c.color {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(c.Stderr))
	s.Suffix = " " + msg
	s.Start()
	return s.Stop
}

// HumanSize renders n bytes the way text-mode evidence/diff summaries do.
func HumanSize(n int64) string { return humanize.Bytes(uint64(n)) }

// HumanSince renders a relative duration since t for text-mode staleness
// warnings ("2 days ago").
func HumanSince(t time.Time) string { return humanize.Time(t) }

// TerminalWidth reports the current terminal width, or a sane fallback
// when not attached to a TTY (used by table rendering).
func TerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// Profile reports the detected colour profile, used to decide whether
// 256-colour styles should degrade to ANSI-16 or plain text.
func Profile() termenv.Profile { return termenv.ColorProfile() }
