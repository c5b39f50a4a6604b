// Package terminal renders chat transcripts on a terminal and runs the
// interactive chat loop.
package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/PabloGalante/folio-chat/internal/domain"
)

var (
	userColor      = color.New(color.FgGreen, color.Bold)
	assistantColor = color.New(color.FgCyan, color.Bold)
	errorColor     = color.New(color.FgRed)
	sourceColor    = color.New(color.FgHiBlack)
	infoColor      = color.New(color.FgYellow)
	promptColor    = color.New(color.FgHiBlue)
)

type PrinterOptions struct {
	Width int
	// Style is a glamour standard style name; empty picks one from the
	// terminal background.
	Style string
}

type Printer struct {
	out      io.Writer
	markdown *glamour.TermRenderer
}

func NewPrinter(out io.Writer, opts PrinterOptions) (*Printer, error) {
	if opts.Width <= 0 {
		opts.Width = 100
	}

	style := glamour.WithAutoStyle()
	if opts.Style != "" {
		style = glamour.WithStandardStyle(opts.Style)
	}

	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(opts.Width))
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	return &Printer{out: out, markdown: r}, nil
}

// Message prints one transcript entry. Assistant content is rendered as
// markdown.
func (p *Printer) Message(m *domain.Message) {
	switch m.Role {
	case domain.RoleUser:
		userColor.Fprint(p.out, "you: ")
		fmt.Fprintln(p.out, m.Content)
	default:
		assistantColor.Fprintln(p.out, "assistant:")
		fmt.Fprint(p.out, p.render(m.Content))
	}

	for i, src := range m.Sources {
		sourceColor.Fprintf(p.out, "  [%d] %s\n", i+1, summarize(src))
	}
}

// Failure prints a dispatch failure.
func (p *Printer) Failure(de *domain.DispatchError) {
	errorColor.Fprintf(p.out, "! %s\n", de.UserMessage())
}

func (p *Printer) Info(format string, args ...any) {
	infoColor.Fprintf(p.out, format+"\n", args...)
}

func (p *Printer) render(md string) string {
	out, err := p.markdown.Render(md)
	if err != nil {
		return md + "\n"
	}
	return out
}

// summarize shortens a source to one line, preferring a title or source
// name from its metadata.
func summarize(src domain.Source) string {
	for _, key := range []string{"title", "source", "url"} {
		if v, ok := src.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	line := strings.Join(strings.Fields(src.Content), " ")
	if r := []rune(line); len(r) > 80 {
		line = string(r[:77]) + "..."
	}
	return line
}
