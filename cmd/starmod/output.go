package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/DonovanMods/starmod/internal/domain"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

// colorEnabled reports whether w should receive ANSI styling. It respects
// --no-color, NO_COLOR (https://no-color.org) and only colours terminals.
func colorEnabled(w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// tagColors follows the conflict severity of each tag
var tagColors = map[domain.Tag]lipgloss.Color{
	domain.TagEnabled:       lipgloss.Color("15"),
	domain.TagWinner:        lipgloss.Color("10"),
	domain.TagLoser:         lipgloss.Color("11"),
	domain.TagCompleteLoser: lipgloss.Color("9"),
	domain.TagConflict:      lipgloss.Color("13"),
	domain.TagDisabled:      lipgloss.Color("8"),
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	cellStyle   = lipgloss.NewStyle().PaddingRight(1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// printer writes human or styled output for one command invocation
type printer struct {
	w     io.Writer
	color bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, color: colorEnabled(w)}
}

func (p *printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) Println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *printer) ok(text string) string   { return p.style(okStyle, text) }
func (p *printer) warn(text string) string { return p.style(warnStyle, text) }
func (p *printer) bad(text string) string  { return p.style(errStyle, text) }

func (p *printer) tag(t domain.Tag, text string) string {
	return p.style(lipgloss.NewStyle().Foreground(tagColors[t]), text)
}

// Table renders rows under headers. rowTags, when given, colours each row by
// the tag at the same index.
func (p *printer) Table(headers []string, rows [][]string, rowTags []domain.Tag) {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				if p.color {
					return headerStyle.PaddingRight(2)
				}
				return cellStyle.PaddingRight(2)
			}
			st := cellStyle.PaddingRight(2)
			if p.color && row >= 0 && row < len(rowTags) {
				st = st.Foreground(tagColors[rowTags[row]])
			}
			return st
		})
	fmt.Fprintln(p.w, t.Render())
}

// JSON writes v as indented JSON
func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
