package views

import (
	"fmt"
	"strings"

	"github.com/DonovanMods/starmod/internal/domain"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FileConflict is one contested destination and the mod whose link is deployed
type FileConflict struct {
	Destination string
	Winner      string
}

// ConflictDetail describes how one mod overlaps the rest of the catalogue
type ConflictDetail struct {
	Mod         string
	BareName    string
	Tag         domain.Tag
	LosingTo    []string
	WinningOver []string
	Files       []FileConflict
}

// Conflicts shows the conflict relations of a single mod in a scrollable pane
type Conflicts struct {
	detail   ConflictDetail
	viewport viewport.Model
}

// NewConflicts creates the detail view sized to width x height
func NewConflicts(detail ConflictDetail, width, height int) Conflicts {
	vp := viewport.New(width, max(height-6, 3))
	c := Conflicts{detail: detail, viewport: vp}
	c.viewport.SetContent(c.body())
	return c
}

// Detail returns the relations being shown
func (c Conflicts) Detail() ConflictDetail {
	return c.detail
}

// Init implements tea.Model
func (c Conflicts) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model; scrolling keys go to the viewport
func (c Conflicts) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		c.viewport.Width = size.Width
		c.viewport.Height = max(size.Height-6, 3)
		return c, nil
	}
	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	return c, cmd
}

func (c Conflicts) body() string {
	d := c.detail
	heading := lipgloss.NewStyle().Bold(true)
	winStyle := lipgloss.NewStyle().Foreground(TagColors[domain.TagWinner])
	loseStyle := lipgloss.NewStyle().Foreground(TagColors[domain.TagLoser])
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	if len(d.LosingTo) == 0 && len(d.WinningOver) == 0 {
		return dim.Render("No conflicts with other enabled mods.")
	}

	var b strings.Builder
	if len(d.WinningOver) > 0 {
		b.WriteString(heading.Render("Overwrites") + "\n")
		for _, name := range d.WinningOver {
			b.WriteString("  " + winStyle.Render(name) + "\n")
		}
		b.WriteString("\n")
	}
	if len(d.LosingTo) > 0 {
		b.WriteString(heading.Render("Overwritten by") + "\n")
		for _, name := range d.LosingTo {
			b.WriteString("  " + loseStyle.Render(name) + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(heading.Render(fmt.Sprintf("Contested files (%d)", len(d.Files))) + "\n")
	for _, f := range d.Files {
		style := loseStyle
		if f.Winner == d.BareName {
			style = winStyle
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", f.Destination, style.Render("← "+f.Winner)))
	}
	return b.String()
}

// View implements tea.Model
func (c Conflicts) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(TagColors[c.detail.Tag])
	return title.Render(fmt.Sprintf("%s: %s", c.detail.Mod, c.detail.Tag)) + "\n\n" + c.viewport.View()
}
