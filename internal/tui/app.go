// Package tui is the interactive catalogue browser.
package tui

import (
	"context"
	"fmt"

	"github.com/DonovanMods/starmod/internal/core"
	"github.com/DonovanMods/starmod/internal/domain"
	"github.com/DonovanMods/starmod/internal/tui/views"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ViewType represents different screens in the TUI
type ViewType int

const (
	ViewCatalogue ViewType = iota
	ViewConflicts
)

// Backend is what the browser needs from the mod manager
type Backend interface {
	Mods() []*domain.Mod
	Conflicts() *core.Conflicts
	Toggle(ctx context.Context, idx int) error
	SwapPriority(ctx context.Context, i, j int) error
}

// opDoneMsg reports the end of a deployment started from the browser
type opDoneMsg struct {
	status string
	focus  int // catalogue rank to select afterwards, -1 to keep
	err    error
}

// App is the main TUI application model
type App struct {
	backend     Backend
	keys        KeyMap
	help        help.Model
	currentView ViewType
	catalogue   views.Catalogue
	conflicts   views.Conflicts
	busy        bool
	status      string
	err         error
	width       int
	height      int
}

// NewApp creates a new TUI application
func NewApp(backend Backend) App {
	a := App{
		backend:     backend,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		currentView: ViewCatalogue,
		width:       80,
		height:      24,
	}
	a.catalogue = views.NewCatalogue(a.rows())
	return a
}

// CurrentView returns the current view type
func (a App) CurrentView() ViewType {
	return a.currentView
}

// Catalogue returns the list view
func (a App) Catalogue() views.Catalogue {
	return a.catalogue
}

// Err returns the error shown inline, if any
func (a App) Err() error {
	return a.err
}

// Busy reports whether a deployment is running
func (a App) Busy() bool {
	return a.busy
}

func (a App) rows() []views.ModRow {
	if a.backend == nil {
		return nil
	}
	mods := a.backend.Mods()
	conflicts := a.backend.Conflicts()
	rows := make([]views.ModRow, len(mods))
	for i, m := range mods {
		rows[i] = views.ModRow{
			Index:    i,
			Name:     m.Name(),
			Kind:     m.Kind.String(),
			Version:  m.Version,
			Priority: m.Priority,
			Enabled:  m.IsEnabled(),
			Tag:      conflicts.Tag(m),
		}
	}
	return rows
}

// Init implements tea.Model
func (a App) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		a.catalogue.SetSize(msg.Width, msg.Height)
		var cmd tea.Cmd
		if a.currentView == ViewConflicts {
			var m tea.Model
			m, cmd = a.conflicts.Update(msg)
			a.conflicts = m.(views.Conflicts)
		}
		return a, cmd

	case opDoneMsg:
		a.busy = false
		a.err = msg.err
		a.status = msg.status
		a.catalogue.SetRows(a.rows())
		if msg.focus >= 0 {
			a.catalogue.SelectIndex(msg.focus)
		}
		return a, nil
	}

	return a.updateCurrentView(msg)
}

func (a App) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.catalogue.Filtering() {
		switch msg.Type {
		case tea.KeyEnter:
			a.catalogue.StopFilter(false)
			return a, nil
		case tea.KeyEsc:
			a.catalogue.StopFilter(true)
			return a, nil
		case tea.KeyCtrlC:
			return a, tea.Quit
		}
		return a.updateCurrentView(msg)
	}

	if key.Matches(msg, a.keys.Quit) {
		return a, tea.Quit
	}
	if key.Matches(msg, a.keys.Help) {
		a.help.ShowAll = !a.help.ShowAll
		return a, nil
	}
	if a.busy {
		return a, nil
	}
	a.err = nil

	if a.currentView == ViewConflicts {
		if key.Matches(msg, a.keys.Back, a.keys.Conflicts) {
			a.currentView = ViewCatalogue
			return a, nil
		}
		return a.updateCurrentView(msg)
	}

	switch {
	case key.Matches(msg, a.keys.Up):
		a.catalogue.Up()
	case key.Matches(msg, a.keys.Down):
		a.catalogue.Down()
	case key.Matches(msg, a.keys.Top):
		a.catalogue.Top()
	case key.Matches(msg, a.keys.Bottom):
		a.catalogue.Bottom()
	case key.Matches(msg, a.keys.Filter):
		return a, a.catalogue.StartFilter()
	case key.Matches(msg, a.keys.Back):
		a.catalogue.StopFilter(true)
	case key.Matches(msg, a.keys.Toggle):
		return a.toggle()
	case key.Matches(msg, a.keys.MoveUp):
		return a.swap(-1)
	case key.Matches(msg, a.keys.MoveDown):
		return a.swap(1)
	case key.Matches(msg, a.keys.Conflicts):
		return a.showConflicts()
	}
	return a, nil
}

func (a App) toggle() (tea.Model, tea.Cmd) {
	row, ok := a.catalogue.Selected()
	if !ok || a.backend == nil {
		return a, nil
	}
	a.busy = true
	a.status = ""
	backend := a.backend
	return a, func() tea.Msg {
		err := backend.Toggle(context.Background(), row.Index)
		verb := "Enabled"
		if row.Enabled {
			verb = "Disabled"
		}
		return opDoneMsg{status: fmt.Sprintf("%s %s", verb, row.Name), focus: -1, err: err}
	}
}

// swap exchanges the selected mod with its neighbour in rank order
func (a App) swap(dir int) (tea.Model, tea.Cmd) {
	row, ok := a.catalogue.Selected()
	if !ok || a.backend == nil {
		return a, nil
	}
	other := row.Index + dir
	if other < 0 || other >= a.catalogue.Len() {
		return a, nil
	}
	a.busy = true
	a.status = ""
	backend := a.backend
	return a, func() tea.Msg {
		err := backend.SwapPriority(context.Background(), row.Index, other)
		return opDoneMsg{status: fmt.Sprintf("Moved %s to rank %d", row.Name, other), focus: other, err: err}
	}
}

func (a App) showConflicts() (tea.Model, tea.Cmd) {
	row, ok := a.catalogue.Selected()
	if !ok || a.backend == nil {
		return a, nil
	}
	mod := a.backend.Mods()[row.Index]
	c := a.backend.Conflicts()

	detail := views.ConflictDetail{Mod: mod.Name(), BareName: mod.BareName, Tag: c.Tag(mod)}
	if mc := c.ByMod[mod.BareName]; mc != nil {
		detail.LosingTo = mc.LosingTo
		detail.WinningOver = mc.WinningOver
		for _, f := range mc.Files {
			detail.Files = append(detail.Files, views.FileConflict{Destination: f, Winner: c.Winner(f)})
		}
	}
	a.conflicts = views.NewConflicts(detail, a.width, a.height)
	a.currentView = ViewConflicts
	return a, nil
}

func (a App) updateCurrentView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		m   tea.Model
		cmd tea.Cmd
	)
	switch a.currentView {
	case ViewCatalogue:
		m, cmd = a.catalogue.Update(msg)
		a.catalogue = m.(views.Catalogue)
	case ViewConflicts:
		m, cmd = a.conflicts.Update(msg)
		a.conflicts = m.(views.Conflicts)
	}
	return a, cmd
}

// View implements tea.Model
func (a App) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205"))
	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	header := titleStyle.Render("starmod")
	header += infoStyle.Render(fmt.Sprintf("  %d mod(s)", a.catalogue.Len()))

	var content string
	switch a.currentView {
	case ViewConflicts:
		content = a.conflicts.View()
	default:
		content = a.catalogue.View()
	}

	statusLine := ""
	switch {
	case a.busy:
		statusLine = infoStyle.Render("Working...")
	case a.err != nil:
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		statusLine = errStyle.Render(fmt.Sprintf("Error: %v", a.err))
	case a.status != "":
		statusLine = infoStyle.Render(a.status)
	}

	footer := lipgloss.NewStyle().MarginTop(1).Render(a.help.View(a.keys))
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", header, content, statusLine, footer)
}

// serviceBackend drives the browser from a core.Service
type serviceBackend struct {
	svc *core.Service
}

func (b serviceBackend) Mods() []*domain.Mod {
	return b.svc.Catalogue().Mods()
}

func (b serviceBackend) Conflicts() *core.Conflicts {
	return b.svc.Conflicts()
}

func (b serviceBackend) Toggle(ctx context.Context, idx int) error {
	cat := b.svc.Catalogue()
	if idx < 0 || idx >= cat.Len() {
		return fmt.Errorf("%w: index %d", domain.ErrModNotFound, idx)
	}
	mod := cat.At(idx)
	if mod.IsEnabled() {
		return b.svc.Disable(ctx, mod)
	}
	return b.svc.Enable(ctx, mod, nil)
}

func (b serviceBackend) SwapPriority(ctx context.Context, i, j int) error {
	return b.svc.SwapPriority(ctx, i, j)
}

// Run starts the TUI application over svc
func Run(svc *core.Service) error {
	app := NewApp(serviceBackend{svc: svc})
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
