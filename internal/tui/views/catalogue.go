package views

import (
	"fmt"
	"strings"

	"github.com/DonovanMods/starmod/internal/domain"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
)

// ModRow is one catalogue entry as the browser shows it
type ModRow struct {
	Index    int // rank in the catalogue
	Name     string
	Kind     string
	Version  string
	Priority int
	Enabled  bool
	Tag      domain.Tag
}

// TagColors maps each conflict tag to its display colour
var TagColors = map[domain.Tag]lipgloss.Color{
	domain.TagEnabled:       lipgloss.Color("252"),
	domain.TagWinner:        lipgloss.Color("42"),
	domain.TagLoser:         lipgloss.Color("214"),
	domain.TagCompleteLoser: lipgloss.Color("196"),
	domain.TagConflict:      lipgloss.Color("170"),
	domain.TagDisabled:      lipgloss.Color("241"),
}

// Catalogue is the ranked mod list with an optional fuzzy filter
type Catalogue struct {
	rows      []ModRow
	visible   []int // positions in rows that pass the filter
	cursor    int   // position in visible
	offset    int   // first visible line when scrolled
	filter    textinput.Model
	filtering bool
	width     int
	height    int
}

// NewCatalogue creates the list view over rows
func NewCatalogue(rows []ModRow) Catalogue {
	ti := textinput.New()
	ti.Placeholder = "filter by name"
	ti.Prompt = "/"
	ti.CharLimit = 100
	ti.Width = 40

	c := Catalogue{filter: ti, width: 80, height: 24}
	c.SetRows(rows)
	return c
}

// SetRows replaces the entries, keeping the cursor on the same rank when possible
func (c *Catalogue) SetRows(rows []ModRow) {
	keep := -1
	if row, ok := c.Selected(); ok {
		keep = row.Index
	}
	c.rows = rows
	c.applyFilter()
	if keep >= 0 {
		c.SelectIndex(keep)
	}
}

// SelectIndex moves the cursor to the row with the given catalogue rank
func (c *Catalogue) SelectIndex(idx int) {
	for pos, r := range c.visible {
		if c.rows[r].Index == idx {
			c.cursor = pos
			c.scroll()
			return
		}
	}
	c.clamp()
}

// Selected returns the row under the cursor
func (c Catalogue) Selected() (ModRow, bool) {
	if c.cursor < 0 || c.cursor >= len(c.visible) {
		return ModRow{}, false
	}
	return c.rows[c.visible[c.cursor]], true
}

// Cursor returns the cursor position among the visible rows
func (c Catalogue) Cursor() int {
	return c.cursor
}

// Len returns the number of rows, filtered or not
func (c Catalogue) Len() int {
	return len(c.rows)
}

// VisibleCount returns how many rows pass the filter
func (c Catalogue) VisibleCount() int {
	return len(c.visible)
}

// Filtering reports whether the filter input has focus
func (c Catalogue) Filtering() bool {
	return c.filtering
}

// FilterValue returns the current filter text
func (c Catalogue) FilterValue() string {
	return c.filter.Value()
}

// Up moves the cursor up, wrapping at the top
func (c *Catalogue) Up() {
	if len(c.visible) == 0 {
		return
	}
	c.cursor--
	if c.cursor < 0 {
		c.cursor = len(c.visible) - 1
	}
	c.scroll()
}

// Down moves the cursor down, wrapping at the bottom
func (c *Catalogue) Down() {
	if len(c.visible) == 0 {
		return
	}
	c.cursor++
	if c.cursor >= len(c.visible) {
		c.cursor = 0
	}
	c.scroll()
}

// Top moves the cursor to the first row
func (c *Catalogue) Top() {
	c.cursor = 0
	c.scroll()
}

// Bottom moves the cursor to the last row
func (c *Catalogue) Bottom() {
	c.cursor = max(len(c.visible)-1, 0)
	c.scroll()
}

// StartFilter focuses the filter input
func (c *Catalogue) StartFilter() tea.Cmd {
	c.filtering = true
	return c.filter.Focus()
}

// StopFilter leaves the filter input. clear drops the filter text as well.
func (c *Catalogue) StopFilter(clear bool) {
	c.filtering = false
	c.filter.Blur()
	if clear {
		c.filter.SetValue("")
		c.applyFilter()
	}
}

// SetSize records the terminal size available to the list
func (c *Catalogue) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.scroll()
}

// Init implements tea.Model
func (c Catalogue) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model. Keys only reach the view while filtering.
func (c Catalogue) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.SetSize(msg.Width, msg.Height)
		return c, nil
	}

	if !c.filtering {
		return c, nil
	}
	var cmd tea.Cmd
	before := c.filter.Value()
	c.filter, cmd = c.filter.Update(msg)
	if c.filter.Value() != before {
		c.applyFilter()
	}
	return c, cmd
}

func (c *Catalogue) applyFilter() {
	query := strings.TrimSpace(c.filter.Value())
	c.visible = make([]int, 0, len(c.rows))
	if query == "" {
		for i := range c.rows {
			c.visible = append(c.visible, i)
		}
		c.clamp()
		return
	}

	names := make([]string, len(c.rows))
	for i, r := range c.rows {
		names[i] = r.Name
	}
	// Keep rank order rather than score order so the list still reads as a load order
	matched := make(map[int]bool)
	for _, m := range fuzzy.Find(query, names) {
		matched[m.Index] = true
	}
	for i := range c.rows {
		if matched[i] {
			c.visible = append(c.visible, i)
		}
	}
	c.clamp()
}

func (c *Catalogue) clamp() {
	if c.cursor >= len(c.visible) {
		c.cursor = len(c.visible) - 1
	}
	if c.cursor < 0 {
		c.cursor = 0
	}
	c.scroll()
}

// listHeight is the number of rows that fit between header and footer
func (c Catalogue) listHeight() int {
	return max(c.height-8, 3)
}

func (c *Catalogue) scroll() {
	h := c.listHeight()
	if c.cursor < c.offset {
		c.offset = c.cursor
	}
	if c.cursor >= c.offset+h {
		c.offset = c.cursor - h + 1
	}
	if c.offset < 0 {
		c.offset = 0
	}
}

// View implements tea.Model
func (c Catalogue) View() string {
	infoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cursorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	var b strings.Builder
	if c.filtering || c.filter.Value() != "" {
		b.WriteString(c.filter.View() + "\n\n")
	}

	if len(c.rows) == 0 {
		b.WriteString(infoStyle.Render("No mods in the cache. Extract one with 'starmod extract <archive>'.") + "\n")
		return b.String()
	}
	if len(c.visible) == 0 {
		b.WriteString(infoStyle.Render("No mods match the filter.") + "\n")
		return b.String()
	}

	b.WriteString(infoStyle.Render(fmt.Sprintf("      %-4s %-3s %-5s %-8s %-10s %s", "#", "TAG", "PRIO", "KIND", "VERSION", "NAME")) + "\n")

	end := min(c.offset+c.listHeight(), len(c.visible))
	for pos := c.offset; pos < end; pos++ {
		r := c.rows[c.visible[pos]]
		check := "[ ]"
		if r.Enabled {
			check = "[x]"
		}
		line := fmt.Sprintf("%s %-4d %-3s %-5d %-8s %-10s %s",
			check, r.Index, r.Tag.Char(), r.Priority, r.Kind, truncate(r.Version, 10), r.Name)
		style := lipgloss.NewStyle().Foreground(TagColors[r.Tag])

		cursor := "  "
		if pos == c.cursor {
			cursor = cursorStyle.Render("▸ ")
			style = style.Bold(true)
		}
		b.WriteString(cursor + style.Render(truncate(line, max(c.width-2, 20))) + "\n")
	}

	if len(c.visible) > c.listHeight() {
		b.WriteString(infoStyle.Render(fmt.Sprintf("  %d-%d of %d", c.offset+1, end, len(c.visible))) + "\n")
	}
	return b.String()
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
