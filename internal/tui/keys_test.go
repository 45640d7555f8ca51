package tui_test

import (
	"testing"

	"github.com/DonovanMods/starmod/internal/tui"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestKeyMap_VimMovement(t *testing.T) {
	km := tui.DefaultKeyMap()

	assert.True(t, key.Matches(runeKey('k'), km.Up))
	assert.True(t, key.Matches(runeKey('j'), km.Down))
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyUp}, km.Up))
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyDown}, km.Down))
}

func TestKeyMap_ReorderIsShifted(t *testing.T) {
	km := tui.DefaultKeyMap()

	assert.True(t, key.Matches(runeKey('K'), km.MoveUp))
	assert.True(t, key.Matches(runeKey('J'), km.MoveDown))
	assert.False(t, key.Matches(runeKey('k'), km.MoveUp))
	assert.False(t, key.Matches(runeKey('J'), km.Down))
}

func TestKeyMap_Actions(t *testing.T) {
	km := tui.DefaultKeyMap()

	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, km.Toggle))
	assert.True(t, key.Matches(runeKey('c'), km.Conflicts))
	assert.True(t, key.Matches(runeKey('q'), km.Quit))
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyCtrlC}, km.Quit))
	assert.True(t, key.Matches(tea.KeyMsg{Type: tea.KeyEsc}, km.Back))
}

func TestKeyMap_Help(t *testing.T) {
	km := tui.DefaultKeyMap()

	assert.NotEmpty(t, km.ShortHelp())
	for _, group := range km.FullHelp() {
		for _, b := range group {
			assert.NotEmpty(t, b.Help().Key)
			assert.NotEmpty(t, b.Help().Desc)
		}
	}
}
