package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board bindings.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	details    key.Binding
	back       key.Binding
	start      key.Binding
	complete   key.Binding
	cancel     key.Binding
	copyID     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		details:    key.NewBinding(key.WithKeys("enter", "i"), key.WithHelp("enter", "details")),
		back:       key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		start:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		complete:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "complete")),
		cancel:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "cancel task")),
		copyID:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.details, k.start, k.complete, k.cancel, k.toggleHelp, k.quit}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.details, k.back},
		{k.start, k.complete, k.cancel, k.copyID},
		{k.reload, k.toggleHelp, k.quit},
	}
}
