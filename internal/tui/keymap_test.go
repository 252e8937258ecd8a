package tui

import (
	"testing"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
)

// TestKeyMapBindings verifies the default bindings match their keys.
func TestKeyMapBindings(t *testing.T) {
	k := newKeyMap()
	cases := []struct {
		name    string
		binding key.Binding
		msg     tea.KeyPressMsg
	}{
		{"quit", k.quit, keyRune('q')},
		{"reload", k.reload, keyRune('r')},
		{"help", k.toggleHelp, keyRune('?')},
		{"up", k.moveUp, tea.KeyPressMsg{Code: tea.KeyUp}},
		{"down", k.moveDown, keyRune('j')},
		{"details", k.details, tea.KeyPressMsg{Code: tea.KeyEnter}},
		{"back", k.back, tea.KeyPressMsg{Code: tea.KeyEscape}},
		{"start", k.start, keyRune('s')},
		{"complete", k.complete, keyRune('c')},
		{"cancel", k.cancel, keyRune('x')},
		{"copy", k.copyID, keyRune('y')},
	}
	for _, tc := range cases {
		if !key.Matches(tc.msg, tc.binding) {
			t.Fatalf("%s binding did not match %q", tc.name, tc.msg.String())
		}
	}
	if key.Matches(keyRune('c'), k.cancel) {
		t.Fatal("complete key must not match cancel binding")
	}
}

// TestKeyMapHelp verifies short and full help expose every action.
func TestKeyMapHelp(t *testing.T) {
	k := newKeyMap()
	if got := len(k.ShortHelp()); got != 6 {
		t.Fatalf("expected 6 short help bindings, got %d", got)
	}
	total := 0
	for _, group := range k.FullHelp() {
		total += len(group)
	}
	if total != 11 {
		t.Fatalf("expected 11 full help bindings, got %d", total)
	}
}
