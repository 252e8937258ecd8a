package tui

import "strings"

// Option configures a Model.
type Option func(*Model)

// WithClipboard replaces the clipboard writer used by the copy-id binding.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

// WithMarkdownStyle picks the glamour standard style for task descriptions.
func WithMarkdownStyle(style string) Option {
	return func(m *Model) {
		if style = strings.TrimSpace(style); style != "" {
			m.markdown.style = style
		}
	}
}
