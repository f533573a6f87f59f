package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/glamour"
)

// MarkdownRenderer converts assistant markdown into styled terminal
// output. It implements conversation.Renderer, so replies are rendered
// once at append time; the store falls back to raw text when Render
// fails.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	width    int // cached to avoid needless recreation
}

// errNoRenderer is returned when glamour initialization failed and the
// renderer operates in degraded mode.
var errNoRenderer = errors.New("markdown renderer unavailable")

// NewMarkdownRenderer creates a renderer with terminal-appropriate
// styling. A nil receiver or failed initialization degrades to raw
// text via the Render error path.
func NewMarkdownRenderer(width int) *MarkdownRenderer {
	if width <= 0 {
		width = 80 // default terminal width
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // detect light/dark terminal
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &MarkdownRenderer{width: width}
	}

	return &MarkdownRenderer{renderer: r, width: width}
}

// UpdateWidth recreates the underlying renderer when the width actually
// changed. Already-stored transcript entries keep their original
// rendering; the viewport's soft wrap handles reflow.
func (m *MarkdownRenderer) UpdateWidth(width int) bool {
	if m == nil || width <= 0 || m.width == width {
		return false
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		// Keep the existing renderer on error.
		return false
	}

	m.renderer = r
	m.width = width
	return true
}

// Render implements conversation.Renderer.
func (m *MarkdownRenderer) Render(text string) (string, error) {
	if m == nil || m.renderer == nil {
		return "", errNoRenderer
	}

	rendered, err := m.renderer.Render(text)
	if err != nil {
		return "", err
	}

	// Trim trailing newlines added by glamour.
	return strings.TrimSuffix(rendered, "\n"), nil
}
