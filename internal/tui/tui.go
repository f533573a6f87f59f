// Package tui provides the Bubble Tea terminal interface for docchat.
//
// The event loop is the concurrency model: every state transition runs
// in Update in response to a key press or a network-completion message,
// so the coordinator and conversation store are only ever touched from
// one goroutine. Network legs run inside tea commands and report back
// as messages.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/textarea"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/docchat/docchat/internal/conversation"
	"github.com/docchat/docchat/internal/coordinator"
)

// maxHistory bounds the input history ring.
const maxHistory = 100

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // separator above and below the input
	helpLines      = 1 // status/help bar height
	promptLines    = 1 // prompt prefix line
	minViewport    = 3 // minimum viewport height
)

// TUI is the Bubble Tea model for the docchat terminal interface.
type TUI struct {
	// Input (textarea for multi-line support, Shift+Enter for newline)
	input      textarea.Model
	history    []string
	historyIdx int

	lastCtrlC time.Time

	// Output
	spinner spinner.Model
	viewBuf strings.Builder // reusable buffer for View()

	// Scrollable transcript viewport
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// Dependencies. The coordinator owns the busy flag; the store owns
	// the transcript. The TUI consumes both read-only outside the
	// Start/Finish handlers it invokes.
	coord *coordinator.Coordinator
	store *conversation.Store

	// markdown is the renderer the store renders replies through; held
	// here so resizes re-target its word wrap.
	markdown *MarkdownRenderer

	// Greeting from the validated identity; empty when anonymous.
	userName string

	// uploadingFile names the document in flight while Uploading.
	uploadingFile string

	// needScroll is set by the store's append signal and consumed on
	// the next viewport sync.
	needScroll bool

	ctx       context.Context
	ctxCancel context.CancelFunc

	width  int
	height int

	styles Styles
}

// New creates a TUI model. ctx must be the same context passed to
// tea.WithContext so exit cancels in-flight commands. markdown may be
// nil when replies are kept as raw text.
func New(ctx context.Context, coord *coordinator.Coordinator, store *conversation.Store, markdown *MarkdownRenderer, userName string) (*TUI, error) {
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}
	if coord == nil {
		return nil, errors.New("tui.New: coordinator is required")
	}
	if store == nil {
		return nil, errors.New("tui.New: conversation store is required")
	}

	ctx, cancel := context.WithCancel(ctx)

	// Enter submits, Shift+Enter adds a newline.
	ta := textarea.New()
	ta.Placeholder = "Ask about your documents..."
	ta.SetHeight(1)
	ta.SetWidth(120) // updated on WindowSizeMsg
	ta.MaxWidth = 0
	ta.ShowLineNumbers = false

	cleanStyle := textarea.StyleState{
		Base:        lipgloss.NewStyle(),
		Text:        lipgloss.NewStyle(),
		Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Prompt:      lipgloss.NewStyle(),
	}
	ta.SetStyles(textarea.Styles{Focused: cleanStyle, Blurred: cleanStyle})
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	// Keyboard handling is routed explicitly in handleKey; disable the
	// viewport's own bindings to avoid conflicts with the textarea.
	vp := viewport.New(viewport.WithWidth(80), viewport.WithHeight(20))
	vp.MouseWheelEnabled = true
	vp.SoftWrap = true
	vp.KeyMap = viewport.KeyMap{}

	t := &TUI{
		coord:     coord,
		store:     store,
		markdown:  markdown,
		userName:  userName,
		ctx:       ctx,
		ctxCancel: cancel,
		input:     ta,
		spinner:   sp,
		viewport:  vp,
		help:      help.New(),
		keys:      newKeyMap(),
		styles:    DefaultStyles(),
		history:   make([]string, 0, maxHistory),
		width:     80,
	}

	// Every transcript append scrolls the viewport to the latest entry
	// on the next sync.
	store.OnAppend(func() { t.needScroll = true })

	return t, nil
}

// Init implements tea.Model.
func (t *TUI) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		t.spinner.Tick,
		t.input.Focus(),
	)
}

// Update implements tea.Model.
func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return t.handleKey(msg)

	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height

		inputHeight := t.input.Height() + promptLines
		fixedHeight := separatorLines + inputHeight + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		t.viewport.SetWidth(msg.Width)
		t.viewport.SetHeight(vpHeight)
		t.input.SetWidth(msg.Width - 4) // room for "> " prompt
		t.help.SetWidth(msg.Width)
		t.markdown.UpdateWidth(msg.Width)

		t.syncViewport()
		return t, nil

	case tea.MouseWheelMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		t.spinner, cmd = t.spinner.Update(msg)
		if t.coord.State() != coordinator.Idle {
			t.syncViewport()
		}
		return t, cmd

	case sendSettledMsg:
		t.coord.FinishSend(msg.userText, msg.reply, msg.err)
		t.syncViewport()
		return t, t.input.Focus()

	case uploadSettledMsg:
		t.coord.FinishUpload(msg.filename, msg.err)
		t.uploadingFile = ""
		t.syncViewport()
		return t, t.input.Focus()
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

// View implements tea.Model.
func (t *TUI) View() tea.View {
	t.viewBuf.Reset()

	_, _ = t.viewBuf.WriteString(t.viewport.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	// Input is always shown and always accepts typing; submission is
	// what the busy flag disables.
	_, _ = t.viewBuf.WriteString(t.styles.Prompt.Render("> "))
	_, _ = t.viewBuf.WriteString(t.input.View())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderSeparator())
	_, _ = t.viewBuf.WriteString("\n")

	_, _ = t.viewBuf.WriteString(t.renderStatusBar())

	v := tea.NewView(t.viewBuf.String())
	v.AltScreen = true
	return v
}

// syncViewport rebuilds the viewport content from the store and busy
// state, honoring any pending scroll-to-latest signal.
func (t *TUI) syncViewport() {
	t.rebuildViewportContent()
	if t.needScroll {
		t.viewport.GotoBottom()
		t.needScroll = false
	}
}

// rebuildViewportContent reconstructs the transcript view.
func (t *TUI) rebuildViewportContent() {
	var b strings.Builder

	_, _ = b.WriteString(t.styles.RenderBanner())
	_, _ = b.WriteString("\n")
	if t.userName != "" {
		_, _ = b.WriteString(t.styles.System.Render("Welcome, " + t.userName + "!"))
		_, _ = b.WriteString("\n\n")
	}
	_, _ = b.WriteString(t.styles.RenderWelcomeTips())
	_, _ = b.WriteString("\n")

	for _, msg := range t.store.Messages() {
		switch msg.Role {
		case conversation.RoleUser:
			_, _ = b.WriteString(t.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Content)
		case conversation.RoleAssistant:
			_, _ = b.WriteString(t.styles.Assistant.Render("Assistant> "))
			_, _ = b.WriteString(msg.Content)
		case conversation.RoleSystem:
			_, _ = b.WriteString(t.styles.System.Render(msg.Content))
		}
		_, _ = b.WriteString("\n\n")
	}

	switch t.coord.State() {
	case coordinator.Sending:
		_, _ = b.WriteString(t.spinner.View())
		_, _ = b.WriteString(" Thinking...\n\n")
	case coordinator.Uploading:
		_, _ = b.WriteString(t.spinner.View())
		_, _ = b.WriteString(" Uploading " + t.uploadingFile + "...\n\n")
	}

	t.viewport.SetContent(b.String())
}

// renderSeparator returns a horizontal line separator.
func (t *TUI) renderSeparator() string {
	width := t.width
	if width <= 0 {
		width = 80
	}
	return t.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns the upload status plus state-appropriate
// keyboard shortcuts.
func (t *TUI) renderStatusBar() string {
	var bindings []key.Binding
	switch t.coord.State() {
	case coordinator.Idle:
		bindings = []key.Binding{
			t.keys.Submit, t.keys.NewLine, t.keys.History,
			t.keys.Clear, t.keys.Quit, t.keys.ScrollUp,
		}
	default:
		bindings = []key.Binding{t.keys.ScrollUp, t.keys.ScrollDown}
	}

	helpView := t.help.ShortHelpView(bindings)
	if status := t.coord.UploadStatus(); status != "" {
		return t.styles.StatusBar.Render(status) + "  " + helpView
	}
	return helpView
}
