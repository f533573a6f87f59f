package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/docchat/docchat/internal/coordinator"
)

// Slash command constants.
const (
	cmdHelp   = "/help"
	cmdClear  = "/clear"
	cmdUpload = "/upload"
	cmdLogout = "/logout"
	cmdExit   = "/exit"
	cmdQuit   = "/quit"
)

// keyMap holds key bindings for help bar display.
type keyMap struct {
	Submit     key.Binding
	NewLine    key.Binding
	History    key.Binding
	Clear      key.Binding
	Quit       key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewLine:    key.NewBinding(key.WithKeys("shift+enter"), key.WithHelp("s+enter", "newline")),
		History:    key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "history")),
		Clear:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "clear")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "exit")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	}
}

func (t *TUI) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	k := msg.Key()

	if k.Mod&tea.ModCtrl != 0 {
		switch k.Code {
		case 'c':
			return t.handleCtrlC()
		case 'd':
			return t, t.cleanup()
		}
	}

	switch k.Code {
	case tea.KeyEnter:
		// Enter without Shift submits; Shift+Enter falls through to the
		// textarea as a newline. Submission while busy is a no-op; the
		// in-flight operation runs to completion.
		if k.Mod&tea.ModShift == 0 {
			return t.handleSubmit()
		}

	case tea.KeyUp:
		if t.coord.State() == coordinator.Idle && t.input.Line() == 0 {
			return t.navigateHistory(-1)
		}

	case tea.KeyDown:
		if t.coord.State() == coordinator.Idle && t.input.Line() == t.input.LineCount()-1 {
			return t.navigateHistory(1)
		}

	case tea.KeyPgUp:
		t.viewport.PageUp()
		return t, nil

	case tea.KeyPgDown:
		t.viewport.PageDown()
		return t, nil
	}

	// Typing is always allowed, even while a call is in flight; only
	// submission is gated.
	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return t, cmd
}

func (t *TUI) handleCtrlC() (tea.Model, tea.Cmd) {
	now := time.Now()

	// Double Ctrl+C within 1 second = quit.
	if now.Sub(t.lastCtrlC) < time.Second {
		return t, t.cleanup()
	}
	t.lastCtrlC = now

	t.input.Reset()
	return t, nil
}

func (t *TUI) handleSubmit() (tea.Model, tea.Cmd) {
	query := strings.TrimSpace(t.input.Value())
	if query == "" {
		return t, nil
	}

	if strings.HasPrefix(query, "/") {
		return t.handleSlashCommand(query)
	}

	text, ok := t.coord.StartSend(query)
	if !ok {
		// Busy or blocked unauthenticated: the "disabled button" model.
		return t, nil
	}

	t.rememberInput(query)
	t.input.Reset()
	t.syncViewport()

	return t, tea.Batch(t.spinner.Tick, t.sendCmd(text))
}

func (t *TUI) handleSlashCommand(cmd string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(cmd, " ")
	arg = strings.TrimSpace(arg)

	// Mutating commands observe the same busy no-op as sends: a
	// credential or transcript must not change under an in-flight call.
	busy := t.coord.State() != coordinator.Idle

	switch name {
	case cmdHelp:
		t.store.AppendSystemMessage("Commands: " + cmdHelp + ", " + cmdUpload + " <file.pdf>, " +
			cmdClear + ", " + cmdLogout + ", " + cmdExit +
			"\nShortcuts:\n  Enter: send message\n  Shift+Enter: new line\n  Ctrl+C: clear input (twice to exit)\n  Ctrl+D: exit\n  Up/Down: history\n  PgUp/PgDn: scroll")

	case cmdClear:
		if busy {
			return t, nil
		}
		t.store.Clear()

	case cmdUpload:
		return t.handleUpload(arg)

	case cmdLogout:
		if busy {
			return t, nil
		}
		t.coord.Logout()

	case cmdExit, cmdQuit:
		return t, t.cleanup()

	default:
		t.store.AppendSystemMessage("Unknown command: " + name)
	}

	t.input.Reset()
	t.syncViewport()
	return t, nil
}

// handleUpload starts the upload lifecycle for the document at path.
func (t *TUI) handleUpload(path string) (tea.Model, tea.Cmd) {
	t.input.Reset()

	if path == "" {
		t.store.AppendSystemMessage("Usage: " + cmdUpload + " <file.pdf>")
		t.syncViewport()
		return t, nil
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		t.store.AppendSystemMessage(fmt.Sprintf("Cannot read %s", path))
		t.syncViewport()
		return t, nil
	}

	filename := filepath.Base(path)
	if !t.coord.StartUpload(filename) {
		return t, nil
	}
	t.uploadingFile = filename
	t.syncViewport()

	return t, tea.Batch(t.spinner.Tick, t.uploadCmd(path, filename))
}

func (t *TUI) rememberInput(query string) {
	t.history = append(t.history, query)
	if len(t.history) > maxHistory {
		t.history = t.history[len(t.history)-maxHistory:]
	}
	t.historyIdx = len(t.history)
}

func (t *TUI) navigateHistory(delta int) (tea.Model, tea.Cmd) {
	if len(t.history) == 0 {
		return t, nil
	}

	t.historyIdx += delta

	if t.historyIdx < 0 {
		t.historyIdx = 0
	}
	if t.historyIdx > len(t.history) {
		t.historyIdx = len(t.history)
	}

	if t.historyIdx == len(t.history) {
		t.input.SetValue("")
	} else {
		t.input.SetValue(t.history[t.historyIdx])
		t.input.CursorEnd()
	}

	return t, nil
}

// cleanup cancels in-flight commands and returns the quit command.
func (t *TUI) cleanup() tea.Cmd {
	if t.ctxCancel != nil {
		t.ctxCancel()
		t.ctxCancel = nil
	}
	return tea.Quit
}
