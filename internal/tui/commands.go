package tui

import (
	"os"

	tea "charm.land/bubbletea/v2"
)

// sendSettledMsg reports the network leg of a send back to the event
// loop. The coordinator settles it in Update.
type sendSettledMsg struct {
	userText string
	reply    string
	err      error
}

// uploadSettledMsg reports the network leg of an upload.
type uploadSettledMsg struct {
	filename string
	err      error
}

// sendCmd runs the ask-question network leg. State mutation happens
// only when the settled message reaches Update.
func (t *TUI) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := t.coord.PerformSend(t.ctx, text)
		return sendSettledMsg{userText: text, reply: reply, err: err}
	}
}

// uploadCmd opens the document and runs the add-data network leg.
func (t *TUI) uploadCmd(path, filename string) tea.Cmd {
	return func() tea.Msg {
		f, err := os.Open(path)
		if err != nil {
			return uploadSettledMsg{filename: filename, err: err}
		}
		defer f.Close()

		_, err = t.coord.PerformUpload(t.ctx, filename, f)
		return uploadSettledMsg{filename: filename, err: err}
	}
}
