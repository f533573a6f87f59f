// Package conversation owns the chat transcript and the bounded history
// window sent to the backend for context.
//
// Two sequences live here and they are deliberately different things:
//   - the transcript ([]Message): everything shown to the user, including
//     system notices, append-only;
//   - the history window ([]HistoryEntry): the last few human/ai turns,
//     and nothing else, shipped verbatim with every question.
package conversation

import (
	"errors"
	"strings"

	"github.com/docchat/docchat/internal/log"
)

// Transcript message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// History entry roles as the backend expects them.
const (
	HistoryHuman = "human"
	HistoryAI    = "ai"
)

// HistoryWindow is the maximum number of history entries retained and
// sent to the backend. Oldest entries are dropped first.
const HistoryWindow = 5

// maxMessages bounds the transcript to prevent unbounded growth.
const maxMessages = 500

// ErrEmptyInput indicates a user message was blank after trimming.
// Callers must not issue a backend call when they receive it.
var ErrEmptyInput = errors.New("empty input")

// Message is one transcript entry. Immutable once appended; ordering is
// append order.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
	Rich    bool // content passed through the rich-text renderer
}

// HistoryEntry is one entry of the trimmed context window. Only user and
// assistant turns are projected here, never system notices.
type HistoryEntry struct {
	Role    string `json:"role"` // "human" or "ai"
	Content string `json:"content"`
}

// Renderer converts rich text (markdown) into its display form. The
// conversation store treats it as an external collaborator: a rendering
// failure falls back to the raw text and is never surfaced to the user.
type Renderer interface {
	Render(text string) (string, error)
}

// Store owns the transcript and the history window. It is not safe for
// concurrent use; all mutation happens on the UI event loop.
type Store struct {
	messages []Message
	history  []HistoryEntry
	renderer Renderer // may be nil (plain-text degradation)
	onAppend func()   // scroll-to-latest signal, may be nil
	logger   log.Logger
}

// New creates a conversation store. renderer may be nil, in which case
// rich messages are stored as-is.
func New(renderer Renderer, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{renderer: renderer, logger: logger}
}

// OnAppend registers the scroll-to-latest notification fired after every
// transcript append.
func (s *Store) OnAppend(fn func()) {
	s.onAppend = fn
}

// AppendUserMessage appends a user-role message. Returns ErrEmptyInput
// when text is blank after trimming; nothing is appended in that case.
func (s *Store) AppendUserMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	s.append(Message{Role: RoleUser, Content: text})
	return nil
}

// AppendAssistantMessage appends an assistant-role message. When rich,
// content is run through the renderer before storage; if rendering
// fails the raw text is stored instead.
func (s *Store) AppendAssistantMessage(text string, rich bool) {
	content := text
	if rich && s.renderer != nil {
		rendered, err := s.renderer.Render(text)
		if err != nil {
			s.logger.Warn("rich text rendering failed, storing raw text", "error", err)
		} else {
			content = rendered
		}
	}
	s.append(Message{Role: RoleAssistant, Content: content, Rich: rich})
}

// AppendSystemMessage appends an informational system-role message.
// System messages are never projected into the history window.
func (s *Store) AppendSystemMessage(text string) {
	s.append(Message{Role: RoleSystem, Content: text})
}

// RecordExchange appends one human and one ai entry to the history
// window, then truncates to the last HistoryWindow entries preserving
// order.
func (s *Store) RecordExchange(userText, assistantText string) {
	s.history = append(s.history,
		HistoryEntry{Role: HistoryHuman, Content: userText},
		HistoryEntry{Role: HistoryAI, Content: assistantText},
	)
	if len(s.history) > HistoryWindow {
		s.history = s.history[len(s.history)-HistoryWindow:]
	}
}

// History returns a snapshot of the history window. This is the entire
// context the backend receives on an ask-question call.
func (s *Store) History() []HistoryEntry {
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Messages returns a snapshot of the transcript.
func (s *Store) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of transcript messages.
func (s *Store) Len() int {
	return len(s.messages)
}

// Clear empties the transcript. The history window is kept: clearing the
// screen does not erase the backend's conversational context.
func (s *Store) Clear() {
	s.messages = nil
	s.notify()
}

func (s *Store) append(msg Message) {
	s.messages = append(s.messages, msg)
	if len(s.messages) > maxMessages {
		s.messages = s.messages[len(s.messages)-maxMessages:]
	}
	s.notify()
}

func (s *Store) notify() {
	if s.onAppend != nil {
		s.onAppend()
	}
}
