package tui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	"go.uber.org/goleak"

	"github.com/docchat/docchat/internal/auth"
	"github.com/docchat/docchat/internal/conversation"
	"github.com/docchat/docchat/internal/coordinator"
	"github.com/docchat/docchat/internal/log"
)

// goleakOptions filters persistent goroutines expected to outlive tests.
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*http2clientConnReadLoop).run"),
	}
}

// scriptedGateway returns fixed results without touching the network.
type scriptedGateway struct {
	reply string
	err   error
}

func (g *scriptedGateway) AskQuestion(context.Context, string, string, []conversation.HistoryEntry) (string, error) {
	return g.reply, g.err
}

func (g *scriptedGateway) UploadDocument(context.Context, string, string, io.Reader) (string, error) {
	return "", g.err
}

type openGate struct{}

func (openGate) Acquire(context.Context) (*auth.Credential, error) { return &auth.Credential{}, nil }
func (openGate) Current() *auth.Credential                         { return &auth.Credential{} }
func (openGate) Invalidate()                                       {}
func (openGate) Authorize(*http.Request)                           {}

// countingGate records Invalidate calls.
type countingGate struct{ invalidated int }

func (g *countingGate) Acquire(context.Context) (*auth.Credential, error) {
	return &auth.Credential{}, nil
}
func (g *countingGate) Current() *auth.Credential { return &auth.Credential{} }
func (g *countingGate) Invalidate()               { g.invalidated++ }
func (g *countingGate) Authorize(*http.Request)   {}

// newTestTUI wires a TUI against a scripted gateway.
func newTestTUI(t *testing.T, gw *scriptedGateway) (*TUI, *conversation.Store) {
	t.Helper()

	store := conversation.New(nil, log.NewNop())
	coord, err := coordinator.New(coordinator.Options{
		Store:   store,
		Gateway: gw,
		Gate:    openGate{},
		UserID:  "user-test",
		Logger:  log.NewNop(),
	})
	if err != nil {
		t.Fatalf("coordinator.New failed: %v", err)
	}

	ta := textarea.New()
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tui, err := New(ctx, coord, store, nil, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tui.input = ta
	return tui, store
}

func TestNew_Validation(t *testing.T) {
	store := conversation.New(nil, log.NewNop())
	coord, err := coordinator.New(coordinator.Options{
		Store:   store,
		Gateway: &scriptedGateway{},
		Gate:    openGate{},
		UserID:  "u",
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := New(nil, coord, store, nil, ""); err == nil { //nolint:staticcheck // testing nil context handling
		t.Error("expected error for nil context")
	}
	if _, err := New(context.Background(), nil, store, nil, ""); err == nil {
		t.Error("expected error for nil coordinator")
	}
	if _, err := New(context.Background(), coord, nil, nil, ""); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestTUI_Init(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tui, _ := newTestTUI(t, &scriptedGateway{})
	if tui.Init() == nil {
		t.Error("Init should return a command (blink + spinner tick)")
	}
}

func TestHandleSubmit_StartsSend(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tui, store := newTestTUI(t, &scriptedGateway{reply: "Hi there"})
	tui.input.SetValue("Hello")

	model, cmd := tui.handleSubmit()
	result := model.(*TUI)

	if result.coord.State() != coordinator.Sending {
		t.Errorf("state = %v, want Sending", result.coord.State())
	}
	if cmd == nil {
		t.Fatal("expected a send command")
	}

	// Optimistic append before the network call resolves.
	msgs := store.Messages()
	if len(msgs) != 1 || msgs[0].Content != "Hello" {
		t.Errorf("unexpected transcript: %+v", msgs)
	}
	if result.input.Value() != "" {
		t.Error("input should be cleared after submit")
	}
}

func TestHandleSubmit_BlankIsNoOp(t *testing.T) {
	tui, store := newTestTUI(t, &scriptedGateway{})
	tui.input.SetValue("   ")

	_, cmd := tui.handleSubmit()
	if cmd != nil {
		t.Error("blank submit must not produce a command")
	}
	if store.Len() != 0 {
		t.Error("blank submit must not append a message")
	}
}

func TestHandleSubmit_BusyIsNoOp(t *testing.T) {
	tui, store := newTestTUI(t, &scriptedGateway{reply: "ok"})

	tui.input.SetValue("first")
	if _, cmd := tui.handleSubmit(); cmd == nil {
		t.Fatal("first submit should start")
	}

	tui.input.SetValue("second")
	_, cmd := tui.handleSubmit()
	if cmd != nil {
		t.Error("submit while Sending must be a no-op")
	}
	if store.Len() != 1 {
		t.Errorf("transcript grew during busy submit: %d messages", store.Len())
	}
}

func TestUpdate_SendSettled(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tui, store := newTestTUI(t, &scriptedGateway{reply: "Hi there"})
	tui.input.SetValue("Hello")
	tui.handleSubmit()

	model, _ := tui.Update(sendSettledMsg{userText: "Hello", reply: "Hi there"})
	result := model.(*TUI)

	if result.coord.State() != coordinator.Idle {
		t.Errorf("state = %v, want Idle after settle", result.coord.State())
	}

	msgs := store.Messages()
	if len(msgs) != 2 || msgs[1].Role != conversation.RoleAssistant {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}
	if len(store.History()) != 2 {
		t.Error("settled exchange must enter the history window")
	}
}

func TestUpdate_SendSettledWithError(t *testing.T) {
	tui, store := newTestTUI(t, &scriptedGateway{})
	tui.input.SetValue("Hello")
	tui.handleSubmit()

	tui.Update(sendSettledMsg{userText: "Hello", err: errors.New("boom")})

	msgs := store.Messages()
	if msgs[len(msgs)-1].Content != coordinator.FailureReply {
		t.Errorf("expected fixed failure reply, got %q", msgs[len(msgs)-1].Content)
	}
	if len(store.History()) != 0 {
		t.Error("failed sends must not enter history")
	}
}

func TestUpdate_UploadSettled(t *testing.T) {
	tui, store := newTestTUI(t, &scriptedGateway{})

	if !tui.coord.StartUpload("report.pdf") {
		t.Fatal("upload should start")
	}
	tui.uploadingFile = "report.pdf"

	model, _ := tui.Update(uploadSettledMsg{filename: "report.pdf"})
	result := model.(*TUI)

	if result.coord.State() != coordinator.Idle {
		t.Error("expected Idle after upload settles")
	}
	if result.uploadingFile != "" {
		t.Error("uploadingFile should be cleared")
	}

	msgs := store.Messages()
	if len(msgs) != 1 || msgs[0].Content != "Uploaded report.pdf" {
		t.Errorf("unexpected transcript: %+v", msgs)
	}
}

func TestHandleSlashCommands(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tests := []struct {
		name     string
		cmd      string
		wantExit bool
		wantMsgs int // messages added on top of the pre-seeded one
	}{
		{"help", "/help", false, 1},
		{"clear", "/clear", false, 0},
		{"upload without arg", "/upload", false, 1},
		{"logout", "/logout", false, 1},
		{"exit", "/exit", true, 0},
		{"quit", "/quit", true, 0},
		{"unknown", "/frobnicate", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tui, store := newTestTUI(t, &scriptedGateway{})
			store.AppendSystemMessage("seeded")

			_, cmd := tui.handleSlashCommand(tt.cmd)

			if tt.wantExit {
				if cmd == nil {
					t.Error("expected quit command")
				}
				return
			}
			if tt.cmd == "/clear" {
				if store.Len() != 0 {
					t.Error("/clear should empty the transcript")
				}
				return
			}
			if store.Len() != 1+tt.wantMsgs {
				t.Errorf("expected %d messages, got %d", 1+tt.wantMsgs, store.Len())
			}
		})
	}
}

func TestHandleSlashCommand_MutatingBlockedWhileBusy(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	gate := &countingGate{}
	store := conversation.New(nil, log.NewNop())
	coord, err := coordinator.New(coordinator.Options{
		Store:   store,
		Gateway: &scriptedGateway{reply: "ok"},
		Gate:    gate,
		UserID:  "user-test",
		Logger:  log.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	tui, err := New(context.Background(), coord, store, nil, "")
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := coord.StartSend("question"); !ok {
		t.Fatal("send should start")
	}

	// The credential and transcript must not change under the in-flight
	// call.
	tui.handleSlashCommand("/logout")
	if gate.invalidated != 0 {
		t.Error("/logout while Sending must not invalidate the credential")
	}

	tui.handleSlashCommand("/clear")
	if store.Len() != 1 {
		t.Errorf("/clear while Sending must keep the transcript, got %d messages", store.Len())
	}

	// Once settled, the same commands apply again.
	coord.FinishSend("question", "ok", nil)
	tui.handleSlashCommand("/logout")
	if gate.invalidated != 1 {
		t.Error("/logout must apply once Idle")
	}
}

func TestUpdate_ResizeRetargetsMarkdownWidth(t *testing.T) {
	tui, _ := newTestTUI(t, &scriptedGateway{})
	md := NewMarkdownRenderer(80)
	tui.markdown = md

	tui.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if md.renderer != nil && md.width != 120 {
		t.Errorf("renderer width = %d, want 120 after resize", md.width)
	}

	// A model without a renderer tolerates resizes.
	tui.markdown = nil
	tui.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
}

func TestHandleUpload_MissingFile(t *testing.T) {
	tui, store := newTestTUI(t, &scriptedGateway{})

	_, cmd := tui.handleUpload("/no/such/file.pdf")
	if cmd != nil {
		t.Error("missing file must not start an upload")
	}
	if tui.coord.State() != coordinator.Idle {
		t.Error("state must remain Idle for a missing file")
	}

	msgs := store.Messages()
	if len(msgs) != 1 || msgs[0].Role != conversation.RoleSystem {
		t.Errorf("expected a system notice, got %+v", msgs)
	}
}

func TestNavigateHistory(t *testing.T) {
	tui, _ := newTestTUI(t, &scriptedGateway{})
	tui.history = []string{"first", "second"}
	tui.historyIdx = 2

	tui.navigateHistory(-1)
	if got := tui.input.Value(); got != "second" {
		t.Errorf("input = %q, want second", got)
	}

	tui.navigateHistory(-1)
	if got := tui.input.Value(); got != "first" {
		t.Errorf("input = %q, want first", got)
	}

	// Below the oldest entry stays at the oldest.
	tui.navigateHistory(-1)
	if got := tui.input.Value(); got != "first" {
		t.Errorf("input = %q, want first", got)
	}

	tui.navigateHistory(1)
	tui.navigateHistory(1)
	if got := tui.input.Value(); got != "" {
		t.Errorf("input = %q, want empty past the newest entry", got)
	}
}

func TestScrollSignal(t *testing.T) {
	tui, store := newTestTUI(t, &scriptedGateway{})

	if tui.needScroll {
		t.Fatal("no scroll pending before any append")
	}
	store.AppendSystemMessage("note")
	if !tui.needScroll {
		t.Error("append must request a scroll to latest")
	}

	tui.syncViewport()
	if tui.needScroll {
		t.Error("sync must consume the scroll signal")
	}
}

func TestMarkdownRenderer_NilDegradation(t *testing.T) {
	var r *MarkdownRenderer
	if _, err := r.Render("**bold**"); err == nil {
		t.Error("nil renderer must signal degradation via error")
	}
	if r.UpdateWidth(100) {
		t.Error("nil renderer must ignore width updates")
	}
}

func TestMarkdownRenderer_UpdateWidth(t *testing.T) {
	r := NewMarkdownRenderer(80)
	if r.UpdateWidth(80) {
		t.Error("unchanged width must not recreate the renderer")
	}
	if r.renderer != nil && !r.UpdateWidth(120) {
		t.Error("changed width should recreate the renderer")
	}
	if r.UpdateWidth(0) {
		t.Error("non-positive width must be ignored")
	}
}
