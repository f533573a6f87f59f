// Package coordinator serializes the two user-triggered operations,
// send-message and upload-document, against a single busy flag.
//
// The two operations share backend bandwidth and UI affordances, so the
// coordinator enforces single-flight across the pair, not per
// operation: neither may start while the other is in flight.
//
// Operations run in three legs matching the event loop's shape:
//
//	StartX:   synchronous permit check plus optimistic state change
//	PerformX: the network leg, no state mutation, runs in the async
//	          command between the two events
//	FinishX:  synchronous settlement, unconditionally back to Idle
//
// The busy flag and the conversation store are mutated only by the
// Start/Finish handlers, never from the network leg, which keeps all
// shared state on the event loop.
package coordinator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docchat/docchat/internal/auth"
	"github.com/docchat/docchat/internal/conversation"
	"github.com/docchat/docchat/internal/gateway"
	"github.com/docchat/docchat/internal/log"
)

// BusyState is the single mutual-exclusion flag for user actions.
type BusyState int

// Busy states. Sending and Uploading are mutually exclusive; neither
// may start while the other is active.
const (
	Idle BusyState = iota
	Sending
	Uploading
)

// String implements Stringer for logs and status bars.
func (s BusyState) String() string {
	switch s {
	case Sending:
		return "sending"
	case Uploading:
		return "uploading"
	default:
		return "idle"
	}
}

// FailureReply is the fixed transcript message shown for any failed
// send. Raw error detail goes to the operator log, never the transcript.
const FailureReply = "Sorry, there was an error processing your request. Please try again later."

// ErrNotPermitted is returned by the synchronous Send and Upload
// helpers when the action is refused before any network call: busy,
// blank input, or blocked unauthenticated.
var ErrNotPermitted = errors.New("action not permitted")

// Upload status strings surfaced in the UI status bar.
const (
	UploadStatusBusy   = "Uploading..."
	UploadStatusOK     = "Upload successful!"
	UploadStatusFailed = "Upload failed. Please try again."
)

// Coordinator owns the busy flag and drives the conversation store
// through the send and upload lifecycles.
type Coordinator struct {
	state        BusyState
	uploadStatus string

	store   *conversation.Store
	gw      gateway.Client
	gate    auth.Gate
	userID  string
	timeout time.Duration
	logger  log.Logger

	// requireIdentity blocks sends and uploads while the gate holds no
	// identity (delegated-session strategy: unauthenticated means the
	// buttons are disabled, not that the call fails).
	requireIdentity bool
}

// Options configures a Coordinator.
type Options struct {
	Store   *conversation.Store
	Gateway gateway.Client
	Gate    auth.Gate
	UserID  string

	// Timeout bounds each network leg. Zero means no bound.
	Timeout time.Duration

	// RequireIdentity blocks actions while Gate.Current() is nil.
	RequireIdentity bool

	Logger log.Logger
}

// New creates a coordinator in the Idle state.
func New(opts Options) (*Coordinator, error) {
	if opts.Store == nil {
		return nil, errors.New("coordinator.New: conversation store is required")
	}
	if opts.Gateway == nil {
		return nil, errors.New("coordinator.New: gateway is required")
	}
	if opts.Gate == nil {
		return nil, errors.New("coordinator.New: auth gate is required")
	}
	if opts.UserID == "" {
		return nil, errors.New("coordinator.New: user ID is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNop()
	}
	return &Coordinator{
		store:           opts.Store,
		gw:              opts.Gateway,
		gate:            opts.Gate,
		userID:          opts.UserID,
		timeout:         opts.Timeout,
		requireIdentity: opts.RequireIdentity,
		logger:          opts.Logger,
	}, nil
}

// State returns the current busy state. The rendering layer consumes
// this read-only to drive disabled affordances.
func (c *Coordinator) State() BusyState {
	return c.state
}

// UploadStatus returns the current upload status line for the UI.
func (c *Coordinator) UploadStatus() string {
	return c.uploadStatus
}

// permitted reports whether a new action may start.
func (c *Coordinator) permitted() bool {
	if c.state != Idle {
		return false
	}
	if c.requireIdentity && c.gate.Current() == nil {
		return false
	}
	return true
}

// StartSend begins a send. Returns the trimmed text and true when
// permitted; otherwise (busy, blank input, or blocked unauthenticated)
// it is a no-op returning false, the "button disabled" model, not an
// error. On permit the user message is appended immediately, before the
// network call resolves.
func (c *Coordinator) StartSend(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" || !c.permitted() {
		return "", false
	}

	if err := c.store.AppendUserMessage(text); err != nil {
		// Unreachable after the trim check; kept for the invariant.
		return "", false
	}
	c.state = Sending
	return text, true
}

// PerformSend runs the network leg of a send: credential acquisition
// followed by the ask-question call. No coordinator or store state is
// mutated here. The returned error is settled by FinishSend.
func (c *Coordinator) PerformSend(ctx context.Context, text string) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if _, err := c.gate.Acquire(ctx); err != nil {
		return "", err
	}
	return c.gw.AskQuestion(ctx, c.userID, text, c.store.History())
}

// FinishSend settles a send and unconditionally returns to Idle.
// Success appends the assistant reply (rendered rich) and records the
// exchange in the history window. Failure appends the fixed failure
// reply and leaves history untouched: failed turns are not remembered
// as context.
func (c *Coordinator) FinishSend(userText, reply string, err error) {
	c.state = Idle

	if err != nil {
		c.logger.Error("send failed", "error", err)
		c.invalidateOnAuthFailure(err)
		c.store.AppendAssistantMessage(FailureReply, false)
		return
	}

	c.store.AppendAssistantMessage(reply, true)
	c.store.RecordExchange(userText, reply)
}

// StartUpload begins an upload. Permitted only when Idle with a file
// name present (and an identity when required); otherwise a no-op.
func (c *Coordinator) StartUpload(filename string) bool {
	if strings.TrimSpace(filename) == "" || !c.permitted() {
		return false
	}
	c.state = Uploading
	c.uploadStatus = UploadStatusBusy
	return true
}

// PerformUpload runs the network leg of an upload. No state mutation.
func (c *Coordinator) PerformUpload(ctx context.Context, filename string, r io.Reader) (string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	if _, err := c.gate.Acquire(ctx); err != nil {
		return "", err
	}
	return c.gw.UploadDocument(ctx, c.userID, filename, r)
}

// FinishUpload settles an upload and unconditionally returns to Idle.
// Success appends a system message naming the file; failure only sets
// the status line, no transcript message.
func (c *Coordinator) FinishUpload(filename string, err error) {
	c.state = Idle

	if err != nil {
		c.logger.Error("upload failed", "file", filename, "error", err)
		c.invalidateOnAuthFailure(err)
		c.uploadStatus = UploadStatusFailed
		return
	}

	c.uploadStatus = UploadStatusOK
	c.store.AppendSystemMessage("Uploaded " + filename)
}

// Send runs a complete send lifecycle synchronously. Used by the
// one-shot CLI commands; the TUI drives the three legs itself so the
// optimistic append is visible before the call resolves. The transcript
// settles either way; the returned error distinguishes an answer from
// the failure notice for callers that exit on it.
func (c *Coordinator) Send(ctx context.Context, text string) error {
	text, ok := c.StartSend(text)
	if !ok {
		return ErrNotPermitted
	}
	reply, err := c.PerformSend(ctx, text)
	c.FinishSend(text, reply, err)
	return err
}

// Upload runs a complete upload lifecycle synchronously.
func (c *Coordinator) Upload(ctx context.Context, filename string, r io.Reader) error {
	if !c.StartUpload(filename) {
		return ErrNotPermitted
	}
	ack, err := c.PerformUpload(ctx, filename, r)
	if err == nil && ack != "" {
		c.logger.Debug("upload acknowledged", "file", filename, "message", ack)
	}
	c.FinishUpload(filename, err)
	return err
}

// Logout invalidates the held credential and notes it in the
// transcript. No network call; under the delegated-session strategy the
// identity provider's logout navigation is the user's next step.
func (c *Coordinator) Logout() {
	c.gate.Invalidate()
	c.store.AppendSystemMessage("Signed out.")
}

// bound applies the configured request timeout, if any. A hung call
// then settles as a failure instead of disabling the UI forever.
func (c *Coordinator) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// invalidateOnAuthFailure drops the held credential when the backend
// rejected it, so the next user action re-acquires.
func (c *Coordinator) invalidateOnAuthFailure(err error) {
	var statusErr *gateway.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
		c.gate.Invalidate()
	}
	if errors.Is(err, auth.ErrUnavailable) {
		c.gate.Invalidate()
	}
}
