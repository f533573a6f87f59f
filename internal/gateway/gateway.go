// Package gateway is the HTTP client for the document-grounded
// assistant backend.
//
// Two remote calls exist: ask-question and add-data (document upload).
// Credentials are stamped by the injected auth.Gate: a bearer header
// under the client-credential strategy, the ambient cookie jar under the
// delegated-session strategy, never both.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/docchat/docchat/internal/auth"
	"github.com/docchat/docchat/internal/conversation"
	"github.com/docchat/docchat/internal/log"
)

// Backend endpoint paths, relative to the configured base and prefix.
const (
	askPath    = "/ask_question"
	uploadPath = "/add_data"
)

// maxResponseSize bounds backend response bodies.
const maxResponseSize = 4 * 1024 * 1024

// ErrEmptyReply indicates the backend answered 2xx without a usable
// response payload.
var ErrEmptyReply = errors.New("empty reply from backend")

// StatusError is returned when the backend responds with a non-2xx
// status. Check with errors.As.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Code)
}

// Client is the backend gateway as the coordinator sees it.
type Client interface {
	// AskQuestion sends a question with the trimmed history window and
	// returns the assistant's reply text.
	AskQuestion(ctx context.Context, userID, message string, history []conversation.HistoryEntry) (string, error)

	// UploadDocument uploads a document scoped to userID and returns the
	// backend's acknowledgement text.
	UploadDocument(ctx context.Context, userID, filename string, r io.Reader) (string, error)
}

// HTTP implements Client against the configured backend.
type HTTP struct {
	baseURL string
	client  *http.Client
	gate    auth.Gate
	logger  log.Logger
}

// NewHTTP creates the backend gateway. serviceURL and prefix are joined
// into the base for both endpoint paths; prefix may be empty. client
// must be the shared cookie-jar-backed client when the deployment uses
// the delegated-session strategy.
func NewHTTP(serviceURL, prefix string, client *http.Client, gate auth.Gate, logger log.Logger) (*HTTP, error) {
	if serviceURL == "" {
		return nil, errors.New("gateway.NewHTTP: service URL is required")
	}
	if gate == nil {
		return nil, errors.New("gateway.NewHTTP: gate is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.NewNop()
	}

	base := strings.TrimRight(serviceURL, "/")
	if prefix != "" {
		base += "/" + strings.Trim(prefix, "/")
	}

	return &HTTP{baseURL: base, client: client, gate: gate, logger: logger}, nil
}

// askRequest is the ask-question wire format.
type askRequest struct {
	UserID      string                      `json:"user_id"`
	Message     string                      `json:"message"`
	ChatHistory []conversation.HistoryEntry `json:"chat_history"`
}

// askResponse is the ask-question reply payload.
type askResponse struct {
	Response string `json:"response"`
}

// uploadResponse is the add-data acknowledgement payload.
type uploadResponse struct {
	Message string `json:"message"`
}

// AskQuestion implements Client.
func (h *HTTP) AskQuestion(ctx context.Context, userID, message string, history []conversation.HistoryEntry) (string, error) {
	if history == nil {
		history = []conversation.HistoryEntry{} // wire format wants [], not null
	}
	body, err := json.Marshal(askRequest{
		UserID:      userID,
		Message:     message,
		ChatHistory: history,
	})
	if err != nil {
		return "", fmt.Errorf("encoding question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+askPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building question request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	h.gate.Authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("asking question: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.Warn("ask-question rejected", "status", resp.StatusCode)
		return "", &StatusError{Code: resp.StatusCode}
	}

	var ans askResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&ans); err != nil {
		return "", fmt.Errorf("decoding reply: %w", err)
	}
	if ans.Response == "" {
		return "", ErrEmptyReply
	}

	return ans.Response, nil
}

// UploadDocument implements Client.
func (h *HTTP) UploadDocument(ctx context.Context, userID, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	if err := mw.WriteField("user_id", userID); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalizing upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+uploadPath, &buf)
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	h.gate.Authorize(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.Warn("upload rejected", "status", resp.StatusCode, "file", filename)
		return "", &StatusError{Code: resp.StatusCode}
	}

	var ack uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&ack); err != nil {
		// Acknowledgement text is informational; a 2xx without one is
		// still a successful upload.
		return "", nil
	}
	return ack.Message, nil
}
