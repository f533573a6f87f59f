package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/docchat/docchat/internal/log"
)

// userinfoPath is the same-origin identity endpoint for the
// delegated-session strategy.
const userinfoPath = "/auth/userinfo"

// maxUserinfoSize bounds the userinfo response body.
const maxUserinfoSize = 64 * 1024

// SessionGate implements the delegated-session strategy: the ambient
// cookie session is validated against the userinfo endpoint. No token is
// held client-side; every backend call rides on the shared HTTP client's
// cookie jar.
type SessionGate struct {
	baseURL string
	client  *http.Client // must carry the session cookie jar
	logger  log.Logger

	// mu guards credential: Acquire runs on the network goroutine while
	// Invalidate and Current run on the event loop.
	mu         sync.Mutex
	credential *Credential // nil while unauthenticated
}

// NewSessionGate creates a delegated-session gate. client must be the
// same cookie-jar-backed client the gateway uses, so that backend calls
// carry the session cookie the gate validated.
func NewSessionGate(baseURL string, client *http.Client, logger log.Logger) (*SessionGate, error) {
	if baseURL == "" {
		return nil, errors.New("auth.NewSessionGate: base URL is required")
	}
	if client == nil {
		return nil, errors.New("auth.NewSessionGate: HTTP client is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &SessionGate{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}, nil
}

// Acquire queries the userinfo endpoint. A 2xx with an identity payload
// means the cookie session is valid; anything else means
// unauthenticated and clears any previously held identity.
func (g *SessionGate) Acquire(ctx context.Context) (*Credential, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+userinfoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building userinfo request: %w", ErrUnavailable, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.credential = nil
		g.logger.Warn("userinfo endpoint unreachable", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.credential = nil
		g.logger.Debug("session not authenticated", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrUnavailable, resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserinfoSize)).Decode(&id); err != nil {
		g.credential = nil
		return nil, fmt.Errorf("%w: decoding identity payload: %w", ErrUnavailable, err)
	}

	g.credential = &Credential{Identity: &id}
	g.logger.Debug("session validated", "sub", id.Sub)
	return g.credential, nil
}

// Current returns the identity from the last successful validation, or
// nil while unauthenticated.
func (g *SessionGate) Current() *Credential {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.credential
}

// Invalidate forgets the validated identity. The session cookie itself
// is cleared by the logout navigation, not here.
func (g *SessionGate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.credential = nil
}

// Authorize is a no-op: requests through the shared client carry the
// ambient session cookie, and a bearer header is never set alongside it.
func (g *SessionGate) Authorize(*http.Request) {}
