package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/docchat/docchat/internal/log"
)

// maxTokenResponseSize bounds the token endpoint response body.
const maxTokenResponseSize = 64 * 1024

// TokenGate implements the client-credential strategy: a form-encoded
// exchange at the token endpoint yields a bearer token attached to every
// backend call.
type TokenGate struct {
	tokenURL     string
	clientID     string
	clientSecret string
	client       *http.Client
	logger       log.Logger

	// mu guards credential: Acquire runs on the network goroutine while
	// Invalidate and Current run on the event loop.
	mu         sync.Mutex
	credential *Credential // nil until acquired
}

// NewTokenGate creates a client-credential gate. client may be nil, in
// which case http.DefaultClient is used.
func NewTokenGate(tokenURL, clientID, clientSecret string, client *http.Client, logger log.Logger) (*TokenGate, error) {
	if tokenURL == "" {
		return nil, errors.New("auth.NewTokenGate: token URL is required")
	}
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("auth.NewTokenGate: client credentials are required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &TokenGate{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       client,
		logger:       logger,
	}, nil
}

// tokenResponse is the token endpoint's success payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Acquire returns the held credential, or exchanges the client
// credentials for a fresh bearer token. On any failure the credential
// stays unset and ErrUnavailable is returned; the next user action is
// the retry.
func (g *TokenGate) Acquire(ctx context.Context) (*Credential, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.credential != nil {
		return g.credential, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {g.clientID},
		"client_secret": {g.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: building token request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("token endpoint unreachable", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.logger.Warn("token endpoint rejected exchange", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: token endpoint returned %d", ErrUnavailable, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponseSize)).Decode(&tok); err != nil {
		return nil, fmt.Errorf("%w: decoding token response: %w", ErrUnavailable, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", ErrUnavailable)
	}

	g.credential = &Credential{Token: tok.AccessToken}
	g.logger.Debug("bearer token acquired")
	return g.credential, nil
}

// Current returns the held credential, or nil before the first
// successful exchange.
func (g *TokenGate) Current() *Credential {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.credential
}

// Invalidate drops the held token. The next Acquire performs a fresh
// exchange.
func (g *TokenGate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.credential = nil
}

// Authorize sets the bearer header when a token is held.
func (g *TokenGate) Authorize(req *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.credential != nil && g.credential.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.credential.Token)
	}
}
