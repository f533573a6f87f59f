// Package auth implements the identity gate that authorizes every
// backend call.
//
// Two mutually exclusive strategies are supported per deployment:
//   - client-credential exchange (TokenGate): trades a client id/secret
//     pair for a bearer token at a token endpoint;
//   - delegated session (SessionGate): validates an ambient cookie-backed
//     session against the userinfo endpoint, holding no token client-side.
//
// The gate is the sole owner of the credential. Other components query
// it and ask it to stamp outgoing requests; they never mutate it.
package auth

import (
	"context"
	"errors"
	"net/http"
)

// ErrUnavailable indicates a credential could not be obtained. Callers
// must not retry in a loop; the next user action retries naturally.
var ErrUnavailable = errors.New("authentication unavailable")

// Identity is the payload returned by the userinfo endpoint for the
// delegated-session strategy.
type Identity struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Credential is the proof of caller identity held by a gate. Exactly one
// of Token and Identity is set, depending on the strategy; both empty
// means anonymous access.
type Credential struct {
	Token    string    // bearer token (client-credential strategy)
	Identity *Identity // validated session identity (delegated-session strategy)
}

// Gate acquires and holds the credential gating backend calls.
type Gate interface {
	// Acquire obtains a credential, returning the held one when still
	// valid. Fails with ErrUnavailable when none can be obtained.
	Acquire(ctx context.Context) (*Credential, error)

	// Current returns the held credential, or nil when unauthenticated.
	Current() *Credential

	// Invalidate clears any held credential. No network call is made;
	// logout navigation is the caller's concern.
	Invalidate()

	// Authorize stamps an outgoing request with the held credential.
	// Bearer strategies set the Authorization header; cookie-backed
	// strategies rely on the shared HTTP client's jar and do nothing.
	Authorize(req *http.Request)
}

// Anonymous is the gate for deployments that call the backend without
// authentication. Always authenticated, stamps nothing.
type Anonymous struct{}

// Acquire implements Gate.
func (Anonymous) Acquire(context.Context) (*Credential, error) {
	return &Credential{}, nil
}

// Current implements Gate.
func (Anonymous) Current() *Credential { return &Credential{} }

// Invalidate implements Gate.
func (Anonymous) Invalidate() {}

// Authorize implements Gate.
func (Anonymous) Authorize(*http.Request) {}
