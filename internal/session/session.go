// Package session provides the stable per-session user identifier that
// scopes uploaded documents and conversation context server-side.
//
// The identifier is a UUIDv4 (122 bits of randomness) generated once and
// persisted to a state file, so repeated invocations within the same
// installation reuse it, while independent installations get distinct
// identifiers with overwhelming probability.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// idFile is the state file name inside the docchat state directory.
const idFile = "session_id"

// Load returns the session identity stored under dir, generating and
// persisting a fresh one when absent. A malformed state file is
// replaced rather than surfaced: the identity is an opaque scope key,
// not user data.
func Load(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("session: state directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating state directory: %w", err)
	}

	path := filepath.Join(dir, idFile)

	data, err := os.ReadFile(path)
	if err == nil {
		id, parseErr := uuid.Parse(strings.TrimSpace(string(data)))
		if parseErr == nil {
			return id.String(), nil
		}
		// Malformed content falls through to regeneration.
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading session state: %w", err)
	}

	id := uuid.New()
	if err := os.WriteFile(path, []byte(id.String()), 0o600); err != nil {
		return "", fmt.Errorf("persisting session identity: %w", err)
	}
	return id.String(), nil
}

// Clear removes the persisted session identity. Idempotent: clearing an
// absent identity is not an error.
func Clear(dir string) error {
	err := os.Remove(filepath.Join(dir, idFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session state: %w", err)
	}
	return nil
}
