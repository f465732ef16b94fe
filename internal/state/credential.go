// internal/state/credential.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CredentialKey is the fixed key the access token is stored under.
const CredentialKey = "access_token"

// CredentialStore keeps the access token in credentials.json under the data
// directory. The file is readable by the owner only.
type CredentialStore struct {
	root string
	mu   sync.Mutex
}

// NewCredentialStore creates a CredentialStore rooted at the given directory.
func NewCredentialStore(root string) *CredentialStore {
	return &CredentialStore{root: root}
}

func (s *CredentialStore) path() string {
	return filepath.Join(s.root, "credentials.json")
}

// Load returns the stored token, or "" if none is stored.
func (s *CredentialStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read credentials: %w", err)
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return "", fmt.Errorf("unmarshal credentials: %w", err)
	}
	return values[CredentialKey], nil
}

// Save persists token, replacing any previous one.
func (s *CredentialStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(map[string]string{CredentialKey: token}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp credentials: %w", err)
	}
	return nil
}

// Delete removes the stored token. Deleting when nothing is stored is not an
// error.
func (s *CredentialStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
