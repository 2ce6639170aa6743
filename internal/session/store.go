// Package session owns the authentication artifacts of one run: the
// login-at token and the USERKEY device key. The store is the only piece of
// cross-cutting mutable state in the pipeline; only the login and refresh
// paths are allowed to mutate it.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/google/uuid"
)

// Store holds the current SessionToken and persists it across runs.
type Store struct {
	mu       sync.Mutex
	token    models.SessionToken
	filePath string // "" disables persistence
}

// NewStore creates a store persisting to filePath. An empty path keeps the
// session in memory only.
func NewStore(filePath string) *Store {
	return &Store{
		filePath: filePath,
		token:    models.SessionToken{Freshness: models.FreshnessFresh},
	}
}

// Load reads a previously persisted session. A missing file is not an
// error: the caller falls back to credential login.
func (s *Store) Load() (bool, error) {
	if s.filePath == "" {
		return false, nil
	}
	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read session file: %w", err)
	}

	var tok models.SessionToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return false, fmt.Errorf("parse session file: %w", err)
	}
	if tok.AuthToken == "" {
		return false, nil
	}
	tok.Freshness = models.FreshnessFresh

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	utils.Debugf("session loaded from %s", s.filePath)
	return true, nil
}

// Current returns a copy of the session token.
func (s *Store) Current() models.SessionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// UserKey returns the device key, generating and keeping one when absent.
func (s *Store) UserKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token.UserKey == "" {
		s.token.UserKey = uuid.New().String()
	}
	return s.token.UserKey
}

// SetFromLogin installs the token obtained by a credential login and
// persists it so the next run skips login.
func (s *Store) SetFromLogin(authToken string) (models.SessionToken, error) {
	if authToken == "" {
		return models.SessionToken{}, models.ErrAuthFailure
	}
	return s.install(authToken)
}

// SetFromRefresh installs the token obtained by a refresh call. Spec-wise
// identical to SetFromLogin except for its trigger: refresh is only ever
// invoked by the request executor after an expiry signal.
func (s *Store) SetFromRefresh(authToken string) (models.SessionToken, error) {
	if authToken == "" {
		return models.SessionToken{}, models.ErrAuthFailure
	}
	return s.install(authToken)
}

// MarkExpired records an observed expiry signal. The token will not be used
// again until a successful refresh replaces it.
func (s *Store) MarkExpired() {
	s.mu.Lock()
	s.token.Freshness = models.FreshnessExpired
	s.mu.Unlock()
}

func (s *Store) install(authToken string) (models.SessionToken, error) {
	s.mu.Lock()
	s.token.AuthToken = authToken
	s.token.Freshness = models.FreshnessFresh
	if s.token.UserKey == "" {
		s.token.UserKey = uuid.New().String()
	}
	tok := s.token
	s.mu.Unlock()

	if err := s.persist(tok); err != nil {
		// Persistence failure must not kill an otherwise valid session.
		utils.Warnf("failed to persist session: %v", err)
	}
	return tok, nil
}

func (s *Store) persist(tok models.SessionToken) error {
	if s.filePath == "" {
		return nil
	}
	if dir := filepath.Dir(s.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, raw, 0600)
}
