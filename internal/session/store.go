// Package session holds the current credentials and user identity.
//
// The Store is a pure state holder: it never talks to the network. Every
// mutation rewrites the persisted copy as a whole so that a restart restores
// the last known session.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"tasky/internal/logging"
	"tasky/internal/service"
)

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Token *oauth2.Token `json:"token,omitempty"`
	User  *service.User `json:"user,omitempty"`
}

// Empty reports whether the snapshot carries no credentials and no user.
func (s Snapshot) Empty() bool {
	return (s.Token == nil || (s.Token.AccessToken == "" && s.Token.RefreshToken == "")) && s.User == nil
}

// Persister loads and saves session snapshots.
type Persister interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// Store is the process-wide session.
type Store struct {
	mu        sync.RWMutex
	token     oauth2.Token
	user      *service.User
	persister Persister
	logger    *zap.Logger
}

// New creates an in-memory store that is not persisted.
func New() *Store {
	return &Store{logger: zap.NewNop()}
}

// Open creates a store backed by p and restores the last saved session.
// A snapshot that cannot be read is logged and the store starts empty.
func Open(p Persister, logger *zap.Logger) *Store {
	s := &Store{persister: p, logger: logging.OrNop(logger)}
	if p == nil {
		return s
	}
	snap, err := p.Load()
	if err != nil {
		s.logger.Warn("session restore failed", zap.Error(err))
		return s
	}
	if snap.Token != nil {
		s.token = *snap.Token
	}
	s.user = snap.User
	return s
}

// AccessToken returns the current access token or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.AccessToken
}

// RefreshToken returns the current refresh token or "".
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.RefreshToken
}

// User returns a copy of the current user, or nil.
func (s *Store) User() *service.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Authenticated reports whether an access token is present.
func (s *Store) Authenticated() bool {
	return s.AccessToken() != ""
}

// Expired reports whether the access token is known to be past its expiry.
// A token without a recorded expiry is never considered expired.
func (s *Store) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.AccessToken != "" && !s.token.Valid()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// SetAccessToken replaces the access token. The new token has no known
// expiry until SetTokenExpiry is called.
func (s *Store) SetAccessToken(token string) {
	s.mutate(func() {
		s.token.AccessToken = token
		s.token.Expiry = time.Time{}
	})
}

// SetTokenExpiry records when the current access token stops being accepted.
func (s *Store) SetTokenExpiry(expiry time.Time) {
	s.mutate(func() { s.token.Expiry = expiry })
}

// SetRefreshToken replaces the refresh token.
func (s *Store) SetRefreshToken(token string) {
	s.mutate(func() { s.token.RefreshToken = token })
}

// SetUser replaces the user.
func (s *Store) SetUser(user *service.User) {
	s.mutate(func() {
		if user == nil {
			s.user = nil
			return
		}
		u := *user
		s.user = &u
	})
}

// SetSession replaces tokens and user in one write.
func (s *Store) SetSession(accessToken, refreshToken string, user *service.User) {
	s.mutate(func() {
		s.token = oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken}
		s.user = nil
		if user != nil {
			u := *user
			s.user = &u
		}
	})
}

// Logout clears tokens and user.
func (s *Store) Logout() {
	s.mutate(func() {
		s.token = oauth2.Token{}
		s.user = nil
	})
}

func (s *Store) mutate(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	// Save under the lock so persisted snapshots land in mutation order.
	if s.persister != nil {
		if err := s.persister.Save(snap); err != nil {
			s.logger.Warn("session persist failed", zap.Error(err))
		}
	}
	s.mu.Unlock()
}

func (s *Store) snapshotLocked() Snapshot {
	var snap Snapshot
	if s.token.AccessToken != "" || s.token.RefreshToken != "" {
		tok := s.token
		snap.Token = &tok
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// ExpiryIn converts a lifetime in seconds, as sent by the API, to an expiry
// time. Zero or negative lifetimes mean unknown and yield the zero time.
func ExpiryIn(seconds int, now time.Time) time.Time {
	if seconds <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(seconds) * time.Second)
}
