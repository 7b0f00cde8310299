package authflow

import (
	"sync"
	"time"

	"github.com/cognitoemu/cognito-emu/internal/clockid"
)

// defaultSessionTTL bounds how long a pending challenge (NEW_PASSWORD_
// REQUIRED, an MFA challenge, or the SRP PASSWORD_VERIFIER stub) stays
// answerable before RespondToAuthChallenge must reject its session.
const defaultSessionTTL = 3 * time.Minute

// pendingChallenge is what InitiateAuth stashes against a session token
// for the matching RespondToAuthChallenge call to pick back up.
type pendingChallenge struct {
	ChallengeName ChallengeName
	PoolID        string
	ClientID      string
	Username      string
	ExpiresAt     time.Time
}

// sessionStore holds pending challenges in memory, keyed by an opaque
// session token. Sessions are deliberately not persisted: a restart
// mid-challenge simply invalidates any in-flight login, same as an
// expired session would.
type sessionStore struct {
	mu    sync.Mutex
	byTok map[string]pendingChallenge
}

func newSessionStore() *sessionStore {
	return &sessionStore{byTok: map[string]pendingChallenge{}}
}

func (s *sessionStore) create(ids clockid.IDSource, clock clockid.Clock, ttl time.Duration, pc pendingChallenge) string {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	pc.ExpiresAt = clock.Now().Add(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	token := ids.NewID()
	s.byTok[token] = pc
	return token
}

func (s *sessionStore) get(clock clockid.Clock, token string) (pendingChallenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.byTok[token]
	if !ok {
		return pendingChallenge{}, false
	}
	if clock.Now().After(pc.ExpiresAt) {
		delete(s.byTok, token)
		return pendingChallenge{}, false
	}
	return pc, true
}

func (s *sessionStore) delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byTok, token)
}
