// Package pool implements the per-pool domain store: users, groups,
// app clients, and the refresh-token index, per spec.md §3/§4.2. Each
// Store instance owns exactly one pool and carries its own mutex so
// that different pools never contend with each other (spec.md §5).
package pool

import (
	"sort"
	"strings"
	"sync"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/clockid"
)

// Store is the linearizable, persisted aggregate for one UserPool. All
// mutating methods acquire mu for the entire read-modify-write-persist
// sequence (spec.md §5); reads take a shared lock.
type Store struct {
	mu   sync.RWMutex
	doc  document
	path string
	clock clockid.Clock

	// secondary indexes, rebuilt from doc on Load/New, never persisted
	usernameIndex     map[string]string // lower(username) -> username
	bySub             map[string]string // sub -> username
	byEmail           map[string]string // lower(email) -> username
	byPhone           map[string]string // phone_number -> username
	byRefreshToken    map[string]string // token -> username
}

// New creates a fresh, empty store for pool cfg, persisted at path.
// path == "" disables persistence (used by tests).
func New(cfg UserPool, path string, clock clockid.Clock) *Store {
	if clock == nil {
		clock = clockid.System{}
	}
	s := &Store{
		doc: document{
			Pool:    cfg,
			Users:   map[string]*User{},
			Groups:  map[string]*Group{},
			Clients: map[string]*AppClient{},
		},
		path:  path,
		clock: clock,
	}
	s.rebuildIndexesLocked()
	return s
}

// Pool returns a copy of the pool's configuration document.
func (s *Store) Pool() UserPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Pool
}

// UpdatePool replaces the pool configuration (used by admin update ops)
// and persists the change.
func (s *Store) UpdatePool(cfg UserPool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.Id = s.doc.Pool.Id
	s.doc.Pool = cfg
	return s.persistLocked()
}

func (s *Store) rebuildIndexesLocked() {
	s.usernameIndex = make(map[string]string, len(s.doc.Users))
	s.bySub = make(map[string]string, len(s.doc.Users))
	s.byEmail = make(map[string]string, len(s.doc.Users))
	s.byPhone = make(map[string]string, len(s.doc.Users))
	s.byRefreshToken = make(map[string]string)

	for username, u := range s.doc.Users {
		s.usernameIndex[strings.ToLower(username)] = username
		s.bySub[u.Sub] = username
		if email, ok := u.Attribute("email"); ok && email != "" {
			s.byEmail[strings.ToLower(email)] = username
		}
		if phone, ok := u.Attribute("phone_number"); ok && phone != "" {
			s.byPhone[phone] = username
		}
		for _, rt := range u.RefreshTokens {
			s.byRefreshToken[rt] = username
		}
	}
}

// GetUserByUsername returns a copy of the user or (nil, false).
// Lookup is case-insensitive; storage is case-preserving (spec.md §3).
func (s *Store) GetUserByUsername(username string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getUserByUsernameLocked(username)
}

func (s *Store) getUserByUsernameLocked(username string) (*User, bool) {
	actual, ok := s.usernameIndex[strings.ToLower(username)]
	if !ok {
		return nil, false
	}
	u, ok := s.doc.Users[actual]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

// GetUserByEmail returns the user whose "email" attribute matches email.
func (s *Store) GetUserByEmail(email string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, false
	}
	return s.getUserByUsernameLocked(username)
}

// GetUserBySub returns the user whose immutable Sub matches sub.
func (s *Store) GetUserBySub(sub string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.bySub[sub]
	if !ok {
		return nil, false
	}
	return s.getUserByUsernameLocked(username)
}

// GetUserByRefreshToken resolves a refresh token back to its owning
// user through the pool's reverse index (spec.md §8 property 1).
func (s *Store) GetUserByRefreshToken(token string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username, ok := s.byRefreshToken[token]
	if !ok {
		return nil, false
	}
	return s.getUserByUsernameLocked(username)
}

// SaveUser upserts user, refreshing LastModifiedDate, rebuilding the
// indexes it affects, and persisting before return (spec.md §4.2).
func (s *Store) SaveUser(u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if _, exists := s.doc.Users[u.Username]; !exists {
		if u.CreateDate.IsZero() {
			u.CreateDate = now
		}
	}
	u.LastModifiedDate = now

	cp := *u
	s.doc.Users[u.Username] = &cp
	s.rebuildIndexesLocked()
	return s.persistLocked()
}

// DeleteUser removes username from the user table and every secondary
// index, including the refresh-token index (spec.md §3 lifecycle).
func (s *Store) DeleteUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actual, ok := s.usernameIndex[strings.ToLower(username)]
	if !ok {
		return apperr.ErrUserNotFound
	}
	delete(s.doc.Users, actual)
	for _, g := range s.doc.Groups {
		g.Usernames = removeString(g.Usernames, actual)
	}
	s.rebuildIndexesLocked()
	return s.persistLocked()
}

// StoreRefreshToken appends token to user's refresh-token set and to
// the pool's reverse index. Idempotent: storing the same token twice
// leaves the set unchanged (spec.md §8 property 4).
func (s *Store) StoreRefreshToken(username, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actual, ok := s.usernameIndex[strings.ToLower(username)]
	if !ok {
		return apperr.ErrUserNotFound
	}
	u := s.doc.Users[actual]
	if !u.HasRefreshToken(token) {
		u.RefreshTokens = append(u.RefreshTokens, token)
	}
	u.LastModifiedDate = s.clock.Now()
	s.rebuildIndexesLocked()
	return s.persistLocked()
}

// PurgeRefreshTokens clears every refresh token for username (admin /
// self global sign-out, spec.md §3 lifecycle).
func (s *Store) PurgeRefreshTokens(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actual, ok := s.usernameIndex[strings.ToLower(username)]
	if !ok {
		return apperr.ErrUserNotFound
	}
	u := s.doc.Users[actual]
	u.RefreshTokens = nil
	u.LastModifiedDate = s.clock.Now()
	s.rebuildIndexesLocked()
	return s.persistLocked()
}

// SetUserMFAPreference atomically updates MFAOptions, UserMFASettingList
// and PreferredMfaSetting. Empty settings clear the corresponding
// entries. Idempotent (spec.md §8 property 4).
func (s *Store) SetUserMFAPreference(username string, sms, software *bool, preferred string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actual, ok := s.usernameIndex[strings.ToLower(username)]
	if !ok {
		return apperr.ErrUserNotFound
	}
	u := s.doc.Users[actual]

	settings := map[MFASetting]bool{}
	for _, m := range u.UserMFASettingList {
		settings[m] = true
	}
	if sms != nil {
		settings[SMSMfa] = *sms
	}
	if software != nil {
		settings[SoftwareTokenMfa] = *software
	}

	var newList []MFASetting
	var opts []MFAOption
	for _, m := range []MFASetting{SMSMfa, SoftwareTokenMfa} {
		if settings[m] {
			newList = append(newList, m)
			if m == SMSMfa {
				opts = append(opts, MFAOption{DeliveryMedium: "SMS", AttributeName: "phone_number"})
			}
		}
	}

	if preferred != "" {
		found := false
		for _, m := range newList {
			if string(m) == preferred {
				found = true
				break
			}
		}
		if !found {
			return apperr.New(apperr.KindInvalidParameter, "preferred MFA setting must be in UserMFASettingList")
		}
	}
	u.UserMFASettingList = newList
	u.MFAOptions = opts
	u.PreferredMfaSetting = preferred
	u.LastModifiedDate = s.clock.Now()
	return s.persistLocked()
}

// ListUsersPage is a page of users plus an opaque continuation cursor
// (empty when there is no further page).
type ListUsersPage struct {
	Users             []*User
	PaginationToken   string
}

// ListUsers returns a page ordered by Sub, optionally filtered by a
// restricted AWS-style attribute filter (spec.md §4.2).
func (s *Store) ListUsers(filter string, paginationToken string, limit int) (ListUsersPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pred, err := parseFilter(filter)
	if err != nil {
		return ListUsersPage{}, apperr.Wrap(apperr.KindInvalidParameter, "invalid filter", err)
	}

	all := make([]*User, 0, len(s.doc.Users))
	for _, u := range s.doc.Users {
		if pred == nil || pred(u) {
			cp := *u
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Sub < all[j].Sub })

	start := 0
	if paginationToken != "" {
		cursorSub, err := decodeCursor(paginationToken)
		if err != nil {
			return ListUsersPage{}, apperr.New(apperr.KindInvalidParameter, "invalid pagination token")
		}
		for i, u := range all {
			if u.Sub > cursorSub {
				start = i
				break
			}
			start = i + 1
		}
	}

	if limit <= 0 {
		limit = 60
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	if start > len(all) {
		start = len(all)
	}
	page := all[start:end]

	var next string
	if end < len(all) {
		next = encodeCursor(page[len(page)-1].Sub)
	}
	return ListUsersPage{Users: page, PaginationToken: next}, nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if !strings.EqualFold(v, s) {
			out = append(out, v)
		}
	}
	return out
}
