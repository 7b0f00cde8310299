package pool

import (
	"sort"
	"strings"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
)

// CreateGroup adds a new group to the pool.
func (s *Store) CreateGroup(g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.doc.Groups[g.GroupName]; exists {
		return apperr.New(apperr.KindInvalidParameter, "group already exists")
	}
	cp := *g
	s.doc.Groups[g.GroupName] = &cp
	return s.persistLocked()
}

// GetGroup returns a copy of the named group, or (nil, false).
func (s *Store) GetGroup(name string) (*Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.doc.Groups[name]
	if !ok {
		return nil, false
	}
	cp := *g
	return &cp, true
}

// DeleteGroup removes a group and its membership records.
func (s *Store) DeleteGroup(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Groups[name]; !ok {
		return apperr.ErrResourceNotFound
	}
	delete(s.doc.Groups, name)
	return s.persistLocked()
}

// ListGroups returns every group in the pool, ordered by Precedence
// then GroupName for a stable listing.
func (s *Store) ListGroups() []*Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Group, 0, len(s.doc.Groups))
	for _, g := range s.doc.Groups {
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Precedence != out[j].Precedence {
			return out[i].Precedence < out[j].Precedence
		}
		return out[i].GroupName < out[j].GroupName
	})
	return out
}

// AddUserToGroup appends username to the group's membership, idempotently.
func (s *Store) AddUserToGroup(groupName, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actual, ok := s.usernameIndex[strings.ToLower(username)]
	if !ok {
		return apperr.ErrUserNotFound
	}
	g, ok := s.doc.Groups[groupName]
	if !ok {
		return apperr.ErrResourceNotFound
	}
	for _, u := range g.Usernames {
		if strings.EqualFold(u, actual) {
			return nil
		}
	}
	g.Usernames = append(g.Usernames, actual)
	return s.persistLocked()
}

// RemoveUserFromGroup removes username from the group's membership.
func (s *Store) RemoveUserFromGroup(groupName, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.doc.Groups[groupName]
	if !ok {
		return apperr.ErrResourceNotFound
	}
	g.Usernames = removeString(g.Usernames, username)
	return s.persistLocked()
}

// ListUserGroupMembership returns the groups username belongs to.
func (s *Store) ListUserGroupMembership(username string) []*Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Group
	for _, g := range s.doc.Groups {
		for _, u := range g.Usernames {
			if strings.EqualFold(u, username) {
				cp := *g
				out = append(out, &cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupName < out[j].GroupName })
	return out
}

// ListGroupMembership returns the usernames belonging to groupName.
func (s *Store) ListGroupMembership(groupName string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.doc.Groups[groupName]
	if !ok {
		return nil, apperr.ErrResourceNotFound
	}
	out := make([]string, len(g.Usernames))
	copy(out, g.Usernames)
	sort.Strings(out)
	return out, nil
}
