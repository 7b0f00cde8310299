package pool

import (
	"sort"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
)

// CreateClient registers a new app client under this pool.
func (s *Store) CreateClient(c *AppClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.doc.Clients[c.ClientId]; exists {
		return apperr.New(apperr.KindInvalidParameter, "client already exists")
	}
	cp := *c
	s.doc.Clients[c.ClientId] = &cp
	return s.persistLocked()
}

// GetClient returns a copy of the named app client, or (nil, false).
func (s *Store) GetClient(clientID string) (*AppClient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.doc.Clients[clientID]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// ListClients returns every app client registered in this pool.
func (s *Store) ListClients() []*AppClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*AppClient, 0, len(s.doc.Clients))
	for _, c := range s.doc.Clients {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientId < out[j].ClientId })
	return out
}

// DeleteClient removes an app client from this pool.
func (s *Store) DeleteClient(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.Clients[clientID]; !ok {
		return apperr.ErrResourceNotFound
	}
	delete(s.doc.Clients, clientID)
	return s.persistLocked()
}
