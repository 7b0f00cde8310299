// Package facade implements the Cognito facade of spec.md §4.5: a
// cache of loaded pools plus a reverse index from app-client id to the
// pool that owns it.
package facade

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/pool"
)

// Facade resolves pool ids and client ids to loaded pool.Store handles,
// loading from persistence on first access and caching thereafter.
type Facade struct {
	mu           sync.RWMutex
	pools        map[string]*pool.Store
	clientIndex  map[string]string // clientId -> poolId
	persistDir   string            // "" disables persistence
	clock        clockid.Clock
	ids          clockid.IDSource
}

// New creates a Facade persisting pool documents under persistDir (one
// JSON file per pool, named "<poolId>.json"). persistDir == "" keeps
// everything in memory only, used by tests.
func New(persistDir string, clock clockid.Clock, ids clockid.IDSource) *Facade {
	if clock == nil {
		clock = clockid.System{}
	}
	if ids == nil {
		ids = clockid.UUIDSource{}
	}
	return &Facade{
		pools:       map[string]*pool.Store{},
		clientIndex: map[string]string{},
		persistDir:  persistDir,
		clock:       clock,
		ids:         ids,
	}
}

func (f *Facade) poolPath(poolID string) string {
	if f.persistDir == "" {
		return ""
	}
	return filepath.Join(f.persistDir, poolID+".json")
}

// CreateUserPool provisions a brand-new pool and registers it in the
// cache (and, if persistence is enabled, on disk).
func (f *Facade) CreateUserPool(cfg pool.UserPool) (*pool.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cfg.Id == "" {
		cfg.Id = "us-east-1_" + f.ids.NewID()[:8]
	}
	if _, exists := f.pools[cfg.Id]; exists {
		return nil, apperr.New(apperr.KindInvalidParameter, "pool already exists")
	}

	st := pool.New(cfg, f.poolPath(cfg.Id), f.clock)
	if err := st.UpdatePool(cfg); err != nil {
		return nil, fmt.Errorf("facade: persist new pool: %w", err)
	}
	f.pools[cfg.Id] = st
	return st, nil
}

// GetUserPool loads pool id from persistence on first access, caching
// the handle for subsequent calls (spec.md §4.5).
func (f *Facade) GetUserPool(id string) (*pool.Store, error) {
	f.mu.RLock()
	if st, ok := f.pools[id]; ok {
		f.mu.RUnlock()
		return st, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.pools[id]; ok {
		return st, nil
	}

	path := f.poolPath(id)
	if path == "" {
		return nil, apperr.ErrResourceNotFound
	}
	st, err := pool.Load(path, f.clock)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindResourceNotFound, "user pool not found", err)
	}
	f.pools[id] = st
	f.rebuildClientIndexLocked(id, st)
	return st, nil
}

func (f *Facade) rebuildClientIndexLocked(poolID string, st *pool.Store) {
	for _, c := range st.ListClients() {
		f.clientIndex[c.ClientId] = poolID
	}
}

// RegisterClient records that clientID belongs to poolID, so that
// GetUserPoolForClientID can resolve it without scanning every pool.
func (f *Facade) RegisterClient(clientID, poolID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientIndex[clientID] = poolID
}

// GetUserPoolForClientID resolves the pool owning clientID, failing
// with ResourceNotFound if the client is unknown (spec.md §4.5).
func (f *Facade) GetUserPoolForClientID(clientID string) (*pool.Store, error) {
	f.mu.RLock()
	poolID, ok := f.clientIndex[clientID]
	f.mu.RUnlock()
	if !ok {
		return nil, apperr.ErrResourceNotFound
	}
	return f.GetUserPool(poolID)
}

// GetAppClient resolves clientID to its AppClient record by scanning
// the resolved pool's client table (spec.md §4.5).
func (f *Facade) GetAppClient(clientID string) (*pool.AppClient, *pool.Store, error) {
	st, err := f.GetUserPoolForClientID(clientID)
	if err != nil {
		return nil, nil, err
	}
	c, ok := st.GetClient(clientID)
	if !ok {
		return nil, nil, apperr.ErrResourceNotFound
	}
	return c, st, nil
}

// CreateUserPoolClient provisions a new app client under poolID and
// registers it in the reverse index.
func (f *Facade) CreateUserPoolClient(poolID string, c *pool.AppClient) (*pool.AppClient, error) {
	st, err := f.GetUserPool(poolID)
	if err != nil {
		return nil, err
	}
	if c.ClientId == "" {
		c.ClientId = f.ids.NewID()
	}
	c.UserPoolId = poolID
	if err := st.CreateClient(c); err != nil {
		return nil, err
	}
	f.RegisterClient(c.ClientId, poolID)
	return c, nil
}
