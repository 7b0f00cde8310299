package authflow

import "github.com/cognitoemu/cognito-emu/internal/pool"

// storeView is the subset of *pool.Store the auth flow needs. Factoring
// it out keeps this package testable against a fake store without
// dragging in the whole persistence layer.
type storeView interface {
	GetUserByUsername(username string) (*pool.User, bool)
	GetUserByRefreshToken(token string) (*pool.User, bool)
	SaveUser(u *pool.User) error
	StoreRefreshToken(username, token string) error
	ListUserGroupMembership(username string) []*pool.Group
}
