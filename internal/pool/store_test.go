package pool_test

import (
	"fmt"
	"testing"

	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *pool.Store {
	t.Helper()
	return pool.New(pool.UserPool{Id: "us-east-1_TEST", Name: "test"}, "", clockid.Fixed{})
}

func newUser(username, sub string) *pool.User {
	u := &pool.User{
		Username:   username,
		Sub:        sub,
		UserStatus: pool.StatusConfirmed,
		Enabled:    true,
		Password:   "p@ss",
	}
	u.SetAttribute("email", username+"@example.com")
	return u
}

// Property 1: for all users u, if t in u.RefreshTokens then
// GetUserByRefreshToken(t) == u, and this holds after every mutation.
func TestRefreshTokenIndexInvariant(t *testing.T) {
	s := newTestStore(t)
	u := newUser("alice", "sub-1")
	require.NoError(t, s.SaveUser(u))

	require.NoError(t, s.StoreRefreshToken("alice", "rt-1"))
	require.NoError(t, s.StoreRefreshToken("alice", "rt-2"))

	for _, tok := range []string{"rt-1", "rt-2"} {
		got, ok := s.GetUserByRefreshToken(tok)
		require.True(t, ok)
		require.Equal(t, "alice", got.Username)
	}

	// Mutate via a second user; invariant must still hold for alice's tokens.
	require.NoError(t, s.SaveUser(newUser("bob", "sub-2")))
	got, ok := s.GetUserByRefreshToken("rt-1")
	require.True(t, ok)
	require.Equal(t, "alice", got.Username)
}

// Property 2: n successful logins grow RefreshTokens by exactly n, no
// rotation, no duplicates across distinct tokens.
func TestRefreshTokensGrowByLoginCount(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveUser(newUser("alice", "sub-1")))

	for i := 0; i < 5; i++ {
		require.NoError(t, s.StoreRefreshToken("alice", fmt.Sprintf("rt-%d", i)))
	}
	got, ok := s.GetUserByUsername("alice")
	require.True(t, ok)
	require.Len(t, got.RefreshTokens, 5)
}

// Property 4 (half): storing the same token twice leaves the set unchanged.
func TestStoreRefreshTokenIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveUser(newUser("alice", "sub-1")))

	require.NoError(t, s.StoreRefreshToken("alice", "rt-1"))
	require.NoError(t, s.StoreRefreshToken("alice", "rt-1"))

	got, _ := s.GetUserByUsername("alice")
	require.Len(t, got.RefreshTokens, 1)
}

// Property 4 (half): setting the same MFA preference twice equals once.
func TestSetUserMFAPreferenceIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveUser(newUser("alice", "sub-1")))

	truth := true
	require.NoError(t, s.SetUserMFAPreference("alice", nil, &truth, "SOFTWARE_TOKEN_MFA"))
	require.NoError(t, s.SetUserMFAPreference("alice", nil, &truth, "SOFTWARE_TOKEN_MFA"))

	got, _ := s.GetUserByUsername("alice")
	require.Equal(t, []pool.MFASetting{pool.SoftwareTokenMfa}, got.UserMFASettingList)
	require.Equal(t, "SOFTWARE_TOKEN_MFA", got.PreferredMfaSetting)
}

// Property 5: deleting a user removes every token in RefreshTokens from
// the pool's reverse index.
func TestDeleteUserPurgesRefreshTokens(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveUser(newUser("alice", "sub-1")))
	require.NoError(t, s.StoreRefreshToken("alice", "rt-1"))
	require.NoError(t, s.StoreRefreshToken("alice", "rt-2"))

	require.NoError(t, s.DeleteUser("alice"))

	_, ok := s.GetUserByRefreshToken("rt-1")
	require.False(t, ok)
	_, ok = s.GetUserByRefreshToken("rt-2")
	require.False(t, ok)
	_, ok = s.GetUserByUsername("alice")
	require.False(t, ok)
}

func TestGetUserByUsernameCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveUser(newUser("Alice", "sub-1")))

	got, ok := s.GetUserByUsername("alice")
	require.True(t, ok)
	require.Equal(t, "Alice", got.Username)
}

func TestListUsersFilterAndPagination(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveUser(newUser(fmt.Sprintf("user%d", i), fmt.Sprintf("sub-%d", i))))
	}

	page, err := s.ListUsers("", "", 2)
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	require.NotEmpty(t, page.PaginationToken)

	page2, err := s.ListUsers("", page.PaginationToken, 2)
	require.NoError(t, err)
	require.Len(t, page2.Users, 2)

	filtered, err := s.ListUsers(`email ^= "user1"`, "", 10)
	require.NoError(t, err)
	require.Len(t, filtered.Users, 1)
	require.Equal(t, "user1", filtered.Users[0].Username)
}

func TestGroupMembership(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveUser(newUser("alice", "sub-1")))
	require.NoError(t, s.CreateGroup(&pool.Group{GroupName: "admins"}))

	require.NoError(t, s.AddUserToGroup("admins", "alice"))
	require.NoError(t, s.AddUserToGroup("admins", "alice")) // idempotent

	members, err := s.ListGroupMembership("admins")
	require.NoError(t, err)
	require.Equal(t, []string{"alice"}, members)

	groups := s.ListUserGroupMembership("alice")
	require.Len(t, groups, 1)
	require.Equal(t, "admins", groups[0].GroupName)

	require.NoError(t, s.RemoveUserFromGroup("admins", "alice"))
	members, err = s.ListGroupMembership("admins")
	require.NoError(t, err)
	require.Empty(t, members)
}
