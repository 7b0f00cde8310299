package facade_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/facade"
	"github.com/cognitoemu/cognito-emu/internal/pool"
)

func newFacade(t *testing.T, dir string) *facade.Facade {
	t.Helper()
	return facade.New(dir, clockid.System{}, clockid.UUIDSource{})
}

func TestCreateUserPoolAssignsIdAndCaches(t *testing.T) {
	f := newFacade(t, "")
	st, err := f.CreateUserPool(pool.UserPool{Name: "tenant-a"})
	require.NoError(t, err)
	require.NotEmpty(t, st.Pool().Id)

	again, err := f.GetUserPool(st.Pool().Id)
	require.NoError(t, err)
	require.Same(t, st, again)
}

func TestCreateUserPoolDuplicateIdRejected(t *testing.T) {
	f := newFacade(t, "")
	_, err := f.CreateUserPool(pool.UserPool{Id: "fixed-pool"})
	require.NoError(t, err)

	_, err = f.CreateUserPool(pool.UserPool{Id: "fixed-pool"})
	require.Error(t, err)
}

func TestGetUserPoolUnknownReturnsNotFound(t *testing.T) {
	f := newFacade(t, "")
	_, err := f.GetUserPool("does-not-exist")
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	require.Equal(t, apperr.KindResourceNotFound, ae.Kind)
}

func TestGetUserPoolLoadsFromPersistenceOnMiss(t *testing.T) {
	dir := t.TempDir()
	f := newFacade(t, dir)
	st, err := f.CreateUserPool(pool.UserPool{Id: "persisted-pool", Name: "disk-backed"})
	require.NoError(t, err)
	require.NoError(t, st.SaveUser(&pool.User{Sub: "s1", Username: "hana", UserStatus: pool.StatusConfirmed}))

	fresh := facade.New(dir, clockid.System{}, clockid.UUIDSource{})
	reloaded, err := fresh.GetUserPool("persisted-pool")
	require.NoError(t, err)
	require.Equal(t, "disk-backed", reloaded.Pool().Name)

	u, ok := reloaded.GetUserByUsername("hana")
	require.True(t, ok)
	require.Equal(t, "s1", u.Sub)
}

func TestCreateUserPoolClientRegistersReverseIndex(t *testing.T) {
	f := newFacade(t, "")
	st, err := f.CreateUserPool(pool.UserPool{Id: "pool-1"})
	require.NoError(t, err)

	client, err := f.CreateUserPoolClient(st.Pool().Id, &pool.AppClient{ClientName: "mobile"})
	require.NoError(t, err)
	require.NotEmpty(t, client.ClientId)
	require.Equal(t, "pool-1", client.UserPoolId)

	gotClient, gotStore, err := f.GetAppClient(client.ClientId)
	require.NoError(t, err)
	require.Equal(t, client.ClientId, gotClient.ClientId)
	require.Equal(t, st.Pool().Id, gotStore.Pool().Id)
}

func TestGetUserPoolForClientIDUnknownIsNotFound(t *testing.T) {
	f := newFacade(t, "")
	_, err := f.GetUserPoolForClientID("nope")
	require.Error(t, err)
}

func TestGetUserPoolForClientIDResolvesAfterProcessRestart(t *testing.T) {
	dir := t.TempDir()
	f := newFacade(t, dir)
	st, err := f.CreateUserPool(pool.UserPool{Id: "pool-2"})
	require.NoError(t, err)
	client, err := f.CreateUserPoolClient(st.Pool().Id, &pool.AppClient{ClientName: "web"})
	require.NoError(t, err)

	fresh := facade.New(dir, clockid.System{}, clockid.UUIDSource{})
	// The reverse index is rebuilt lazily from a pool's own client table
	// once that pool is first loaded, not eagerly for every file on disk.
	_, err = fresh.GetUserPool("pool-2")
	require.NoError(t, err)

	gotStore, err := fresh.GetUserPoolForClientID(client.ClientId)
	require.NoError(t, err)
	require.Equal(t, "pool-2", gotStore.Pool().Id)
}

func TestPoolPathJoinsPersistDir(t *testing.T) {
	dir := t.TempDir()
	f := newFacade(t, dir)
	st, err := f.CreateUserPool(pool.UserPool{Id: "pool-3"})
	require.NoError(t, err)
	require.NoError(t, st.SaveUser(&pool.User{Sub: "s1", Username: "ivan", UserStatus: pool.StatusConfirmed}))

	require.FileExists(t, filepath.Join(dir, "pool-3.json"))
}
