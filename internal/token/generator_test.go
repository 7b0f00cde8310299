package token_test

import (
	"testing"
	"time"

	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/keystore"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/token"
	"github.com/stretchr/testify/require"
)

func testKeys(t *testing.T) *keystore.KeyStore {
	t.Helper()
	ks, err := keystore.Load(t.TempDir()+"/key.pem", "sig-test")
	require.NoError(t, err)
	return ks
}

func testPoolAndClient() (pool.UserPool, pool.AppClient) {
	p := pool.UserPool{
		Id:        "us-east-1_ABC123",
		IssuerURL: "http://localhost/us-east-1_ABC123",
		TokenValidity: pool.TokenValidity{
			AccessTokenValiditySec: 3600,
			IdTokenValiditySec:     3600,
		},
	}
	c := pool.AppClient{ClientId: "client-1", UserPoolId: p.Id}
	return p, c
}

// Property 3: issued access tokens verify via JWKS and carry the
// expected claims, with exp - iat == pool.accessTokenValidity.
func TestIssueAccessTokenClaims(t *testing.T) {
	keys := testKeys(t)
	gen := token.New(keys, clockid.UUIDSource{}, clockid.Fixed{At: time.Unix(1000, 0)})
	p, c := testPoolAndClient()
	u := &pool.User{Sub: "sub-123", Username: "alice"}

	issued, err := gen.Issue(p, c, u, []string{"admins"}, token.ReasonAuthentication, nil)
	require.NoError(t, err)
	require.NotEmpty(t, issued.AccessToken)
	require.NotEmpty(t, issued.IDToken)
	require.NotEmpty(t, issued.RefreshToken)
	require.Equal(t, 3600, issued.ExpiresIn)

	claims, err := token.Verify(issued.AccessToken, keys)
	require.NoError(t, err)
	require.Equal(t, "sub-123", claims["sub"])
	require.Equal(t, "client-1", claims["client_id"])
	require.Equal(t, "access", claims["token_use"])

	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	require.Equal(t, int64(3600), exp-iat)
}

// Property 6: PreTokenGeneration overrides are visible exactly as
// returned, and suppressed claims are absent.
func TestIssueAppliesOverrides(t *testing.T) {
	keys := testKeys(t)
	gen := token.New(keys, clockid.UUIDSource{}, clockid.Fixed{At: time.Unix(1000, 0)})
	p, c := testPoolAndClient()
	u := &pool.User{Sub: "sub-123", Username: "alice"}

	issued, err := gen.Issue(p, c, u, []string{"members"}, token.ReasonAuthentication, &token.Overrides{
		ClaimsToAddOrOverride: map[string]any{"custom:tier": "gold"},
		ClaimsToSuppress:      []string{"scope"},
		GroupsToOverride:      []string{"admins", "members"},
	})
	require.NoError(t, err)

	claims, err := token.Verify(issued.AccessToken, keys)
	require.NoError(t, err)
	require.Equal(t, "gold", claims["custom:tier"])
	require.NotContains(t, claims, "scope")
	groups := claims["cognito:groups"].([]any)
	require.Equal(t, []any{"admins", "members"}, groups)
}

func TestIssueRefreshTokenReasonAppliesOnlyOnAuthentication(t *testing.T) {
	keys := testKeys(t)
	gen := token.New(keys, clockid.UUIDSource{}, clockid.System{})
	p, c := testPoolAndClient()
	u := &pool.User{Sub: "sub-123", Username: "alice"}

	issued, err := gen.Issue(p, c, u, nil, token.ReasonRefreshTokens, nil)
	require.NoError(t, err)
	require.Empty(t, issued.RefreshToken)
	require.NotEmpty(t, issued.AccessToken)
}

func TestIDTokenMapsBooleanAttributes(t *testing.T) {
	keys := testKeys(t)
	gen := token.New(keys, clockid.UUIDSource{}, clockid.System{})
	p, c := testPoolAndClient()
	u := &pool.User{Sub: "sub-1", Username: "alice"}
	u.SetAttribute("email", "alice@example.com")
	u.SetAttribute("email_verified", "true")

	issued, err := gen.Issue(p, c, u, nil, token.ReasonAuthentication, nil)
	require.NoError(t, err)

	claims, err := token.Verify(issued.IDToken, keys)
	require.NoError(t, err)
	require.Equal(t, true, claims["email_verified"])
	require.Equal(t, "alice@example.com", claims["email"])
}
