// Package token implements the token generator of spec.md §4.4:
// RS256-signed access/ID tokens with schema-driven claims, and opaque
// refresh-token minting.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/keystore"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/golang-jwt/jwt/v5"
)

// Reason is why tokens are being issued, carried for trigger context.
type Reason string

const (
	ReasonAuthentication Reason = "Authentication"
	ReasonRefreshTokens  Reason = "RefreshTokens"
)

// Generator issues access/ID/refresh token triples.
type Generator struct {
	keys  *keystore.KeyStore
	ids   clockid.IDSource
	clock clockid.Clock
}

// New creates a Generator signing with keys.
func New(keys *keystore.KeyStore, ids clockid.IDSource, clock clockid.Clock) *Generator {
	if ids == nil {
		ids = clockid.UUIDSource{}
	}
	if clock == nil {
		clock = clockid.System{}
	}
	return &Generator{keys: keys, ids: ids, clock: clock}
}

// Overrides is what a PreTokenGeneration (v2) trigger may apply: claims
// to add/override and claims to suppress, plus group overrides — shared
// by both the access and ID token (spec.md §4.4).
type Overrides struct {
	ClaimsToAddOrOverride map[string]any
	ClaimsToSuppress      []string
	GroupsToOverride      []string
}

// Issued is the result of a token-issuance call.
type Issued struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	ExpiresIn    int
}

// Issue mints a fresh access token and ID token for user authenticating
// against client in pool p, for reason. A refresh token is minted only
// for ReasonAuthentication; otherwise Issued.RefreshToken is empty.
// groups are the cognito:groups membership computed by the caller
// (internal/authflow), before any PreTokenGeneration override.
func (g *Generator) Issue(p pool.UserPool, client pool.AppClient, u *pool.User, groups []string, reason Reason, overrides *Overrides) (Issued, error) {
	now := g.clock.Now()

	accessValidity := p.TokenValidity.AccessTokenValiditySec
	if client.AccessTokenValiditySec > 0 {
		accessValidity = client.AccessTokenValiditySec
	}
	if accessValidity <= 0 {
		accessValidity = 3600
	}
	idValidity := p.TokenValidity.IdTokenValiditySec
	if client.IdTokenValiditySec > 0 {
		idValidity = client.IdTokenValiditySec
	}
	if idValidity <= 0 {
		idValidity = 3600
	}

	if overrides != nil && overrides.GroupsToOverride != nil {
		groups = overrides.GroupsToOverride
	}

	issuer := p.IssuerURL
	if issuer == "" {
		issuer = "http://localhost/" + p.Id
	}

	accessClaims := jwt.MapClaims{
		"sub":        u.Sub,
		"cognito:groups": groups,
		"iss":        issuer,
		"client_id":  client.ClientId,
		"origin_jti": g.ids.NewID(),
		"event_id":   g.ids.NewID(),
		"token_use":  "access",
		"scope":      "aws.cognito.signin.user.admin",
		"auth_time":  now.Unix(),
		"iat":        now.Unix(),
		"exp":        now.Add(time.Duration(accessValidity) * time.Second).Unix(),
		"jti":        g.ids.NewID(),
		"username":   u.Username,
	}

	idClaims := jwt.MapClaims{
		"sub":             u.Sub,
		"aud":             client.ClientId,
		"iss":             issuer,
		"cognito:username": u.Username,
		"token_use":       "id",
		"auth_time":       now.Unix(),
		"iat":             now.Unix(),
		"exp":             now.Add(time.Duration(idValidity) * time.Second).Unix(),
	}
	for _, a := range u.Attributes {
		idClaims[a.Name] = mapAttributeValue(p, a)
	}

	if overrides != nil {
		for k, v := range overrides.ClaimsToAddOrOverride {
			accessClaims[k] = v
			idClaims[k] = v
		}
		for _, k := range overrides.ClaimsToSuppress {
			delete(accessClaims, k)
			delete(idClaims, k)
		}
	}

	access, err := g.sign(accessClaims)
	if err != nil {
		return Issued{}, fmt.Errorf("token: sign access token: %w", err)
	}
	id, err := g.sign(idClaims)
	if err != nil {
		return Issued{}, fmt.Errorf("token: sign id token: %w", err)
	}

	var refresh string
	if reason == ReasonAuthentication {
		refresh, err = GenerateRefreshToken()
		if err != nil {
			return Issued{}, fmt.Errorf("token: generate refresh token: %w", err)
		}
	}

	return Issued{
		AccessToken:  access,
		IDToken:      id,
		RefreshToken: refresh,
		ExpiresIn:    accessValidity,
	}, nil
}

func (g *Generator) sign(claims jwt.MapClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = g.keys.Kid()
	return t.SignedString(g.keys.PrivateKey())
}

// mapAttributeValue renders a user attribute for the ID token: boolean
// attributes ("email_verified", "phone_number_verified") become real
// JSON booleans even though they are stored as "true"/"false" strings
// (spec.md §3).
func mapAttributeValue(p pool.UserPool, a pool.Attribute) any {
	if a.Name == "email_verified" || a.Name == "phone_number_verified" {
		return a.Value == "true"
	}
	return a.Value
}

// GenerateRefreshToken mints an opaque, >=256-bit-entropy refresh token
// (spec.md §4.4). It is never a JWT.
func GenerateRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
