package api

import (
	"strings"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/token"
)

// bearer is the resolved identity behind a self-service AccessToken:
// which pool, which store, and the user it names.
type bearer struct {
	Store *pool.Store
	Pool  pool.UserPool
	User  *pool.User
}

// resolveBearer verifies accessToken and resolves it back to the user
// it names. The pool id is taken from the last path segment of the
// token's issuer, since self-service operations (GetUser,
// ChangePassword, ...) carry no explicit UserPoolId in their request
// body the way Admin* ops do. The generator (internal/token) uses a
// pool's IssuerURL verbatim when it is set, so the lookup succeeds only
// when that IssuerURL is empty or ends in the pool id.
func (s *Server) resolveBearer(accessToken string) (*bearer, error) {
	if accessToken == "" {
		return nil, apperr.New(apperr.KindNotAuthorized, "access token is required")
	}

	claims, err := token.Verify(accessToken, s.Keys)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotAuthorized, "invalid access token", err)
	}
	if use, _ := claims["token_use"].(string); use != "access" {
		return nil, apperr.New(apperr.KindNotAuthorized, "not an access token")
	}

	issuer, _ := claims["iss"].(string)
	poolID := issuer[strings.LastIndex(issuer, "/")+1:]
	if poolID == "" {
		return nil, apperr.New(apperr.KindNotAuthorized, "invalid access token issuer")
	}

	st, err := s.Facade.GetUserPool(poolID)
	if err != nil {
		return nil, apperr.ErrNotAuthorized
	}

	username, _ := claims["username"].(string)
	u, ok := st.GetUserByUsername(username)
	if !ok {
		return nil, apperr.ErrNotAuthorized
	}

	return &bearer{Store: st, Pool: st.Pool(), User: u}, nil
}
