package authflow

import (
	"context"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/token"
)

// refreshAuth implements REFRESH_TOKEN / REFRESH_TOKEN_AUTH: resolve the
// owning user through the pool's refresh-token index and mint a new
// access/ID token pair without rotating the refresh token itself
// (spec.md §4.1, §4.4).
func (s *Service) refreshAuth(ctx context.Context, st storeView, p pool.UserPool, client pool.AppClient, params map[string]string) (*Output, error) {
	rt := params["REFRESH_TOKEN"]
	if rt == "" {
		return nil, apperr.New(apperr.KindInvalidParameter, "REFRESH_TOKEN is required")
	}

	u, ok := st.GetUserByRefreshToken(rt)
	if !ok {
		return nil, apperr.ErrNotAuthorized
	}

	runtime := s.runtimeFor(p)
	return s.issueTokens(ctx, st, p, client, runtime, u, token.ReasonRefreshTokens)
}
