package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
)

// GetJWKS serves the pool-scoped JSON Web Key Set for OIDC verification
// (spec.md §4.4/§6: "/.well-known/jwks.json" under each pool's issuer).
func (s *Server) GetJWKS(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolId")
	if _, err := s.Facade.GetUserPool(poolID); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, s.Keys.JWKS())
}

// GetOIDCConfig serves the OIDC discovery document for a pool's issuer.
func (s *Server) GetOIDCConfig(w http.ResponseWriter, r *http.Request) {
	poolID := chi.URLParam(r, "poolId")
	st, err := s.Facade.GetUserPool(poolID)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	p := st.Pool()
	issuer := p.IssuerURL
	if issuer == "" {
		issuer = "http://localhost/" + p.Id
	}

	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"issuer":                                issuer,
		"jwks_uri":                              issuer + "/.well-known/jwks.json",
		"authorization_endpoint":                issuer + "/oauth2/authorize",
		"token_endpoint":                        issuer + "/oauth2/token",
		"userinfo_endpoint":                     issuer + "/oauth2/userInfo",
		"response_types_supported":              []string{"code", "token", "id_token"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "profile", "email", "phone", "aws.cognito.signin.user.admin"},
	})
}
