package api

import (
	"net/http"

	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/authflow"
)

type initiateAuthRequest struct {
	AuthFlow       string            `json:"AuthFlow"`
	ClientId       string            `json:"ClientId"`
	UserPoolId     string            `json:"UserPoolId"`
	AuthParameters map[string]string `json:"AuthParameters"`
	ClientMetadata map[string]string `json:"ClientMetadata"`
}

type authenticationResultWire struct {
	AccessToken  string `json:"AccessToken"`
	IdToken      string `json:"IdToken"`
	RefreshToken string `json:"RefreshToken,omitempty"`
	ExpiresIn    int    `json:"ExpiresIn"`
	TokenType    string `json:"TokenType"`
}

type authOutputWire struct {
	AuthenticationResult *authenticationResultWire `json:"AuthenticationResult,omitempty"`
	ChallengeName        string                    `json:"ChallengeName,omitempty"`
	ChallengeParameters  map[string]string         `json:"ChallengeParameters,omitempty"`
	Session              string                    `json:"Session,omitempty"`
}

func wireOutput(out *authflow.Output) authOutputWire {
	w := authOutputWire{
		ChallengeName:       string(out.ChallengeName),
		ChallengeParameters: out.ChallengeParameters,
		Session:             out.Session,
	}
	if out.AuthenticationResult != nil {
		ar := out.AuthenticationResult
		w.AuthenticationResult = &authenticationResultWire{
			AccessToken:  ar.AccessToken,
			IdToken:      ar.IdToken,
			RefreshToken: ar.RefreshToken,
			ExpiresIn:    ar.ExpiresIn,
			TokenType:    ar.TokenType,
		}
	}
	return w
}

func (s *Server) initiateAuth(w http.ResponseWriter, r *http.Request, admin bool) {
	var req initiateAuthRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	out, err := s.Auth.InitiateAuth(r.Context(), authflow.InitiateAuthInput{
		ClientId:       req.ClientId,
		AuthFlow:       authflow.AuthFlow(req.AuthFlow),
		AuthParameters: req.AuthParameters,
		ClientMetadata: req.ClientMetadata,
		Admin:          admin,
	})
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, wireOutput(out))
}

// InitiateAuth starts (or completes, for REFRESH_TOKEN) an
// authentication attempt (spec.md §4.1).
func (s *Server) InitiateAuth(w http.ResponseWriter, r *http.Request) { s.initiateAuth(w, r, false) }

// AdminInitiateAuth is InitiateAuth's admin-initiated counterpart. It
// accepts the same flows as InitiateAuth; ADMIN_NO_SRP_AUTH is rejected
// as unsupported.
func (s *Server) AdminInitiateAuth(w http.ResponseWriter, r *http.Request) { s.initiateAuth(w, r, true) }

type respondToAuthChallengeRequest struct {
	ClientId           string            `json:"ClientId"`
	UserPoolId         string            `json:"UserPoolId"`
	ChallengeName       string            `json:"ChallengeName"`
	Session             string            `json:"Session"`
	ChallengeResponses  map[string]string `json:"ChallengeResponses"`
	ClientMetadata      map[string]string `json:"ClientMetadata"`
}

func (s *Server) respondToAuthChallenge(w http.ResponseWriter, r *http.Request) {
	var req respondToAuthChallengeRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	out, err := s.Auth.RespondToAuthChallenge(r.Context(), authflow.RespondToAuthChallengeInput{
		ClientId:           req.ClientId,
		ChallengeName:      authflow.ChallengeName(req.ChallengeName),
		Session:            req.Session,
		ChallengeResponses: req.ChallengeResponses,
		ClientMetadata:     req.ClientMetadata,
	})
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, wireOutput(out))
}

// RespondToAuthChallenge answers a pending NEW_PASSWORD_REQUIRED/
// SMS_MFA/SOFTWARE_TOKEN_MFA/PASSWORD_VERIFIER challenge.
func (s *Server) RespondToAuthChallenge(w http.ResponseWriter, r *http.Request) {
	s.respondToAuthChallenge(w, r)
}

// AdminRespondToAuthChallenge is the admin-initiated counterpart; the
// challenge/session mechanics are identical regardless of caller.
func (s *Server) AdminRespondToAuthChallenge(w http.ResponseWriter, r *http.Request) {
	s.respondToAuthChallenge(w, r)
}

type globalSignOutRequest struct {
	AccessToken string `json:"AccessToken"`
}

// GlobalSignOut purges every refresh token issued to the bearer's
// account, so previously issued refresh tokens stop working
// immediately (spec.md §8 property 1's revocation side).
func (s *Server) GlobalSignOut(w http.ResponseWriter, r *http.Request) {
	var req globalSignOutRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	b, err := s.resolveBearer(req.AccessToken)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if err := b.Store.PurgeRefreshTokens(b.User.Username); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

type adminUserGlobalSignOutRequest struct {
	UserPoolId string `json:"UserPoolId"`
	Username   string `json:"Username"`
}

// AdminUserGlobalSignOut is GlobalSignOut's admin-initiated, pool+
// username-addressed counterpart.
func (s *Server) AdminUserGlobalSignOut(w http.ResponseWriter, r *http.Request) {
	var req adminUserGlobalSignOutRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if err := st.PurgeRefreshTokens(req.Username); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}
