package api

import (
	"net/http"

	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/pool"
)

type getUserRequest struct {
	AccessToken string `json:"AccessToken"`
}

// GetUser returns the bearer's own user record.
func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	var req getUserRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	b, err := s.resolveBearer(req.AccessToken)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toUserWire(b.User))
}

type updateUserAttributesRequest struct {
	AccessToken    string           `json:"AccessToken"`
	UserAttributes []pool.Attribute `json:"UserAttributes"`
}

// UpdateUserAttributes lets the bearer update their own attributes.
func (s *Server) UpdateUserAttributes(w http.ResponseWriter, r *http.Request) {
	var req updateUserAttributesRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	b, err := s.resolveBearer(req.AccessToken)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	for _, a := range req.UserAttributes {
		b.User.SetAttribute(a.Name, a.Value)
	}
	if err := b.Store.SaveUser(b.User); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

type changePasswordRequest struct {
	AccessToken      string `json:"AccessToken"`
	PreviousPassword string `json:"PreviousPassword"`
	ProposedPassword string `json:"ProposedPassword"`
}

// ChangePassword lets the bearer set a new password after proving the
// current one, exact-string comparison per the emulator's documented
// unhashed-password deviation.
func (s *Server) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	b, err := s.resolveBearer(req.AccessToken)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if b.User.Password != req.PreviousPassword {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidPassword, "incorrect previous password"))
		return
	}
	b.User.Password = req.ProposedPassword
	if b.User.UserStatus == pool.StatusForceChangePwd {
		b.User.UserStatus = pool.StatusConfirmed
	}
	if err := b.Store.SaveUser(b.User); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

// DeleteUser lets the bearer delete their own account.
func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req getUserRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	b, err := s.resolveBearer(req.AccessToken)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if err := b.Store.DeleteUser(b.User.Username); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

type listUsersRequest struct {
	UserPoolId      string   `json:"UserPoolId"`
	Filter          string   `json:"Filter"`
	Limit           int      `json:"Limit"`
	PaginationToken string   `json:"PaginationToken"`
	AttributesToGet []string `json:"AttributesToGet"`
}

type listUsersResponse struct {
	Users           []userWire `json:"Users"`
	PaginationToken string     `json:"PaginationToken,omitempty"`
}

// ListUsers returns a filtered, paginated page of a pool's users
// (spec.md §4.2).
func (s *Server) ListUsers(w http.ResponseWriter, r *http.Request) {
	var req listUsersRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	page, err := st.ListUsers(req.Filter, req.PaginationToken, req.Limit)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	users := make([]userWire, len(page.Users))
	for i, u := range page.Users {
		users[i] = toUserWire(u)
	}
	helpers.RespondJSON(w, http.StatusOK, listUsersResponse{Users: users, PaginationToken: page.PaginationToken})
}
