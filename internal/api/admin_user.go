package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/messages"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/trigger"
)

// generateTemporaryPassword mints an opaque temporary password for
// AdminCreateUser when the caller doesn't supply one — never real
// password-strength generation, just enough entropy for a stub emulator.
func generateTemporaryPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "Tmp-" + base64.RawURLEncoding.EncodeToString(buf), nil
}

type adminCreateUserRequest struct {
	UserPoolId             string            `json:"UserPoolId"`
	Username               string            `json:"Username"`
	UserAttributes         []pool.Attribute  `json:"UserAttributes"`
	ValidationData         []pool.Attribute  `json:"ValidationData"`
	TemporaryPassword      string            `json:"TemporaryPassword"`
	MessageAction          string            `json:"MessageAction"`
	DesiredDeliveryMediums []string          `json:"DesiredDeliveryMediums"`
	ClientMetadata         map[string]string `json:"ClientMetadata"`
	ForceAliasCreation     bool              `json:"ForceAliasCreation"`
}

type adminCreateUserResponse struct {
	User userWire `json:"User"`
}

// AdminCreateUser provisions a user directly in FORCE_CHANGE_PASSWORD
// status with a temporary password, optionally delivering an invitation
// message unless MessageAction is "SUPPRESS" (spec.md §3 lifecycle).
func (s *Server) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req adminCreateUserRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if _, exists := st.GetUserByUsername(req.Username); exists {
		helpers.RespondError(w, apperr.New(apperr.KindUsernameExists, "user already exists"))
		return
	}
	p := st.Pool()

	tempPassword := req.TemporaryPassword
	if tempPassword == "" {
		tempPassword, err = generateTemporaryPassword()
		if err != nil {
			helpers.RespondError(w, apperr.Wrap(apperr.KindInternal, "generate temporary password", err))
			return
		}
	}

	u := &pool.User{
		Username:   req.Username,
		Sub:        s.newSub(),
		Password:   tempPassword,
		Enabled:    true,
		UserStatus: pool.StatusForceChangePwd,
		Attributes: req.UserAttributes,
	}

	if req.MessageAction != "SUPPRESS" {
		rt := s.runtimeFor(p)
		if _, err := s.deliverCode(r.Context(), rt, p.Id, u, messages.KindInvitation, tempPassword); err != nil {
			helpers.RespondError(w, apperr.Wrap(apperr.KindInternal, "deliver invitation", err))
			return
		}
	}

	if err := st.SaveUser(u); err != nil {
		helpers.RespondError(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, adminCreateUserResponse{User: toUserWire(u)})
}

type adminUsernameRequest struct {
	UserPoolId string `json:"UserPoolId"`
	Username   string `json:"Username"`
}

type userWire struct {
	Username           string           `json:"Username"`
	UserAttributes     []pool.Attribute `json:"UserAttributes,omitempty"`
	UserStatus         string           `json:"UserStatus"`
	Enabled            bool             `json:"Enabled"`
	UserCreateDate     int64            `json:"UserCreateDate"`
	UserLastModifiedDate int64          `json:"UserLastModifiedDate"`
	MFAOptions         []pool.MFAOption `json:"MFAOptions,omitempty"`
}

func toUserWire(u *pool.User) userWire {
	return userWire{
		Username:             u.Username,
		UserAttributes:        u.Attributes,
		UserStatus:            string(u.UserStatus),
		Enabled:               u.Enabled,
		UserCreateDate:        u.CreateDate.Unix(),
		UserLastModifiedDate:  u.LastModifiedDate.Unix(),
		MFAOptions:            u.MFAOptions,
	}
}

// AdminGetUser returns a user's full record by pool+username.
func (s *Server) AdminGetUser(w http.ResponseWriter, r *http.Request) {
	var req adminUsernameRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	u, ok := st.GetUserByUsername(req.Username)
	if !ok {
		helpers.RespondError(w, apperr.ErrUserNotFound)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, toUserWire(u))
}

// AdminDeleteUser removes a user from the pool outright.
func (s *Server) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	var req adminUsernameRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if err := st.DeleteUser(req.Username); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	var req adminUsernameRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	u, ok := st.GetUserByUsername(req.Username)
	if !ok {
		helpers.RespondError(w, apperr.ErrUserNotFound)
		return
	}
	u.Enabled = enabled
	if err := st.SaveUser(u); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

// AdminDisableUser sets Enabled=false; a disabled user cannot authenticate.
func (s *Server) AdminDisableUser(w http.ResponseWriter, r *http.Request) { s.setEnabled(w, r, false) }

// AdminEnableUser sets Enabled=true.
func (s *Server) AdminEnableUser(w http.ResponseWriter, r *http.Request) { s.setEnabled(w, r, true) }

type adminUpdateUserAttributesRequest struct {
	UserPoolId     string            `json:"UserPoolId"`
	Username       string            `json:"Username"`
	UserAttributes []pool.Attribute  `json:"UserAttributes"`
	ClientMetadata map[string]string `json:"ClientMetadata"`
}

// AdminUpdateUserAttributes upserts each attribute onto the user record.
func (s *Server) AdminUpdateUserAttributes(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateUserAttributesRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	u, ok := st.GetUserByUsername(req.Username)
	if !ok {
		helpers.RespondError(w, apperr.ErrUserNotFound)
		return
	}
	for _, a := range req.UserAttributes {
		u.SetAttribute(a.Name, a.Value)
	}
	if err := st.SaveUser(u); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

type adminSetUserPasswordRequest struct {
	UserPoolId string `json:"UserPoolId"`
	Username   string `json:"Username"`
	Password   string `json:"Password"`
	Permanent  bool   `json:"Permanent"`
}

// AdminSetUserPassword sets a user's password directly. A non-permanent
// password leaves the user in FORCE_CHANGE_PASSWORD, requiring a
// NEW_PASSWORD_REQUIRED round trip on next login; a permanent one
// clears that requirement (spec.md §3 lifecycle).
func (s *Server) AdminSetUserPassword(w http.ResponseWriter, r *http.Request) {
	var req adminSetUserPasswordRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	u, ok := st.GetUserByUsername(req.Username)
	if !ok {
		helpers.RespondError(w, apperr.ErrUserNotFound)
		return
	}
	u.Password = req.Password
	if req.Permanent {
		u.UserStatus = pool.StatusConfirmed
	} else {
		u.UserStatus = pool.StatusForceChangePwd
	}
	if err := st.SaveUser(u); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

// AdminConfirmSignUp moves a still-UNCONFIRMED user to CONFIRMED
// without validating a confirmation code, running PostConfirmation.
func (s *Server) AdminConfirmSignUp(w http.ResponseWriter, r *http.Request) {
	var req adminUsernameRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}
	st, err := s.Facade.GetUserPool(req.UserPoolId)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	p := st.Pool()
	u, ok := st.GetUserByUsername(req.Username)
	if !ok {
		helpers.RespondError(w, apperr.ErrUserNotFound)
		return
	}
	u.UserStatus = pool.StatusConfirmed
	u.ConfirmationCode = ""
	if err := st.SaveUser(u); err != nil {
		helpers.RespondError(w, err)
		return
	}

	rt := s.runtimeFor(p)
	if rt.Enabled(trigger.HookPostConfirmation) {
		if _, err := rt.Invoke(r.Context(), trigger.HookPostConfirmation, trigger.Event{
			UserPoolID: p.Id,
			UserName:   u.Username,
			Request:    map[string]any{"userAttributes": u.AttributeMap()},
		}); err != nil {
			s.logger.Error("post_confirmation_trigger_failed", "pool", p.Id, "user", u.Username, "error", err)
		}
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}
