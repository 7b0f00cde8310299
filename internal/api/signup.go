package api

import (
	"context"
	"net/http"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
	"github.com/cognitoemu/cognito-emu/internal/messages"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/trigger"
)

type codeDeliveryDetails struct {
	Destination     string `json:"Destination"`
	DeliveryMedium   string `json:"DeliveryMedium"`
	AttributeName    string `json:"AttributeName"`
}

// chooseMedium picks the delivery channel for a code: email wins over
// SMS when both are present, matching the real service's default.
func chooseMedium(u *pool.User) (messages.Medium, string, string) {
	if email, ok := u.Attribute("email"); ok && email != "" {
		return messages.MediumEmail, "email", maskDestination(email)
	}
	if phone, ok := u.Attribute("phone_number"); ok && phone != "" {
		return messages.MediumSMS, "phone_number", maskDestination(phone)
	}
	return messages.MediumEmail, "email", ""
}

// maskDestination reveals only enough of the destination to disambiguate
// it: the first character, "***", then the last three characters
// ("maria@example.com" becomes "m***com").
func maskDestination(dest string) string {
	if len(dest) <= 3 {
		return "***"
	}
	return dest[:1] + "***" + dest[len(dest)-3:]
}

func (s *Server) deliverCode(ctx context.Context, rt *trigger.Runtime, poolID string, u *pool.User, kind messages.Kind, code string) (codeDeliveryDetails, error) {
	medium, attr, masked := chooseMedium(u)
	msg, err := s.Messages.Render(ctx, rt, poolID, u.Username, kind, medium, code)
	if err != nil {
		return codeDeliveryDetails{}, err
	}
	if err := s.Messages.Deliver(ctx, rt, msg); err != nil {
		return codeDeliveryDetails{}, err
	}
	return codeDeliveryDetails{Destination: masked, DeliveryMedium: string(medium), AttributeName: attr}, nil
}

type signUpRequest struct {
	ClientId       string            `json:"ClientId"`
	Username       string            `json:"Username"`
	Password       string            `json:"Password"`
	UserAttributes []pool.Attribute  `json:"UserAttributes"`
	ValidationData []pool.Attribute  `json:"ValidationData"`
	ClientMetadata map[string]string `json:"ClientMetadata"`
}

type signUpResponse struct {
	UserConfirmed       bool                `json:"UserConfirmed"`
	UserSub             string              `json:"UserSub"`
	CodeDeliveryDetails codeDeliveryDetails `json:"CodeDeliveryDetails"`
}

// SignUp registers a new, initially UNCONFIRMED user, running PreSignUp
// and delivering (or auto-confirming past) the confirmation code
// (spec.md §4.1's sibling self-service surface, §2/§6 for delivery).
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	_, st, err := s.Facade.GetAppClient(req.ClientId)
	if err != nil {
		helpers.RespondError(w, apperr.ErrNotAuthorized)
		return
	}
	p := st.Pool()
	if _, exists := st.GetUserByUsername(req.Username); exists {
		helpers.RespondError(w, apperr.New(apperr.KindUsernameExists, "user already exists"))
		return
	}

	rt := s.runtimeFor(p)
	ctx := r.Context()

	u := &pool.User{
		Username:   req.Username,
		Sub:        s.newSub(),
		Password:   req.Password,
		Enabled:    true,
		UserStatus: pool.StatusUnconfirmed,
		Attributes: req.UserAttributes,
	}

	autoConfirm, autoVerifyEmail, autoVerifyPhone := false, false, false
	if rt.Enabled(trigger.HookPreSignUp) {
		resp, err := rt.Invoke(ctx, trigger.HookPreSignUp, trigger.Event{
			UserPoolID: p.Id,
			UserName:   u.Username,
			Request: map[string]any{
				"userAttributes": u.AttributeMap(),
				"validationData": attrMap(req.ValidationData),
				"clientMetadata": req.ClientMetadata,
			},
		})
		if err != nil {
			helpers.RespondError(w, wrapTrigger(err))
			return
		}
		if resp != nil {
			autoConfirm, _ = resp["autoConfirmUser"].(bool)
			autoVerifyEmail, _ = resp["autoVerifyEmail"].(bool)
			autoVerifyPhone, _ = resp["autoVerifyPhone"].(bool)
		}
	}
	if autoVerifyEmail {
		u.SetAttribute("email_verified", "true")
	}
	if autoVerifyPhone {
		u.SetAttribute("phone_number_verified", "true")
	}

	var delivery codeDeliveryDetails
	if autoConfirm {
		u.UserStatus = pool.StatusConfirmed
	} else {
		code, err := s.OTP.GenerateConfirmationCode()
		if err != nil {
			helpers.RespondError(w, apperr.Wrap(apperr.KindInternal, "generate confirmation code", err))
			return
		}
		u.ConfirmationCode = code
		delivery, err = s.deliverCode(ctx, rt, p.Id, u, messages.KindSignUpConfirmation, code)
		if err != nil {
			helpers.RespondError(w, apperr.Wrap(apperr.KindInternal, "deliver confirmation code", err))
			return
		}
	}

	if err := st.SaveUser(u); err != nil {
		helpers.RespondError(w, err)
		return
	}

	if autoConfirm && rt.Enabled(trigger.HookPostConfirmation) {
		if _, err := rt.Invoke(ctx, trigger.HookPostConfirmation, trigger.Event{
			UserPoolID: p.Id,
			UserName:   u.Username,
			Request:    map[string]any{"userAttributes": u.AttributeMap()},
		}); err != nil {
			s.logger.Error("post_confirmation_trigger_failed", "pool", p.Id, "user", u.Username, "error", err)
		}
	}

	helpers.RespondJSON(w, http.StatusOK, signUpResponse{
		UserConfirmed:       autoConfirm,
		UserSub:             u.Sub,
		CodeDeliveryDetails: delivery,
	})
}

type confirmSignUpRequest struct {
	ClientId         string `json:"ClientId"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
}

// ConfirmSignUp validates the delivered code and moves the user to
// CONFIRMED, running PostConfirmation.
func (s *Server) ConfirmSignUp(w http.ResponseWriter, r *http.Request) {
	var req confirmSignUpRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	_, st, err := s.Facade.GetAppClient(req.ClientId)
	if err != nil {
		helpers.RespondError(w, apperr.ErrNotAuthorized)
		return
	}
	p := st.Pool()
	u, ok := st.GetUserByUsername(req.Username)
	if !ok {
		helpers.RespondError(w, apperr.ErrUserNotFound)
		return
	}
	if u.ConfirmationCode == "" || u.ConfirmationCode != req.ConfirmationCode {
		helpers.RespondError(w, apperr.New(apperr.KindCodeMismatch, "confirmation code does not match"))
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

type resendConfirmationCodeRequest struct {
	ClientId string `json:"ClientId"`
	Username string `json:"Username"`
}

type resendConfirmationCodeResponse struct {
	CodeDeliveryDetails codeDeliveryDetails `json:"CodeDeliveryDetails"`
}

// ResendConfirmationCode re-issues and re-delivers a fresh confirmation
// code for a still-UNCONFIRMED user.
func (s *Server) ResendConfirmationCode(w http.ResponseWriter, r *http.Request) {
	var req resendConfirmationCodeRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	_, st, err := s.Facade.GetAppClient(req.ClientId)
	if err != nil {
		helpers.RespondError(w, apperr.ErrNotAuthorized)
		return
	}
	p := st.Pool()
	u, ok := st.GetUserByUsername(req.Username)
	if !ok {
		helpers.RespondError(w, apperr.ErrUserNotFound)
		return
	}
	if u.UserStatus != pool.StatusUnconfirmed {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, "user is already confirmed"))
		return
	}

	code, err := s.OTP.GenerateConfirmationCode()
	if err != nil {
		helpers.RespondError(w, apperr.Wrap(apperr.KindInternal, "generate confirmation code", err))
		return
	}
	u.ConfirmationCode = code

	rt := s.runtimeFor(p)
	delivery, err := s.deliverCode(r.Context(), rt, p.Id, u, messages.KindSignUpConfirmation, code)
	if err != nil {
		helpers.RespondError(w, apperr.Wrap(apperr.KindInternal, "deliver confirmation code", err))
		return
	}
	if err := st.SaveUser(u); err != nil {
		helpers.RespondError(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, resendConfirmationCodeResponse{CodeDeliveryDetails: delivery})
}

type forgotPasswordRequest struct {
	ClientId string `json:"ClientId"`
	Username string `json:"Username"`
}

type forgotPasswordResponse struct {
	CodeDeliveryDetails codeDeliveryDetails `json:"CodeDeliveryDetails"`
}

// ForgotPassword issues a password-reset code for an existing user.
func (s *Server) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	_, st, err := s.Facade.GetAppClient(req.ClientId)
	if err != nil {
		helpers.RespondError(w, apperr.ErrNotAuthorized)
		return
	}
	p := st.Pool()
	u, ok := st.GetUserByUsername(req.Username)
	if !ok {
		helpers.RespondError(w, apperr.ErrUserNotFound)
		return
	}

	code, err := s.OTP.GenerateConfirmationCode()
	if err != nil {
		helpers.RespondError(w, apperr.Wrap(apperr.KindInternal, "generate confirmation code", err))
		return
	}
	u.ConfirmationCode = code

	rt := s.runtimeFor(p)
	delivery, err := s.deliverCode(r.Context(), rt, p.Id, u, messages.KindForgotPassword, code)
	if err != nil {
		helpers.RespondError(w, apperr.Wrap(apperr.KindInternal, "deliver confirmation code", err))
		return
	}
	if err := st.SaveUser(u); err != nil {
		helpers.RespondError(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, forgotPasswordResponse{CodeDeliveryDetails: delivery})
}

type confirmForgotPasswordRequest struct {
	ClientId         string `json:"ClientId"`
	Username         string `json:"Username"`
	ConfirmationCode string `json:"ConfirmationCode"`
	Password         string `json:"Password"`
}

// ConfirmForgotPassword validates the reset code and sets the new
// password, clearing any forced reset/change status.
func (s *Server) ConfirmForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req confirmForgotPasswordRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	_, st, err := s.Facade.GetAppClient(req.ClientId)
	if err != nil {
		helpers.RespondError(w, apperr.ErrNotAuthorized)
		return
	}
	u, ok := st.GetUserByUsername(req.Username)
	if !ok {
		helpers.RespondError(w, apperr.ErrUserNotFound)
		return
	}
	if u.ConfirmationCode == "" || u.ConfirmationCode != req.ConfirmationCode {
		helpers.RespondError(w, apperr.New(apperr.KindCodeMismatch, "confirmation code does not match"))
		return
	}

	u.Password = req.Password
	u.ConfirmationCode = ""
	if u.UserStatus == pool.StatusResetRequired || u.UserStatus == pool.StatusForceChangePwd {
		u.UserStatus = pool.StatusConfirmed
	}
	if err := st.SaveUser(u); err != nil {
		helpers.RespondError(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}

func attrMap(attrs []pool.Attribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name] = a.Value
	}
	return m
}

// wrapTrigger mirrors internal/authflow's wrapTriggerErr for handlers
// outside the auth state machine that also invoke triggers directly.
func wrapTrigger(err error) error {
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	return apperr.Wrap(apperr.KindInternal, "trigger invocation failed", err)
}
