package api

import (
	"net/http"

	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
	"github.com/cognitoemu/cognito-emu/internal/apperr"
)

type associateSoftwareTokenRequest struct {
	AccessToken string `json:"AccessToken"`
	Session     string `json:"Session"`
}

type associateSoftwareTokenResponse struct {
	SecretCode string `json:"SecretCode"`
	Session    string `json:"Session,omitempty"`
}

// AssociateSoftwareToken issues a fresh TOTP secret for the bearer and
// stores it pending VerifySoftwareToken confirmation (spec.md §2's
// software-token MFA enrollment surface).
func (s *Server) AssociateSoftwareToken(w http.ResponseWriter, r *http.Request) {
	var req associateSoftwareTokenRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	b, err := s.resolveBearer(req.AccessToken)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}

	key, err := s.OTP.GenerateSoftwareTokenSecret(b.User.Username)
	if err != nil {
		helpers.RespondError(w, apperr.Wrap(apperr.KindInternal, "generate totp secret", err))
		return
	}

	b.User.SoftwareTokenSecret = key.Secret()
	if err := b.Store.SaveUser(b.User); err != nil {
		helpers.RespondError(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, associateSoftwareTokenResponse{SecretCode: key.Secret(), Session: req.Session})
}

type verifySoftwareTokenRequest struct {
	AccessToken        string `json:"AccessToken"`
	Session            string `json:"Session"`
	UserCode           string `json:"UserCode"`
	FriendlyDeviceName string `json:"FriendlyDeviceName"`
}

type verifySoftwareTokenResponse struct {
	Status string `json:"Status"`
}

// VerifySoftwareToken checks the enrollment code against the secret
// issued by AssociateSoftwareToken and, on success, enrolls
// SOFTWARE_TOKEN_MFA as an available second factor for the user.
func (s *Server) VerifySoftwareToken(w http.ResponseWriter, r *http.Request) {
	var req verifySoftwareTokenRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	b, err := s.resolveBearer(req.AccessToken)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}
	if b.User.SoftwareTokenSecret == "" {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, "no software token associated"))
		return
	}
	if !s.OTP.ValidateSoftwareTokenCode(req.UserCode, b.User.SoftwareTokenSecret) {
		helpers.RespondError(w, apperr.New(apperr.KindCodeMismatch, "user code does not match"))
		return
	}

	enable := true
	if err := b.Store.SetUserMFAPreference(b.User.Username, nil, &enable, ""); err != nil {
		helpers.RespondError(w, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, verifySoftwareTokenResponse{Status: "SUCCESS"})
}

type mfaSettings struct {
	Enabled       bool   `json:"Enabled"`
	PreferredMfa  bool   `json:"PreferredMfa"`
}

type setUserMFAPreferenceRequest struct {
	AccessToken             string       `json:"AccessToken"`
	SMSMfaSettings           *mfaSettings `json:"SMSMfaSettings"`
	SoftwareTokenMfaSettings *mfaSettings `json:"SoftwareTokenMfaSettings"`
}

// SetUserMFAPreference enables/disables each MFA medium and records
// which one is preferred for challenge selection.
func (s *Server) SetUserMFAPreference(w http.ResponseWriter, r *http.Request) {
	var req setUserMFAPreferenceRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, apperr.New(apperr.KindInvalidParameter, err.Error()))
		return
	}

	b, err := s.resolveBearer(req.AccessToken)
	if err != nil {
		helpers.RespondError(w, err)
		return
	}

	var sms, software *bool
	preferred := ""
	if req.SMSMfaSettings != nil {
		v := req.SMSMfaSettings.Enabled
		sms = &v
		if v && req.SMSMfaSettings.PreferredMfa {
			preferred = "SMS_MFA"
		}
	}
	if req.SoftwareTokenMfaSettings != nil {
		v := req.SoftwareTokenMfaSettings.Enabled
		software = &v
		if v && req.SoftwareTokenMfaSettings.PreferredMfa {
			preferred = "SOFTWARE_TOKEN_MFA"
		}
	}

	if err := b.Store.SetUserMFAPreference(b.User.Username, sms, software, preferred); err != nil {
		helpers.RespondError(w, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, struct{}{})
}
