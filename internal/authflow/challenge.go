package authflow

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/token"
	"github.com/cognitoemu/cognito-emu/internal/trigger"
)

// RespondToAuthChallenge answers a pending challenge identified by
// Session, dispatching to the matching handler (spec.md §4.1). An
// unknown or expired session is reported the same way regardless of
// challenge kind: InvalidParameter, since by this point the client has
// already lost whatever context it needed to retry meaningfully.
func (s *Service) RespondToAuthChallenge(ctx context.Context, in RespondToAuthChallengeInput) (*Output, error) {
	client, st, err := s.facade.GetAppClient(in.ClientId)
	if err != nil {
		return nil, apperr.ErrNotAuthorized
	}
	p := st.Pool()
	rt := s.runtimeFor(p)

	pc, ok := s.sessions.get(s.clock, in.Session)
	if !ok {
		return nil, apperr.New(apperr.KindInvalidParameter, "challenge session expired or unknown")
	}

	switch in.ChallengeName {
	case ChallengeNewPasswordRequired:
		return s.respondNewPasswordRequired(ctx, st, p, *client, rt, pc, in)
	case ChallengeSMSMfa, ChallengeSoftwareTokenMfa:
		return s.respondMFA(ctx, st, p, *client, rt, pc, in)
	case ChallengePasswordVerifier:
		return s.respondPasswordVerifier(ctx, st, p, *client, rt, pc, in)
	default:
		return nil, apperr.Unsupported(string(in.ChallengeName))
	}
}

func challengeUsername(pc pendingChallenge, responses map[string]string) string {
	if pc.Username != "" {
		return pc.Username
	}
	return responses["USERNAME"]
}

// respondNewPasswordRequired overwrites the password, marks the user
// CONFIRMED, applies any "userAttributes.<name>" responses, and rejoins
// the common post-password-check path (spec.md §4.1).
func (s *Service) respondNewPasswordRequired(ctx context.Context, st storeView, p pool.UserPool, client pool.AppClient, rt *trigger.Runtime, pc pendingChallenge, in RespondToAuthChallengeInput) (*Output, error) {
	username := challengeUsername(pc, in.ChallengeResponses)
	u, ok := st.GetUserByUsername(username)
	if !ok {
		return nil, apperr.ErrUserNotFound
	}

	newPassword := in.ChallengeResponses["NEW_PASSWORD"]
	if newPassword == "" {
		return nil, apperr.New(apperr.KindInvalidParameter, "NEW_PASSWORD is required")
	}
	u.Password = newPassword
	u.UserStatus = pool.StatusConfirmed

	const attrPrefix = "userAttributes."
	for k, v := range in.ChallengeResponses {
		if name, ok := strings.CutPrefix(k, attrPrefix); ok {
			u.SetAttribute(name, v)
		}
	}
	if err := st.SaveUser(u); err != nil {
		return nil, err
	}
	s.sessions.delete(in.Session)

	return s.completeAfterPasswordCheck(ctx, st, p, client, rt, u)
}

// respondMFA compares the submitted code against the fixed "999999"
// stub pinned by InitiateAuth and, on a match, completes the login
// (spec.md §4.1).
func (s *Service) respondMFA(ctx context.Context, st storeView, p pool.UserPool, client pool.AppClient, rt *trigger.Runtime, pc pendingChallenge, in RespondToAuthChallengeInput) (*Output, error) {
	username := challengeUsername(pc, in.ChallengeResponses)
	u, ok := st.GetUserByUsername(username)
	if !ok {
		return nil, apperr.ErrUserNotFound
	}

	code := in.ChallengeResponses["SOFTWARE_TOKEN_MFA_CODE"]
	if code == "" {
		code = in.ChallengeResponses["SMS_MFA_CODE"]
	}
	if code == "" || u.MFACode == "" || code != u.MFACode {
		return nil, apperr.New(apperr.KindCodeMismatch, "mfa code does not match")
	}

	u.MFACode = ""
	if err := st.SaveUser(u); err != nil {
		return nil, err
	}
	s.sessions.delete(in.Session)

	if rt.Enabled(trigger.HookPostAuthentication) {
		if _, err := rt.Invoke(ctx, trigger.HookPostAuthentication, trigger.Event{
			UserPoolID: p.Id,
			UserName:   u.Username,
			Request:    map[string]any{"userAttributes": u.AttributeMap()},
		}); err != nil {
			return nil, wrapTriggerErr(err)
		}
	}

	return s.issueTokens(ctx, st, p, client, rt, u, token.ReasonAuthentication)
}

// respondPasswordVerifier is the stub SRP second step: it accepts a
// plaintext "PASSWORD" challenge response in place of the real SRP
// proof, then runs exactly the status checks and post-login sequence
// USER_PASSWORD_AUTH would (spec.md §1 non-goal, §4.1).
func (s *Service) respondPasswordVerifier(ctx context.Context, st storeView, p pool.UserPool, client pool.AppClient, rt *trigger.Runtime, pc pendingChallenge, in RespondToAuthChallengeInput) (*Output, error) {
	username := in.ChallengeResponses["USERNAME"]
	if username == "" {
		username = pc.Username
	}
	u, ok := st.GetUserByUsername(username)
	if !ok {
		return nil, apperr.ErrNotAuthorized
	}
	if u.Password != in.ChallengeResponses["PASSWORD"] {
		return nil, apperr.New(apperr.KindInvalidPassword, "incorrect username or password")
	}

	switch u.UserStatus {
	case pool.StatusResetRequired:
		return nil, apperr.New(apperr.KindPasswordResetNeeded, "password reset required")
	case pool.StatusForceChangePwd:
		s.sessions.delete(in.Session)
		sessionToken := s.newSession(pendingChallenge{
			ChallengeName: ChallengeNewPasswordRequired,
			PoolID:        p.Id,
			ClientID:      client.ClientId,
			Username:      u.Username,
		})
		userAttrs, err := json.Marshal(u.AttributeMap())
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "marshal user attributes", err)
		}
		return &Output{
			ChallengeName: ChallengeNewPasswordRequired,
			ChallengeParameters: map[string]string{
				"USER_ID_FOR_SRP":    u.Username,
				"requiredAttributes": "[]",
				"userAttributes":     string(userAttrs),
			},
			Session: sessionToken,
		}, nil
	}

	s.sessions.delete(in.Session)
	return s.completeAfterPasswordCheck(ctx, st, p, client, rt, u)
}
