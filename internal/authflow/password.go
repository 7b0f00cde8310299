package authflow

import (
	"context"
	"encoding/json"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/token"
	"github.com/cognitoemu/cognito-emu/internal/trigger"
)

// passwordAuth implements USER_PASSWORD_AUTH / ADMIN_USER_PASSWORD_AUTH:
// a plaintext USERNAME/PASSWORD pair checked directly against the
// stored record, falling back to the UserMigration trigger when the
// user does not exist (spec.md §4.1).
func (s *Service) passwordAuth(ctx context.Context, st storeView, p pool.UserPool, client pool.AppClient, rt *trigger.Runtime, params map[string]string) (*Output, error) {
	username := params["USERNAME"]
	password := params["PASSWORD"]
	if username == "" || password == "" {
		return nil, apperr.New(apperr.KindInvalidParameter, "USERNAME and PASSWORD are required")
	}

	u, ok := st.GetUserByUsername(username)
	if !ok {
		if !rt.Enabled(trigger.HookUserMigration) {
			return nil, apperr.ErrNotAuthorized
		}
		migrated, err := s.migrateUser(ctx, st, p, rt, username, password)
		if err != nil {
			return nil, apperr.ErrNotAuthorized
		}
		u = migrated
	} else {
		switch u.UserStatus {
		case pool.StatusResetRequired:
			return nil, apperr.New(apperr.KindPasswordResetNeeded, "password reset required")
		case pool.StatusForceChangePwd:
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
		if u.Password != password {
			return nil, apperr.New(apperr.KindInvalidPassword, "incorrect username or password")
		}
	}

	if rt.Enabled(trigger.HookPreAuthentication) {
		if _, err := rt.Invoke(ctx, trigger.HookPreAuthentication, trigger.Event{
			UserPoolID: p.Id,
			UserName:   u.Username,
			Request:    map[string]any{"userAttributes": u.AttributeMap()},
		}); err != nil {
			return nil, wrapTriggerErr(err)
		}
	}

	return s.completeAfterPasswordCheck(ctx, st, p, client, rt, u)
}

// completeAfterPasswordCheck runs the shared tail of every successful
// credential check: the confirmed-status gate, the MFA gate, the
// PostAuthentication trigger, and token issuance (spec.md §4.1). Every
// auth path that ends in "the password/SRP check passed" joins back into
// this one sequence; a passed MFA-code check goes straight to issueTokens.
func (s *Service) completeAfterPasswordCheck(ctx context.Context, st storeView, p pool.UserPool, client pool.AppClient, rt *trigger.Runtime, u *pool.User) (*Output, error) {
	if u.UserStatus == pool.StatusUnconfirmed {
		return nil, apperr.New(apperr.KindUserNotConfirmed, "user is not confirmed")
	}

	if p.MFAConfiguration == pool.MFAOn || (p.MFAConfiguration == pool.MFAOptional && len(u.UserMFASettingList) > 0) {
		return s.mfaChallenge(st, p, client, u)
	}

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

// mfaChallenge pins the deterministic "999999" MFA code against u and
// returns the matching challenge (spec.md §4.1: "the MFA code is always
// the fixed value 999999, never actually delivered"). A user with no
// enrolled MFA settings cannot satisfy the pool's MFA requirement at
// all, and software-token MFA is the only enrollment this emulator
// supports, so the challenge is always SOFTWARE_TOKEN_MFA.
func (s *Service) mfaChallenge(st storeView, p pool.UserPool, client pool.AppClient, u *pool.User) (*Output, error) {
	if len(u.UserMFASettingList) == 0 {
		return nil, apperr.ErrNotAuthorized
	}
	hasSoftwareToken := false
	for _, m := range u.UserMFASettingList {
		if m == pool.SoftwareTokenMfa {
			hasSoftwareToken = true
			break
		}
	}
	if !hasSoftwareToken {
		return nil, apperr.Unsupported("MFA method")
	}

	u.MFACode = "999999"
	if err := st.SaveUser(u); err != nil {
		return nil, err
	}

	challenge := ChallengeSoftwareTokenMfa

	sessionToken := s.newSession(pendingChallenge{
		ChallengeName: challenge,
		PoolID:        p.Id,
		ClientID:      client.ClientId,
		Username:      u.Username,
	})
	return &Output{
		ChallengeName:       challenge,
		ChallengeParameters: map[string]string{"USER_ID_FOR_SRP": u.Username},
		Session:             sessionToken,
	}, nil
}

// issueTokens rejects a disabled user, computes group membership, applies
// any PreTokenGeneration override, mints the token triple, and records a
// fresh refresh token against the user (spec.md §4.1, §4.4).
func (s *Service) issueTokens(ctx context.Context, st storeView, p pool.UserPool, client pool.AppClient, rt *trigger.Runtime, u *pool.User, reason token.Reason) (*Output, error) {
	if !u.Enabled {
		return nil, apperr.New(apperr.KindNotAuthorized, "user is disabled")
	}
	groups := groupNames(st.ListUserGroupMembership(u.Username))

	overrides, err := s.preTokenOverrides(ctx, rt, p, u, groups)
	if err != nil {
		return nil, wrapTriggerErr(err)
	}

	issued, err := s.tokens.Issue(p, client, u, groups, reason, overrides)
	if err != nil {
		return nil, err
	}
	if issued.RefreshToken != "" {
		if err := st.StoreRefreshToken(u.Username, issued.RefreshToken); err != nil {
			return nil, err
		}
	}

	return &Output{AuthenticationResult: &AuthenticationResult{
		AccessToken:  issued.AccessToken,
		IdToken:      issued.IDToken,
		RefreshToken: issued.RefreshToken,
		ExpiresIn:    issued.ExpiresIn,
		TokenType:    "Bearer",
	}}, nil
}

// preTokenOverrides invokes the PreTokenGeneration trigger, if bound,
// and translates its v2 claimsOverrideDetails contract into a
// token.Overrides (spec.md §4.4).
func (s *Service) preTokenOverrides(ctx context.Context, rt *trigger.Runtime, p pool.UserPool, u *pool.User, groups []string) (*token.Overrides, error) {
	if !rt.Enabled(trigger.HookPreTokenGeneration) {
		return nil, nil
	}

	resp, err := rt.Invoke(ctx, trigger.HookPreTokenGeneration, trigger.Event{
		UserPoolID: p.Id,
		UserName:   u.Username,
		Request: map[string]any{
			"userAttributes":     u.AttributeMap(),
			"groupConfiguration": map[string]any{"groupsToOverride": groups},
		},
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	details, ok := resp["claimsOverrideDetails"].(map[string]any)
	if !ok {
		return nil, nil
	}

	ov := &token.Overrides{}
	if m, ok := details["claimsToAddOrOverride"].(map[string]any); ok {
		ov.ClaimsToAddOrOverride = m
	}
	if arr, ok := details["claimsToSuppress"].([]any); ok {
		for _, v := range arr {
			if str, ok := v.(string); ok {
				ov.ClaimsToSuppress = append(ov.ClaimsToSuppress, str)
			}
		}
	}
	if gd, ok := details["groupOverrideDetails"].(map[string]any); ok {
		if arr, ok := gd["groupsToOverride"].([]any); ok {
			gs := make([]string, 0, len(arr))
			for _, v := range arr {
				if str, ok := v.(string); ok {
					gs = append(gs, str)
				}
			}
			ov.GroupsToOverride = gs
		}
	}
	return ov, nil
}
