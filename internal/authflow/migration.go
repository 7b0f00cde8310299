package authflow

import (
	"context"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/trigger"
)

// migrateUser invokes the UserMigration trigger for a USERNAME that has
// no local record, materializing a CONFIRMED user from its response
// (spec.md §4.1, design note on UserMigration). A trigger that returns
// no response (the unbound/refused case) fails the login as
// NotAuthorized, matching the rest of the password path.
func (s *Service) migrateUser(ctx context.Context, st storeView, p pool.UserPool, rt *trigger.Runtime, username, password string) (*pool.User, error) {
	resp, err := rt.Invoke(ctx, trigger.HookUserMigration, trigger.Event{
		UserPoolID: p.Id,
		UserName:   username,
		Request: map[string]any{
			"password":       password,
			"validationData": map[string]string{},
		},
	})
	if err != nil {
		return nil, wrapTriggerErr(err)
	}
	if resp == nil {
		return nil, apperr.ErrNotAuthorized
	}

	u := &pool.User{
		Username:   username,
		Sub:        s.ids.NewID(),
		Password:   password,
		Enabled:    true,
		UserStatus: pool.StatusConfirmed,
	}
	if attrs, ok := resp["userAttributes"].(map[string]any); ok {
		for name, v := range attrs {
			if str, ok := v.(string); ok {
				u.SetAttribute(name, str)
			}
		}
	}
	if fs, ok := resp["finalUserStatus"].(string); ok && fs != "" {
		u.UserStatus = pool.UserStatus(fs)
	}

	if err := st.SaveUser(u); err != nil {
		return nil, err
	}
	return u, nil
}
