package authflow_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/cognitoemu/cognito-emu/internal/authflow"
	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/facade"
	"github.com/cognitoemu/cognito-emu/internal/keystore"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/token"
	"github.com/cognitoemu/cognito-emu/internal/trigger"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*authflow.Service, *facade.Facade, pool.UserPool, pool.AppClient) {
	t.Helper()
	ids := clockid.UUIDSource{}
	clock := clockid.System{}

	f := facade.New("", clock, ids)
	st, err := f.CreateUserPool(pool.UserPool{
		Name:      "test-pool",
		IssuerURL: "http://localhost/test-pool",
		TokenValidity: pool.TokenValidity{
			AccessTokenValiditySec: 3600,
			IdTokenValiditySec:     3600,
		},
	})
	require.NoError(t, err)
	p := st.Pool()

	client, err := f.CreateUserPoolClient(p.Id, &pool.AppClient{ClientName: "web"})
	require.NoError(t, err)

	ks, err := keystore.Load(t.TempDir()+"/key.pem", "sig-1")
	require.NoError(t, err)
	gen := token.New(ks, ids, clock)

	svc := authflow.New(f, gen, nil, nil, ids, clock, nil)
	return svc, f, p, *client
}

func TestUserPasswordAuthHappyPath(t *testing.T) {
	svc, f, p, client := newTestService(t)
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)

	require.NoError(t, st.SaveUser(&pool.User{
		Sub:        "sub-1",
		Username:   "alice",
		Password:   "correct-horse",
		UserStatus: pool.StatusConfirmed,
		Enabled:    true,
	}))

	out, err := svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId: client.ClientId,
		AuthFlow: authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": "alice",
			"PASSWORD": "correct-horse",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, out.AuthenticationResult)
	require.NotEmpty(t, out.AuthenticationResult.AccessToken)
	require.NotEmpty(t, out.AuthenticationResult.RefreshToken)

	reloaded, ok := st.GetUserByUsername("alice")
	require.True(t, ok)
	require.True(t, reloaded.HasRefreshToken(out.AuthenticationResult.RefreshToken))
}

func TestUserPasswordAuthWrongPassword(t *testing.T) {
	svc, f, p, client := newTestService(t)
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)
	require.NoError(t, st.SaveUser(&pool.User{
		Sub: "sub-1", Username: "alice", Password: "right", UserStatus: pool.StatusConfirmed, Enabled: true,
	}))

	_, err = svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{"USERNAME": "alice", "PASSWORD": "wrong"},
	})
	require.Error(t, err)
}

func TestUserPasswordAuthUnconfirmedUser(t *testing.T) {
	svc, f, p, client := newTestService(t)
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)
	require.NoError(t, st.SaveUser(&pool.User{
		Sub: "sub-1", Username: "bob", Password: "pw", UserStatus: pool.StatusUnconfirmed, Enabled: true,
	}))

	_, err = svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{"USERNAME": "bob", "PASSWORD": "pw"},
	})
	require.Error(t, err)
}

// Force-change-password users get a NEW_PASSWORD_REQUIRED challenge,
// and answering it with a new password completes the login.
func TestForceChangePasswordChallenge(t *testing.T) {
	svc, f, p, client := newTestService(t)
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)
	require.NoError(t, st.SaveUser(&pool.User{
		Sub: "sub-1", Username: "carol", Password: "temp123", UserStatus: pool.StatusForceChangePwd, Enabled: true,
	}))

	out, err := svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{"USERNAME": "carol", "PASSWORD": "temp123"},
	})
	require.NoError(t, err)
	require.Nil(t, out.AuthenticationResult)
	require.Equal(t, authflow.ChallengeNewPasswordRequired, out.ChallengeName)
	require.NotEmpty(t, out.Session)

	final, err := svc.RespondToAuthChallenge(context.Background(), authflow.RespondToAuthChallengeInput{
		ClientId:      client.ClientId,
		ChallengeName: authflow.ChallengeNewPasswordRequired,
		Session:       out.Session,
		ChallengeResponses: map[string]string{
			"NEW_PASSWORD":        "new-secure-pw",
			"userAttributes.name": "Carol",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, final.AuthenticationResult)

	reloaded, ok := st.GetUserByUsername("carol")
	require.True(t, ok)
	require.Equal(t, pool.StatusConfirmed, reloaded.UserStatus)
	require.Equal(t, "new-secure-pw", reloaded.Password)
	name, _ := reloaded.Attribute("name")
	require.Equal(t, "Carol", name)
}

// A user with no enrolled MFA settings cannot satisfy the pool's MFA
// requirement at all, regardless of MFAConfiguration.
func TestMFAChallengeRejectsUserWithNoEnrolledSettings(t *testing.T) {
	svc, f, p, client := newTestService(t)
	p.MFAConfiguration = pool.MFAOn
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)
	require.NoError(t, st.UpdatePool(p))
	require.NoError(t, st.SaveUser(&pool.User{
		Sub: "sub-1", Username: "dave", Password: "pw", UserStatus: pool.StatusConfirmed, Enabled: true,
	}))

	_, err = svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{"USERNAME": "dave", "PASSWORD": "pw"},
	})
	require.Error(t, err)
}

// MFA-enrolled users get the fixed "999999" challenge code via
// SOFTWARE_TOKEN_MFA and must echo it back exactly.
func TestMFAChallenge(t *testing.T) {
	svc, f, p, client := newTestService(t)
	p.MFAConfiguration = pool.MFAOn
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)
	require.NoError(t, st.UpdatePool(p))
	require.NoError(t, st.SaveUser(&pool.User{
		Sub: "sub-1", Username: "dave", Password: "pw", UserStatus: pool.StatusConfirmed, Enabled: true,
		UserMFASettingList: []pool.MFASetting{pool.SoftwareTokenMfa},
	}))

	out, err := svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{"USERNAME": "dave", "PASSWORD": "pw"},
	})
	require.NoError(t, err)
	require.Equal(t, authflow.ChallengeSoftwareTokenMfa, out.ChallengeName)

	_, err = svc.RespondToAuthChallenge(context.Background(), authflow.RespondToAuthChallengeInput{
		ClientId:           client.ClientId,
		ChallengeName:      authflow.ChallengeSoftwareTokenMfa,
		Session:            out.Session,
		ChallengeResponses: map[string]string{"SOFTWARE_TOKEN_MFA_CODE": "000000"},
	})
	require.Error(t, err)

	final, err := svc.RespondToAuthChallenge(context.Background(), authflow.RespondToAuthChallengeInput{
		ClientId:           client.ClientId,
		ChallengeName:      authflow.ChallengeSoftwareTokenMfa,
		Session:            out.Session,
		ChallengeResponses: map[string]string{"SOFTWARE_TOKEN_MFA_CODE": "999999"},
	})
	require.NoError(t, err)
	require.NotNil(t, final.AuthenticationResult)
}

// MFAOptional only triggers the challenge for users who have actually
// enrolled a second factor; users who haven't log in directly.
func TestMFAOptionalSkipsUnenrolledUser(t *testing.T) {
	svc, f, p, client := newTestService(t)
	p.MFAConfiguration = pool.MFAOptional
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)
	require.NoError(t, st.UpdatePool(p))
	require.NoError(t, st.SaveUser(&pool.User{
		Sub: "sub-1", Username: "erin", Password: "pw", UserStatus: pool.StatusConfirmed, Enabled: true,
	}))

	out, err := svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{"USERNAME": "erin", "PASSWORD": "pw"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.AuthenticationResult)
}

func TestRefreshTokenAuthDoesNotRotateRefreshToken(t *testing.T) {
	svc, f, p, client := newTestService(t)
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)
	require.NoError(t, st.SaveUser(&pool.User{
		Sub: "sub-1", Username: "erin", Password: "pw", UserStatus: pool.StatusConfirmed, Enabled: true,
	}))

	login, err := svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{"USERNAME": "erin", "PASSWORD": "pw"},
	})
	require.NoError(t, err)

	refreshed, err := svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowRefreshToken,
		AuthParameters: map[string]string{"REFRESH_TOKEN": login.AuthenticationResult.RefreshToken},
	})
	require.NoError(t, err)
	require.Empty(t, refreshed.AuthenticationResult.RefreshToken)
	require.NotEmpty(t, refreshed.AuthenticationResult.AccessToken)
}

func TestUserMigrationTriggerCreatesUser(t *testing.T) {
	svc, f, p, client := newTestService(t)

	p.LambdaConfig = pool.LambdaConfig{"UserMigration": "stub"}
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)
	require.NoError(t, st.UpdatePool(p))

	migrated := false
	svc.WithRuntimeResolver(func(pp pool.UserPool) *trigger.Runtime {
		return trigger.New(map[trigger.Hook]trigger.Handler{
			trigger.HookUserMigration: trigger.FuncHandler(func(ctx context.Context, e trigger.Event) (map[string]any, error) {
				migrated = true
				return map[string]any{
					"userAttributes": map[string]any{"email": "frank@example.com"},
					"finalUserStatus": "CONFIRMED",
				}, nil
			}),
		}, time.Second),
	})

	out, err := svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{"USERNAME": "frank", "PASSWORD": "anything"},
	})
	require.NoError(t, err)
	require.True(t, migrated)
	require.NotNil(t, out.AuthenticationResult)

	created, ok := st.GetUserByUsername("frank")
	require.True(t, ok)
	email, _ := created.Attribute("email")
	require.Equal(t, "frank@example.com", email)
}

func TestPreTokenGenerationOverridesApplied(t *testing.T) {
	svc, f, p, client := newTestService(t)
	st, err := f.GetUserPool(p.Id)
	require.NoError(t, err)
	require.NoError(t, st.SaveUser(&pool.User{
		Sub: "sub-1", Username: "grace", Password: "pw", UserStatus: pool.StatusConfirmed, Enabled: true,
	}))

	svc.WithRuntimeResolver(func(pp pool.UserPool) *trigger.Runtime {
		return trigger.New(map[trigger.Hook]trigger.Handler{
			trigger.HookPreTokenGeneration: trigger.FuncHandler(func(ctx context.Context, e trigger.Event) (map[string]any, error) {
				return map[string]any{
					"claimsOverrideDetails": map[string]any{
						"claimsToAddOrOverride": map[string]any{"custom:plan": "pro"},
					},
				}, nil
			}),
		}, time.Second),
	})

	out, err := svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId:       client.ClientId,
		AuthFlow:       authflow.FlowUserPasswordAuth,
		AuthParameters: map[string]string{"USERNAME": "grace", "PASSWORD": "pw"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.AuthenticationResult.AccessToken)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(out.AuthenticationResult.AccessToken, ".")[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(payload, &claims))
	require.Equal(t, "pro", claims["custom:plan"])
}

func TestUnsupportedAuthFlowRejected(t *testing.T) {
	svc, _, _, client := newTestService(t)
	_, err := svc.InitiateAuth(context.Background(), authflow.InitiateAuthInput{
		ClientId: client.ClientId,
		AuthFlow: "CUSTOM_AUTH",
	})
	require.Error(t, err)
}
