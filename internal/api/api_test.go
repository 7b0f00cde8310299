package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cognitoemu/cognito-emu/internal/api"
	"github.com/cognitoemu/cognito-emu/internal/authflow"
	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/facade"
	"github.com/cognitoemu/cognito-emu/internal/keystore"
	"github.com/cognitoemu/cognito-emu/internal/messages"
	"github.com/cognitoemu/cognito-emu/internal/otp"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/token"
)

// testServer wires a full Server against an in-memory facade with a
// fixed OTP code, the same collaborators cmd/emulator/main.go builds.
func testServer(t *testing.T) (*api.Server, *httptest.Server, pool.UserPool, *pool.AppClient) {
	t.Helper()
	clock := clockid.System{}
	ids := clockid.UUIDSource{}

	f := facade.New("", clock, ids)
	st, err := f.CreateUserPool(pool.UserPool{
		Id:        "e2e-pool",
		Name:      "e2e-pool",
		IssuerURL: "http://localhost/e2e-pool",
		TokenValidity: pool.TokenValidity{
			AccessTokenValiditySec: 3600,
			IdTokenValiditySec:     3600,
		},
	})
	require.NoError(t, err)
	client, err := f.CreateUserPoolClient(st.Pool().Id, &pool.AppClient{ClientName: "web"})
	require.NoError(t, err)

	ks, err := keystore.Load(t.TempDir()+"/key.pem", "sig-1")
	require.NoError(t, err)
	tokens := token.New(ks, ids, clock)
	otpSvc := otp.New("e2e-pool", otp.WithTestMode("123456"))
	messagesSvc := messages.New(t.TempDir()+"/deliveries.log", nil)
	authSvc := authflow.New(f, tokens, otpSvc, messagesSvc, ids, clock, nil)

	srv := api.NewServer(f, authSvc, tokens, ks, otpSvc, messagesSvc, ids, 0, nil)
	httpSrv := httptest.NewServer(srv.NewRouter())
	t.Cleanup(httpSrv.Close)
	return srv, httpSrv, st.Pool(), client
}

func doTarget(t *testing.T, base, target string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, base+"/", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", "AWSCognitoIdentityProviderService."+target)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestSignUpConfirmAndLoginFlow(t *testing.T) {
	_, httpSrv, _, client := testServer(t)

	status, signUpOut := doTarget(t, httpSrv.URL, "SignUp", map[string]any{
		"ClientId": client.ClientId,
		"Username": "maria",
		"Password": "s3cret-pw",
		"UserAttributes": []map[string]string{
			{"Name": "email", "Value": "maria@example.com"},
		},
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, signUpOut["UserConfirmed"])
	require.NotEmpty(t, signUpOut["UserSub"])

	status, _ = doTarget(t, httpSrv.URL, "ConfirmSignUp", map[string]any{
		"ClientId":         client.ClientId,
		"Username":         "maria",
		"ConfirmationCode": "123456",
	})
	require.Equal(t, http.StatusOK, status)

	status, authOut := doTarget(t, httpSrv.URL, "InitiateAuth", map[string]any{
		"ClientId": client.ClientId,
		"AuthFlow": "USER_PASSWORD_AUTH",
		"AuthParameters": map[string]string{
			"USERNAME": "maria",
			"PASSWORD": "s3cret-pw",
		},
	})
	require.Equal(t, http.StatusOK, status)
	result, ok := authOut["AuthenticationResult"].(map[string]any)
	require.True(t, ok)
	accessToken, _ := result["AccessToken"].(string)
	require.NotEmpty(t, accessToken)

	status, userOut := doTarget(t, httpSrv.URL, "GetUser", map[string]any{
		"AccessToken": accessToken,
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "maria", userOut["Username"])
}

func TestSignUpDuplicateUsernameRejected(t *testing.T) {
	_, httpSrv, _, client := testServer(t)

	body := map[string]any{"ClientId": client.ClientId, "Username": "noah", "Password": "pw-12345"}
	status, _ := doTarget(t, httpSrv.URL, "SignUp", body)
	require.Equal(t, http.StatusOK, status)

	status, errOut := doTarget(t, httpSrv.URL, "SignUp", body)
	require.NotEqual(t, http.StatusOK, status)
	require.Equal(t, "UsernameExistsException", errOut["__type"])
}

func TestInitiateAuthUnknownOperationReturns400(t *testing.T) {
	_, httpSrv, _, _ := testServer(t)
	status, out := doTarget(t, httpSrv.URL, "NotARealOperation", map[string]any{})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotEmpty(t, out["__type"])
}

func TestAdminCreateUserAndSetPasswordFlow(t *testing.T) {
	_, httpSrv, p, _ := testServer(t)

	status, createOut := doTarget(t, httpSrv.URL, "AdminCreateUser", map[string]any{
		"UserPoolId":    p.Id,
		"Username":      "otto",
		"MessageAction": "SUPPRESS",
	})
	require.Equal(t, http.StatusOK, status)
	userWire, ok := createOut["User"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "FORCE_CHANGE_PASSWORD", userWire["UserStatus"])

	status, _ = doTarget(t, httpSrv.URL, "AdminSetUserPassword", map[string]any{
		"UserPoolId": p.Id,
		"Username":   "otto",
		"Password":   "new-permanent-pw",
		"Permanent":  true,
	})
	require.Equal(t, http.StatusOK, status)

	status, getOut := doTarget(t, httpSrv.URL, "AdminGetUser", map[string]any{
		"UserPoolId": p.Id,
		"Username":   "otto",
	})
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "CONFIRMED", getOut["UserStatus"])
}

func TestJWKSEndpointServesActivePoolKey(t *testing.T) {
	_, httpSrv, p, _ := testServer(t)

	resp, err := http.Get(httpSrv.URL + "/" + p.Id + "/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jwks map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	keys, ok := jwks["keys"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, keys)
}

func TestJWKSEndpointUnknownPoolIs404(t *testing.T) {
	_, httpSrv, _, _ := testServer(t)
	resp, err := http.Get(httpSrv.URL + "/does-not-exist/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	_, httpSrv, _, _ := testServer(t)
	resp, err := http.Get(httpSrv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
