// Package authflow implements the authentication state machine of
// spec.md §4.1: InitiateAuth and RespondToAuthChallenge, including the
// MFA sub-flow, user-migration fallback, and forced-password-change
// challenge.
package authflow

// AuthFlow is one of the AuthFlow values InitiateAuth accepts.
type AuthFlow string

const (
	FlowUserPasswordAuth      AuthFlow = "USER_PASSWORD_AUTH"
	FlowRefreshToken          AuthFlow = "REFRESH_TOKEN"
	FlowRefreshTokenAuth      AuthFlow = "REFRESH_TOKEN_AUTH"
	FlowUserSRPAuth           AuthFlow = "USER_SRP_AUTH"
	FlowCustomAuth            AuthFlow = "CUSTOM_AUTH"
	FlowAdminNoSRPAuth        AuthFlow = "ADMIN_NO_SRP_AUTH"
	FlowAdminUserPasswordAuth AuthFlow = "ADMIN_USER_PASSWORD_AUTH"
)

// ChallengeName is one of the pending-challenge names.
type ChallengeName string

const (
	ChallengeNewPasswordRequired ChallengeName = "NEW_PASSWORD_REQUIRED"
	ChallengeSMSMfa              ChallengeName = "SMS_MFA"
	ChallengeSoftwareTokenMfa    ChallengeName = "SOFTWARE_TOKEN_MFA"
	ChallengePasswordVerifier    ChallengeName = "PASSWORD_VERIFIER"
)

// InitiateAuthInput is the decoded request body for InitiateAuth.
type InitiateAuthInput struct {
	ClientId       string
	AuthFlow       AuthFlow
	AuthParameters map[string]string
	ClientMetadata map[string]string
	// Admin marks ADMIN_* flows / admin-initiated calls. The auth flow
	// does not read it, and it is not passed on to triggers.
	Admin bool
}

// RespondToAuthChallengeInput is the decoded request body for
// RespondToAuthChallenge.
type RespondToAuthChallengeInput struct {
	ClientId            string
	ChallengeName       ChallengeName
	Session             string
	ChallengeResponses  map[string]string
	ClientMetadata      map[string]string
}

// AuthenticationResult carries freshly issued tokens.
type AuthenticationResult struct {
	AccessToken  string
	IdToken      string
	RefreshToken string
	ExpiresIn    int
	TokenType    string
}

// Output is the common shape returned by both InitiateAuth and
// RespondToAuthChallenge: either AuthenticationResult is set, or a
// pending challenge is (spec.md §4.1).
type Output struct {
	AuthenticationResult *AuthenticationResult
	ChallengeName        ChallengeName
	ChallengeParameters  map[string]string
	Session              string
}
