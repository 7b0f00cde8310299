package api

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cognitoemu/cognito-emu/internal/api/helpers"
	customMiddleware "github.com/cognitoemu/cognito-emu/internal/api/middleware"
	"github.com/cognitoemu/cognito-emu/internal/apperr"
)

// targetPrefix is the AWS JSON 1.1 protocol's header namespace for the
// Cognito Identity Provider service (spec.md §1/§7).
const targetPrefix = "AWSCognitoIdentityProviderService."

// registry maps an operation name (the X-Amz-Target suffix) to the
// handler implementing it — the "dynamic dispatch by target name,
// modelled as a registry" design of spec.md's design notes.
func (s *Server) registry() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"InitiateAuth":               s.InitiateAuth,
		"RespondToAuthChallenge":     s.RespondToAuthChallenge,
		"AdminInitiateAuth":          s.AdminInitiateAuth,
		"AdminRespondToAuthChallenge": s.AdminRespondToAuthChallenge,
		"GlobalSignOut":              s.GlobalSignOut,
		"AdminUserGlobalSignOut":     s.AdminUserGlobalSignOut,

		"SignUp":                  s.SignUp,
		"ConfirmSignUp":           s.ConfirmSignUp,
		"ResendConfirmationCode":  s.ResendConfirmationCode,
		"ForgotPassword":          s.ForgotPassword,
		"ConfirmForgotPassword":   s.ConfirmForgotPassword,

		"AdminCreateUser":            s.AdminCreateUser,
		"AdminGetUser":               s.AdminGetUser,
		"AdminDeleteUser":            s.AdminDeleteUser,
		"AdminDisableUser":           s.AdminDisableUser,
		"AdminEnableUser":            s.AdminEnableUser,
		"AdminUpdateUserAttributes":  s.AdminUpdateUserAttributes,
		"AdminSetUserPassword":       s.AdminSetUserPassword,
		"AdminConfirmSignUp":         s.AdminConfirmSignUp,

		"CreateGroup":             s.CreateGroup,
		"GetGroup":                s.GetGroup,
		"DeleteGroup":             s.DeleteGroup,
		"ListGroups":              s.ListGroups,
		"AdminAddUserToGroup":      s.AdminAddUserToGroup,
		"AdminRemoveUserFromGroup": s.AdminRemoveUserFromGroup,
		"AdminListGroupsForUser":   s.AdminListGroupsForUser,
		"ListUsersInGroup":         s.ListUsersInGroup,

		"AssociateSoftwareToken": s.AssociateSoftwareToken,
		"VerifySoftwareToken":    s.VerifySoftwareToken,
		"SetUserMFAPreference":   s.SetUserMFAPreference,

		"CreateUserPool":         s.CreateUserPool,
		"DescribeUserPool":       s.DescribeUserPool,
		"CreateUserPoolClient":   s.CreateUserPoolClient,
		"DescribeUserPoolClient": s.DescribeUserPoolClient,

		"GetUser":               s.GetUser,
		"UpdateUserAttributes":  s.UpdateUserAttributes,
		"ChangePassword":        s.ChangePassword,
		"ListUsers":             s.ListUsers,
		"DeleteUser":            s.DeleteUser,
	}
}

// dispatch resolves the X-Amz-Target header to a registered operation
// handler and invokes it, returning UnsupportedOperationException for
// anything unrecognized (spec.md §7).
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	target := r.Header.Get("X-Amz-Target")
	op := target
	if idx := len(targetPrefix); len(target) > idx && target[:idx] == targetPrefix {
		op = target[idx:]
	}

	customMiddleware.SetSentryTarget(op)

	h, ok := s.registry()[op]
	if !ok {
		helpers.RespondError(w, apperr.New(apperr.KindUnsupported, "unknown operation: "+op))
		return
	}
	h(w, r)
}

// NewRouter builds the chi router: request-id/real-ip, Sentry capture,
// structured request logging, panic recovery, per-IP rate limiting, the
// single target-dispatch POST route, and each pool's JWKS/OIDC
// discovery endpoints.
func (s *Server) NewRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(customMiddleware.RequestLogger)
	r.Use(customMiddleware.PanicRecovery)

	limiter := customMiddleware.NewIPRateLimiter(50, 100)
	r.Use(limiter.Middleware)

	r.Get("/health", s.HealthHandler)

	r.Post("/", s.dispatch)

	r.Route("/{poolId}/.well-known", func(r chi.Router) {
		r.Get("/jwks.json", s.GetJWKS)
		r.Get("/openid-configuration", s.GetOIDCConfig)
	})

	return r
}

// HealthHandler is a liveness probe independent of any pool state.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
