// Package api wires the target-dispatch HTTP surface: every Cognito
// Identity Provider Service operation arrives as a POST to "/" carrying
// an "X-Amz-Target: AWSCognitoIdentityProviderService.<Operation>"
// header and a JSON body, and is routed by that header (spec.md §1/§7).
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cognitoemu/cognito-emu/internal/authflow"
	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/facade"
	"github.com/cognitoemu/cognito-emu/internal/keystore"
	"github.com/cognitoemu/cognito-emu/internal/messages"
	"github.com/cognitoemu/cognito-emu/internal/otp"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/token"
	"github.com/cognitoemu/cognito-emu/internal/trigger"
)

// Server holds every collaborator a target handler needs. It has no
// state of its own beyond these references — all mutable state lives
// in the facade's pool stores.
type Server struct {
	Facade   *facade.Facade
	Auth     *authflow.Service
	Tokens   *token.Generator
	Keys     *keystore.KeyStore
	OTP      *otp.Service
	Messages *messages.Service
	IDs      clockid.IDSource

	triggerTimeout time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewServer creates a Server from its collaborators, already built and
// wired by cmd/emulator/main.go.
func NewServer(f *facade.Facade, auth *authflow.Service, tokens *token.Generator, keys *keystore.KeyStore, otpSvc *otp.Service, messagesSvc *messages.Service, ids clockid.IDSource, triggerTimeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ids == nil {
		ids = clockid.UUIDSource{}
	}
	return &Server{
		Facade:         f,
		Auth:           auth,
		Tokens:         tokens,
		Keys:           keys,
		OTP:            otpSvc,
		Messages:       messagesSvc,
		IDs:            ids,
		triggerTimeout: triggerTimeout,
		httpClient:     http.DefaultClient,
		logger:         logger,
	}
}

// newSub mints a fresh immutable user Sub, the same way
// internal/authflow does for UserMigration-created users.
func (s *Server) newSub() string { return s.IDs.NewID() }

// runtimeFor resolves pool p's trigger runtime the same way
// internal/authflow does, for handlers (SignUp, AdminCreateUser, ...)
// that invoke triggers outside the auth state machine.
func (s *Server) runtimeFor(p pool.UserPool) *trigger.Runtime {
	return trigger.ResolveHTTP(p.LambdaConfig, s.triggerTimeout, s.httpClient)
}
