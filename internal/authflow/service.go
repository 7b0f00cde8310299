package authflow

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/facade"
	"github.com/cognitoemu/cognito-emu/internal/messages"
	"github.com/cognitoemu/cognito-emu/internal/otp"
	"github.com/cognitoemu/cognito-emu/internal/pool"
	"github.com/cognitoemu/cognito-emu/internal/token"
	"github.com/cognitoemu/cognito-emu/internal/trigger"
)

// Service implements InitiateAuth/RespondToAuthChallenge against a
// Facade of pool stores, a token Generator, and each pool's trigger
// runtime (spec.md §4.1).
type Service struct {
	facade      *facade.Facade
	tokens      *token.Generator
	otpSvc      *otp.Service
	messagesSvc *messages.Service
	ids         clockid.IDSource
	clock       clockid.Clock
	logger      *slog.Logger

	triggerTimeout time.Duration
	httpClient     *http.Client
	sessions       *sessionStore
	sessionTTL     time.Duration

	// runtimeOverride, when set, replaces runtimeFor's LambdaConfig-based
	// HTTP resolution — used by tests to bind in-process FuncHandlers.
	runtimeOverride func(pool.UserPool) *trigger.Runtime
}

// New creates a Service. HTTP-backed trigger handlers resolved from a
// pool's LambdaConfig use http.DefaultClient until WithHTTPClient sets
// another client.
func New(f *facade.Facade, tokens *token.Generator, otpSvc *otp.Service, messagesSvc *messages.Service, ids clockid.IDSource, clock clockid.Clock, logger *slog.Logger) *Service {
	if ids == nil {
		ids = clockid.UUIDSource{}
	}
	if clock == nil {
		clock = clockid.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		facade:         f,
		tokens:         tokens,
		otpSvc:         otpSvc,
		messagesSvc:    messagesSvc,
		ids:            ids,
		clock:          clock,
		logger:         logger,
		triggerTimeout: 5 * time.Second,
		sessions:       newSessionStore(),
		sessionTTL:     defaultSessionTTL,
	}
}

// WithHTTPClient overrides the client used for HTTP trigger handlers.
func (s *Service) WithHTTPClient(c *http.Client) *Service {
	s.httpClient = c
	return s
}

// WithTriggerTimeout overrides the per-hook invocation timeout.
func (s *Service) WithTriggerTimeout(d time.Duration) *Service {
	s.triggerTimeout = d
	return s
}

func (s *Service) runtimeFor(p pool.UserPool) *trigger.Runtime {
	if s.runtimeOverride != nil {
		return s.runtimeOverride(p)
	}
	return trigger.ResolveHTTP(p.LambdaConfig, s.triggerTimeout, s.httpClient)
}

// WithRuntimeResolver overrides how a pool's trigger Runtime is
// resolved, bypassing LambdaConfig/HTTP entirely. Used by tests to bind
// in-process FuncHandlers.
func (s *Service) WithRuntimeResolver(f func(pool.UserPool) *trigger.Runtime) *Service {
	s.runtimeOverride = f
	return s
}

func (s *Service) newSession(pc pendingChallenge) string {
	return s.sessions.create(s.ids, s.clock, s.sessionTTL, pc)
}

// InitiateAuth resolves authFlow and either returns freshly issued
// tokens or a pending challenge (spec.md §4.1).
func (s *Service) InitiateAuth(ctx context.Context, in InitiateAuthInput) (*Output, error) {
	client, st, err := s.facade.GetAppClient(in.ClientId)
	if err != nil {
		return nil, apperr.ErrNotAuthorized
	}
	p := st.Pool()
	rt := s.runtimeFor(p)

	switch in.AuthFlow {
	case FlowUserPasswordAuth, FlowAdminUserPasswordAuth:
		return s.passwordAuth(ctx, st, p, *client, rt, in.AuthParameters)
	case FlowRefreshToken, FlowRefreshTokenAuth:
		return s.refreshAuth(ctx, st, p, *client, in.AuthParameters)
	case FlowUserSRPAuth:
		return s.srpChallenge(in.ClientId)
	default:
		return nil, apperr.Unsupported(string(in.AuthFlow))
	}
}

// groupNames projects a []*pool.Group slice down to its GroupName values,
// the shape the token generator and cognito:groups claim need.
func groupNames(groups []*pool.Group) []string {
	if len(groups) == 0 {
		return nil
	}
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.GroupName
	}
	return out
}

// wrapTriggerErr folds a trigger invocation failure into the apperr
// taxonomy: a trigger that already raised a domain error is passed
// through as-is, a deadline overrun becomes InternalError, and anything
// else is wrapped rather than leaked verbatim (spec.md §4.3: "a trigger
// timeout or error surfaces as an InternalErrorException unless the
// trigger's response maps to a specific Cognito exception").
func wrapTriggerErr(err error) error {
	if err == nil {
		return nil
	}
	if ae, ok := apperr.As(err); ok {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindInternal, "trigger timed out", err)
	}
	return apperr.Wrap(apperr.KindInternal, "trigger invocation failed", err)
}
