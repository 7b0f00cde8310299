// Command emulator runs the local Cognito User Pools emulator HTTP
// server: target-dispatch JSON API, JWKS/OIDC discovery, and the
// trigger runtime wired against whatever Lambda endpoints each pool's
// LambdaConfig declares.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/cognitoemu/cognito-emu/internal/api"
	"github.com/cognitoemu/cognito-emu/internal/authflow"
	"github.com/cognitoemu/cognito-emu/internal/clockid"
	"github.com/cognitoemu/cognito-emu/internal/config"
	"github.com/cognitoemu/cognito-emu/internal/facade"
	"github.com/cognitoemu/cognito-emu/internal/keystore"
	"github.com/cognitoemu/cognito-emu/internal/messages"
	"github.com/cognitoemu/cognito-emu/internal/otp"
	"github.com/cognitoemu/cognito-emu/internal/token"
	"github.com/cognitoemu/cognito-emu/pkg/logger"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	log := logger.Setup(env)
	log.Info("emulator_startup", "env", env)

	cfg := config.Load()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
			Environment:      env,
		}); err != nil {
			log.Error("sentry_init_failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
			log.Info("sentry_initialized")
		}
	} else {
		log.Warn("sentry_dsn_missing", "details", "skipping_init")
	}

	keys, err := keystore.Load(cfg.KeyPath, "sig-1")
	if err != nil {
		log.Error("keystore_load_failed", "error", err)
		os.Exit(1)
	}

	clock := clockid.System{}
	ids := clockid.UUIDSource{}

	f := facade.New(cfg.PersistDir, clock, ids)
	tokens := token.New(keys, ids, clock)

	var otpOpts []otp.Option
	if cfg.TestMode {
		otpOpts = append(otpOpts, otp.WithTestMode("123456"))
		log.Warn("test_mode_enabled", "details", "confirmation codes are fixed")
	}
	otpSvc := otp.New(cfg.IssuerBaseURL, otpOpts...)

	messagesSvc := messages.New(cfg.DeliveryLogPath, log)

	authSvc := authflow.New(f, tokens, otpSvc, messagesSvc, ids, clock, log).
		WithTriggerTimeout(cfg.TriggerTimeout)

	server := api.NewServer(f, authSvc, tokens, keys, otpSvc, messagesSvc, ids, cfg.TriggerTimeout, log)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.NewRouter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server_listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("server_startup_failed", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		log.Info("shutdown_signal_received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful_shutdown_failed", "error", err)
			if err := srv.Close(); err != nil {
				log.Error("server_force_close_failed", "error", err)
			}
		}

		log.Info("server_shutdown_complete")
	}
}
