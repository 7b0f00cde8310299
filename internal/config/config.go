// Package config loads the emulator's environment-based configuration,
// following spec.md §6 (persisted pool documents, trigger timeout,
// signing key path) and the ambient stack's env-var convention.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all process-level configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":9229".
	Addr string
	// PersistDir is where pool documents are written, one JSON file per
	// pool. Empty disables persistence (in-memory only).
	PersistDir string
	// KeyPath is where the RS256 signing key is loaded from/generated to.
	KeyPath string
	// DeliveryLogPath is where rendered confirmation/MFA/invitation
	// messages are recorded in the absence of a custom sender trigger.
	DeliveryLogPath string
	// TriggerTimeout bounds every lifecycle-hook invocation.
	TriggerTimeout time.Duration
	// TestMode pins OTP-generated codes to a fixed value for
	// deterministic end-to-end tests (spec.md §2).
	TestMode bool
	// SentryDSN enables panic reporting when set.
	SentryDSN string
	// IssuerBaseURL is passed to the OTP service as the TOTP issuer name;
	// it is not applied to pools' token IssuerURL.
	IssuerBaseURL string
}

// Load reads configuration from environment variables, applying the
// same local-development-default convention as the teacher's
// config.Load.
func Load() Config {
	return Config{
		Addr:            getEnv("ADDR", ":9229"),
		PersistDir:      getEnv("PERSIST_DIR", "./data/pools"),
		KeyPath:         getEnv("KEY_PATH", "./data/signing-key.pem"),
		DeliveryLogPath: getEnv("DELIVERY_LOG_PATH", "./data/deliveries.log"),
		TriggerTimeout:  getEnvAsDuration("TRIGGER_TIMEOUT", 5*time.Second),
		TestMode:        getEnvAsBool("TEST_MODE", false),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		IssuerBaseURL:   getEnv("ISSUER_BASE_URL", "http://localhost:9229"),
	}
}

func getEnv(name, defaultVal string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultVal
}

// Helper to read boolean env vars
func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}
