// Package otp implements the OTP service of spec.md §2: confirmation
// and invitation code generation (deterministic in test mode), plus
// TOTP secret issuance/validation for software-token MFA enrollment.
// This is distinct from the fixed "999999" login-challenge stub that
// internal/authflow sets directly per spec.md §4.1 — that stub models
// the emulator's deterministic MFA *challenge*, while this package
// models the realistic secret-enrollment surface
// (AssociateSoftwareToken/VerifySoftwareToken) that sits underneath it.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Service generates confirmation/invitation codes and TOTP secrets.
type Service struct {
	issuer      string
	testMode    bool
	fixedCode   string
}

// Option configures a Service.
type Option func(*Service)

// WithTestMode makes GenerateConfirmationCode always return fixedCode
// (default "123456"), for deterministic end-to-end tests.
func WithTestMode(fixedCode string) Option {
	return func(s *Service) {
		s.testMode = true
		if fixedCode != "" {
			s.fixedCode = fixedCode
		}
	}
}

// New creates a Service that issues TOTP secrets under issuer.
func New(issuer string, opts ...Option) *Service {
	s := &Service{issuer: issuer, fixedCode: "123456"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GenerateConfirmationCode mints a 6-digit numeric code for sign-up
// confirmation, forgot-password, or invitation flows. Deterministic
// when the service runs in test mode (spec.md §2).
func (s *Service) GenerateConfirmationCode() (string, error) {
	if s.testMode {
		return s.fixedCode, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("otp: generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GenerateSoftwareTokenSecret creates a new TOTP secret for accountName,
// used by AssociateSoftwareToken.
func (s *Service) GenerateSoftwareTokenSecret(accountName string) (*otp.Key, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, fmt.Errorf("otp: generate totp key: %w", err)
	}
	return key, nil
}

// ValidateSoftwareTokenCode validates a TOTP code against secret, used
// by VerifySoftwareToken.
func (s *Service) ValidateSoftwareTokenCode(code, secret string) bool {
	return totp.Validate(code, secret)
}
