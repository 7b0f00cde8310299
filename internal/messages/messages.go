// Package messages renders and records confirmation codes, MFA codes,
// and invitations (spec.md §2/§6). Delivery is always a stub: in the
// absence of a CustomEmailSender/CustomSMSSender trigger, messages are
// appended to a delivery log file for inspection rather than sent.
package messages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cognitoemu/cognito-emu/internal/trigger"
)

// Kind identifies what a rendered message is for.
type Kind string

const (
	KindSignUpConfirmation Kind = "SIGN_UP_CONFIRMATION"
	KindForgotPassword     Kind = "FORGOT_PASSWORD"
	KindMFACode            Kind = "MFA_CODE"
	KindInvitation         Kind = "ADMIN_CREATE_USER_INVITE"
)

// Medium is the delivery channel.
type Medium string

const (
	MediumEmail Medium = "EMAIL"
	MediumSMS   Medium = "SMS"
)

// Message is a rendered, about-to-be-delivered notification.
type Message struct {
	PoolID    string    `json:"poolId"`
	Username  string    `json:"username"`
	Kind      Kind      `json:"kind"`
	Medium    Medium    `json:"medium"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// defaultTemplates mirrors the real service's default copy closely
// enough for local development and assertions in tests.
var defaultTemplates = map[Kind]struct{ Subject, Body string }{
	KindSignUpConfirmation: {"Your verification code", "Your confirmation code is {####}"},
	KindForgotPassword:     {"Your password reset code", "Your password reset code is {####}"},
	KindMFACode:            {"Your authentication code", "Your authentication code is {####}"},
	KindInvitation:         {"Your temporary password", "Your username is {username} and temporary password is {####}"},
}

// Service renders and records messages. Delivery-log writes are
// serialized by mu to keep the append-only file well-formed under
// concurrent handlers (spec.md §5: "delivery-side-effect writes" are a
// suspension point, not a linearizability boundary shared with pools).
type Service struct {
	mu             sync.Mutex
	deliveryLogPath string
	logger         *slog.Logger
}

// New creates a Service appending delivery records to logPath (JSON
// lines). logPath == "" disables file writes; messages are still
// logged via slog.
func New(logPath string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deliveryLogPath: logPath, logger: logger}
}

// Render builds a Message for kind/medium, applying the pool's
// CustomMessage trigger override (subject/body template) if bound.
// {####} in the body is replaced with code; {username} with username.
func (s *Service) Render(ctx context.Context, rt *trigger.Runtime, poolID, username string, kind Kind, medium Medium, code string) (Message, error) {
	tmpl := defaultTemplates[kind]
	subject, body := tmpl.Subject, tmpl.Body

	if rt != nil && rt.Enabled(trigger.HookCustomMessage) {
		resp, err := rt.Invoke(ctx, trigger.HookCustomMessage, trigger.Event{
			UserPoolID: poolID,
			UserName:   username,
			Request: map[string]any{
				"codeParameter": "{####}",
				"usernameParameter": "{username}",
				"triggerSource":     string(kind),
				"code":              code,
			},
		})
		if err != nil {
			return Message{}, fmt.Errorf("messages: CustomMessage trigger: %w", err)
		}
		if resp != nil {
			if v, ok := resp["emailSubject"].(string); ok && v != "" {
				subject = v
			}
			if v, ok := resp["emailMessage"].(string); ok && v != "" {
				body = v
			} else if v, ok := resp["smsMessage"].(string); ok && v != "" {
				body = v
			}
		}
	}

	body = strings.ReplaceAll(body, "{####}", code)
	body = strings.ReplaceAll(body, "{username}", username)

	return Message{
		PoolID:    poolID,
		Username:  username,
		Kind:      kind,
		Medium:    medium,
		Subject:   subject,
		Body:      body,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Deliver records msg: via the pool's CustomEmailSender/CustomSMSSender
// trigger if one is bound for msg.Medium, otherwise by appending it to
// the delivery log. Either way this is a record, not a send, per
// spec.md §1's deliberate SMS/email non-goal.
func (s *Service) Deliver(ctx context.Context, rt *trigger.Runtime, msg Message) error {
	hook := trigger.HookCustomEmailSender
	if msg.Medium == MediumSMS {
		hook = trigger.HookCustomSMSSender
	}

	if rt != nil && rt.Enabled(hook) {
		_, err := rt.Invoke(ctx, hook, trigger.Event{
			UserPoolID: msg.PoolID,
			UserName:   msg.Username,
			Request: map[string]any{
				"code":    msg.Code,
				"message": msg.Body,
			},
		})
		if err != nil {
			s.logger.Warn("custom_sender_failed_falling_back", "error", err, "medium", msg.Medium)
		} else {
			s.logger.Info("message_delivered_via_custom_sender", "pool", msg.PoolID, "user", msg.Username, "kind", msg.Kind)
			return nil
		}
	}

	return s.appendToLog(msg)
}

func (s *Service) appendToLog(msg Message) error {
	s.logger.Info("message_recorded", "pool", msg.PoolID, "user", msg.Username, "kind", msg.Kind, "medium", msg.Medium)

	if s.deliveryLogPath == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.deliveryLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("messages: open delivery log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(msg); err != nil {
		return fmt.Errorf("messages: append delivery log: %w", err)
	}
	return nil
}
