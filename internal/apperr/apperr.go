// Package apperr defines the internal error taxonomy of spec.md §7 and
// its mapping onto the wire-level "__type" error kind. Every target
// handler in internal/api funnels domain errors through this package
// before writing a response body.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the internal error categories from spec.md §7.
type Kind string

const (
	KindNotAuthorized       Kind = "NotAuthorized"
	KindInvalidPassword     Kind = "InvalidPassword"
	KindUserNotFound        Kind = "UserNotFound"
	KindUserNotConfirmed    Kind = "UserNotConfirmed"
	KindPasswordResetNeeded Kind = "PasswordResetRequired"
	KindCodeMismatch        Kind = "CodeMismatch"
	KindExpiredCode         Kind = "ExpiredCode"
	KindInvalidParameter    Kind = "InvalidParameter"
	KindUsernameExists      Kind = "UsernameExists"
	KindResourceNotFound    Kind = "ResourceNotFound"
	KindUnsupported         Kind = "Unsupported"
	KindInternal            Kind = "InternalError"
)

// wireType maps an internal Kind to the AWS-shaped "__type" string.
var wireType = map[Kind]string{
	KindNotAuthorized:       "NotAuthorizedException",
	KindInvalidPassword:     "NotAuthorizedException", // mapped to NotAuthorized to match upstream
	KindUserNotFound:        "UserNotFoundException",
	KindUserNotConfirmed:    "UserNotConfirmedException",
	KindPasswordResetNeeded: "PasswordResetRequiredException",
	KindCodeMismatch:        "CodeMismatchException",
	KindExpiredCode:         "ExpiredCodeException",
	KindInvalidParameter:    "InvalidParameterException",
	KindUsernameExists:      "UsernameExistsException",
	KindResourceNotFound:    "ResourceNotFoundException",
	KindUnsupported:         "UnsupportedOperationException",
	KindInternal:            "InternalErrorException",
}

// Error is a domain error carrying enough information to serialize the
// wire error body without the handler knowing the taxonomy.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WireType returns the "__type" string for the HTTP error body.
func (e *Error) WireType() string {
	if t, ok := wireType[e.Kind]; ok {
		return t
	}
	return wireType[KindInternal]
}

// New creates an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind, retaining cause for %w chains.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Unsupported builds a KindUnsupported error naming the unsupported detail,
// e.g. an auth flow the emulator does not implement.
func Unsupported(detail string) *Error {
	return New(KindUnsupported, "not supported: "+detail)
}

// As extracts an *Error from err, returning (nil, false) if err does not
// wrap one — in which case callers should treat it as KindInternal.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ToWire resolves any error to (wireType, message), defaulting unknown
// errors to InternalErrorException without leaking internal detail.
func ToWire(err error) (string, string) {
	if e, ok := As(err); ok {
		return e.WireType(), e.Message
	}
	return wireType[KindInternal], "internal error"
}

var (
	// Common pre-built sentinels for frequently raised conditions.
	ErrNotAuthorized    = New(KindNotAuthorized, "not authorized")
	ErrUserNotFound     = New(KindUserNotFound, "user not found")
	ErrResourceNotFound = New(KindResourceNotFound, "resource not found")
)
