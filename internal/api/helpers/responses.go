package helpers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/cognitoemu/cognito-emu/internal/apperr"
)

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode_response_failed", "error", err)
	}
}

// wireError is the AWS-shaped error body: "__type" plus a human message.
type wireError struct {
	Type    string `json:"__type"`
	Message string `json:"message"`
}

// statusForKind maps an apperr.Kind to the HTTP status the real service
// returns for it (spec.md §7).
var statusForKind = map[apperr.Kind]int{
	apperr.KindNotAuthorized:       http.StatusUnauthorized,
	apperr.KindInvalidPassword:     http.StatusUnauthorized,
	apperr.KindUserNotFound:        http.StatusNotFound,
	apperr.KindUserNotConfirmed:    http.StatusBadRequest,
	apperr.KindPasswordResetNeeded: http.StatusBadRequest,
	apperr.KindCodeMismatch:        http.StatusBadRequest,
	apperr.KindExpiredCode:         http.StatusBadRequest,
	apperr.KindInvalidParameter:    http.StatusBadRequest,
	apperr.KindUsernameExists:      http.StatusBadRequest,
	apperr.KindResourceNotFound:    http.StatusNotFound,
	apperr.KindUnsupported:         http.StatusBadRequest,
	apperr.KindInternal:            http.StatusInternalServerError,
}

// RespondError writes err as an AWS-shaped error body, choosing the
// HTTP status from its apperr.Kind (InternalErrorException/500 for
// anything that isn't an *apperr.Error).
func RespondError(w http.ResponseWriter, err error) {
	wireType, message := apperr.ToWire(err)
	status := http.StatusInternalServerError
	if ae, ok := apperr.As(err); ok {
		if s, ok := statusForKind[ae.Kind]; ok {
			status = s
		}
	}
	if status >= http.StatusInternalServerError {
		slog.Error("handler_internal_error", "error", err)
	}
	RespondJSON(w, status, wireError{Type: wireType, Message: message})
}
