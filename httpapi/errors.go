package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/MrEthical07/sessionauth"
)

// Request-level messages that never reach the Engine.
const (
	MsgValidationFailed    = "Validation failed."
	MsgMissingRefreshToken = "Missing refresh token."
	MsgInvalidSessionID    = "Invalid session id."
	MsgPasswordsMismatch   = "Passwords do not match."
)

// FieldError names one request field that failed validation.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationError reports request fields rejected before the Engine is called.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	first := e.Errors[0]
	if first.Path == "" {
		return "validation failed: " + first.Message
	}
	return "validation failed: " + first.Path + ": " + first.Message
}

type messageResponse struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type validationResponse struct {
	Errors  []FieldError `json:"errors"`
	Message string       `json:"message"`
}

// WriteError maps err to a response. It is the only place errors become status
// codes:
//   - *ValidationError: 400 with the failing fields
//   - *sessionauth.Error: its status, message and optional errorCode
//   - anything else: 500 with a generic message, logged with its oops context
func WriteError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, validationResponse{Errors: verr.Errors, Message: MsgValidationFailed})
		return
	}

	if ae, ok := sessionauth.AsError(err); ok {
		if ae.Status >= http.StatusInternalServerError {
			logError(logger, r, "http.internal_error", err)
		}
		writeJSON(w, ae.Status, messageResponse{Message: ae.Message, ErrorCode: string(ae.Code)})
		return
	}

	logError(logger, r, "http.unhandled_error", err)
	writeJSON(w, http.StatusInternalServerError, messageResponse{Message: sessionauth.MsgInternal})
}

func logError(logger *slog.Logger, r *http.Request, msg string, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"method", r.Method, "path", r.URL.Path}
	if id := RequestIDFromContext(r.Context()); id != "" {
		attrs = append(attrs, "request_id", id)
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
	} else {
		attrs = append(attrs, "error", err)
	}

	logger.ErrorContext(r.Context(), msg, attrs...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}
