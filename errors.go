package sessionauth

import (
	"errors"
	"net/http"
)

// Failure kinds. Every *Error returned by the Engine matches exactly one of these with
// errors.Is.
var (
	// ErrConflict marks duplicate-resource failures such as an existing email.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized marks bad credentials, bad or missing tokens, and missing sessions.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound marks lookups that must not reveal why they failed.
	ErrNotFound = errors.New("not found")
	// ErrTooManyRequests marks code issuance blocked by the counting rule.
	ErrTooManyRequests = errors.New("too many requests")
	// ErrBadRequest marks requests that are well-formed but not applicable.
	ErrBadRequest = errors.New("bad request")
	// ErrInternal marks transport failures and consistency bugs.
	ErrInternal = errors.New("internal error")
)

// Store-level sentinels returned by UserStore and CodeStore implementations.
var (
	// ErrRecordNotFound is returned by stores when no row matches.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned by UserStore.Create on a unique-index violation.
	ErrDuplicateEmail = errors.New("duplicate email")
)

// ErrorCode is an optional machine-readable code carried alongside a message.
type ErrorCode string

// CodeInvalidAccessToken tells clients to attempt a refresh.
const CodeInvalidAccessToken ErrorCode = "InvalidAccessToken"

// User-facing messages.
const (
	MsgEmailExists            = "Email already exists."
	MsgInvalidCredentials     = "Invalid email or password."
	MsgInvalidRefreshToken    = "Invalid refresh token."
	MsgSessionExpired         = "Session expired."
	MsgInvalidCode            = "Invalid or expired verification code."
	MsgVerifyFailed           = "Failed to verify email."
	MsgResetFailed            = "Failed to reset password."
	MsgTooManyRequests        = "Too many requests, please try again later."
	MsgNotAuthorized          = "Not authorized."
	MsgTokenExpired           = "Token expired."
	MsgInvalidToken           = "Invalid Token."
	MsgSessionNotFound        = "Session not found."
	MsgUserNotFound           = "User not found."
	MsgEmailAlreadyVerified   = "Email is already verified."
	MsgSendEmailFailed        = "Failed to send email."
	MsgInternal               = "Internal server error."
	MsgCreateUserFailed       = "Failed to create user."
	MsgCreateSessionFailed    = "Failed to create session."
	MsgIssueTokenFailed       = "Failed to issue token."
	MsgCreateCodeFailed       = "Failed to create verification code."
	MsgSessionStoreFailure    = "Failed to access session."
	MsgCredentialStoreFailure = "Failed to access user."
	MsgPasswordPolicy         = "Password must be between 8 and 100 characters."
)

// Error is the single structured failure returned by Engine operations. It carries
// the transport status, a user-facing message, an optional code, and the cause.
type Error struct {
	Kind    error
	Status  int
	Message string
	Code    ErrorCode
	Err     error
}

// Error returns the message followed by the cause, if any.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewError builds an *Error of the given kind with the matching HTTP status.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Status: statusFor(kind), Message: message}
}

// WithCode returns a copy of e carrying code.
func (e *Error) WithCode(code ErrorCode) *Error {
	out := *e
	out.Code = code
	return &out
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	out := *e
	out.Err = err
	return &out
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func statusFor(kind error) int {
	switch kind {
	case ErrConflict:
		return http.StatusConflict
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrNotFound:
		return http.StatusNotFound
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	case ErrBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func conflict(message string) *Error     { return NewError(ErrConflict, message) }
func unauthorized(message string) *Error { return NewError(ErrUnauthorized, message) }
func notFound(message string) *Error     { return NewError(ErrNotFound, message) }
func badRequest(message string) *Error   { return NewError(ErrBadRequest, message) }

func tooManyRequests() *Error {
	return NewError(ErrTooManyRequests, MsgTooManyRequests)
}

func internalErr(message string, cause error) *Error {
	return NewError(ErrInternal, message).WithCause(cause)
}
