package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessionauth"
)

// AccessTokenCookie is the cookie carrying the access token.
const AccessTokenCookie = "accessToken"

// Authenticator verifies an access token. *sessionauth.Engine implements it.
type Authenticator interface {
	Authenticate(token string) (sessionauth.Identity, error)
}

// ErrorWriter renders an authentication failure.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(ctx context.Context) (sessionauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(sessionauth.Identity)
	return id, ok
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id sessionauth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard rejects requests without a valid access token and stores the caller's
// identity in the request context. A nil writeError uses [WriteAuthError].
func Guard(auth Authenticator, writeError ErrorWriter) func(http.Handler) http.Handler {
	if writeError == nil {
		writeError = WriteAuthError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				writeError(w, r, sessionauth.NewError(sessionauth.ErrUnauthorized, sessionauth.MsgNotAuthorized).
					WithCode(sessionauth.CodeInvalidAccessToken))
				return
			}

			identity, err := auth.Authenticate(AccessToken(r))
			if err != nil {
				writeError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// AccessToken returns the access token from the accessToken cookie, falling back to an
// Authorization bearer header. It returns "" when neither is present.
func AccessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	token, _ := bearerToken(r.Header.Get("Authorization"))
	return token
}

// WriteAuthError writes err as {"message","errorCode"} with its status.
func WriteAuthError(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	body := map[string]string{"message": sessionauth.MsgNotAuthorized}

	var ae *sessionauth.Error
	if errors.As(err, &ae) {
		status = ae.Status
		body["message"] = ae.Message
		if ae.Code != "" {
			body["errorCode"] = string(ae.Code)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
