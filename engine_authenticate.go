package sessionauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/sessionauth/jwt"
)

// Authenticate verifies an access token and returns the identity it carries.
//
// The session store is not consulted: a revoked session's access token keeps working
// until it expires. Every failure is Unauthorized with CodeInvalidAccessToken so clients
// know to attempt a refresh.
//
//	Performance: no I/O; one HMAC verification.
func (e *Engine) Authenticate(token string) (Identity, error) {
	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	identity, err := e.authenticate(token)

	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
	} else {
		e.metricInc(MetricAuthenticateSuccess)
	}
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}
	return identity, err
}

func (e *Engine) authenticate(token string) (Identity, error) {
	if token == "" {
		return Identity{}, unauthorized(MsgNotAuthorized).WithCode(CodeInvalidAccessToken)
	}

	claims, err := e.tokens.Verify(jwt.KindAccess, token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, unauthorized(MsgTokenExpired).WithCode(CodeInvalidAccessToken)
		}
		return Identity{}, unauthorized(MsgInvalidToken).WithCode(CodeInvalidAccessToken)
	}

	return Identity{UserID: claims.UserID, SessionID: claims.SessionID}, nil
}
