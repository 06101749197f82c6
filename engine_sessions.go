package sessionauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/session"
)

// GetUser returns the public form of the user.
func (e *Engine) GetUser(ctx context.Context, userID string) (*PublicUser, error) {
	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, notFound(MsgUserNotFound)
		}
		return nil, internalErr(MsgCredentialStoreFailure, err)
	}
	public := user.Public()
	return &public, nil
}

// ListSessions returns the user's unexpired sessions, newest first. The session named
// by currentSessionID is flagged IsCurrent.
func (e *Engine) ListSessions(ctx context.Context, userID, currentSessionID string) ([]SessionInfo, error) {
	sessions, err := e.sessions.ListForUser(ctx, userID, e.now())
	if err != nil {
		return nil, internalErr(MsgSessionStoreFailure, err)
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionInfo{
			SessionID: s.SessionID,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAtTime().UTC(),
			IsCurrent: s.SessionID == currentSessionID,
		})
	}
	return out, nil
}

// RevokeSession deletes one of the caller's sessions. A session that does not exist or
// belongs to another user yields NotFound.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) error {
	sid, ok := internal.NormalizeID(sessionID)
	if !ok {
		return e.failRevoke(ctx, userID, sessionID, notFound(MsgSessionNotFound))
	}
	sessionID = sid

	if err := e.sessions.DeleteOwned(ctx, userID, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return e.failRevoke(ctx, userID, sessionID, notFound(MsgSessionNotFound))
		}
		return e.failRevoke(ctx, userID, sessionID, internalErr(MsgSessionStoreFailure, err))
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoke, true, userID, sessionID, nil, nil)
	return nil
}

func (e *Engine) failRevoke(ctx context.Context, userID, sessionID string, err error) error {
	e.emitAudit(ctx, auditEventSessionRevoke, false, userID, sessionID, err, nil)
	return err
}
