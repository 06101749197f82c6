package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when a Redis command fails for transport reasons.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when a session is missing, expired, or not owned by the caller.
var ErrNotFound = errors.New("session not found")

// ErrSessionCorrupt is returned when a stored blob cannot be decoded.
var ErrSessionCorrupt = errors.New("session corrupt")

const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

const deleteOwnedScript = `
if redis.call("SISMEMBER", KEYS[2], ARGV[1]) == 0 then
  return 0
end
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var deleteOwnedLua = redis.NewScript(deleteOwnedScript)

// Store persists sessions in Redis.
//
// Store instances are safe for concurrent use once constructed.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store using prefix for every key it writes.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sa"
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Create persists sess with a TTL equal to its remaining lifetime at now.
//
//	Performance: 1 MULTI/EXEC (SET + SADD).
func (s *Store) Create(ctx context.Context, sess *Session, now time.Time) error {
	ttl := sess.ExpiresAtTime().Sub(now)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(sess.SessionID), data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get returns the session named by sessionID. A session whose ExpiresAt is not after
// now is reported as ErrNotFound even if Redis still holds it.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	sess, err := s.read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Expired(now) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// ExtendExpiry overwrites the stored session with sess (whose ExpiresAt has been moved
// forward) only if the session still exists. Concurrent extensions are last-write-wins.
//
//	Performance: 1 Redis SET XX.
func (s *Store) ExtendExpiry(ctx context.Context, sess *Session, now time.Time) error {
	ttl := sess.ExpiresAtTime().Sub(now)
	if ttl <= 0 {
		return errors.New("extended expiry is in the past")
	}

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	_, err = s.redis.SetArgs(ctx, s.key(sess.SessionID), data, redis.SetArgs{Mode: "XX", TTL: ttl}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete removes a session and its index entry. Deleting a missing session is a no-op.
//
//	Performance: 1 GET + 1 EVALSHA.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	sess, err := s.read(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if errors.Is(err, ErrSessionCorrupt) {
			return s.deleteKey(ctx, sessionID)
		}
		return err
	}

	_, err = deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID), s.userKey(sess.UserID)}, sessionID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteOwned removes sessionID only if it belongs to userID. It returns ErrNotFound
// when the session does not exist or is owned by another user.
//
//	Performance: 1 EVALSHA (SISMEMBER + DEL + SREM).
func (s *Store) DeleteOwned(ctx context.Context, userID, sessionID string) error {
	res, err := deleteOwnedLua.Run(ctx, s.redis, []string{s.key(sessionID), s.userKey(userID)}, sessionID).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllForUser removes every session indexed for userID.
//
// ATOMICITY NOTE: the index is read with SMEMBERS before the MULTI/EXEC delete, so a
// session created between the two phases survives this call.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return nil
	}

	sessionKeys := make([]string, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		sessionKeys = append(sessionKeys, s.key(sessionID))
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKeys...)
		pipe.SRem(ctx, userKey, toArgs(sessionIDs)...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ListForUser returns the user's unexpired sessions, newest first. Index entries whose
// session is gone are pruned as a side effect.
//
//	Performance: 1 SMEMBERS + 1 pipelined GET batch (+1 SREM when stale ids exist).
func (s *Store) ListForUser(ctx context.Context, userID string, now time.Time) ([]*Session, error) {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.Get(ctx, s.key(sid))
	}
	_, err = pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessions := make([]*Session, 0, len(sessionIDs))
	var stale []string
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				stale = append(stale, sessionIDs[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}

		sess, decErr := Decode(data)
		if decErr != nil || sess.UserID != userID {
			stale = append(stale, sessionIDs[i])
			continue
		}
		sess.SessionID = sessionIDs[i]
		if sess.Expired(now) {
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, toArgs(stale)...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt != sessions[j].CreatedAt {
			return sessions[i].CreatedAt > sessions[j].CreatedAt
		}
		return sessions[i].SessionID > sessions[j].SessionID
	})

	return sessions, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) read(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	sess.SessionID = sessionID
	return sess, nil
}

func (s *Store) deleteKey(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func toArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
