package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, "sa"), rdb, mr
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testSession(sid, uid string, createdAt time.Time) *Session {
	return &Session{
		SessionID: sid,
		UserID:    uid,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64)",
		CreatedAt: createdAt.UnixMilli(),
		ExpiresAt: createdAt.Add(30 * 24 * time.Hour).UnixMilli(),
	}
}

func TestCreateAndGet(t *testing.T) {
	store, rdb, _ := newSessionStoreTest(t)
	ctx := context.Background()
	sess := testSession("sid-1", "u-1", testNow)

	if err := store.Create(ctx, sess, testNow); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, "sid-1", testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SessionID != "sid-1" || got.UserID != "u-1" || got.UserAgent != sess.UserAgent {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.ExpiresAt != sess.ExpiresAt || got.CreatedAt != sess.CreatedAt {
		t.Fatalf("timestamps not preserved: %+v", got)
	}

	ttl, err := rdb.PTTL(ctx, "sa:s:sid-1").Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if ttl != 30*24*time.Hour {
		t.Fatalf("expected ttl of full lifetime, got %v", ttl)
	}
	isMember, err := rdb.SIsMember(ctx, "sa:u:u-1", "sid-1").Result()
	if err != nil || !isMember {
		t.Fatalf("expected user index entry, member=%v err=%v", isMember, err)
	}
}

func TestGetTreatsExpiredAsAbsent(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)
	ctx := context.Background()
	sess := testSession("sid-1", "u-1", testNow)

	if err := store.Create(ctx, sess, testNow); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Get(ctx, "sid-1", sess.ExpiresAtTime()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound at expiresAt, got %v", err)
	}
	if _, err := store.Get(ctx, "missing", testNow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing session, got %v", err)
	}
}

func TestCreateRejectsExpiredSession(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)
	sess := testSession("sid-1", "u-1", testNow)

	if err := store.Create(context.Background(), sess, sess.ExpiresAtTime()); err == nil {
		t.Fatal("expected create of already expired session to fail")
	}
}

func TestExtendExpiry(t *testing.T) {
	store, rdb, _ := newSessionStoreTest(t)
	ctx := context.Background()
	sess := testSession("sid-1", "u-1", testNow)
	if err := store.Create(ctx, sess, testNow); err != nil {
		t.Fatalf("create: %v", err)
	}

	later := testNow.Add(29*24*time.Hour + time.Hour)
	sess.ExpiresAt = later.Add(30 * 24 * time.Hour).UnixMilli()
	if err := store.ExtendExpiry(ctx, sess, later); err != nil {
		t.Fatalf("extend: %v", err)
	}

	got, err := store.Get(ctx, "sid-1", later)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("expected extended expiry %d, got %d", sess.ExpiresAt, got.ExpiresAt)
	}
	ttl, err := rdb.PTTL(ctx, "sa:s:sid-1").Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if ttl != 30*24*time.Hour {
		t.Fatalf("expected ttl reset to 30 days, got %v", ttl)
	}
}

func TestExtendExpiryOnDeletedSession(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)
	ctx := context.Background()
	sess := testSession("sid-1", "u-1", testNow)
	if err := store.Create(ctx, sess, testNow); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := store.ExtendExpiry(ctx, sess, testNow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "sid-1", testNow); !errors.Is(err, ErrNotFound) {
		t.Fatalf("extend must not resurrect a deleted session, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, rdb, _ := newSessionStoreTest(t)
	ctx := context.Background()
	sess := testSession("sid-1", "u-1", testNow)
	if err := store.Create(ctx, sess, testNow); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, "sid-1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	isMember, err := rdb.SIsMember(ctx, "sa:u:u-1", "sid-1").Result()
	if err != nil {
		t.Fatalf("sismember: %v", err)
	}
	if isMember {
		t.Fatal("expected index entry removed")
	}
}

func TestDeleteOwnedChecksOwnership(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)
	ctx := context.Background()
	if err := store.Create(ctx, testSession("sid-1", "u-1", testNow), testNow); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := store.DeleteOwned(ctx, "u-2", "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign session, got %v", err)
	}
	if _, err := store.Get(ctx, "sid-1", testNow); err != nil {
		t.Fatalf("foreign delete must not remove session: %v", err)
	}

	if err := store.DeleteOwned(ctx, "u-1", "sid-1"); err != nil {
		t.Fatalf("owned delete: %v", err)
	}
	if err := store.DeleteOwned(ctx, "u-1", "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeated revoke, got %v", err)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)
	ctx := context.Background()
	for _, sid := range []string{"sid-1", "sid-2"} {
		if err := store.Create(ctx, testSession(sid, "u-1", testNow), testNow); err != nil {
			t.Fatalf("create %s: %v", sid, err)
		}
	}
	if err := store.Create(ctx, testSession("sid-3", "u-2", testNow), testNow); err != nil {
		t.Fatalf("create sid-3: %v", err)
	}

	if err := store.DeleteAllForUser(ctx, "u-1"); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if err := store.DeleteAllForUser(ctx, "u-1"); err != nil {
		t.Fatalf("repeat delete all: %v", err)
	}

	for _, sid := range []string{"sid-1", "sid-2"} {
		if _, err := store.Get(ctx, sid, testNow); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected %s deleted, got %v", sid, err)
		}
	}
	if _, err := store.Get(ctx, "sid-3", testNow); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}
}

func TestListForUserSortsAndFilters(t *testing.T) {
	store, rdb, _ := newSessionStoreTest(t)
	ctx := context.Background()

	old := testSession("sid-old", "u-1", testNow.Add(-40*24*time.Hour))
	old.ExpiresAt = testNow.Add(time.Hour).UnixMilli()
	first := testSession("sid-a", "u-1", testNow.Add(-2*time.Hour))
	second := testSession("sid-b", "u-1", testNow.Add(-time.Hour))
	for _, sess := range []*Session{old, first, second} {
		if err := store.Create(ctx, sess, testNow.Add(-time.Minute)); err != nil {
			t.Fatalf("create %s: %v", sess.SessionID, err)
		}
	}
	if err := rdb.SAdd(ctx, "sa:u:u-1", "sid-gone").Err(); err != nil {
		t.Fatalf("sadd: %v", err)
	}

	later := testNow.Add(2 * time.Hour)
	got, err := store.ListForUser(ctx, "u-1", later)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 live sessions, got %d", len(got))
	}
	if got[0].SessionID != "sid-b" || got[1].SessionID != "sid-a" {
		t.Fatalf("expected newest first, got %s, %s", got[0].SessionID, got[1].SessionID)
	}

	isMember, err := rdb.SIsMember(ctx, "sa:u:u-1", "sid-gone").Result()
	if err != nil {
		t.Fatalf("sismember: %v", err)
	}
	if isMember {
		t.Fatal("expected stale index entry pruned")
	}
}

func TestListForUserEmpty(t *testing.T) {
	store, _, _ := newSessionStoreTest(t)

	got, err := store.ListForUser(context.Background(), "nobody", testNow)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no sessions, got %d", len(got))
	}
}

func TestStoreReportsRedisUnavailable(t *testing.T) {
	store, _, mr := newSessionStoreTest(t)
	mr.Close()

	err := store.Create(context.Background(), testSession("sid-1", "u-1", testNow), testNow)
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ping to report ErrRedisUnavailable, got %v", err)
	}
}
