package prometheus

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/internal/stores/memory"
	"github.com/MrEthical07/sessionauth/mail"
)

// newTestEngine returns an engine with metrics enabled and one rejected access token
// already counted.
func newTestEngine(t *testing.T) *sessionauth.Engine {
	t.Helper()

	cfg := sessionauth.DefaultConfig()
	cfg.JWT.AccessSecret = "access-secret-0123456789abcdef"
	cfg.JWT.RefreshSecret = "refresh-secret-0123456789abcdef"
	cfg.Email.AppOrigin = "https://app.example.com"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	engine, err := sessionauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(memory.NewUserStore()).
		WithCodeStore(memory.NewCodeStore()).
		WithMailer(mail.NewLogMailer(nil)).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := engine.Authenticate("not-a-token"); err == nil {
		t.Fatal("expected Authenticate to reject a malformed token")
	}
	return engine
}
