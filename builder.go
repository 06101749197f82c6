package sessionauth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine] from a [Config] and its stores.
//
// Builder instances are intended to be configured during initialization and then
// discarded. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users     UserStore
	codes     CodeStore
	sessions  SessionStore
	mailer    Mailer
	logger    *slog.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client used for the default Redis session store. Ignored when
// WithSessionStore is also called.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the credential store.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithCodeStore sets the verification code store.
func (b *Builder) WithCodeStore(store CodeStore) *Builder {
	b.codes = store
	return b
}

// WithSessionStore overrides the session store.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

// WithMailer sets the outbound email transport.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithLogger sets the structured logger. Defaults to a logger that discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink used when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source for every engine operation and token check.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Authenticate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
//
// Build performs no I/O beyond one password hash used to equalize login timing.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.codes == nil {
		return nil, errors.New("code store required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}

	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// -------- TOKENS --------
	tokens, err := jwt.NewManager(jwt.Config{
		Access:   jwt.KeyConfig{Secret: []byte(cfg.JWT.AccessSecret), TTL: cfg.JWT.AccessTTL},
		Refresh:  jwt.KeyConfig{Secret: []byte(cfg.JWT.RefreshSecret), TTL: cfg.JWT.RefreshTTL},
		Audience: cfg.JWT.Audience,
		Issuer:   cfg.JWT.Issuer,
		Now:      now,
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}

	// -------- PASSWORDS --------
	hasher, err := password.NewArgon2(cfg.Password.argon2())
	if err != nil {
		return nil, fmt.Errorf("password: %w", err)
	}
	filler, err := internal.NewID()
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(filler)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		users:     b.users,
		codes:     b.codes,
		sessions:  sessions,
		tokens:    tokens,
		hasher:    hasher,
		mailer:    b.mailer,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		now:       now,
		dummyHash: dummyHash,
	}

	b.built = true

	return engine, nil
}
