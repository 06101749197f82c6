package sessionauth

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/sessionauth/password"
)

// Config is the complete engine configuration. Use [DefaultConfig] and fill in the
// secrets and AppOrigin.
type Config struct {
	JWT          JWTConfig          `koanf:"jwt"`
	Session      SessionConfig      `koanf:"session"`
	Verification VerificationConfig `koanf:"verification"`
	Password     PasswordConfig     `koanf:"password"`
	Email        EmailConfig        `koanf:"email"`
	Audit        AuditConfig        `koanf:"audit"`
	Metrics      MetricsConfig      `koanf:"metrics"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the two independent token keys and their lifetimes.
type JWTConfig struct {
	AccessSecret  string        `koanf:"access_secret"`
	RefreshSecret string        `koanf:"refresh_secret"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	Audience      string        `koanf:"audience"`
	Issuer        string        `koanf:"issuer"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime and the sliding refresh window.
type SessionConfig struct {
	// TTL is the lifetime of a new or extended session.
	TTL time.Duration `koanf:"ttl"`
	// RefreshWindow is how close to expiry a session must be before Refresh extends it
	// and rotates the refresh token.
	RefreshWindow time.Duration `koanf:"refresh_window"`
	RedisPrefix   string        `koanf:"redis_prefix"`
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig controls code lifetimes and the issuance counting rule.
type VerificationConfig struct {
	EmailCodeTTL time.Duration `koanf:"email_code_ttl"`
	ResetCodeTTL time.Duration `koanf:"reset_code_ttl"`
	// RateLimitWindow and RateLimitMax reject issuance when RateLimitMax codes of the
	// same type were created for the user within the trailing window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	RateLimitMax    int           `koanf:"rate_limit_max"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters.
type PasswordConfig struct {
	Memory           uint32 `koanf:"memory"`
	Time             uint32 `koanf:"time"`
	Parallelism      uint8  `koanf:"parallelism"`
	SaltLength       uint32 `koanf:"salt_length"`
	KeyLength        uint32 `koanf:"key_length"`
	MaxPasswordBytes int    `koanf:"max_password_bytes"`
}

func (p PasswordConfig) argon2() password.Config {
	return password.Config{
		Memory:           p.Memory,
		Time:             p.Time,
		Parallelism:      p.Parallelism,
		SaltLength:       p.SaltLength,
		KeyLength:        p.KeyLength,
		MaxPasswordBytes: p.MaxPasswordBytes,
	}
}

/*
====================================
EMAIL CONFIG
====================================
*/

// EmailConfig controls links embedded in outbound mail.
type EmailConfig struct {
	// AppOrigin is the frontend origin used to build verification and reset links.
	AppOrigin string `koanf:"app_origin"`
}

// AuditConfig controls the async audit dispatcher. With DropIfFull, events are dropped
// and counted instead of blocking the caller when the buffer is full.
type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

// MetricsConfig enables the in-process counters and the authenticate latency histogram.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

// DefaultConfig returns a configuration with production lifetimes. Secrets and
// AppOrigin are left empty and must be supplied.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			Audience:   "user",
		},
		Session: SessionConfig{
			TTL:           30 * 24 * time.Hour,
			RefreshWindow: 24 * time.Hour,
			RedisPrefix:   "sa",
		},
		Verification: VerificationConfig{
			EmailCodeTTL:    365 * 24 * time.Hour,
			ResetCodeTTL:    time.Hour,
			RateLimitWindow: 5 * time.Minute,
			RateLimitMax:    2,
		},
		Password: PasswordConfig{
			Memory:           pw.Memory,
			Time:             pw.Time,
			Parallelism:      pw.Parallelism,
			SaltLength:       pw.SaltLength,
			KeyLength:        pw.KeyLength,
			MaxPasswordBytes: pw.MaxPasswordBytes,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("JWT AccessSecret and RefreshSecret are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.AccessTTL > 15*time.Minute {
		return errors.New("JWT AccessTTL must be <= 15m")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience is required")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RefreshWindow <= 0 || c.Session.RefreshWindow >= c.Session.TTL {
		return errors.New("Session RefreshWindow must be > 0 and < TTL")
	}

	// Verification
	if c.Verification.EmailCodeTTL <= 0 || c.Verification.ResetCodeTTL <= 0 {
		return errors.New("Verification code TTLs must be > 0")
	}
	if c.Verification.RateLimitWindow <= 0 {
		return errors.New("Verification RateLimitWindow must be > 0")
	}
	if c.Verification.RateLimitMax <= 0 {
		return errors.New("Verification RateLimitMax must be > 0")
	}

	// Email
	if c.Email.AppOrigin == "" {
		return errors.New("Email AppOrigin is required")
	}
	origin, err := url.Parse(c.Email.AppOrigin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return errors.New("Email AppOrigin must be an absolute URL")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
