package httpapi

import (
	"errors"
	"time"
)

// Config controls the HTTP surface. It is separate from sessionauth.Config because
// none of it affects token or session semantics.
type Config struct {
	// CookieSecure sets the Secure attribute on both auth cookies.
	CookieSecure bool `koanf:"cookie_secure"`
	// OperationTimeout bounds Engine work, which is detached from client
	// cancellation so an abandoned request still completes its side effects.
	OperationTimeout time.Duration `koanf:"operation_timeout"`
	// AllowedOrigin enables credentialed CORS for one frontend origin.
	AllowedOrigin string `koanf:"allowed_origin"`
	// TrustProxy reads the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy   bool  `koanf:"trust_proxy"`
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// DefaultConfig returns secure cookie defaults and a 10s operation timeout.
func DefaultConfig() Config {
	return Config{
		CookieSecure:     true,
		OperationTimeout: 10 * time.Second,
		MaxBodyBytes:     1 << 20,
	}
}

// Validate reports configuration that cannot serve requests.
func (c Config) Validate() error {
	if c.OperationTimeout <= 0 {
		return errors.New("httpapi: operation timeout must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("httpapi: max body bytes must be > 0")
	}
	return nil
}
