package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind selects which key, lifetime, and claim set a token uses.
type Kind uint8

const (
	// KindAccess tokens carry {sessionId, userId} and authorize individual requests.
	KindAccess Kind = iota
	// KindRefresh tokens carry {sessionId} and are exchanged for new access tokens.
	KindRefresh
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	default:
		return "unknown"
	}
}

const minSecretLength = 16

var (
	// ErrTokenExpired is returned by Verify when a correctly signed token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned by Verify for every other validation failure.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrUnknownKind is returned when a Kind outside KindAccess/KindRefresh is used.
	ErrUnknownKind = errors.New("unknown token kind")
)

// KeyConfig holds the secret and lifetime for one token kind.
type KeyConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Config holds the per-kind keys and the claims shared by both token kinds.
type Config struct {
	Access   KeyConfig
	Refresh  KeyConfig
	Audience string
	Issuer   string
	Leeway   time.Duration
	// Now overrides the clock used for issuance and expiry checks.
	Now func() time.Time
}

// Claims is the payload of both token kinds. UserID is empty for refresh tokens.
type Claims struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access and refresh tokens. It is safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Access.TTL <= 0 || cfg.Refresh.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if len(cfg.Access.Secret) < minSecretLength {
		return nil, fmt.Errorf("access secret must be at least %d bytes", minSecretLength)
	}
	if len(cfg.Refresh.Secret) < minSecretLength {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", minSecretLength)
	}
	if string(cfg.Access.Secret) == string(cfg.Refresh.Secret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{config: cfg, now: now}, nil
}

// TTL returns the configured lifetime for kind.
func (m *Manager) TTL(kind Kind) time.Duration {
	key, err := m.key(kind)
	if err != nil {
		return 0
	}
	return key.TTL
}

// Sign issues a token of the given kind for sessionID. userID is embedded only in
// access tokens.
func (m *Manager) Sign(kind Kind, sessionID, userID string) (string, error) {
	key, err := m.key(kind)
	if err != nil {
		return "", err
	}
	if sessionID == "" {
		return "", errors.New("session id is required")
	}

	now := m.now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{m.config.Audience},
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(key.TTL)),
		},
	}
	if kind == KindAccess {
		if userID == "" {
			return "", errors.New("user id is required for access tokens")
		}
		claims.UserID = userID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key.Secret)
}

// Verify checks signature, audience, and expiry of a token of the given kind.
//
// Verify never panics. It returns ErrTokenExpired for a correctly signed token whose
// only defect is its age; the decoded claims are returned alongside that error so
// callers doing best-effort cleanup can still read the session id. Every other failure
// yields ErrTokenInvalid and nil claims.
func (m *Manager) Verify(kind Kind, tokenStr string) (*Claims, error) {
	key, err := m.key(kind)
	if err != nil {
		return nil, err
	}
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(m.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}

	claims := &Claims{}
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key.Secret, nil
	})
	if err != nil {
		if onlyExpired(err) && claims.SessionID != "" {
			return claims, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.SessionID == "" {
		return nil, ErrTokenInvalid
	}
	if kind == KindAccess && claims.UserID == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// onlyExpired reports whether err is a claims failure caused by expiry alone. The
// signature has already been checked when jwt reports ErrTokenInvalidClaims.
func onlyExpired(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) || !errors.Is(err, jwt.ErrTokenInvalidClaims) {
		return false
	}
	return !errors.Is(err, jwt.ErrTokenInvalidAudience) &&
		!errors.Is(err, jwt.ErrTokenInvalidIssuer) &&
		!errors.Is(err, jwt.ErrTokenNotValidYet) &&
		!errors.Is(err, jwt.ErrTokenUsedBeforeIssued)
}

func (m *Manager) key(kind Kind) (KeyConfig, error) {
	switch kind {
	case KindAccess:
		return m.config.Access, nil
	case KindRefresh:
		return m.config.Refresh, nil
	default:
		return KeyConfig{}, ErrUnknownKind
	}
}
