package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/middleware"
)

// Engine is the protocol surface served over HTTP. *sessionauth.Engine implements it.
type Engine interface {
	Register(ctx context.Context, in sessionauth.RegisterInput) (*sessionauth.AuthResult, error)
	Login(ctx context.Context, in sessionauth.LoginInput) (*sessionauth.AuthResult, error)
	Logout(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*sessionauth.RefreshResult, error)
	VerifyEmail(ctx context.Context, code string) (*sessionauth.PublicUser, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, in sessionauth.ResetPasswordInput) (*sessionauth.PublicUser, error)
	GetUser(ctx context.Context, userID string) (*sessionauth.PublicUser, error)
	ResendVerification(ctx context.Context, userID string) error
	ListSessions(ctx context.Context, userID, currentSessionID string) ([]sessionauth.SessionInfo, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	Authenticate(token string) (sessionauth.Identity, error)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler serves the auth, user and session routes.
type Handler struct {
	engine Engine
	cfg    Config
	log    *slog.Logger

	schemas *validator
	metrics http.Handler
	health  map[string]HealthCheck

	root http.Handler
}

// Option configures optional Handler dependencies.
type Option func(*Handler)

// WithLogger sets the request and error logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.log = logger
		}
	}
}

// WithMetricsHandler mounts handler at GET /metrics.
func WithMetricsHandler(handler http.Handler) Option {
	return func(h *Handler) {
		h.metrics = handler
	}
}

// WithHealthCheck adds a named dependency check to GET /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) {
		if name != "" && check != nil {
			h.health[name] = check
		}
	}
}

// New builds a Handler for engine.
func New(engine Engine, cfg Config, opts ...Option) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("httpapi: nil engine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	schemas, err := newValidator()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		engine:  engine,
		cfg:     cfg,
		log:     slog.New(slog.DiscardHandler),
		schemas: schemas,
		health:  make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	mux := http.NewServeMux()
	h.register(mux)
	h.root = logRequests(h.log, allowOrigin(cfg.AllowedOrigin, mux))
	return h, nil
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/logout", h.handleLogout)
	mux.HandleFunc("GET /auth/refresh", h.handleRefresh)
	mux.HandleFunc("GET /auth/email/verify/{code}", h.handleVerifyEmail)
	mux.HandleFunc("POST /auth/password/forgot", h.handleForgotPassword)
	mux.HandleFunc("POST /auth/password/reset", h.handleResetPassword)

	guard := middleware.Guard(h.engine, h.writeError)
	mux.Handle("GET /user", guard(http.HandlerFunc(h.handleGetUser)))
	mux.Handle("POST /user/resend-verification", guard(http.HandlerFunc(h.handleResendVerification)))
	mux.Handle("GET /session/all", guard(http.HandlerFunc(h.handleListSessions)))
	mux.Handle("DELETE /session/{id}", guard(http.HandlerFunc(h.handleRevokeSession)))

	mux.HandleFunc("GET /health", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	WriteError(h.log, w, r, err)
}

// operationContext detaches Engine work from the client connection and bounds it
// with OperationTimeout.
func (h *Handler) operationContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(r.Context())
	ctx = sessionauth.WithClientIP(ctx, clientIP(r, h.cfg.TrustProxy))
	ctx = sessionauth.WithUserAgent(ctx, r.UserAgent())
	return context.WithTimeout(ctx, h.cfg.OperationTimeout)
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	VerificationCode string `json:"verificationCode"`
	Password         string `json:"password"`
	ConfirmPassword  string `json:"confirmPassword"`
}

type sessionResponse struct {
	SessionID string    `json:"sessionId"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	IsCurrent bool      `json:"isCurrent,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func passwordsMatch(password, confirm string) error {
	if password != confirm {
		return &ValidationError{Errors: []FieldError{{Path: "confirmPassword", Message: MsgPasswordsMismatch}}}
	}
	return nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.schemas.decode(w, r, h.cfg.MaxBodyBytes, schemaRegister, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := passwordsMatch(req.Password, req.ConfirmPassword); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	res, err := h.engine.Register(ctx, sessionauth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setAccessCookie(w, res.AccessToken, res.AccessExpiresAt)
	h.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	writeJSON(w, http.StatusCreated, res.User)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.schemas.decode(w, r, h.cfg.MaxBodyBytes, schemaLogin, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	res, err := h.engine.Login(ctx, sessionauth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setAccessCookie(w, res.AccessToken, res.AccessExpiresAt)
	h.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	writeMessage(w, http.StatusOK, "Login successful.")
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.operationContext(r)
	defer cancel()

	err := h.engine.Logout(ctx, middleware.AccessToken(r))
	h.clearAuthCookies(w)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Logout successful.")
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(RefreshTokenCookie)
	if err != nil || c.Value == "" {
		h.clearAuthCookies(w)
		h.writeError(w, r, sessionauth.NewError(sessionauth.ErrUnauthorized, MsgMissingRefreshToken))
		return
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	res, err := h.engine.Refresh(ctx, c.Value)
	if err != nil {
		h.clearAuthCookies(w)
		h.writeError(w, r, err)
		return
	}

	h.setAccessCookie(w, res.AccessToken, res.AccessExpiresAt)
	if res.Rotated() {
		h.setRefreshCookie(w, res.RefreshToken, res.RefreshExpiresAt)
	}
	writeMessage(w, http.StatusOK, "Access token refreshed.")
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !internal.ValidID(code) {
		h.writeError(w, r, sessionauth.NewError(sessionauth.ErrNotFound, sessionauth.MsgInvalidCode))
		return
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	if _, err := h.engine.VerifyEmail(ctx, code); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Email was successfully verified.")
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := h.schemas.decode(w, r, h.cfg.MaxBodyBytes, schemaForgotPassword, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	if err := h.engine.ForgotPassword(ctx, req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset email sent.")
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := h.schemas.decode(w, r, h.cfg.MaxBodyBytes, schemaResetPassword, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := passwordsMatch(req.Password, req.ConfirmPassword); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx, cancel := h.operationContext(r)
	defer cancel()

	if _, err := h.engine.ResetPassword(ctx, sessionauth.ResetPasswordInput{
		VerificationCode: req.VerificationCode,
		Password:         req.Password,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.clearAuthCookies(w)
	writeMessage(w, http.StatusOK, "Password was reset successfully.")
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	ctx, cancel := h.operationContext(r)
	defer cancel()

	user, err := h.engine.GetUser(ctx, id.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	ctx, cancel := h.operationContext(r)
	defer cancel()

	if err := h.engine.ResendVerification(ctx, id.UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Verification email sent.")
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	ctx, cancel := h.operationContext(r)
	defer cancel()

	sessions, err := h.engine.ListSessions(ctx, id.UserID, id.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResponse{
			SessionID: s.SessionID,
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			IsCurrent: s.IsCurrent,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if !internal.ValidID(sessionID) {
		h.writeError(w, r, &ValidationError{Errors: []FieldError{{Path: "id", Message: MsgInvalidSessionID}}})
		return
	}

	id, _ := middleware.IdentityFromContext(r.Context())

	ctx, cancel := h.operationContext(r)
	defer cancel()

	if err := h.engine.RevokeSession(ctx, id.UserID, sessionID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Session removed.")
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if len(h.health) == 0 {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.OperationTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.health))}
	status := http.StatusOK
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			h.log.WarnContext(ctx, "http.health.check_failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}
