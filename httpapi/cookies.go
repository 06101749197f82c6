package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/sessionauth/middleware"
)

// Cookie names and paths. The refresh token is only ever sent to the refresh route.
const (
	AccessTokenCookie  = middleware.AccessTokenCookie
	RefreshTokenCookie = "refreshToken"
	RefreshCookiePath  = "/auth/refresh"
)

func (h *Handler) setAccessCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, h.cookie(AccessTokenCookie, "/", token, exp))
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, h.cookie(RefreshTokenCookie, RefreshCookiePath, token, exp))
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	for _, c := range []*http.Cookie{
		h.cookie(AccessTokenCookie, "/", "", time.Unix(0, 0).UTC()),
		h.cookie(RefreshTokenCookie, RefreshCookiePath, "", time.Unix(0, 0).UTC()),
	} {
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *Handler) cookie(name, path, value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}
