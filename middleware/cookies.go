package middleware

import (
	"net/http"
	"time"

	almagestAuth "github.com/almagest-io/almagestAuth"
)

// AccessCookie builds the access-token cookie.
func AccessCookie(cfg almagestAuth.CookieConfig, token string) *http.Cookie {
	return newCookie(cfg, cfg.AccessName, token, cfg.AccessMaxAge)
}

// RefreshCookie builds the refresh-token cookie with the given lifetime;
// web and app clients use different ages.
func RefreshCookie(cfg almagestAuth.CookieConfig, token string, maxAge time.Duration) *http.Cookie {
	return newCookie(cfg, cfg.RefreshName, token, maxAge)
}

// ClearCookies expires both token cookies on w.
func ClearCookies(w http.ResponseWriter, cfg almagestAuth.CookieConfig) {
	for _, name := range []string{cfg.AccessName, cfg.RefreshName} {
		c := newCookie(cfg, name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func newCookie(cfg almagestAuth.CookieConfig, name, value string, maxAge time.Duration) *http.Cookie {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   int(maxAge / time.Second),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	}
}
