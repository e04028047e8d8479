package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	almagestAuth "github.com/almagest-io/almagestAuth"
)

// RefreshHeader carries the refresh token for clients without a cookie jar.
const RefreshHeader = "X-Refresh-Token"

// Authenticator is satisfied by *almagestAuth.Engine.
type Authenticator interface {
	AuthenticateRequest(ctx context.Context, access, refresh string) (*almagestAuth.AuthResult, error)
}

// ErrorHandler writes the response for a refused request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type authResultContextKey struct{}

// AuthResultFromContext returns the result stored by Guard.
func AuthResultFromContext(ctx context.Context) (*almagestAuth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*almagestAuth.AuthResult)
	return res, ok && res != nil
}

// MemberIDFromContext returns the authenticated member id, or false for
// anonymous and unauthenticated requests.
func MemberIDFromContext(ctx context.Context) (string, bool) {
	res, ok := AuthResultFromContext(ctx)
	if !ok || res.Anonymous || res.MemberID == "" {
		return "", false
	}
	return res.MemberID, true
}

// WithAuthResult stores res on ctx. Guard skips requests that already carry
// a non-anonymous result.
func WithAuthResult(ctx context.Context, res *almagestAuth.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard authenticates every request from its access and refresh tokens.
//
// Tokens are read from the configured cookies first, then from the
// Authorization bearer header and RefreshHeader. Requests with neither pass
// through as anonymous. When the request was accepted on its refresh token
// the renewed access token is set as a cookie on the response. Refusals go
// to onError, or a plain 401 when onError is nil.
func Guard(auth Authenticator, cookies almagestAuth.CookieConfig, onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = unauthorized
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := MemberIDFromContext(r.Context()); ok && id != "" {
				next.ServeHTTP(w, r)
				return
			}
			if auth == nil {
				onError(w, r, almagestAuth.ErrEngineNotReady)
				return
			}

			access, refresh := extractTokens(r, cookies)
			res, err := auth.AuthenticateRequest(r.Context(), access, refresh)
			if err != nil {
				onError(w, r, err)
				return
			}
			if res.RenewedAccess != "" {
				http.SetCookie(w, AccessCookie(cookies, res.RenewedAccess))
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

// RequireMember refuses anonymous requests. It must run behind Guard.
func RequireMember(onError ErrorHandler) func(http.Handler) http.Handler {
	if onError == nil {
		onError = unauthorized
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := MemberIDFromContext(r.Context()); !ok {
				onError(w, r, &almagestAuth.InvalidTokenError{Reason: "authentication required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractTokens(r *http.Request, cookies almagestAuth.CookieConfig) (access, refresh string) {
	if c, err := r.Cookie(cookies.AccessName); err == nil {
		access = c.Value
	}
	if access == "" {
		access, _ = bearerToken(r.Header.Get("Authorization"))
	}
	if c, err := r.Cookie(cookies.RefreshName); err == nil {
		refresh = c.Value
	}
	if refresh == "" {
		refresh = strings.TrimSpace(r.Header.Get(RefreshHeader))
	}
	return access, refresh
}

func unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	if !errors.Is(err, almagestAuth.ErrInvalidToken) {
		status = http.StatusInternalServerError
	}
	http.Error(w, http.StatusText(status), status)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
