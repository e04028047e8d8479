package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	almagestAuth "github.com/almagest-io/almagestAuth"
	"github.com/almagest-io/almagestAuth/internal/logging"
	"github.com/almagest-io/almagestAuth/middleware"
)

const (
	PublicPrefix = "/api/auth/a1/v1"
	MemberPrefix = "/api/auth/a2/v1"
)

// Service is the engine surface used by the handlers. *almagestAuth.Engine
// satisfies it.
type Service interface {
	middleware.Authenticator

	Login(ctx context.Context, req almagestAuth.LoginRequest) (almagestAuth.LoginResult, error)
	IssueTokens(ctx context.Context, memberID, account, code string) (almagestAuth.TokenPair, error)
	Logout(ctx context.Context, memberID string)
	SaveDeviceToken(ctx context.Context, memberID, token string) error

	Register(ctx context.Context, req almagestAuth.RegisterRequest) (almagestAuth.Member, error)
	LookAccount(ctx context.Context, account string) error
	LookEmail(ctx context.Context, email string) error
	FindAccount(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, account, email string) error
	InitializePassword(ctx context.Context, memberID string) error
	ChangePassword(ctx context.Context, memberID string, req almagestAuth.ChangePasswordRequest) error

	SendEmailCode(ctx context.Context, memberID string) error
	ConfirmEmail(ctx context.Context, memberID, code string) error
	RequestEmailChange(ctx context.Context, memberID string) error
	VerifyEmailChangeCode(ctx context.Context, memberID, code, newEmail string) error
	ConfirmEmailChange(ctx context.Context, memberID, code, newEmail string) error

	UpdateProfile(ctx context.Context, memberID string, p almagestAuth.Profile) error
	MemberInfo(ctx context.Context, memberID string) (almagestAuth.Member, error)
	Leave(ctx context.Context, memberID string) error
	AppVersion(ctx context.Context) (string, error)
}

// Handler serves the auth API.
type Handler struct {
	svc     Service
	cookies almagestAuth.CookieConfig
	logger  logging.Logger
	now     func() time.Time
}

// New builds a Handler. A nil logger discards.
func New(svc Service, cookies almagestAuth.CookieConfig, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Handler{svc: svc, cookies: cookies, logger: logger, now: time.Now}
}

// Routes registers every route on a fresh mux and wraps it with the
// request-context and access-log middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return h.withRequestContext(mux)
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	pub := func(pattern string, fn http.HandlerFunc) {
		method, path := splitPattern(pattern)
		mux.Handle(method+" "+PublicPrefix+path, fn)
	}
	member := func(pattern string, fn http.HandlerFunc) {
		method, path := splitPattern(pattern)
		mux.Handle(method+" "+MemberPrefix+path, h.memberOnly(fn))
	}

	pub("GET /aws/check", h.healthCheck)
	pub("GET /app/version", h.appVersion)
	pub("POST /look/account", h.lookAccount)
	pub("POST /look/email", h.lookEmail)
	pub("POST /member", h.register)
	pub("POST /login/web", h.loginWeb)
	pub("POST /login/app", h.loginApp)
	pub("POST /token/web", h.tokenWeb)
	pub("POST /token/app", h.tokenApp)
	pub("POST /find/account", h.findAccount)
	pub("POST /reset/pw", h.resetPassword)
	pub("POST /fcm/token", h.saveDeviceToken)

	member("POST /member/renew", h.renew)
	member("GET /member/info", h.memberInfo)
	member("GET /home", h.home)
	member("POST /member/pw", h.initializePassword)
	member("PUT /member/pw", h.changePassword)
	member("POST /member/email", h.sendEmailCode)
	member("PUT /member/email", h.confirmEmail)
	member("POST /member/email/new", h.requestEmailChange)
	member("POST /member/email/new/code", h.verifyEmailChangeCode)
	member("PUT /member/email/new/code", h.confirmEmailChange)
	member("POST /member/info", h.updateProfile)
	member("POST /member/logout", h.logout)
	member("DELETE /member/leave", h.leave)
}

func (h *Handler) memberOnly(fn http.HandlerFunc) http.Handler {
	guard := middleware.Guard(h.svc, h.cookies, h.fail)
	require := middleware.RequireMember(h.fail)
	return guard(require(fn))
}

// fail writes the envelope for err. Server-side failures are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message, repMsg, data := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug(r.Context(), "request refused", "path", r.URL.Path, "status", status, "error", err)
	}
	if d := retryAfter(err); d > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(d.Round(time.Second)/time.Second)))
	}
	writeFailure(w, status, message, repMsg, data)
}

func splitPattern(p string) (method, path string) {
	for i := 0; i < len(p); i++ {
		if p[i] == ' ' {
			return p[:i], p[i+1:]
		}
	}
	return "", p
}
