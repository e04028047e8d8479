package httpapi

import (
	"net/http"
	"time"

	almagestAuth "github.com/almagest-io/almagestAuth"
	"github.com/almagest-io/almagestAuth/middleware"
)

type accountRequest struct {
	ID            string `json:"id"`
	Account       string `json:"account"`
	Password      string `json:"password"`
	Email         string `json:"email"`
	Code          string `json:"code"`
	FirebaseToken string `json:"firebaseToken"`
}

type registerRequest struct {
	Account   string `json:"account"`
	Password  string `json:"password"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Tel       string `json:"tel"`
	BirthDate string `json:"birthDate"`
	Gender    string `json:"gender"`
	Country   string `json:"country"`
}

type deviceTokenRequest struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

func (h *Handler) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) appVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.AppVersion(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "app version", &MemberData{AppVersion: v})
}

func (h *Handler) lookAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.LookAccount(r.Context(), req.Account); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "account available", nil)
}

func (h *Handler) lookEmail(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.LookEmail(r.Context(), req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "email available", nil)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.svc.Register(r.Context(), almagestAuth.RegisterRequest{
		Account:   req.Account,
		Password:  req.Password,
		Name:      req.Name,
		Email:     req.Email,
		Tel:       req.Tel,
		BirthDate: req.BirthDate,
		Gender:    req.Gender,
		Country:   req.Country,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	enabled := m.Enabled
	writeOK(w, http.StatusCreated, "registered", &MemberData{
		MemberID:  m.ID,
		Name:      m.Name,
		Email:     m.Email,
		IsEnabled: &enabled,
	})
}

func (h *Handler) loginWeb(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	_, err := h.svc.Login(r.Context(), almagestAuth.LoginRequest{
		Account:  req.Account,
		Password: req.Password,
		Client:   almagestAuth.ClientWeb,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "code sent", nil)
}

func (h *Handler) loginApp(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), almagestAuth.LoginRequest{
		Account:        req.Account,
		Password:       req.Password,
		Client:         almagestAuth.ClientApp,
		DeviceToken:    req.FirebaseToken,
		DeviceMemberID: req.ID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "code sent", map[string]string{"id": res.MemberID})
}

func (h *Handler) tokenWeb(w http.ResponseWriter, r *http.Request) {
	h.issueTokens(w, r, h.cookies.WebRefreshMaxAge, false)
}

// tokenApp also returns the pair in the body for clients without a cookie jar.
func (h *Handler) tokenApp(w http.ResponseWriter, r *http.Request) {
	h.issueTokens(w, r, h.cookies.AppRefreshMaxAge, true)
}

func (h *Handler) issueTokens(w http.ResponseWriter, r *http.Request, refreshAge time.Duration, inBody bool) {
	var req accountRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	pair, err := h.svc.IssueTokens(r.Context(), req.ID, req.Account, req.Code)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	http.SetCookie(w, middleware.AccessCookie(h.cookies, pair.AccessToken))
	http.SetCookie(w, middleware.RefreshCookie(h.cookies, pair.RefreshToken, refreshAge))

	data := memberData(pair.Member)
	if inBody {
		data.AccessToken = pair.AccessToken
		data.RefreshToken = pair.RefreshToken
	}
	writeOK(w, http.StatusOK, "login succeeded", data)
}

func (h *Handler) findAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	account, err := h.svc.FindAccount(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "account found", &MemberData{Account: account})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Account, req.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "password reset", nil)
}

func (h *Handler) saveDeviceToken(w http.ResponseWriter, r *http.Request) {
	var req deviceTokenRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.SaveDeviceToken(r.Context(), req.ID, req.Token); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "device token saved", nil)
}
