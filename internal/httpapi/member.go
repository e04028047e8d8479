package httpapi

import (
	"net/http"

	almagestAuth "github.com/almagest-io/almagestAuth"
	"github.com/almagest-io/almagestAuth/middleware"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword1    string `json:"newPassword1"`
	NewPassword2    string `json:"newPassword2"`
}

type emailCodeRequest struct {
	Code     string `json:"code"`
	NewEmail string `json:"newEmail"`
}

type profileRequest struct {
	Name      string `json:"name"`
	Country   string `json:"country"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birthDate"`
}

// memberID is set by RequireMember for every member route.
func memberID(r *http.Request) string {
	id, _ := middleware.MemberIDFromContext(r.Context())
	return id
}

func (h *Handler) renew(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "session renewed", &MemberData{MemberID: memberID(r)})
}

func (h *Handler) memberInfo(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.MemberInfo(r.Context(), memberID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data := memberData(m)
	data.Account = m.Account
	writeOK(w, http.StatusOK, "member info", data)
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.MemberInfo(r.Context(), memberID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	enabled := m.Enabled
	writeOK(w, http.StatusOK, "home", &MemberData{Name: m.Name, Email: m.Email, IsEnabled: &enabled})
}

func (h *Handler) initializePassword(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.InitializePassword(r.Context(), memberID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "temporary password sent", nil)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.svc.ChangePassword(r.Context(), memberID(r), almagestAuth.ChangePasswordRequest{
		CurrentPassword: req.CurrentPassword,
		NewPassword1:    req.NewPassword1,
		NewPassword2:    req.NewPassword2,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "password changed", nil)
}

func (h *Handler) sendEmailCode(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SendEmailCode(r.Context(), memberID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "code sent", nil)
}

func (h *Handler) confirmEmail(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.ConfirmEmail(r.Context(), memberID(r), req.Code); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "email confirmed", nil)
}

func (h *Handler) requestEmailChange(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequestEmailChange(r.Context(), memberID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "code sent", nil)
}

func (h *Handler) verifyEmailChangeCode(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.VerifyEmailChangeCode(r.Context(), memberID(r), req.Code, req.NewEmail); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "code sent to new email", nil)
}

func (h *Handler) confirmEmailChange(w http.ResponseWriter, r *http.Request) {
	var req emailCodeRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.ConfirmEmailChange(r.Context(), memberID(r), req.Code, req.NewEmail); err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "email changed", nil)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	err := h.svc.UpdateProfile(r.Context(), memberID(r), almagestAuth.Profile{
		Name:      req.Name,
		Country:   req.Country,
		Gender:    req.Gender,
		BirthDate: req.BirthDate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "profile updated", nil)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), memberID(r))
	middleware.ClearCookies(w, h.cookies)
	writeOK(w, http.StatusOK, "logged out", nil)
}

func (h *Handler) leave(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Leave(r.Context(), memberID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.ClearCookies(w, h.cookies)
	writeOK(w, http.StatusOK, "membership closed", nil)
}
