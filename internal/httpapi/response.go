package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	almagestAuth "github.com/almagest-io/almagestAuth"
)

const (
	repSuccess = "SUCCESS"
	repFailure = "FAILURE"

	maxBodyBytes = 1 << 20
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RepCode string `json:"repCode"`
	RepMsg  string `json:"repMsg"`
	Data    any    `json:"data,omitempty"`
}

// MemberData is the member view returned by login, info and account lookups.
type MemberData struct {
	MemberID     string     `json:"memberId,omitempty"`
	Account      string     `json:"account,omitempty"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email,omitempty"`
	Tel          string     `json:"tel,omitempty"`
	BirthDate    string     `json:"birthDate,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	Country      string     `json:"country,omitempty"`
	IsEnabled    *bool      `json:"isEnabled,omitempty"`
	LastUpdate   *time.Time `json:"lastUpdate,omitempty"`
	AppVersion   string     `json:"appVersion,omitempty"`
	ErrCount     int        `json:"errCount,omitempty"`
	AccessToken  string     `json:"accessToken,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
}

func memberData(m almagestAuth.Member) *MemberData {
	enabled := m.Enabled
	d := &MemberData{
		MemberID:  m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Tel:       m.Tel,
		BirthDate: m.BirthDate,
		Gender:    m.Gender,
		Country:   m.Country,
		IsEnabled: &enabled,
	}
	if !m.LastUpdate.IsZero() {
		t := m.LastUpdate
		d.LastUpdate = &t
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{
		Status:  strconv.Itoa(status),
		Message: message,
		RepCode: repSuccess,
		RepMsg:  message,
		Data:    data,
	})
}

func writeFailure(w http.ResponseWriter, status int, message, repMsg string, data any) {
	writeJSON(w, status, Envelope{
		Status:  strconv.Itoa(status),
		Message: message,
		RepCode: repFailure,
		RepMsg:  repMsg,
		Data:    data,
	})
}

var errMalformedBody = &almagestAuth.ValidationError{Msg: "malformed request body"}

// decode reads a JSON body into dst. An empty body leaves dst zeroed.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errMalformedBody
	}
	return nil
}

// classify maps an engine error to its HTTP status, a client-facing message,
// the repMsg category and optional data.
func classify(err error) (status int, message, repMsg string, data any) {
	var (
		authFailure *almagestAuth.AuthFailureError
		denied      *almagestAuth.AccessDeniedError
	)
	switch {
	case errors.As(err, &authFailure):
		return http.StatusBadRequest, err.Error(), "authentication failed", &MemberData{ErrCount: authFailure.Count}
	case errors.Is(err, almagestAuth.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error(), "invalid request", nil
	case errors.Is(err, almagestAuth.ErrMemberNotFound):
		return http.StatusBadRequest, "unknown member", "invalid request", nil
	case errors.As(err, &denied):
		return http.StatusNotAcceptable, err.Error(), "access denied", nil
	case errors.Is(err, almagestAuth.ErrAccessDenied):
		return http.StatusNotAcceptable, err.Error(), "access denied", nil
	case errors.Is(err, almagestAuth.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error(), "invalid token", nil
	case errors.Is(err, almagestAuth.ErrRateLimited):
		return http.StatusTooManyRequests, almagestAuth.ErrRateLimited.Error(), "too many requests", nil
	case errors.Is(err, almagestAuth.ErrCodeGeneration):
		return http.StatusInternalServerError, almagestAuth.ErrCodeGeneration.Error(), "code generation failed", nil
	case errors.Is(err, almagestAuth.ErrNotification):
		return http.StatusInternalServerError, almagestAuth.ErrNotification.Error(), "mail delivery failed", nil
	case errors.Is(err, almagestAuth.ErrSessionBackend):
		return http.StatusInternalServerError, almagestAuth.ErrSessionBackend.Error(), "session store unavailable", nil
	default:
		return http.StatusInternalServerError, "internal error", "internal error", nil
	}
}

func retryAfter(err error) time.Duration {
	var denied *almagestAuth.AccessDeniedError
	if errors.As(err, &denied) {
		return denied.RetryAfter
	}
	return 0
}
