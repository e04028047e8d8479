package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

func TestFCMSenderPostsDataMessage(t *testing.T) {
	var got fcmRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":1,"failure":0}`))
	}))
	defer srv.Close()

	s := NewFCMSender(srv.URL, "server-key", srv.Client())
	if err := s.SendPush(context.Background(), OTPPush("tok", "1234")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "key=server-key" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if got.To != "tok" || got.Notification.Title != "OTP Code" || got.Data["code"] != "1234" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestFCMSenderRejections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"success":0,"failure":1,"results":[{"error":"NotRegistered"}]}`))
	}))
	defer srv.Close()

	err := NewFCMSender(srv.URL+"/down", "k", srv.Client()).SendPush(context.Background(), OTPPush("tok", "1"))
	if !errors.Is(err, ErrPushRejected) {
		t.Fatalf("expected ErrPushRejected for status, got %v", err)
	}

	err = NewFCMSender(srv.URL, "k", srv.Client()).SendPush(context.Background(), OTPPush("tok", "1"))
	if !errors.Is(err, ErrPushRejected) || !strings.Contains(err.Error(), "NotRegistered") {
		t.Fatalf("expected NotRegistered rejection, got %v", err)
	}

	err = NewFCMSender(srv.URL, "k", srv.Client()).SendPush(context.Background(), OTPPush("", "1"))
	if !errors.Is(err, ErrNoDeviceToken) {
		t.Fatalf("expected ErrNoDeviceToken, got %v", err)
	}
}

func TestSMTPMailerComposesMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", Port: 2525, Username: "u", Password: "p", From: "noreply@almagest.io"})
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	var addr, from string
	var to []string
	var body string
	m.send = func(a string, _ smtp.Auth, f string, rcpt []string, msg []byte) error {
		addr, from, to, body = a, f, rcpt, string(msg)
		return nil
	}

	if err := m.SendMail(context.Background(), EmailCodeMail(" user@example.com ", "9876", false)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if addr != "mail.example.com:2525" || from != "noreply@almagest.io" {
		t.Fatalf("unexpected envelope %s %s", addr, from)
	}
	if len(to) != 1 || to[0] != "user@example.com" {
		t.Fatalf("unexpected recipients %v", to)
	}
	for _, want := range []string{
		"To: user@example.com\r\n",
		"Content-Type: text/html; charset=UTF-8",
		"<p>Verification code : 9876</p>",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in message:\n%s", want, body)
		}
	}
}

func TestSMTPMailerErrors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("421 busy") }

	if err := m.SendMail(context.Background(), Mail{}); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
	err := m.SendMail(context.Background(), TemporaryPasswordMail("a@b.io", "Xy12345678"))
	if err == nil || !strings.Contains(err.Error(), "421 busy") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}
