//go:build integration
// +build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	almagestAuth "github.com/almagest-io/almagestAuth"
	"github.com/almagest-io/almagestAuth/internal/httpapi"
	"github.com/almagest-io/almagestAuth/internal/notify"
	"github.com/almagest-io/almagestAuth/jwt"
)

var (
	keyOnce    sync.Once
	keyEncoded string
)

func signingKey(t *testing.T) string {
	t.Helper()
	keyOnce.Do(func() {
		key, err := jwt.GenerateKeyPair(2048)
		if err != nil {
			panic(err)
		}
		keyEncoded, err = jwt.EncodePrivateKey(key)
		if err != nil {
			panic(err)
		}
	})
	return keyEncoded
}

type memberStore struct {
	mu   sync.Mutex
	byID map[string]almagestAuth.Member
}

func (s *memberStore) GetMemberByID(_ context.Context, id string) (almagestAuth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return almagestAuth.Member{}, almagestAuth.ErrMemberNotFound
	}
	return m, nil
}

func (s *memberStore) find(match func(almagestAuth.Member) bool) (almagestAuth.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if match(m) {
			return m, nil
		}
	}
	return almagestAuth.Member{}, almagestAuth.ErrMemberNotFound
}

func (s *memberStore) GetMemberByAccount(_ context.Context, account string) (almagestAuth.Member, error) {
	return s.find(func(m almagestAuth.Member) bool { return m.Account == account })
}

func (s *memberStore) GetMemberByEmail(_ context.Context, email string) (almagestAuth.Member, error) {
	return s.find(func(m almagestAuth.Member) bool { return strings.EqualFold(m.Email, email) })
}

func (s *memberStore) AccountExists(ctx context.Context, account string) (bool, error) {
	_, err := s.GetMemberByAccount(ctx, account)
	return err == nil, nil
}

func (s *memberStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.GetMemberByEmail(ctx, email)
	return err == nil, nil
}

func (s *memberStore) CreateMember(_ context.Context, m almagestAuth.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[m.ID] = m
	return nil
}

func (s *memberStore) update(id string, fn func(*almagestAuth.Member)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return almagestAuth.ErrMemberNotFound
	}
	fn(&m)
	s.byID[id] = m
	return nil
}

func (s *memberStore) UpdatePassword(_ context.Context, id, hash string, enabled bool) error {
	return s.update(id, func(m *almagestAuth.Member) { m.PasswordHash, m.Enabled = hash, enabled })
}

func (s *memberStore) SetEnabled(_ context.Context, id string, enabled bool) error {
	return s.update(id, func(m *almagestAuth.Member) { m.Enabled = enabled })
}

func (s *memberStore) UpdateEmail(_ context.Context, id, email string) error {
	return s.update(id, func(m *almagestAuth.Member) { m.Email = email })
}

func (s *memberStore) UpdateProfile(_ context.Context, id string, p almagestAuth.Profile) error {
	return s.update(id, func(m *almagestAuth.Member) {
		m.Name, m.Country, m.Gender, m.BirthDate = p.Name, p.Country, p.Gender, p.BirthDate
	})
}

func (s *memberStore) UpdateDeviceToken(_ context.Context, id, token string) error {
	return s.update(id, func(m *almagestAuth.Member) { m.DeviceToken = token })
}

func (s *memberStore) Deactivate(_ context.Context, id string) error {
	return s.update(id, func(m *almagestAuth.Member) {
		m.Enabled, m.Banned, m.DeviceToken = false, true, ""
	})
}

type challengeStore struct {
	mu       sync.Mutex
	byMember map[string]almagestAuth.OTPChallenge
}

func (s *challengeStore) SaveChallenge(_ context.Context, c almagestAuth.OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byMember[c.MemberID] = c
	return nil
}

func (s *challengeStore) GetChallenge(_ context.Context, memberID string) (*almagestAuth.OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byMember[memberID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *challengeStore) MarkChallengeUsed(_ context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byMember[memberID]
	c.Used = true
	s.byMember[memberID] = c
	return nil
}

type keyStore string

func (k keyStore) SigningKey(context.Context, string) (string, error) { return string(k), nil }

type pushInbox chan notify.Push

func (p pushInbox) SendPush(_ context.Context, push notify.Push) error {
	p <- push
	return nil
}

// code waits for the next login push and returns its code.
func (p pushInbox) code(t *testing.T) string {
	t.Helper()
	select {
	case push := <-p:
		return push.Data["code"]
	case <-time.After(2 * time.Second):
		t.Fatal("no push delivered")
		return ""
	}
}

type mailInbox struct {
	mu   sync.Mutex
	sent []notify.Mail
}

func (m *mailInbox) SendMail(_ context.Context, mail notify.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stack struct {
	engine  *almagestAuth.Engine
	mr      *miniredis.Miniredis
	members *memberStore
	push    pushInbox
	mail    *mailInbox
	clock   *clock
	srv     *httptest.Server
	client  *http.Client
}

// newStack serves the full HTTP API over TLS (the cookies are Secure)
// backed by miniredis and in-memory stores.
func newStack(t *testing.T, mutate func(*almagestAuth.Config)) *stack {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := almagestAuth.DefaultConfig()
	cfg.Password.BcryptCost = 4
	cfg.Notification.Delay = 0
	if mutate != nil {
		mutate(&cfg)
	}

	s := &stack{
		mr:      mr,
		members: &memberStore{byID: map[string]almagestAuth.Member{}},
		push:    make(pushInbox, 16),
		mail:    &mailInbox{},
		clock:   &clock{now: time.Now()},
	}

	engine, err := almagestAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMemberProvider(s.members).
		WithChallengeStore(&challengeStore{byMember: map[string]almagestAuth.OTPChallenge{}}).
		WithKeyStore(keyStore(signingKey(t))).
		WithPushSender(s.push).
		WithMailSender(s.mail).
		WithClock(s.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	s.engine = engine

	s.srv = httptest.NewTLSServer(httpapi.New(engine, cfg.Cookie, nil).Routes())
	s.client = s.srv.Client()
	s.client.Jar, _ = cookiejar.New(nil)

	t.Cleanup(func() {
		s.srv.Close()
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return s
}

func (s *stack) do(t *testing.T, method, path string, body any, headers ...string) (int, httpapi.Envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body == nil {
		rd = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env httpapi.Envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func (s *stack) public(t *testing.T, method, path string, body any) (int, httpapi.Envelope) {
	t.Helper()
	return s.do(t, method, httpapi.PublicPrefix+path, body)
}

func (s *stack) member(t *testing.T, method, path string, body any, headers ...string) (int, httpapi.Envelope) {
	t.Helper()
	return s.do(t, method, httpapi.MemberPrefix+path, body, headers...)
}

func dataField(env httpapi.Envelope, key string) any {
	m, ok := env.Data.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

// signUp registers account with a device token and returns the member id.
func (s *stack) signUp(t *testing.T, account, password string) string {
	t.Helper()
	status, env := s.public(t, http.MethodPost, "/member", map[string]string{
		"account":  account,
		"password": password,
		"name":     "Member " + account,
		"email":    account + "@example.com",
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d %+v", account, status, env)
	}
	id, _ := dataField(env, "memberId").(string)
	if id == "" {
		t.Fatalf("register %s: no member id in %+v", account, env)
	}

	status, env = s.public(t, http.MethodPost, "/fcm/token", map[string]string{"id": id, "token": "device-" + account})
	if status != http.StatusOK {
		t.Fatalf("fcm token %s: status %d %+v", account, status, env)
	}
	return id
}

// signIn runs the web login and token steps and leaves cookies in the jar.
func (s *stack) signIn(t *testing.T, id, account, password string) {
	t.Helper()
	status, env := s.public(t, http.MethodPost, "/login/web", map[string]string{"account": account, "password": password})
	if status != http.StatusOK {
		t.Fatalf("login: status %d %+v", status, env)
	}
	code := s.push.code(t)
	status, env = s.public(t, http.MethodPost, "/token/web", map[string]string{"id": id, "code": code})
	if status != http.StatusOK {
		t.Fatalf("token: status %d %+v", status, env)
	}
}
