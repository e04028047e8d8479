package almagestAuth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/almagest-io/almagestAuth/internal/notify"
	"github.com/almagest-io/almagestAuth/jwt"
	"github.com/almagest-io/almagestAuth/password"
)

var (
	testKeyOnce    sync.Once
	testKeyEncoded string
)

func testSigningKey(t *testing.T) string {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := jwt.GenerateKeyPair(2048)
		if err != nil {
			panic(err)
		}
		testKeyEncoded, err = jwt.EncodePrivateKey(key)
		if err != nil {
			panic(err)
		}
	})
	return testKeyEncoded
}

type memMembers struct {
	mu   sync.Mutex
	byID map[string]Member
}

func newMemMembers() *memMembers {
	return &memMembers{byID: map[string]Member{}}
}

func (s *memMembers) GetMemberByID(_ context.Context, id string) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}

func (s *memMembers) find(match func(Member) bool) (Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if match(m) {
			return m, nil
		}
	}
	return Member{}, ErrMemberNotFound
}

func (s *memMembers) GetMemberByAccount(_ context.Context, account string) (Member, error) {
	return s.find(func(m Member) bool { return m.Account == account })
}

func (s *memMembers) GetMemberByEmail(_ context.Context, email string) (Member, error) {
	return s.find(func(m Member) bool { return strings.EqualFold(m.Email, email) })
}

func (s *memMembers) AccountExists(ctx context.Context, account string) (bool, error) {
	_, err := s.GetMemberByAccount(ctx, account)
	return err == nil, nil
}

func (s *memMembers) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.GetMemberByEmail(ctx, email)
	return err == nil, nil
}

func (s *memMembers) CreateMember(_ context.Context, m Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[m.ID] = m
	return nil
}

func (s *memMembers) update(id string, fn func(*Member)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.byID[id]
	if !ok {
		return ErrMemberNotFound
	}
	fn(&m)
	s.byID[id] = m
	return nil
}

func (s *memMembers) UpdatePassword(_ context.Context, id, hash string, enabled bool) error {
	return s.update(id, func(m *Member) {
		m.PasswordHash = hash
		m.Enabled = enabled
	})
}

func (s *memMembers) SetEnabled(_ context.Context, id string, enabled bool) error {
	return s.update(id, func(m *Member) { m.Enabled = enabled })
}

func (s *memMembers) UpdateEmail(_ context.Context, id, email string) error {
	return s.update(id, func(m *Member) { m.Email = email })
}

func (s *memMembers) UpdateProfile(_ context.Context, id string, p Profile) error {
	return s.update(id, func(m *Member) {
		m.Name = p.Name
		m.Country = p.Country
		m.Gender = p.Gender
		m.BirthDate = p.BirthDate
	})
}

func (s *memMembers) UpdateDeviceToken(_ context.Context, id, token string) error {
	return s.update(id, func(m *Member) { m.DeviceToken = token })
}

func (s *memMembers) Deactivate(_ context.Context, id string) error {
	return s.update(id, func(m *Member) {
		m.Enabled = false
		m.Banned = true
		m.DeviceToken = ""
	})
}

type memChallenges struct {
	mu       sync.Mutex
	byMember map[string]OTPChallenge
}

func newMemChallenges() *memChallenges {
	return &memChallenges{byMember: map[string]OTPChallenge{}}
}

func (s *memChallenges) SaveChallenge(_ context.Context, c OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byMember[c.MemberID] = c
	return nil
}

func (s *memChallenges) GetChallenge(_ context.Context, memberID string) (*OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byMember[memberID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memChallenges) MarkChallengeUsed(_ context.Context, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byMember[memberID]
	c.Used = true
	s.byMember[memberID] = c
	return nil
}

func (s *memChallenges) code(t *testing.T, memberID string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byMember[memberID]
	if !ok {
		t.Fatalf("no challenge for %s", memberID)
	}
	return c.Code
}

type staticKeys struct {
	key string
	err error
}

func (k staticKeys) SigningKey(context.Context, string) (string, error) {
	return k.key, k.err
}

type staticVersion string

func (v staticVersion) LatestAppVersion(context.Context) (string, error) {
	return string(v), nil
}

type pushRecorder struct {
	sent chan notify.Push
}

func (p *pushRecorder) SendPush(_ context.Context, msg notify.Push) error {
	p.sent <- msg
	return nil
}

func (p *pushRecorder) wait(t *testing.T) notify.Push {
	t.Helper()
	select {
	case msg := <-p.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return notify.Push{}
	}
}

type mailRecorder struct {
	mu    sync.Mutex
	mails []notify.Mail
	err   error
}

func (m *mailRecorder) SendMail(_ context.Context, msg notify.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.mails = append(m.mails, msg)
	return nil
}

func (m *mailRecorder) last(t *testing.T) notify.Mail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.mails) == 0 {
		t.Fatal("no mail sent")
	}
	return m.mails[len(m.mails)-1]
}

func (m *mailRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mails)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine     *Engine
	mr         *miniredis.Miniredis
	rdb        *redis.Client
	members    *memMembers
	challenges *memChallenges
	push       *pushRecorder
	mail       *mailRecorder
	clock      *testClock
	events     <-chan AuthEvent
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.BcryptCost = 4
	cfg.Notification.Delay = 0
	cfg.Notification.Workers = 1
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	sink, events := NewChannelEventSink(256)
	env := &testEnv{
		mr:         mr,
		rdb:        rdb,
		members:    newMemMembers(),
		challenges: newMemChallenges(),
		push:       &pushRecorder{sent: make(chan notify.Push, 16)},
		mail:       &mailRecorder{},
		clock:      &testClock{now: time.Now().Truncate(time.Second)},
		events:     events,
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithMemberProvider(env.members).
		WithChallengeStore(env.challenges).
		WithKeyStore(staticKeys{key: testSigningKey(t)}).
		WithAppVersionProvider(staticVersion("")).
		WithPushSender(env.push).
		WithMailSender(env.mail).
		WithEventSink(sink).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	env.engine = engine

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return env
}

func (env *testEnv) seedMember(t *testing.T, account, pw string) Member {
	t.Helper()
	hasher, err := password.NewBcrypt(password.Config{Cost: 4})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(pw)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	m := Member{
		ID:           "id-" + account,
		Account:      account,
		PasswordHash: hash,
		Name:         account,
		Email:        account + "@example.com",
		Role:         RoleUser,
		Enabled:      true,
		DeviceToken:  "device-" + account,
	}
	if err := env.members.CreateMember(context.Background(), m); err != nil {
		t.Fatalf("seed member: %v", err)
	}
	return m
}

// login runs the password step and returns the issued code.
func (env *testEnv) login(t *testing.T, m Member, pw string) string {
	t.Helper()
	if _, _, err := env.engine.Authenticate(context.Background(), m.Account, pw); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	return env.challenges.code(t, m.ID)
}

func (env *testEnv) waitEvent(t *testing.T, eventType string) AuthEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-env.events:
			if ev.EventType == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", eventType)
			return AuthEvent{}
		}
	}
}
