package almagestAuth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/almagest-io/almagestAuth/internal/audit"
	"github.com/almagest-io/almagestAuth/internal/limiters"
	"github.com/almagest-io/almagestAuth/internal/logging"
	"github.com/almagest-io/almagestAuth/internal/notify"
	"github.com/almagest-io/almagestAuth/internal/rate"
	"github.com/almagest-io/almagestAuth/internal/stores"
	"github.com/almagest-io/almagestAuth/jwt"
	"github.com/almagest-io/almagestAuth/password"
)

const keyLoadTimeout = 5 * time.Second

// Builder defines a public type used by almagestAuth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	members     MemberProvider
	challenges  ChallengeStore
	keys        KeyStore
	appVersions AppVersionProvider
	push        PushSender
	mail        MailSender
	eventSink   EventSink
	logger      logging.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration; start from DefaultConfig to keep defaults.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the shared key-value store used for the lockout counter,
// refresh verification records and send throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithMemberProvider(p MemberProvider) *Builder {
	b.members = p
	return b
}

func (b *Builder) WithChallengeStore(s ChallengeStore) *Builder {
	b.challenges = s
	return b
}

// WithKeyStore sets the source of the signing key, loaded once in Build.
func (b *Builder) WithKeyStore(k KeyStore) *Builder {
	b.keys = k
	return b
}

func (b *Builder) WithAppVersionProvider(p AppVersionProvider) *Builder {
	b.appVersions = p
	return b
}

// WithPushSender sets the device push channel for login codes.
func (b *Builder) WithPushSender(s PushSender) *Builder {
	b.push = s
	return b
}

// WithMailSender sets the mail channel for email codes and temporary passwords.
func (b *Builder) WithMailSender(s MailSender) *Builder {
	b.mail = s
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// WithEventSink has no effect when Config.Audit.Enabled is false.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

func (b *Builder) WithLogger(l logging.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for the engine and its token manager.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build loads the signing key from the KeyStore; a missing or undecodable key fails with ErrCodeGeneration.
// A Builder can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.members == nil {
		return nil, errors.New("member provider required")
	}
	if b.challenges == nil {
		return nil, errors.New("challenge store required")
	}
	if b.keys == nil {
		return nil, errors.New("key store required")
	}
	if b.push == nil {
		return nil, errors.New("push sender required")
	}
	if b.mail == nil {
		return nil, errors.New("mail sender required")
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Nop{}
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	jm, err := loadTokenManager(cfg.JWT, b.keys, now)
	if err != nil {
		logger.Error(context.Background(), "signing key load failed", "service", cfg.JWT.KeyServiceName, "error", err)
		return nil, err
	}

	ph, err := password.NewBcrypt(password.Config{Cost: cfg.Password.BcryptCost})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		members:      b.members,
		challenges:   b.challenges,
		appVersions:  b.appVersions,
		push:         b.push,
		mail:         b.mail,
		jwtManager:   jm,
		passwordHash: ph,
		logger:       logger,
		now:          now,
		metrics:      NewMetrics(cfg.Metrics),
	}

	engine.lockout = limiters.NewLockoutLimiter(b.redis, limiters.LockoutConfig{
		Prefix:      cfg.Lockout.Prefix,
		Window:      cfg.Lockout.Window,
		MaxAttempts: cfg.Lockout.MaxAttempts,
	})
	engine.refreshStore = stores.NewRefreshStore(b.redis, cfg.Refresh.Prefix)
	engine.throttle = rate.New(b.redis, rate.Config{
		MaxResetRequests:     cfg.Throttle.MaxResetRequests,
		ResetWindow:          cfg.Throttle.ResetWindow,
		MaxEmailCodeRequests: cfg.Throttle.MaxEmailCodeRequests,
		EmailCodeWindow:      cfg.Throttle.EmailCodeWindow,
	})
	engine.events = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.eventSink)
	engine.notifier = notify.NewDispatcher(notify.DispatcherConfig{
		Delay:       cfg.Notification.Delay,
		BufferSize:  cfg.Notification.BufferSize,
		Workers:     cfg.Notification.Workers,
		RatePerSec:  cfg.Notification.RatePerSecond,
		Burst:       cfg.Notification.Burst,
		SendTimeout: cfg.Notification.SendTimeout,
	}, logger, notify.Hooks{
		OnSent:    func() { engine.metrics.Inc(MetricNotificationSent) },
		OnFailed:  func() { engine.metrics.Inc(MetricNotificationFailed) },
		OnDropped: func() { engine.metrics.Inc(MetricNotificationDropped) },
	})
	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}

func loadTokenManager(cfg JWTConfig, keys KeyStore, now func() time.Time) (*jwt.Manager, error) {
	ctx, cancel := context.WithTimeout(context.Background(), keyLoadTimeout)
	defer cancel()

	encoded, err := keys.SigningKey(ctx, cfg.KeyServiceName)
	if err != nil {
		return nil, fmt.Errorf("%w: load signing key: %v", ErrCodeGeneration, err)
	}
	if encoded == "" {
		return nil, fmt.Errorf("%w: no signing key for %q", ErrCodeGeneration, cfg.KeyServiceName)
	}
	priv, err := jwt.DecodePrivateKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}

	jcfg := jwt.Config{
		Issuer:     cfg.Issuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		Leeway:     cfg.Leeway,
		PrivateKey: priv,
		Now:        now,
	}
	if cfg.PublicKey != "" {
		pub, err := jwt.DecodePublicKey(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodeGeneration, err)
		}
		jcfg.PublicKey = pub
	}

	jm, err := jwt.NewManager(jcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodeGeneration, err)
	}
	return jm, nil
}
