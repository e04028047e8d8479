// Package config loads deployment settings from the environment and an
// optional .env file using Viper, and maps them onto the engine config.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	almagestAuth "github.com/almagest-io/almagestAuth"
)

// Config holds the server's deployment settings.
type Config struct {
	// HTTPAddr is the listen address of the HTTP API (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AutoMigrate applies pending schema migrations at startup.
	AutoMigrate bool `mapstructure:"AUTO_MIGRATE"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// JWTPublicKey is the base64 X.509 public key matching the stored signing key.
	JWTPublicKey   string        `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer      string        `mapstructure:"JWT_ISSUER"`
	JWTAccessTTL   time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	JWTRefreshTTL  time.Duration `mapstructure:"JWT_REFRESH_TTL"`
	KeyServiceName string        `mapstructure:"KEY_SERVICE_NAME"`

	CookieSecure bool `mapstructure:"COOKIE_SECURE"`

	// TestAccount receives fixed codes; empty disables it.
	TestAccount string `mapstructure:"TEST_ACCOUNT"`

	FCMEndpoint  string `mapstructure:"FCM_ENDPOINT"`
	FCMServerKey string `mapstructure:"FCM_SERVER_KEY"`
	// NotifyDelay is how long a login push waits before sending.
	NotifyDelay time.Duration `mapstructure:"NOTIFY_DELAY"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// KafkaBrokers is a comma-separated broker list. When set, auth events
	// go to AuditKafkaTopic instead of the log.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`

	// OTLPEndpoint enables OTLP gRPC metric export when set (e.g. localhost:4317).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// Load reads envFile (if present), then builds and validates Config from
// the environment. An empty envFile means ".env". Env vars override the file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}

	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing file is fine

	v.AutomaticEnv()

	defaults := almagestAuth.DefaultConfig()
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", defaults.JWT.Issuer)
	v.SetDefault("JWT_ACCESS_TTL", defaults.JWT.AccessTTL.String())
	v.SetDefault("JWT_REFRESH_TTL", defaults.JWT.RefreshTTL.String())
	v.SetDefault("KEY_SERVICE_NAME", defaults.JWT.KeyServiceName)
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("TEST_ACCOUNT", defaults.OTP.TestAccount)
	v.SetDefault("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send")
	v.SetDefault("FCM_SERVER_KEY", "")
	v.SetDefault("NOTIFY_DELAY", defaults.Notification.Delay.String())
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "almagest-auth-events")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "almagest-auth")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.RedisAddr == "" {
		return nil, errors.New("config: REDIS_ADDR must be set")
	}
	if cfg.JWTAccessTTL <= 0 || cfg.JWTRefreshTTL <= cfg.JWTAccessTTL {
		return nil, errors.New("config: JWT_REFRESH_TTL must exceed a positive JWT_ACCESS_TTL")
	}
	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return nil, errors.New("config: SMTP_PORT must be between 1 and 65535")
	}

	return &cfg, nil
}

// KafkaBrokerList returns broker addresses from the comma-separated setting.
func (c *Config) KafkaBrokerList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EngineConfig maps the deployment settings onto engine defaults.
func (c *Config) EngineConfig() almagestAuth.Config {
	cfg := almagestAuth.DefaultConfig()
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.AccessTTL = c.JWTAccessTTL
	cfg.JWT.RefreshTTL = c.JWTRefreshTTL
	cfg.JWT.PublicKey = c.JWTPublicKey
	cfg.JWT.KeyServiceName = c.KeyServiceName
	cfg.Cookie.Secure = c.CookieSecure
	cfg.Cookie.AccessMaxAge = c.JWTAccessTTL
	cfg.Cookie.WebRefreshMaxAge = c.JWTRefreshTTL
	cfg.Notification.Delay = c.NotifyDelay
	cfg.OTP.TestAccount = c.TestAccount
	return cfg
}
