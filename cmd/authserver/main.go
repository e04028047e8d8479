// Command authserver runs the almagest auth HTTP API.
//
// Flags:
//
//	-env FILE        optional .env file (default .env)
//	-keygen          generate and store a signing key, print the public key, exit
//	-app-version V   publish V as the current mobile app version, exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	almagestAuth "github.com/almagest-io/almagestAuth"
	"github.com/almagest-io/almagestAuth/internal/config"
	"github.com/almagest-io/almagestAuth/internal/httpapi"
	"github.com/almagest-io/almagestAuth/internal/logging"
	"github.com/almagest-io/almagestAuth/internal/notify"
	"github.com/almagest-io/almagestAuth/metrics/export/otel"
	"github.com/almagest-io/almagestAuth/metrics/export/prometheus"
	"github.com/almagest-io/almagestAuth/pgstore"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var (
		envFile    = flag.String("env", "", "path to a .env file")
		keygen     = flag.Bool("keygen", false, "generate a signing key, store it and print the public key")
		appVersion = flag.String("app-version", "", "publish the current mobile app version code and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	sl, err := logging.New(os.Stdout, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	slog.SetDefault(sl)
	logger := logging.NewSlogLogger(sl)

	ctx := context.Background()

	if cfg.AutoMigrate {
		if err := pgstore.Migrate(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	db, err := pgstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	switch {
	case *keygen:
		pub, err := generateSigningKey(ctx, pgstore.NewSignKeyRepository(db), cfg.KeyServiceName)
		if err != nil {
			log.Fatalf("keygen: %v", err)
		}
		fmt.Println(pub)
		return
	case *appVersion != "":
		if err := pgstore.NewAppVersionRepository(db).PublishAppVersion(ctx, *appVersion); err != nil {
			log.Fatalf("app version: %v", err)
		}
		logger.Info(ctx, "app version published", "version", *appVersion)
		return
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	var sink almagestAuth.EventSink
	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		sink = almagestAuth.NewKafkaEventSink(brokers, cfg.AuditKafkaTopic, sl)
		logger.Info(ctx, "auth events to kafka", "brokers", brokers, "topic", cfg.AuditKafkaTopic)
	} else {
		sink = almagestAuth.NewSlogEventSink(sl)
	}

	engineCfg := cfg.EngineConfig()
	engine, err := almagestAuth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithMemberProvider(pgstore.NewMemberRepository(db)).
		WithChallengeStore(pgstore.NewChallengeRepository(db)).
		WithKeyStore(pgstore.NewSignKeyRepository(db)).
		WithAppVersionProvider(pgstore.NewAppVersionRepository(db)).
		WithPushSender(notify.NewFCMSender(cfg.FCMEndpoint, cfg.FCMServerKey, nil)).
		WithMailSender(notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})).
		WithEventSink(sink).
		WithLogger(logger).
		Build()
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	mp, err := newMeterProvider(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := mp.Shutdown(sctx); err != nil {
			logger.Warn(sctx, "meter provider shutdown", "error", err)
		}
	}()
	otelExp, err := otel.NewOTelExporter(mp.Meter(cfg.ServiceName), engine)
	if err != nil {
		log.Fatalf("otel exporter: %v", err)
	}
	defer otelExp.Close()

	api := httpapi.New(engine, engineCfg.Cookie, logger)
	mux := http.NewServeMux()
	mux.Handle("/api/", api.Routes())
	mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(engine).Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.Info(ctx, "http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down http server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error(sctx, "http shutdown", "error", err)
	}
	logger.Info(ctx, "http server stopped")
}
