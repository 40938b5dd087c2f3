package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bejofood/internal/cache"
	"bejofood/internal/checkout"
	"bejofood/internal/config"
	"bejofood/internal/convo"
	"bejofood/internal/httpserver"
	"bejofood/internal/logging"
	"bejofood/internal/metrics"
	"bejofood/internal/midtrans"
	"bejofood/internal/notify"
	"bejofood/internal/payments"
	"bejofood/internal/realtime"
	"bejofood/internal/repo"
	"bejofood/internal/tg"
	"bejofood/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.IsProduction())
	slog.SetDefault(logger)
	m := metrics.Registry(cfg.MetricsNamespace)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repository, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer repository.Close()

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations applied", "driver", cfg.DatabaseDriver)

	redisCache := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		UseTLS:   cfg.RedisTLS,
	}, logger)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, menu caching degraded", "error", err)
	}

	tgClient := tg.NewClient(cfg.TelegramBotToken, cfg.TelegramTimeout, logger, m)
	if cfg.PublicBaseURL != "" {
		webhookURL := strings.TrimRight(cfg.PublicBaseURL, "/") + joinBase(cfg.PublicBasePath, "/webhook/telegram")
		if err := tgClient.SetWebhook(ctx, webhookURL, cfg.TelegramWebhookSecret); err != nil {
			return fmt.Errorf("set telegram webhook: %w", err)
		}
		logger.Info("telegram webhook registered", "url", webhookURL)
	}

	gateway := midtrans.NewClient(midtrans.Config{
		BaseURL:   cfg.MidtransBaseURL,
		ServerKey: cfg.MidtransServerKey,
		Acquirer:  cfg.MidtransAcquirer,
		Expiry:    cfg.PaymentExpiry,
		Timeout:   cfg.MidtransTimeout,
	}, logger, m)

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	notifier := notify.New(tgClient, hub, cfg.NotifyTimeout, logger, m)
	pipeline := checkout.New(repository, gateway, notifier, cfg.OrderPrefix, logger, m)
	engine := convo.NewEngine(repository, redisCache, pipeline, tgClient, cfg.MenuCacheTTL, logger, m)
	processor := payments.NewProcessor(repository, notifier, cfg.MidtransServerKey, logger, m)

	server := httpserver.New(httpserver.Config{
		ListenAddr: cfg.HTTPListenAddr,
		BasePath:   cfg.PublicBasePath,
	}, httpserver.Deps{
		TelegramWebhook: tg.NewWebhookHandler(cfg.TelegramWebhookSecret, engine, logger, m),
		MidtransWebhook: midtrans.NewWebhookHandler(processor, logger, m),
		OrdersWS:        realtime.ServeWS(hub, logger),
		Repo:            repository,
		Notifier:        notifier,
		Logger:          logger,
		Metrics:         m,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repo.Repository, error) {
	switch cfg.DatabaseDriver {
	case "sqlite":
		r, err := repo.NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return r, nil
	default:
		r, err := repo.NewPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return r, nil
	}
}

func joinBase(basePath, route string) string {
	bp := strings.Trim(basePath, "/")
	if bp == "" {
		return route
	}
	return "/" + bp + route
}
