package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/orbisplace/orbis-api/config"
	"github.com/orbisplace/orbis-api/db"
	"github.com/orbisplace/orbis-api/handlers"
	"github.com/orbisplace/orbis-api/metrics"
	"github.com/orbisplace/orbis-api/middleware"
	"github.com/orbisplace/orbis-api/realtime"
	"github.com/orbisplace/orbis-api/repositories"
	api "github.com/orbisplace/orbis-api/routes"
	"github.com/orbisplace/orbis-api/services"
	"github.com/orbisplace/orbis-api/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Env), slog.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Миграции и подключение к базе данных
	if err := db.Migrate(cfg.Database.URL, logger); err != nil {
		return err
	}
	dbConn, err := db.Connect(cfg.Database.URL, db.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		Timeout:      cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	txManager, err := db.NewTxManager(dbConn)
	if err != nil {
		return fmt.Errorf("failed to create transaction manager: %w", err)
	}

	// Инициализация загрузчика файлов (Cloudflare R2)
	uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		SecretAccessKey: cfg.R2.SecretAccessKey,
		BucketName:      cfg.R2.BucketName,
		PublicBaseURL:   cfg.R2.PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Cloudflare R2 uploader: %w", err)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// WebSocket Hub
	hub := realtime.NewHub(appMetrics, logger)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(ctx)
	}()
	logger.Info("WebSocket hub started")

	var limiter middleware.RateLimiter
	if cfg.RateLimitRedisAddr != "" {
		limiter, err = middleware.NewRedisRateLimiter(cfg.RateLimitRedisAddr, cfg.RateLimitRedisPassword, cfg.RateLimitRedisDB, logger)
		if err != nil {
			return fmt.Errorf("failed to connect rate limiter to redis: %w", err)
		}
		logger.Info("redis rate limiter enabled", slog.String("addr", cfg.RateLimitRedisAddr))
	} else {
		limiter = middleware.NewMemoryRateLimiter()
		logger.Info("in-memory rate limiter enabled")
	}
	defer limiter.Close()

	mailer, err := services.NewEmailService(cfg.SMTP, cfg.AppBaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	memberRepo := repositories.NewPostgresTeamMemberRepository(dbConn)
	serverRepo := repositories.NewPostgresServerRepository(dbConn)
	taxonomyRepo := repositories.NewPostgresTaxonomyRepository(dbConn)
	reportRepo := repositories.NewPostgresReportRepository(dbConn)

	// Инициализация сервисов
	authService := services.NewAuthService(userRepo, mailer, cfg.Auth, logger)
	userService := services.NewUserService(userRepo, uploader, appMetrics, logger)
	teamService := services.NewTeamService(teamRepo, memberRepo, userRepo, txManager, uploader, hub, appMetrics, logger)
	serverService := services.NewServerService(serverRepo, taxonomyRepo, teamRepo, memberRepo, userRepo, txManager, uploader, appMetrics, logger)
	taxonomyService := services.NewTaxonomyService(taxonomyRepo)
	reportService := services.NewReportService(reportRepo, userRepo, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:      handlers.NewAuthHandler(authService, logger),
		Team:      handlers.NewTeamHandler(teamService, logger),
		Server:    handlers.NewServerHandler(serverService, logger),
		Taxonomy:  handlers.NewTaxonomyHandler(taxonomyService, logger),
		User:      handlers.NewUserHandler(userService, logger),
		Report:    handlers.NewReportHandler(reportService, logger),
		WebSocket: handlers.NewWebSocketHandler(hub, teamService, cfg.CORSOrigins, logger),
		Health:    handlers.NewHealthHandler(dbConn, logger),
	}, api.Options{
		Authenticator: middleware.NewAuthenticator(cfg.Auth.JWTSecretKey, logger),
		RateLimiter:   limiter,
		Metrics:       appMetrics,
		Gatherer:      registry,
		CORSOrigins:   cfg.CORSOrigins,
		Logger:        logger,
	})
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		stop()
		<-hubDone
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return err
	}
	// Хаб закрывает websocket-клиентов по отмене ctx.
	<-hubDone
	logger.Info("server shutdown complete")
	return nil
}
