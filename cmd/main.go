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
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/siamcircuit/tournament-ops/brackets"
	"github.com/siamcircuit/tournament-ops/challonge"
	"github.com/siamcircuit/tournament-ops/config"
	"github.com/siamcircuit/tournament-ops/db"
	"github.com/siamcircuit/tournament-ops/discord"
	"github.com/siamcircuit/tournament-ops/handlers"
	"github.com/siamcircuit/tournament-ops/middleware"
	"github.com/siamcircuit/tournament-ops/repositories"
	api "github.com/siamcircuit/tournament-ops/routes"
	"github.com/siamcircuit/tournament-ops/scheduler"
	"github.com/siamcircuit/tournament-ops/services"
	"github.com/siamcircuit/tournament-ops/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных и миграции
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if err := db.Migrate(dbConn); err != nil {
		logger.Error("failed to apply database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Инициализация загрузчика файлов (Cloudflare R2)
	cloudflareUploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2.AccountID,
		AccessKeyID:     cfg.R2.AccessKeyID,
		SecretAccessKey: cfg.R2.SecretAccessKey,
		BucketName:      cfg.R2.BucketName,
		PublicBaseURL:   cfg.R2.PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	matchStateRepo := repositories.NewPostgresMatchStateRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	substitutionRepo := repositories.NewPostgresSubstitutionRepository(dbConn)
	logger.Info("repositories initialized")

	// Адаптер внешней сетки
	bracketClient := challonge.NewClient(cfg.Challonge.APIKey, cfg.Challonge.TournamentID)

	// Инициализация сервисов
	authService := services.NewAuthService(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecretKey)
	matchService := services.NewMatchService(matchStateRepo, teamRepo, bracketClient, wsHub, logger)
	teamService := services.NewTeamService(teamRepo, bracketClient, cloudflareUploader)
	playerService := services.NewPlayerService(playerRepo, cloudflareUploader)
	substitutionService := services.NewSubstitutionService(substitutionRepo, teamRepo)
	bracketViewService := services.NewBracketViewService(bracketClient, matchStateRepo, teamRepo)
	logger.Info("services initialized")

	// Discord и планировщик: без бота сервис работает, но анонсы и каналы
	// результатов не создаются.
	if cfg.Discord.BotToken == "" {
		logger.Warn("discord bot token is not configured, scheduler disabled")
	} else {
		notifier, err := discord.NewNotifier(cfg.Discord, logger)
		if err != nil {
			logger.Error("failed to initialize discord notifier", slog.Any("error", err))
			os.Exit(1)
		}
		if err := notifier.Open(); err != nil {
			logger.Error("failed to connect to discord gateway", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := notifier.Close(); err != nil {
				logger.Error("failed to close discord session", slog.Any("error", err))
			}
		}()

		sched, err := scheduler.New(
			cfg.Scheduler,
			matchService,
			bracketViewService,
			bracketClient,
			matchStateRepo,
			teamRepo,
			notifier,
			notifier,
			logger,
		)
		if err != nil {
			logger.Error("failed to initialize scheduler", slog.Any("error", err))
			os.Exit(1)
		}
		matchService.SetPropagator(sched)

		if err := sched.Start(); err != nil {
			logger.Error("failed to start scheduler", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				logger.Error("failed to stop scheduler", slog.Any("error", err))
			}
		}()
	}

	// Инициализация обработчиков HTTP
	authMiddleware := middleware.NewAuth(cfg.JWTSecretKey)
	authHandler := handlers.NewAuthHandler(authService)
	matchHandler := handlers.NewMatchHandler(matchService)
	teamHandler := handlers.NewTeamHandler(teamService)
	playerHandler := handlers.NewPlayerHandler(playerService)
	substitutionHandler := handlers.NewSubstitutionHandler(substitutionService)
	bracketHandler := handlers.NewBracketHandler(bracketViewService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authMiddleware,
		authHandler,
		matchHandler,
		teamHandler,
		playerHandler,
		substitutionHandler,
		bracketHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
