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

	"github.com/Dosada05/tournament-ops/brackets"
	"github.com/Dosada05/tournament-ops/config"
	"github.com/Dosada05/tournament-ops/db"
	"github.com/Dosada05/tournament-ops/handlers"
	"github.com/Dosada05/tournament-ops/repositories"
	api "github.com/Dosada05/tournament-ops/routes"
	"github.com/Dosada05/tournament-ops/services"
	"github.com/Dosada05/tournament-ops/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid server configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.Int("port", cfg.ServerPort),
		slog.String("tournament", cfg.TournamentName),
		slog.String("data_dir", cfg.Files.Dir))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := services.TournamentDeps{
		Files:  repositories.NewFileRepository(cfg.Files, logger),
		Logger: logger,
	}

	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
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
		snapshots := repositories.NewPostgresStandingsSnapshotRepository(dbConn)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare snapshot schema", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Snapshots = snapshots
		logger.Info("database connection established")
	} else {
		logger.Info("DATABASE_URL not set, standings snapshots stay on disk only")
	}

	if cfg.R2.Complete() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, cfg.R2)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Uploader = uploader
		logger.Info("Cloudflare R2 uploader initialized", slog.String("bucket", cfg.R2.BucketName))
	}

	wsHub := brackets.NewHub(logger)
	go wsHub.Run(ctx)
	deps.Hub = wsHub

	tournamentService := services.NewTournamentService(services.TournamentConfig{
		Name:            cfg.TournamentName,
		Format:          cfg.Format,
		IncludeKnockout: cfg.IncludeKnockout,
		OutcomeStrategy: cfg.OutcomeStrategy,
		CheckInWindow:   cfg.CheckInWindow,
	}, deps)

	report, err := tournamentService.Bootstrap(ctx)
	if err != nil && !errors.Is(err, services.ErrPublishIncomplete) {
		logger.Error("failed to bootstrap tournament", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("tournament ready", slog.Int("results_applied", report.Applied), slog.Int("results_skipped", len(report.Skipped)))

	authService := services.NewAuthService(cfg.JWTSecretKey, cfg.OrganizerPassHash, services.DefaultTokenTTL)
	if cfg.OrganizerPassHash == "" {
		logger.Warn("ORGANIZER_PASSWORD_HASH not set, organizer endpoints are unreachable")
	}

	go func() {
		ticker := time.NewTicker(cfg.ResultsPollInterval)
		defer ticker.Stop()
		logger.Info("results poller started", slog.Duration("interval", cfg.ResultsPollInterval))

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := tournamentService.SyncResults(ctx); err != nil {
					logger.Error("results poll failed", slog.Any("error", err))
				}
			}
		}
	}()

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:       handlers.NewAuthHandler(authService, logger),
		Tournament: handlers.NewTournamentHandler(tournamentService, logger),
		Player:     handlers.NewPlayerHandler(tournamentService, logger),
		Match:      handlers.NewMatchHandler(tournamentService, logger),
		WebSocket:  handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger),
	}, authService, cfg.CORSAllowedOrigins, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

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
