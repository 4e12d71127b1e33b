package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"complaint-service/internal/account"
	"complaint-service/internal/auth"
	"complaint-service/internal/complaint"
	"complaint-service/internal/config"
	"complaint-service/internal/db"
	"complaint-service/internal/events"
	"complaint-service/internal/health"
	"complaint-service/internal/logger"
	"complaint-service/internal/mailer"
	"complaint-service/internal/metrics"
	"complaint-service/internal/middleware"
	"complaint-service/internal/token"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
)

type App struct {
	config *config.Config
	router chi.Router
	server *http.Server
	logger *slog.Logger
}

func New() *App {
	slogLogger := logger.NewWithServiceContext("complaint-service", Version)

	// Set as default logger so slog.Info() uses JSON format
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	database := db.New(cfg.Database)

	ctx := context.Background()
	if err := db.RunMigrations(ctx, database,
		(*account.Account)(nil),
		(*account.Profile)(nil),
		(*complaint.Complaint)(nil),
	); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	m, err := metrics.New(otel.Meter("complaint-service"))
	if err != nil {
		slogLogger.Warn("failed to initialize metrics", "error", err)
		m = metrics.NewMock()
	}

	// Apply CORS middleware globally
	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoints (no auth required)
	healthHandler := health.NewHandler()
	healthHandler.RegisterRoutes(app.router)

	// Event producer is optional: the service runs fine without a broker.
	producer, err := events.New(cfg.Events, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize event producer", "error", err)
		producer = nil
	}

	sender := mailer.Instrument(mailer.NewSender(cfg.Email, slogLogger), m)

	tokenTTL := time.Duration(cfg.Auth.TokenTTLHours) * time.Hour
	verifyTokens := token.NewGenerator(cfg.Auth.TokenSecret, token.PurposeEmailVerification, tokenTTL)
	resetTokens := token.NewGenerator(cfg.Auth.TokenSecret, token.PurposePasswordReset, tokenTTL)

	// Auth setup (registration, login, verification and reset links)
	accountRepo := account.NewRepository(database, m)
	authService := auth.NewService(accountRepo, verifyTokens, resetTokens, sender, producer, cfg.Server.BaseURL, slogLogger)
	authHandler := auth.NewHandler(authService, slogLogger, m)
	authHandler.RegisterRoutes(app.router)

	// Complaint endpoints (auth required)
	complaintRepo := complaint.NewRepository(database, m)
	complaintService := complaint.NewService(complaintRepo, producer, slogLogger)
	attachments := complaint.NewAttachmentStore(cfg.Uploads.Dir)
	complaintHandler := complaint.NewHandler(
		complaintService,
		accountRepo,
		attachments,
		cfg.Uploads.MaxBytes,
		slogLogger,
		m,
	)

	app.router.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(slogLogger))
		complaintHandler.RegisterRoutes(r)
	})

	slogLogger.Info("application initialized successfully")

	return app
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")
	return a.server.Shutdown(ctx)
}
