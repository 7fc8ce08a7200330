package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/covidsafe/services-backend/internal/auth"
	"github.com/covidsafe/services-backend/internal/booking"
	"github.com/covidsafe/services-backend/internal/catalog"
	"github.com/covidsafe/services-backend/internal/config"
	"github.com/covidsafe/services-backend/internal/dashboard"
	"github.com/covidsafe/services-backend/internal/escrow"
	"github.com/covidsafe/services-backend/internal/health"
	"github.com/covidsafe/services-backend/internal/location"
	"github.com/covidsafe/services-backend/internal/notify"
	"github.com/covidsafe/services-backend/internal/otp"
	"github.com/covidsafe/services-backend/internal/router"
	"github.com/covidsafe/services-backend/internal/tracing"
	"github.com/covidsafe/services-backend/internal/validate"
)

// riverNotifier enqueues exposure notices through River. Inserts happen
// after the declaration has committed, so a plain Insert is enough.
type riverNotifier struct {
	client *river.Client[pgx.Tx]
}

func (n *riverNotifier) NotifyExposure(ctx context.Context, userID uuid.UUID, windowStart, windowEnd time.Time) error {
	_, err := n.client.Insert(ctx, notify.ExposureNotifyArgs{
		UserID:      userID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}, nil)
	return err
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL (connection refused or invalid). Ensure Postgres is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL database")

	// River migrations (job tables only; application schema is managed
	// separately)
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed. If the error is 'connection refused', start PostgreSQL first", "error", err)
		os.Exit(1)
	}
	slog.Info("River migrations applied")

	workers := river.NewWorkers()
	river.AddWorker(workers, notify.NewExposureNotifyWorker(cfg.NotifyWebhookURL, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	validator, err := validate.New(cfg.SchemaDir)
	if err != nil {
		slog.Error("Schema validator init failed", "error", err)
		os.Exit(1)
	}

	// Auth
	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, cfg.JWTSecret, time.Duration(cfg.JWTExpireHr)*time.Hour)
	authHandler := auth.NewHandler(authSvc, logger)

	// Catalog
	catalogRepo := catalog.NewRepository(pool)
	bookingRepo := booking.NewRepository(pool)
	catalogSvc := catalog.NewService(catalogRepo, bookingRepo)
	catalogHandler := catalog.NewHandler(catalogSvc, logger)

	// Booking core: escrow ledger, OTP, location hashing
	ledger := escrow.NewLedger(escrow.NewRepository())
	otpSvc := otp.NewService(time.Duration(cfg.OTPTTLMin) * time.Minute)
	hasher := location.NewHasher(cfg.LocationSalt)
	bookingSvc := booking.NewService(pool, bookingRepo, catalogRepo, ledger, otpSvc, hasher)
	bookingHandler := booking.NewHandler(bookingSvc, validator, logger)

	// Health declarations + contact tracing
	healthRepo := health.NewRepository(pool)
	engine := tracing.NewEngine(bookingRepo, healthRepo, &riverNotifier{client: riverClient}, logger)
	healthSvc := health.NewService(healthRepo, bookingRepo, engine, cfg.TraceLookbackDays, cfg.InfectiousWindowDays, logger)
	healthHandler := health.NewHandler(healthSvc, validator, logger)

	// Dashboard
	dashHandler := dashboard.NewHandler(bookingSvc, catalogRepo, logger)

	apiRouter := router.New(authHandler, catalogHandler, bookingHandler, healthHandler, dashHandler, authSvc)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(apiRouter)

	// Start River client (delivers exposure notices)
	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	serverAddr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
