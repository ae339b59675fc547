package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"usersapi/internal/audit"
	"usersapi/internal/keycloak"
	"usersapi/internal/platform/config"
	"usersapi/internal/platform/httpserver"
	"usersapi/internal/platform/logger"
	platformmetrics "usersapi/internal/platform/metrics"
	"usersapi/internal/platform/postgres"
	platformredis "usersapi/internal/platform/redis"
	setshandler "usersapi/internal/sets/handler"
	setsservice "usersapi/internal/sets/service"
	setsstore "usersapi/internal/sets/store"
	"usersapi/internal/storage/s3"
	userscache "usersapi/internal/users/cache"
	usershandler "usersapi/internal/users/handler"
	usersmetrics "usersapi/internal/users/metrics"
	usersservice "usersapi/internal/users/service"
	usersstore "usersapi/internal/users/store"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	renormalize := flag.Bool("renormalize-categories", false,
		"run the one-shot category re-normalization pass and exit")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := usersstore.NewPostgres(db)
	userMetrics := usersmetrics.New()
	auditor := audit.NewPublisher(audit.NewPostgresStore(db), log)

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	serviceOpts := []usersservice.Option{
		usersservice.WithLogger(log),
		usersservice.WithMetrics(userMetrics),
		usersservice.WithAudit(auditor),
		usersservice.WithSearchCache(userscache.New(redisClient, cfg.SearchCacheTTL)),
	}

	if cfg.S3Bucket != "" {
		images, err := s3.New(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			log.Error("s3 client setup failed", "error", err)
			os.Exit(1)
		}
		serviceOpts = append(serviceOpts, usersservice.WithObjectStorage(images, cfg.PresignExpiry))
	} else {
		log.Warn("profile image storage disabled, PROFILE_IMAGE_BUCKET not set")
	}

	users := usersservice.New(store, serviceOpts...)

	if *renormalize {
		runRenormalization(ctx, log, users)
		return
	}

	validator, err := keycloak.New(cfg.KeycloakRealmPublicKey)
	if err != nil {
		log.Error("keycloak verifier setup failed", "error", err)
		os.Exit(1)
	}

	httpMetrics := platformmetrics.New()

	sets := setsservice.New(setsstore.NewPostgres(db), setsservice.WithLogger(log))

	router := chi.NewRouter()
	usershandler.New(users, log, httpMetrics, validator).Register(router)
	setshandler.New(sets, log, httpMetrics, validator).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/status", statusHandler(db, redisClient))

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting users api", "addr", cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func runRenormalization(ctx context.Context, log *slog.Logger, users *usersservice.Service) {
	report, err := users.RenormalizeAll(ctx)
	if err != nil {
		log.Error("category re-normalization failed", "error", err)
		os.Exit(1)
	}
	log.Info("category re-normalization complete",
		"total", report.Total, "updated", report.Updated, "failed", len(report.Failures))
	for _, failure := range report.Failures {
		log.Error("record not migrated", "user_id", failure.UserID, "reason", failure.Reason)
	}
}

func statusHandler(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				http.Error(w, "cache unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
