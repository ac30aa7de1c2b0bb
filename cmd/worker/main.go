package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmwangi/taskhub/internal/config"
	"github.com/dmwangi/taskhub/internal/db"
	"github.com/dmwangi/taskhub/internal/notifications"
	"github.com/dmwangi/taskhub/internal/observability"
	"github.com/dmwangi/taskhub/internal/queue/worker"
	"github.com/dmwangi/taskhub/internal/repo/postgres"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, "taskhub-worker", cfg.OTLPEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctxTo, cancelTo := config.WithTimeout(5 * time.Second)
				defer cancelTo()
				_ = shutdown(ctxTo)
			}()
		}
	}

	pool, err := db.WaitForPool(ctx, log, cfg.DBURL, 10, 2*time.Second)
	if err != nil {
		log.Error("database unavailable", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	jobsRepo := postgres.NewJobsRepo(pool, prom)

	notifier := notifications.NewProtectedNotifier(
		notifications.NewLogNotifier(),
		notifications.ProtectedNotifierConfig{},
	)

	workerID, _ := os.Hostname()
	if workerID == "" {
		workerID = uuid.NewString()
	}

	w := worker.New(worker.Config{
		WorkerID:      workerID,
		PollInterval:  500 * time.Millisecond,
		LockTTL:       30 * time.Second,
		ShutdownGrace: 10 * time.Second,
	}, jobsRepo, notifier, prom)

	// health and metrics ride a small side server
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", w.HealthHandler())

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port+1),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.Port+1)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("health server failed", "err", err)
		}
	}()

	log.Info("worker starting", "worker_id", workerID, "env", cfg.Env)

	if err := w.Run(ctx); err != nil {
		log.Error("worker stopped with error", "err", err)
	}

	shutdownCtx, cancelShutdown := config.WithTimeout(5 * time.Second)
	defer cancelShutdown()

	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("health server shutdown failed", "err", err)
	}

	log.Info("worker stopped")
}
