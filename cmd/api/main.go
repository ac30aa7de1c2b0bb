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

	"github.com/dmwangi/taskhub/internal/auth"
	"github.com/dmwangi/taskhub/internal/cache/rediscache"
	"github.com/dmwangi/taskhub/internal/config"
	"github.com/dmwangi/taskhub/internal/db"
	httpx "github.com/dmwangi/taskhub/internal/http"
	"github.com/dmwangi/taskhub/internal/observability"
	"github.com/dmwangi/taskhub/internal/queue/redisclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	// middlewares log through the default logger
	slog.SetDefault(log)

	ctx := context.Background()

	// tracing is optional; without an endpoint spans are just dropped
	if cfg.OTLPEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, "taskhub-api", cfg.OTLPEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctxTo, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
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

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	if err := db.EnsureDefaultRoles(ctx, pool); err != nil {
		log.Error("role seed failed", "err", err)
		os.Exit(1)
	}

	if err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// redis is optional; without it list responses are always rebuilt
	var taskCache *rediscache.TaskListCache
	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rc.Close()

		pingCtx, cancel := config.WithTimeout(2 * time.Second)
		err := rc.Ping(pingCtx)
		cancel()

		if err != nil {
			log.Warn("redis unavailable, task list cache disabled", "err", err)
		} else {
			taskCache = rediscache.NewTaskListCache(rc.Raw(), time.Duration(cfg.TaskCacheTTLSeconds)*time.Second)
		}
	}

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL())

	router := httpx.NewRouter(httpx.RouterDeps{
		Cfg:   cfg,
		Log:   log,
		Pool:  pool,
		JWT:   jwtManager,
		Prom:  prom,
		Reg:   reg,
		Tasks: taskCache,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctxTo, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctxTo); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
