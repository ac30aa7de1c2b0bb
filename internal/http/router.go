package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmwangi/taskhub/internal/auth"
	"github.com/dmwangi/taskhub/internal/cache"
	"github.com/dmwangi/taskhub/internal/cache/rediscache"
	"github.com/dmwangi/taskhub/internal/config"
	"github.com/dmwangi/taskhub/internal/http/handlers"
	"github.com/dmwangi/taskhub/internal/http/middlewares"
	"github.com/dmwangi/taskhub/internal/observability"
	"github.com/dmwangi/taskhub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// publicPrefixes are the only paths reachable without a bearer token.
var publicPrefixes = []string{
	"/api/v1/auth/register",
	"/api/v1/auth/login",
	"/healthz",
	"/readyz",
	"/metrics",
	"/docs",
	"/redoc",
	"/openapi.json",
}

const maxBodyBytes = 1 << 20 // 1 MiB

type RouterDeps struct {
	Cfg   config.Config
	Log   *slog.Logger
	Pool  *pgxpool.Pool
	JWT   *auth.Manager
	Prom  *observability.Prom
	Reg   *prometheus.Registry
	Tasks *rediscache.TaskListCache // nil when redis is not configured
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(deps.Cfg.CORSOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(otelgin.Middleware("taskhub-api"))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	gate := middlewares.NewIdentityGate(deps.JWT, publicPrefixes)
	r.Use(gate.Handler())

	ping := func(ctx context.Context) error {
		if deps.Pool == nil {
			return nil
		}
		return deps.Pool.Ping(ctx)
	}

	r.GET("/healthz", handlers.Healthz)
	r.GET("/readyz", handlers.Readyz(ping))

	if deps.Reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Reg, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/redoc", handlers.Redoc)
	r.GET("/openapi.json", handlers.OpenAPISpec)

	usersRepo := postgres.NewUsersRepo(deps.Pool, deps.Prom)
	rolesRepo := postgres.NewRolesRepo(deps.Pool, deps.Prom)
	tasksRepo := postgres.NewTasksRepo(deps.Pool, deps.Prom)
	jobsRepo := postgres.NewJobsRepo(deps.Pool, deps.Prom)

	roleCache := cache.New(5 * time.Minute)

	authHandler := handlers.NewAuthHandler(usersRepo, rolesRepo, jobsRepo, deps.JWT, roleCache, deps.Log)

	var listCache handlers.ListCache
	if deps.Tasks != nil {
		listCache = deps.Tasks
	}
	tasksHandler := handlers.NewTasksHandler(tasksRepo, listCache, deps.Log)

	v1 := r.Group("/api/v1")

	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)
	v1.GET("/auth/me", authHandler.Me)

	v1.POST("/tasks", tasksHandler.Create)
	v1.GET("/tasks", tasksHandler.List)
	v1.GET("/tasks/:id", tasksHandler.Get)
	v1.PUT("/tasks/:id", tasksHandler.Update)
	v1.DELETE("/tasks/:id", tasksHandler.Delete)

	return r
}
