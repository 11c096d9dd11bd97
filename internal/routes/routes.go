package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/carworth/carworth/internal/auth"
	"github.com/carworth/carworth/internal/config"
	"github.com/carworth/carworth/internal/credential"
	"github.com/carworth/carworth/internal/middleware"
	"github.com/carworth/carworth/internal/notification"
	"github.com/carworth/carworth/internal/report"
	"github.com/carworth/carworth/internal/session"
	"github.com/carworth/carworth/internal/user"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. The request
// pipeline order is fixed here: request id and audit logging first, then
// the identity resolver, then per-route guards. Guards fail closed if
// the resolver is ever removed from in front of them.
func Setup(app *fiber.App, d Deps) error {
	var userRepo user.Repository
	if d.DB != nil {
		userRepo = user.NewPostgresRepository(d.DB)
	} else {
		userRepo = user.NewMemoryRepository()
	}
	var reportRepo report.Repository
	if d.DB != nil {
		reportRepo = report.NewPostgresRepository(d.DB)
	} else {
		reportRepo = report.NewMemoryRepository()
	}

	sessions := session.NewStore(d.Cache, d.Cfg.SessionSecret, d.Cfg.SessionTTL)
	hasher := credential.NewHasher()
	notifier := notification.NewLoggerNotifier(d.Logger)

	authSvc := auth.NewService(userRepo, hasher, notifier, d.Cfg.HashTimeout)
	authHandler := auth.NewHandler(authSvc, sessions, d.Logger)
	reportSvc := report.NewService(reportRepo)
	reportHandler := report.NewHandler(reportSvc)

	// Middlewares, in pipeline order.
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.CurrentUser(sessions, userRepo))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	rateLimiter := middleware.LoginRateLimit(d.Cache, 5)
	RegisterAuthRoutes(api, authHandler, rateLimiter)
	RegisterReportRoutes(api, reportHandler)

	return nil
}
