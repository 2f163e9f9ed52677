package http

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/kycdesk/intake-service/internal/api/http/handlers"
	"github.com/kycdesk/intake-service/internal/auth"
	apperrors "github.com/kycdesk/intake-service/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Applications   *handlers.ApplicationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        http.Handler

	UploadsPrefix string
	UploadsDir    string

	// AuthRateLimit is the per-IP request budget per minute on /api/auth;
	// zero disables the limiter. A nil RateLimitStorage keeps counters in
	// process memory.
	AuthRateLimit    int
	RateLimitStorage fiber.Storage
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Health)
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}
	if cfg.UploadsDir != "" {
		app.Static(cfg.UploadsPrefix, cfg.UploadsDir, fiber.Static{Browse: false})
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	if cfg.AuthRateLimit > 0 {
		authGroup.Use(authLimiter(cfg.AuthRateLimit, cfg.RateLimitStorage))
	}
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/signin", cfg.Auth.Signin)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	applications := api.Group("/applications", cfg.AuthMiddleware.Handle)
	applications.Post("/", cfg.Applications.Create)
	applications.Get("/admin/:category", cfg.Applications.ListByCategory)
	applications.Get("/:id", cfg.Applications.Get)
	applications.Put("/:id", cfg.Applications.Update)
}

func authLimiter(max int, storage fiber.Storage) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "auth:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewTooManyRequests("Too many requests, try again later")
		},
		Storage: storage,
	})
}
