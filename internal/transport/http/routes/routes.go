package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/infra/config"
	"github.com/linzell/authcore/internal/transport/http/handlers"
	"github.com/linzell/authcore/internal/transport/http/middleware"
	"github.com/linzell/authcore/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Accounts    *usecase.AccountService
	Sessions    *usecase.SessionService
	ProfileFeed *usecase.ProfileFeedService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())

	authMiddleware := middleware.RequireAuth(deps.Services.Sessions)

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Accounts)
		accountHandler := handlers.NewAccountHandler(deps.Services.Accounts)
		profileHandler := handlers.NewProfileHandler(deps.Services.ProfileFeed)

		authGroup := api.Group("/auth")
		authGroup.POST("/login", withRateLimit(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts, authHandler.Login)...)
		authGroup.POST("/register", withRateLimit(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts, authHandler.Register)...)
		authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		renewHandlers := append(withRateLimitOnly(deps, "auth_renew_ip", deps.Config.RateLimit.RenewMaxAttempts), authMiddleware, authHandler.Renew)
		authGroup.POST("/renew", renewHandlers...)

		accountGroup := api.Group("/account")

		requestLimit := withRateLimitOnly(deps, "account_change_request_ip", deps.Config.RateLimit.ChangeRequestMaxAttempts)
		confirmLimit := withRateLimitOnly(deps, "account_change_confirm_ip", deps.Config.RateLimit.ChangeConfirmMaxAttempts)

		emailGroup := accountGroup.Group("/email")
		emailGroup.POST("/request", append(append([]gin.HandlerFunc{}, requestLimit...), authMiddleware, accountHandler.RequestEmailChange)...)
		emailGroup.POST("/confirm", append(append([]gin.HandlerFunc{}, confirmLimit...), accountHandler.ConfirmEmailChange)...)

		passwordGroup := accountGroup.Group("/password")
		passwordGroup.POST("/request", append(append([]gin.HandlerFunc{}, requestLimit...), authMiddleware, accountHandler.RequestPasswordChange)...)
		passwordGroup.POST("/confirm", append(append([]gin.HandlerFunc{}, confirmLimit...), accountHandler.ConfirmPasswordChange)...)

		accountGroup.GET("/profile/stream", authMiddleware, profileHandler.Stream)
	}

	return r
}

// withRateLimit prefixes the handler with an IP-scoped sliding-window rule.
func withRateLimit(deps Dependencies, name string, limit int, handler gin.HandlerFunc) []gin.HandlerFunc {
	chain := withRateLimitOnly(deps, name, limit)
	return append(chain, handler)
}

func withRateLimitOnly(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
