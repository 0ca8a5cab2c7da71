package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/linzell/authcore/internal/core/port"
	"github.com/linzell/authcore/internal/infra/config"
	"github.com/linzell/authcore/internal/infra/database"
	kafkainfra "github.com/linzell/authcore/internal/infra/kafka"
	"github.com/linzell/authcore/internal/infra/logger"
	"github.com/linzell/authcore/internal/infra/mailer"
	redisinfra "github.com/linzell/authcore/internal/infra/redis"
	"github.com/linzell/authcore/internal/infra/telemetry"
	postgresrepo "github.com/linzell/authcore/internal/repository/postgres"
	redisrepo "github.com/linzell/authcore/internal/repository/redis"
	"github.com/linzell/authcore/internal/transport/http/middleware"
	"github.com/linzell/authcore/internal/transport/http/routes"
	"github.com/linzell/authcore/internal/usecase"
)

// Application owns the wired service graph and the HTTP server lifecycle.
type Application struct {
	cfg       *config.AppConfig
	engine    *gin.Engine
	logger    *zap.Logger
	pool      *pgxpool.Pool
	redis     *redisinfra.Client
	telemetry *telemetry.Provider
}

// New assembles the full service graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tel, err := telemetry.Attach(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)
	watcher := postgresrepo.NewUserWatcher(pool, log)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	var notifier port.Notifier
	if cfg.Mailer.Host != "" {
		notifier = mailer.NewNotifier(cfg.Mailer, log)
	} else {
		log.Info("mailer not configured, logging outbound messages instead")
		notifier = mailer.NewLogNotifier(cfg.Mailer.TemplatesDir, log)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client(), "authcore:rate-limit", rateLimitWindow*2)
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		_ = redisClient.Close()
		pool.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	sessionService := usecase.NewSessionService(repos.Sessions, cfg.Session.TTL, cfg.Session.BindIP, log)
	linkService := usecase.NewLinkService(repos.Links, cfg.Link.FrontURL, log)
	accountService := usecase.NewAccountService(usecase.AccountServiceDeps{
		Users:    repos.Users,
		Sessions: sessionService,
		Links:    linkService,
		Notifier: notifier,
		Events:   eventPublisher,
	}, usecase.AccountServiceOptions{
		From:             cfg.Mailer.From,
		ChangeLinkTTL:    cfg.Link.ChangeTTL,
		ResetLinkTTL:     cfg.Link.ResetTTL,
		MinStrengthScore: cfg.Password.MinStrengthScore,
	}, log)
	profileFeedService := usecase.NewProfileFeedService(repos.Users, watcher, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Accounts:    accountService,
			Sessions:    sessionService,
			ProfileFeed: profileFeedService,
		},
	})

	return &Application{
		cfg:       cfg,
		engine:    engine,
		logger:    log,
		pool:      pool,
		redis:     redisClient,
		telemetry: tel,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.telemetry.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	// No WriteTimeout: the profile stream holds its response open indefinitely.
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting authcore API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
