package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jobhunter/server/internal/infra/config"
	"github.com/jobhunter/server/internal/infra/httpclient"
	"github.com/jobhunter/server/internal/module/auth"
	"github.com/jobhunter/server/internal/module/generation"
	"github.com/jobhunter/server/internal/module/llm"
	"github.com/jobhunter/server/internal/module/payment"
	"github.com/jobhunter/server/internal/module/profile"
	"github.com/jobhunter/server/internal/module/quota"
	"github.com/jobhunter/server/internal/module/subscription"
	sharedcache "github.com/jobhunter/server/internal/shared/cache"
	"github.com/jobhunter/server/internal/shared/database"
	"github.com/jobhunter/server/internal/shared/logger"
	"github.com/jobhunter/server/internal/utils/metrics"
	"github.com/jobhunter/server/internal/utils/middleware"
)

// Version is reported by the root and health endpoints.
const Version = "1.0.0"

// App represents the application.
type App struct {
	config    *config.Config
	db        *gorm.DB
	redis     *redis.Client
	router    *gin.Engine
	logger    *logger.Logger
	zapLogger *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics

	jwt *auth.JWTManager

	// Modules
	subscriptionService *subscription.Service
	subscriptionHandler *subscription.Handler
	generationHandler   *generation.Handler
	profileHandler      *profile.Handler
	webhookHandler      *payment.WebhookHandler
}

// New creates a new application instance. Without a configured database the app runs on
// in-memory repositories, and without Redis quota counters stay in-process.
func New(cfg *config.Config) (*App, error) {
	log := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	zapLog, err := logger.NewZapLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &App{
		config:    cfg,
		logger:    log,
		zapLogger: zapLog,
		registry:  registry,
		metrics:   metrics.New("jobhunter", registry),
	}

	if cfg.Database.Enabled() {
		db, err := database.New(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, &subscription.User{}, &profile.UserProfile{}, &payment.WebhookEvent{}); err != nil {
				return nil, err
			}
		}
		app.db = db
	} else {
		zapLog.Warn("no database configured, using in-memory repositories")
	}

	if cfg.Redis.Enabled() {
		client, err := sharedcache.NewRedisClient(context.Background(), &cfg.Redis)
		if err != nil {
			// Redis is optional: quota counters fall back to this process.
			zapLog.Warn("redis connection failed, quota counters are per instance", zap.Error(err))
		} else {
			app.redis = client
		}
	}

	if err := app.initModules(); err != nil {
		return nil, fmt.Errorf("init modules: %w", err)
	}

	app.router = app.setupRouter()
	app.registerRoutes()

	return app, nil
}

// initModules initializes all application modules.
func (a *App) initModules() error {
	cfg := a.config

	// Users and subscriptions
	var userRepo subscription.Repository = subscription.NewMemoryRepository()
	if a.db != nil {
		userRepo = subscription.NewRepository(a.db)
	}
	plans := subscription.NewPlanCatalog(cfg.Paystack.PlanCodes).AddCodes(cfg.Stripe.PricePlans)
	a.subscriptionService = subscription.NewService(userRepo, subscription.NewProjector(plans), subscription.AccessPolicy{
		AdminEmails:  cfg.AccessControl.AdminEmails,
		AdminUserIDs: cfg.AccessControl.AdminUserIDs,
	}, a.zapLogger)
	a.subscriptionHandler = subscription.NewHandler(a.subscriptionService, a.zapLogger)

	// Profiles
	var profileRepo profile.Repository = profile.NewMemoryRepository()
	if a.db != nil {
		profileRepo = profile.NewRepository(a.db)
	}
	profileService := profile.NewService(profileRepo, a.zapLogger)
	a.profileHandler = profile.NewHandler(profileService, a.zapLogger)

	// Quota
	var store quota.Store = quota.NewLocalStore(cfg.Quota.Shards)
	if a.redis != nil {
		store = quota.NewFallbackStore(
			quota.NewRedisStore(a.redis, cfg.Quota.KeyPrefix, cfg.Quota.KeyTTL),
			store,
			quota.FallbackConfig{
				Timeout:         cfg.Quota.StoreTimeout,
				BreakerFailures: cfg.Quota.BreakerFailures,
				BreakerTimeout:  cfg.Quota.BreakerTimeout,
			},
			a.zapLogger,
			a.metrics,
		)
	}
	limiter := quota.NewLimiter(store, quota.TierPolicy{
		FreeAllowance:    cfg.Quota.FreeDaily,
		PremiumAllowance: cfg.Quota.PremiumDaily,
	}, nil, a.zapLogger, a.metrics)

	// Generation
	provider, err := llm.New(cfg.AI, httpclient.NewProviderClient(cfg.HTTPClient, cfg.AI, "jobhunter-server/"+Version), a.zapLogger, a.metrics)
	if err != nil {
		return err
	}
	generationService := generation.NewService(provider, limiter, a.subscriptionService, profileService,
		generation.Config{PremiumFeatures: cfg.Features.PremiumFeatures}, a.zapLogger, a.metrics)
	a.generationHandler = generation.NewHandler(generationService, cfg.Server.MaxUploadBytes, a.zapLogger)

	// Authentication
	a.jwt, err = auth.NewJWTManager(&auth.JWTConfig{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   auth.DefaultJWTConfig().Leeway,
	})
	if err != nil {
		return fmt.Errorf("init jwt: %w", err)
	}

	// Payments
	var eventRepo payment.EventRepository = payment.NewMemoryRepository()
	if a.db != nil {
		eventRepo = payment.NewRepository(a.db)
	}
	var stripe *payment.Stripe
	if cfg.Stripe.Enabled() {
		stripe = payment.NewStripe(cfg.Stripe.WebhookSecret)
	}
	a.webhookHandler = payment.NewWebhookHandler(
		payment.NewPaystack(cfg.ActivePaystackSecret()),
		stripe,
		payment.NewResolver(a.subscriptionService, a.zapLogger),
		eventRepo,
		a.subscriptionService,
		a.metrics,
		a.zapLogger,
	)

	return nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(a.config.CORS.AllowedOrigins...)))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to the JobHunter CV Generator API",
			"version": Version,
		})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": Version})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry})))

	return r
}

// registerRoutes mounts every module under /api/v1.
func (a *App) registerRoutes() {
	v1 := a.router.Group("/api/v1")

	// Payment providers authenticate with signatures, not bearer tokens.
	a.webhookHandler.RegisterRoutes(v1.Group("/payments"))

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(middleware.ValidatorFunc(a.jwt.ValidateAccessToken)))
	{
		var generationMW []gin.HandlerFunc
		if a.redis != nil {
			idem := middleware.DefaultIdempotencyConfig()
			idem.MaxBodyBytes = a.config.Server.MaxUploadBytes
			generationMW = append(generationMW, middleware.Idempotency(a.redis, idem))
		}
		a.generationHandler.RegisterProtectedRoutes(protected, generationMW...)
		a.profileHandler.RegisterProtectedRoutes(protected, middleware.RequireAdmin(a.subscriptionService))
		a.subscriptionHandler.RegisterProtectedRoutes(protected)
	}
}

// Router returns the Gin router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop releases the database and Redis connections.
func (a *App) Stop() {
	if a.redis != nil {
		if err := sharedcache.Close(a.redis); err != nil {
			a.zapLogger.Warn("close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.zapLogger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.zapLogger.Sync()
}
