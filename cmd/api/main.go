package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/auth"
	"github.com/dafibh/loanledger/loanledger-backend/internal/config"
	"github.com/dafibh/loanledger/loanledger-backend/internal/handler"
	"github.com/dafibh/loanledger/loanledger-backend/internal/metrics"
	"github.com/dafibh/loanledger/loanledger-backend/internal/middleware"
	"github.com/dafibh/loanledger/loanledger-backend/internal/repository/cache"
	"github.com/dafibh/loanledger/loanledger-backend/internal/repository/postgres"
	"github.com/dafibh/loanledger/loanledger-backend/internal/repository/storage"
	"github.com/dafibh/loanledger/loanledger-backend/internal/service"
	"github.com/dafibh/loanledger/loanledger-backend/internal/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Connect to database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(pool)
	loanRepo := postgres.NewLoanApplicationRepository(pool)
	scheduleRepo := postgres.NewRepaymentScheduleRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	documentRepo := postgres.NewLoanDocumentRepository(pool)

	// Quote cache is optional
	var quoteCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, "loanledger:quote:", cfg.QuoteCacheTTL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, quotes will not be cached")
		} else {
			defer redisCache.Close()
			quoteCache = redisCache
			log.Info().Msg("Quote cache enabled")
		}
	}

	// Document storage is optional
	var store storage.ObjectStore
	if cfg.S3.Enabled() {
		s3Store, err := storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			log.Warn().Err(err).Msg("S3 storage unavailable, document uploads disabled")
		} else {
			store = s3Store
			log.Info().Str("bucket", cfg.S3.Bucket).Msg("Document storage enabled")
		}
	} else {
		log.Info().Msg("S3_BUCKET not set, document uploads disabled")
	}

	m := metrics.New()
	hub := websocket.NewHub()

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Expiry:   cfg.JWT.Expiry,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token issuer")
	}

	// Initialize services
	authService := service.NewAuthService(userRepo, tokens)
	userService := service.NewUserService(userRepo)
	loanService := service.NewLoanService(loanRepo, scheduleRepo, userRepo, hub, m)
	paymentService := service.NewPaymentService(loanRepo, scheduleRepo, paymentRepo, hub, m)
	calculatorService := service.NewCalculatorService(quoteCache)
	documentService := service.NewDocumentService(documentRepo, loanRepo, store, hub)

	authMiddleware, err := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, authService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}

	rateLimiter := middleware.NewRateLimiterWithConfig(cfg.RateLimitPerMinute, middleware.DefaultBurstSize)
	defer rateLimiter.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	e.Use(zerologMiddleware())
	e.Use(m.Middleware())
	e.Use(echomiddleware.Recover())

	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	handler.RegisterRoutes(e, authMiddleware, rateLimiter, handler.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		User:       handler.NewUserHandler(userService),
		Loan:       handler.NewLoanHandler(loanService),
		Payment:    handler.NewPaymentHandler(paymentService),
		Calculator: handler.NewCalculatorHandler(calculatorService),
		Document:   handler.NewDocumentHandler(documentService),
		WebSocket:  handler.NewWebSocketHandler(hub, authMiddleware, cfg.CORSOrigins),
	})

	overdueWorker := service.NewOverdueWorker(scheduleRepo, m, log.Logger, service.DefaultOverdueWorkerConfig())
	overdueWorker.Start(ctx)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	overdueWorker.Stop()
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			event := log.Info()
			if res.Status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Str("user_id", middleware.GetUserID(c).String()).
				Msg("request")

			return nil
		}
	}
}
