package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/instaphotobooth/booth-server/internal/config"
	"github.com/instaphotobooth/booth-server/internal/database"
	"github.com/instaphotobooth/booth-server/internal/email"
	"github.com/instaphotobooth/booth-server/internal/handler"
	"github.com/instaphotobooth/booth-server/internal/jobs"
	"github.com/instaphotobooth/booth-server/internal/middleware"
	"github.com/instaphotobooth/booth-server/internal/payment"
	"github.com/instaphotobooth/booth-server/internal/redis"
	"github.com/instaphotobooth/booth-server/internal/repository"
	"github.com/instaphotobooth/booth-server/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	var codeRepo repository.AccessCodeRepository
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		if err := db.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
		cancel()
		log.Info().Msg("database connected")

		codeRepo = repository.NewAccessCodeRepository(db.DB)
	} else {
		log.Warn().Msg("DATABASE_URL not set: using in-memory store, codes are lost on restart")
		codeRepo = repository.NewMemoryAccessCodeRepository()
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	stripeProvider := payment.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.SiteURL)
	mailer := email.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.FromEmail, cfg.FromName)

	quotaCounter := service.NewRedisQuotaCounter(redisClient.Client)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	sessionService := service.NewSessionService(codeRepo, stripeProvider, quotaCounter, service.AdminBypassConfig{
		Enabled:    cfg.AdminBypassEnabled,
		CodeHash:   cfg.AdminBypassCodeHash,
		SessionTTL: cfg.AdminSessionTTL(),
		EmailLimit: cfg.AdminEmailLimit,
	})
	checkoutService := service.NewCheckoutService(codeRepo, stripeProvider, mailer)

	boothHandler := handler.NewBoothHandler(sessionService, mailer)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, stripeProvider)

	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)
	activateLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.ActivateRateLimitPerMin, config.RateLimitWindow, "activate",
	)
	emailLimit := middleware.NewIPRateLimitMiddleware(
		rateLimiter, config.EmailRateLimitPerMin, config.RateLimitWindow, "email",
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Mount("/", checkoutHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(activateLimit.Handler)
			r.Post("/activate", boothHandler.Activate)
			r.Post("/verify-purchase", boothHandler.VerifyPurchase)
		})

		r.Group(func(r chi.Router) {
			r.Use(emailLimit.Handler)
			r.Post("/photos/email", boothHandler.EmailPhoto)
		})

		r.Get("/session", boothHandler.GetSession)
		r.Post("/design", boothHandler.SaveDesign)
	})

	cleanupJob := jobs.NewCleanupJob(codeRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
