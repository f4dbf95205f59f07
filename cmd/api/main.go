package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"paylor/config"
	httpHandler "paylor/internal/adapter/http/handler"
	"paylor/internal/adapter/metrics"
	"paylor/internal/adapter/provider/mpesa"
	"paylor/internal/adapter/storage/memory"
	pgStorage "paylor/internal/adapter/storage/postgres"
	redisStorage "paylor/internal/adapter/storage/redis"
	"paylor/internal/core/ports"
	"paylor/internal/service"
	"paylor/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// repositories is the storage backend selected by storage.driver.
type repositories struct {
	merchants  ports.MerchantRepository
	wallets    ports.WalletRepository
	intents    ports.IntentRepository
	channels   ports.ChannelRepository
	consents   ports.ConsentRepository
	webhooks   ports.WebhookRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	health     []ports.HealthChecker
	close      func()
}

func main() {
	cfg, err := config.Load(os.Getenv("PAYLOR_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting Paylor")

	ctx := context.Background()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer repos.close()

	// Redis backs rate limiting and the callback replay marker. Both are
	// optional: without Redis every request and callback goes to storage.
	var (
		rateLimitStore *redisStorage.RateLimitStore
		guard          ports.CallbackGuard
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		guard = redisStorage.NewCallbackGuard(rdb)
		repos.health = append(repos.health, redisStorage.NewHealthCheck(rdb))
		log.Info().Msg("Redis connected")
	}

	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	recorder := metrics.New()

	walletSvc := service.NewWalletService(repos.wallets, repos.transactor, cfg.Payments.Currency, logger.Component(log, "wallet"))
	channelSvc := service.NewChannelService(repos.channels, logger.Component(log, "channel"))
	consentSvc := service.NewConsentService(repos.consents, logger.Component(log, "consent"))
	auditSvc := service.NewAuditService(repos.audit, logger.Component(log, "audit"))
	webhookSvc := service.NewWebhookService(
		repos.merchants,
		repos.webhooks,
		encSvc,
		sigSvc,
		&http.Client{Timeout: cfg.Webhook.Timeout},
		logger.Component(log, "webhook"),
	)
	authSvc := service.NewAuthService(repos.merchants, walletSvc, hashSvc, encSvc, tokenSvc, logger.Component(log, "auth"))
	paymentSvc := service.NewPaymentService(service.PaymentDeps{
		Intents:    repos.intents,
		Transactor: repos.transactor,
		Channels:   channelSvc,
		Wallets:    walletSvc,
		Consents:   consentSvc,
		Provider:   mpesa.NewClient(cfg.Mpesa, logger.Component(log, "mpesa")),
		Guard:      guard,
		Webhooks:   webhookSvc,
		Audit:      auditSvc,
		Metrics:    recorder,
	}, service.PaymentConfig{
		Currency:          cfg.Payments.Currency,
		DispatchTimeout:   cfg.Payments.DispatchTimeout,
		QueryAfter:        cfg.Payments.QueryAfter,
		UncorrelatedTTL:   cfg.Payments.UncorrelatedTTL,
		CallbackReplayTTL: cfg.Payments.CallbackReplayTTL,
	}, logger.Component(log, "payment"))

	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	if cfg.Mpesa.CallbackToken == "" {
		log.Warn().Msg("mpesa.callback_token is empty; provider callbacks are not authenticated")
	}

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		PaymentSvc:     paymentSvc,
		ChannelSvc:     channelSvc,
		WalletSvc:      walletSvc,
		ConsentSvc:     consentSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: repos.health,
		AuditSvc:       auditSvc,
		Metrics:        recorder,
		CallbackToken:  cfg.Mpesa.CallbackToken,
		Logger:         logger.Component(log, "http"),
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Pending webhook retries are abandoned; in-flight attempts finish.
	webhookSvc.Close()
	auditSvc.Wait()

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			merchants:  store.Merchants,
			wallets:    store.Wallets,
			intents:    store.Intents,
			channels:   store.Channels,
			consents:   store.Consents,
			webhooks:   store.Webhooks,
			audit:      store.Audit,
			transactor: store.Transactor,
			close:      func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info().Msg("Database schema up to date")
	}

	return &repositories{
		merchants:  pgStorage.NewMerchantRepo(pool),
		wallets:    pgStorage.NewWalletRepo(pool),
		intents:    pgStorage.NewIntentRepo(pool),
		channels:   pgStorage.NewChannelRepo(pool),
		consents:   pgStorage.NewConsentRepo(pool),
		webhooks:   pgStorage.NewWebhookRepo(pool),
		audit:      pgStorage.NewAuditRepo(pool),
		transactor: pgStorage.NewTransactor(pool),
		health:     []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		close:      pool.Close,
	}, nil
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	}
	return gin.ReleaseMode
}
