package handler

import (
	"paylor/internal/adapter/http/middleware"
	"paylor/internal/adapter/metrics"
	redisStore "paylor/internal/adapter/storage/redis"
	"paylor/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	PaymentSvc     ports.PaymentService
	ChannelSvc     ports.ChannelService
	WalletSvc      ports.WalletService
	ConsentSvc     ports.ConsentService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Metrics        *metrics.Recorder  // nil = no /metrics endpoint
	CallbackToken  string             // empty = callbacks are not authenticated
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	authHandler := NewAuthHandler(deps.AuthSvc)
	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.CallbackToken, deps.Logger)
	channelHandler := NewChannelHandler(deps.ChannelSvc)
	walletHandler := NewWalletHandler(deps.WalletSvc)
	consentHandler := NewConsentHandler(deps.ConsentSvc)

	// --- Public routes (no auth) ---
	public := r.Group("/public")
	{
		public.POST("/merchants/register", rl("auth_register"), authHandler.Register)
		public.POST("/auth/login", rl("auth_login"), authHandler.Login)
		// Not rate limited: the provider must always get the acknowledgement.
		public.POST("/payments/callback", paymentHandler.Callback)
	}

	// --- JWT-authenticated merchant routes ---
	merchants := r.Group("/merchants", middleware.JWTAuth(deps.TokenSvc, deps.Logger))
	{
		merchants.POST("/payments/stk-push", rl("stk_push"), paymentHandler.Initiate)
		merchants.GET("/payments/transactions", rl("dashboard"), paymentHandler.ListTransactions)
		merchants.GET("/payments/transactions/:id", rl("dashboard"), paymentHandler.GetTransaction)

		merchants.GET("/channels", rl("dashboard"), channelHandler.List)
		merchants.POST("/channels", rl("dashboard"), channelHandler.Create)

		merchants.GET("/wallet", rl("dashboard"), walletHandler.GetBalance)

		merchants.POST("/consents", rl("dashboard"), consentHandler.Record)
		merchants.GET("/consents", rl("dashboard"), consentHandler.History)
		merchants.GET("/consents/latest", rl("dashboard"), consentHandler.Latest)
	}

	return r
}
