package handler

import (
	"net/http"

	"agile-bank/internal/adapter/http/middleware"
	"agile-bank/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20 // 1 MB

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	AccountSvc     ports.AccountService
	TransferSvc    ports.TransferService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	Currencies     CurrencyPrecision          // minor units for rendering amounts
	RateLimitStore ports.RateLimitStore       // nil = rate limiting disabled
	AuditSvc       ports.AuditService         // nil = audit logging disabled
	Metrics        middleware.RequestObserver // nil = request metrics disabled
	MetricsHandler http.Handler               // served at MetricsPath when set
	MetricsPath    string
	HealthCheckers []ports.HealthChecker
	Mode           string // gin mode; defaults to release
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsHandler != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.MetricsHandler))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl(middleware.GroupAuthRegister), authHandler.Register)
		auth.POST("/login", rl(middleware.GroupAuthLogin), authHandler.Login)
	}

	rateHandler := NewRateHandler(deps.ReportingSvc)
	v1.GET("/exchange-rates", rl(middleware.GroupRead), rateHandler.List)

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	accountHandler := NewAccountHandler(deps.AccountSvc, deps.Currencies)
	accounts := v1.Group("/accounts", jwtAuth)
	{
		accounts.POST("", rl(middleware.GroupAccounts), accountHandler.Create)
		accounts.GET("", rl(middleware.GroupRead), accountHandler.List)
		accounts.GET("/:id", rl(middleware.GroupRead), accountHandler.Get)
		accounts.DELETE("/:id", rl(middleware.GroupAccounts), accountHandler.Delete)
	}

	txnHandler := NewTransactionHandler(deps.TransferSvc, deps.ReportingSvc, deps.Currencies)
	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.POST("", rl(middleware.GroupTransfers), txnHandler.Create)
		transactions.GET("", rl(middleware.GroupRead), txnHandler.List)
		transactions.GET("/:id", rl(middleware.GroupRead), txnHandler.Get)
	}

	return r
}
