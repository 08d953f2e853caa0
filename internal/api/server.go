package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dontcare/internal/auth"
	"dontcare/internal/cache"
	"dontcare/internal/config"
	"dontcare/internal/database"
	"dontcare/internal/errors"
	"dontcare/internal/logger"
	"dontcare/internal/mailer"
	"dontcare/internal/market"
	"dontcare/internal/market/kis"
	"dontcare/internal/middleware"
	"dontcare/internal/monitoring"
	"dontcare/internal/news"
	"dontcare/internal/otp"
)

// Deps are the services the server routes to. DB, cache, and the KIS
// client may be nil; the affected endpoints then degrade or 503.
type Deps struct {
	DB     *database.DB
	Cache  cache.Cacher
	JWT    *auth.JWTManager
	OTP    *otp.Store
	Mailer mailer.Mailer
	Market *market.Service
	KIS    *kis.Client
	News   *news.Service
}

// Server is the HTTP API server
type Server struct {
	config     *config.Config
	router     *gin.Engine
	httpServer *http.Server
	deps       Deps

	authHandler      *AuthHandler
	marketHandler    *MarketHandler
	portfolioHandler *PortfolioHandler
	newsHandler      *NewsHandler
	wsHandler        *WebSocketHandler
}

// NewServer wires the handlers and routes
func NewServer(cfg *config.Config, deps Deps) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config: cfg,
		router: gin.New(),
		deps:   deps,
	}

	s.authHandler = NewAuthHandler(deps.DB, deps.JWT, deps.OTP, deps.Mailer, deps.Cache, cfg.RateLimit)
	s.marketHandler = NewMarketHandler(deps.Market, deps.KIS)
	s.portfolioHandler = NewPortfolioHandler(deps.DB)
	s.newsHandler = NewNewsHandler(deps.News, deps.DB)
	s.wsHandler = NewWebSocketHandler(deps.Market, websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	})

	s.setupRoutes()
	return s
}

// Router exposes the gin engine for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestLogger())
	s.router.Use(middleware.ErrorHandler())
	s.router.Use(middleware.CORS(s.config.CORS))
	if s.config.RateLimit.Enabled && s.config.RateLimit.RequestsPerMinute > 0 {
		s.router.Use(middleware.RateLimit(s.config.RateLimit.RequestsPerMinute, s.config.RateLimit.Burst))
	}
	s.router.Use(monitoring.MetricsMiddleware())

	if s.config.Monitoring.PrometheusEnabled {
		s.router.GET(s.config.Monitoring.PrometheusPath, gin.WrapH(monitoring.PrometheusHandler()))
	}

	s.router.GET("/health", s.health)

	v1 := s.router.Group("/api/v1")
	{
		// token validation is stateless, so auth runs before the DB guard:
		// a missing token is 401 even while the database is down
		accounts := v1.Group("/accounts")
		{
			public := accounts.Group("")
			public.Use(s.requireDB())
			{
				public.POST("/check-email", s.authHandler.CheckEmail)
				public.POST("/signup/otp", middleware.IPRateLimit(s.deps.Cache, "otp", s.config.RateLimit.OTPPerMinute), s.authHandler.RequestSignupOTP)
				public.POST("/signup/verify", middleware.IPRateLimit(s.deps.Cache, "verify", s.config.RateLimit.VerifyPerMinute), s.authHandler.VerifySignupOTP)
				public.POST("/signup", s.authHandler.Signup)
				public.POST("/login", s.authHandler.Login)
				public.POST("/refresh", s.authHandler.Refresh)
				public.POST("/logout", s.authHandler.Logout)

				public.POST("/password-reset/otp", middleware.IPRateLimit(s.deps.Cache, "otp", s.config.RateLimit.OTPPerMinute), s.authHandler.RequestPasswordResetOTP)
				public.POST("/password-reset/verify", middleware.IPRateLimit(s.deps.Cache, "verify", s.config.RateLimit.VerifyPerMinute), s.authHandler.VerifyPasswordResetOTP)
				public.POST("/password-reset", s.authHandler.CompletePasswordReset)
			}

			protected := accounts.Group("")
			protected.Use(auth.Middleware(s.deps.JWT), s.requireDB())
			{
				protected.GET("/profile", s.authHandler.GetProfile)
				protected.PUT("/profile", s.authHandler.UpdateProfile)
				protected.PUT("/password", s.authHandler.ChangePassword)
				protected.DELETE("", s.authHandler.DeleteAccount)
			}
		}

		stocks := v1.Group("/stocks")
		{
			stocks.GET("/dashboard", s.marketHandler.Dashboard)
			stocks.GET("/cache-status", s.marketHandler.CacheStatus)
			stocks.GET("/kis/markets", s.marketHandler.KISMarkets)
			stocks.GET("/kis/token", s.marketHandler.KISTokenInfo)
			stocks.GET("/:class", s.marketHandler.CatalogQuotes)
			stocks.GET("/:class/:symbol", s.marketHandler.Quote)
			stocks.GET("/:class/:symbol/enhanced", s.marketHandler.EnhancedQuote)
			stocks.POST("/:class/:symbol/refresh", s.marketHandler.ForceRefresh)
		}

		portfolio := v1.Group("/portfolios")
		portfolio.Use(auth.Middleware(s.deps.JWT), s.requireDB())
		{
			portfolio.GET("", s.portfolioHandler.List)
			portfolio.POST("", s.portfolioHandler.Create)
			portfolio.GET("/stats", s.portfolioHandler.Stats)
			portfolio.GET("/:id", s.portfolioHandler.Get)
			portfolio.PUT("/:id", s.portfolioHandler.Update)
			portfolio.DELETE("/:id", s.portfolioHandler.Delete)
		}

		newsGroup := v1.Group("/news")
		{
			newsGroup.GET("", s.requireDB(), s.newsHandler.List)
			newsGroup.GET("/crawl", middleware.IPRateLimit(s.deps.Cache, "crawl", 30), s.newsHandler.Crawl)
			newsGroup.POST("/crawl", middleware.IPRateLimit(s.deps.Cache, "crawl", 30), s.newsHandler.Crawl)
		}
	}

	ws := s.router.Group("/ws")
	{
		ws.GET("/market/:class/:symbol", s.wsHandler.MarketStream)
	}
}

// requireDB rejects requests to storage-backed endpoints when the server
// runs without a database.
func (s *Server) requireDB() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.DB == nil {
			middleware.AbortWithError(c, errors.NewAppError(errors.ErrCodeDBConnection,
				"Service temporarily unavailable", nil))
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	dbHealth := "ok"
	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(c.Request.Context()); err != nil {
			dbHealth = "error"
		}
	} else {
		dbHealth = "unavailable"
	}

	cacheHealth := "ok"
	if s.deps.Cache != nil {
		if err := s.deps.Cache.HealthCheck(c.Request.Context()); err != nil {
			cacheHealth = "error"
		}
	} else {
		cacheHealth = "unavailable"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
		"services": gin.H{
			"database": dbHealth,
			"cache":    cacheHealth,
		},
	})
}

// Start runs the HTTP server until it is shut down
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
	}

	logger.WithFields(map[string]interface{}{
		"host": s.config.Server.Host,
		"port": s.config.Server.Port,
	}).Info("Starting API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully drains in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("Shutting down server")
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}
