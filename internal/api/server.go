// Package api exposes the settlement service over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"gig-marketplace/internal/auth"
	"gig-marketplace/internal/cache"
	"gig-marketplace/internal/database"
	"gig-marketplace/internal/events"
	"gig-marketplace/internal/fees"
	"gig-marketplace/internal/gateway"
	"gig-marketplace/internal/logging"
	"gig-marketplace/internal/payout"
)

// RateLimiter provides simple in-memory rate limiting per client
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	repo        *database.Repository
	eventBus    *events.EventBus
	feePolicy   *fees.Policy
	engine      *payout.Engine
	coordinator *payout.Coordinator
	scheduler   *payout.Scheduler
	stripe      *gateway.StripeService
	destCache   *cache.DestinationCache
	jwtManager  *auth.JWTManager
	authEnabled bool
	rateLimiter *RateLimiter
	config      ServerConfig
	logger      *logging.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
	AllowedOrigins []string
}

// NewServer creates a new API server
func NewServer(
	config ServerConfig,
	repo *database.Repository,
	eventBus *events.EventBus,
	feePolicy *fees.Policy,
	engine *payout.Engine,
	coordinator *payout.Coordinator,
	scheduler *payout.Scheduler, // can be nil when the scheduler is disabled
	stripe *gateway.StripeService,
	destCache *cache.DestinationCache, // can be nil when redis is disabled
	jwtManager *auth.JWTManager, // can be nil when auth is disabled
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = config.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		repo:        repo,
		eventBus:    eventBus,
		feePolicy:   feePolicy,
		engine:      engine,
		coordinator: coordinator,
		scheduler:   scheduler,
		stripe:      stripe,
		destCache:   destCache,
		jwtManager:  jwtManager,
		authEnabled: jwtManager != nil,
		rateLimiter: NewRateLimiter(30, time.Minute), // payout-triggering routes
		config:      config,
		logger:      logging.WithComponent("api"),
	}

	server.setupRoutes()

	InitWebSocket(eventBus)

	return server
}

// rateLimitMiddleware limits payout-triggering requests per client. The key
// is the authenticated user when known, the client IP otherwise.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := auth.GetUserID(c)
		if key == "" {
			key = c.ClientIP()
		}

		if !s.rateLimiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   auth.ErrRateLimited.Code,
				"message": auth.ErrRateLimited.Message,
			})
			return
		}
		c.Next()
	}
}

// requireAdmin degrades to a pass-through when auth is disabled (dev mode)
func (s *Server) requireAdmin() gin.HandlerFunc {
	if !s.authEnabled {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RequireAdmin()
}

// requireSelfOrAdmin degrades to a pass-through when auth is disabled
func (s *Server) requireSelfOrAdmin(param string) gin.HandlerFunc {
	if !s.authEnabled {
		return func(c *gin.Context) { c.Next() }
	}
	return auth.RequireSelfOrAdmin(param)
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health and webhooks stay outside auth: the processor signs its own calls
	s.router.GET("/api/health", s.handleHealth)
	s.router.POST("/api/webhooks/stripe", s.handleStripeWebhook)

	api := s.router.Group("/api")
	if s.authEnabled {
		api.Use(auth.Middleware(s.jwtManager))
	}

	{
		// Earnings
		api.POST("/earnings", s.requireAdmin(), s.handleCreateEarning)
		api.GET("/earnings/:id", s.handleGetEarning)
		api.POST("/earnings/:id/payout", s.rateLimitMiddleware(), s.handlePayoutEarning)
		api.POST("/earnings/:id/cancel", s.requireAdmin(), s.handleCancelEarning)
		api.GET("/earnings/:id/events", s.requireAdmin(), s.handleGetEarningEvents)

		// Workers
		api.GET("/workers/:id/earnings", s.requireSelfOrAdmin("id"), s.handleListWorkerEarnings)
		api.GET("/workers/:id/earnings/summary", s.requireSelfOrAdmin("id"), s.handleWorkerEarningsSummary)
		api.GET("/workers/:id/payments", s.requireSelfOrAdmin("id"), s.handleListWorkerPayments)
		api.POST("/workers/:id/payouts", s.requireSelfOrAdmin("id"), s.rateLimitMiddleware(), s.handleWorkerBulkPayout)

		// Admin
		admin := api.Group("/admin", s.requireAdmin())
		admin.POST("/payouts/run", s.rateLimitMiddleware(), s.handleRunPayoutBatch)
		admin.GET("/payouts/scheduler", s.handleSchedulerStatus)
		admin.GET("/earnings/pending", s.handleListPendingEarnings)

		// Event stream
		api.GET("/events/ws", s.handleWebSocket)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Router exposes the gin engine for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
		"time":     time.Now().Format(time.RFC3339),
	})
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
