// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/dbeloglazov/fraudgate/internal/config"
	"github.com/dbeloglazov/fraudgate/internal/deepscan"
	"github.com/dbeloglazov/fraudgate/internal/geoip"
	"github.com/dbeloglazov/fraudgate/internal/health"
	"github.com/dbeloglazov/fraudgate/internal/logging"
	"github.com/dbeloglazov/fraudgate/internal/merchant"
	"github.com/dbeloglazov/fraudgate/internal/metrics"
	"github.com/dbeloglazov/fraudgate/internal/policy"
	"github.com/dbeloglazov/fraudgate/internal/postauth"
	"github.com/dbeloglazov/fraudgate/internal/preauth"
	"github.com/dbeloglazov/fraudgate/internal/ratelimit"
	"github.com/dbeloglazov/fraudgate/internal/scoring"
	"github.com/dbeloglazov/fraudgate/internal/security"
	"github.com/dbeloglazov/fraudgate/internal/signals"
	"github.com/dbeloglazov/fraudgate/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg           *config.Config
	merchants     *merchant.Manager
	policies      policy.Store
	preauthSvc    *preauth.Service
	postauthSvc   *postauth.Service
	preauthTimer  *preauth.Timer
	postauthTimer *postauth.Timer
	rateLimiter   *ratelimit.Limiter
	healthReg     *health.Registry
	db            *sql.DB // nil if using in-memory
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	cancelRunCtx  context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		merchantStore merchant.Store
		preauthStore  preauth.Store
		postauthStore postauth.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		merchantStore = merchant.NewPostgresStore(db)
		s.policies = policy.NewPostgresStore(db)
		preauthStore = preauth.NewPostgresStore(db)
		postauthStore = postauth.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		merchantStore = merchant.NewMemoryStore()
		s.policies = policy.NewMemoryStore()
		preauthStore = preauth.NewMemoryStore()
		postauthStore = postauth.NewMemoryStore()
		s.logger.Info("using in-memory storage (set DATABASE_URL for persistence)")
	}

	s.merchants = merchant.NewManager(merchantStore)

	// Signal evaluators. Demo mode swaps the production set (email, geo,
	// amount, velocity) for the card-present demo set and stubs out the
	// deep-scan call.
	var (
		set      signals.SignalSet
		analyzer deepscan.Analyzer
	)
	if cfg.DemoMode {
		set = signals.DemoSet()
		analyzer = &deepscan.StubAnalyzer{
			RiskScore:      35,
			Signals:        []string{"new_device"},
			Recommendation: "monitor for 120 days",
		}
		s.logger.Info("running in demo mode")
	} else {
		var resolver geoip.Resolver
		if cfg.GeoIPURL != "" {
			if err := security.ValidateEndpointURL(cfg.GeoIPURL); err != nil {
				return nil, fmt.Errorf("invalid GEOIP_URL: %w", err)
			}
			resolver = geoip.NewHTTPResolver(cfg.GeoIPURL, cfg.GeoIPTimeout)
		} else {
			// No lookup service configured. The geo check skips without
			// penalty when the country cannot be determined.
			resolver = &geoip.StaticResolver{}
			s.logger.Warn("GEOIP_URL not set, geo checks will be skipped")
		}
		set = signals.ProductionSet(resolver, preauthStore, signals.DefaultDisposableDomains)

		if cfg.DeepScanURL != "" {
			if err := security.ValidateEndpointURL(cfg.DeepScanURL); err != nil {
				return nil, fmt.Errorf("invalid DEEPSCAN_URL: %w", err)
			}
			analyzer = deepscan.NewHTTPAnalyzer(cfg.DeepScanURL, cfg.DeepScanAPIKey, cfg.DeepScanTimeout)
		} else {
			analyzer = &deepscan.StubAnalyzer{
				RiskScore:      0,
				Recommendation: "no behavioral analysis configured",
			}
			s.logger.Warn("DEEPSCAN_URL not set, promotions will use stub analysis")
		}
	}

	engine := scoring.NewEngine(set)
	s.postauthSvc = postauth.NewService(postauthStore)
	s.preauthSvc = preauth.NewService(preauthStore, s.policies, engine, analyzer, s.postauthSvc)
	s.preauthTimer = preauth.NewTimer(s.preauthSvc, s.logger)
	s.postauthTimer = postauth.NewTimer(s.postauthSvc, s.logger)

	// Health checks
	s.healthReg = health.NewRegistry()
	if s.db != nil {
		db := s.db
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	}

	// Router setup
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides the password in a database URL for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (merchant dashboards call this API from the browser)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	rlCfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(b)
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	// PUBLIC ROUTES (no auth required)
	merchantHandler := merchant.NewHandler(s.merchants)
	merchantHandler.RegisterPublicRoutes(v1)

	// AUTHENTICATED ROUTES (require X-API-Key)
	authed := v1.Group("")
	authed.Use(merchant.Middleware(s.merchants))
	authed.Use(merchant.RequireAuth())

	policy.NewHandler(s.policies).RegisterRoutes(authed)
	preauth.NewHandler(s.preauthSvc).RegisterRoutes(authed)
	postauth.NewHandler(s.postauthSvc).RegisterRoutes(authed)
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Fraudgate",
		"description": "Pre-authorization fraud screening for e-commerce orders",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server", "port", s.cfg.Port)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start review-expiry timer
	go s.preauthTimer.Start(runCtx)

	// Start monitoring-window sweep timer
	go s.postauthTimer.Start(runCtx)

	// Start DB pool stats collector
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.preauthTimer != nil {
		s.preauthTimer.Stop()
		s.logger.Info("review expiry timer stopped")
	}

	if s.postauthTimer != nil {
		s.postauthTimer.Stop()
		s.logger.Info("monitoring sweep timer stopped")
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
