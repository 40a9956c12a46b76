package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzzdr/quant-scenario-engine/internal/publish"
	"github.com/rzzdr/quant-scenario-engine/internal/store"
	"github.com/rzzdr/quant-scenario-engine/pkg/metrics"
	"github.com/rzzdr/quant-scenario-engine/pkg/utils/logger"
)

// Config holds the configuration for the API server
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxScenarios    int
	StreamChunkSize int
	AllowOrigin     string
	// QuietAccess discards the per-request access log
	QuietAccess bool
}

// Dependencies are the collaborators of the server. Gatherer may be nil to
// leave /metrics unrouted.
type Dependencies struct {
	Runs      store.RunStore
	Publisher publish.Publisher
	Recorder  *metrics.Recorder
	Gatherer  prometheus.Gatherer
	Admitter  Admitter
}

// Server represents the API server
type Server struct {
	config     Config
	router     *gin.Engine
	handlers   *Handlers
	gatherer   prometheus.Gatherer
	recorder   *metrics.Recorder
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates a new API server
func NewServer(config Config, deps Dependencies) *Server {
	// Apply defaults if needed
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}

	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 60 * time.Second
	}

	if deps.Runs == nil {
		deps.Runs = store.NewInMemoryRunStore()
	}

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: CreateHandlers(deps.Runs, deps.Publisher, deps.Recorder, deps.Admitter, config.MaxScenarios, config.StreamChunkSize),
		gatherer: deps.Gatherer,
		recorder: deps.Recorder,
		log:      logger.GetLogger("api.server"),
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Starting API server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info("Stopping API server")
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Apply common middleware
	access := logger.GetLogger("api.access")
	if s.config.QuietAccess {
		access = logger.Nop()
	}
	s.router.Use(LoggingMiddleware(access))
	if s.recorder != nil {
		s.router.Use(MetricsMiddleware(s.recorder))
	}
	s.router.Use(RecoveryMiddleware(s.log))
	s.router.Use(CORSMiddleware(s.config.AllowOrigin))

	// Metrics endpoint for Prometheus
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(metrics.Handler(s.gatherer)))
	}

	// API version prefix
	api := s.router.Group("/api/v1")
	api.GET("/health", s.handlers.HealthCheckHandler)

	api.POST("/portfolios/price", s.handlers.PricePortfolioHandler)

	simulations := api.Group("/simulations")
	simulations.GET("", s.handlers.ListSimulationsHandler)
	simulations.POST("", s.handlers.CreateSimulationHandler)
	simulations.GET("/:id", s.handlers.GetSimulationHandler)
	simulations.GET("/:id/prices", s.handlers.GetSimulationPricesHandler)
	simulations.GET("/:id/stream", s.handlers.StreamSimulationHandler)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
}
