// Package server provides the fleetsim Gin-based HTTP API.
// Routes are split into two groups:
//   - Public: liveness, the /services feed, health, metrics and the dashboard.
//   - Admin (/api): JWT-protected simulator and store controls.
package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/fleetsim/internal/metrics"
	"github.com/vesaa/fleetsim/internal/models"
	"github.com/vesaa/fleetsim/internal/simulator"
	"github.com/vesaa/fleetsim/internal/store"
)

// Simulator is the part of simulator.Lifecycle the HTTP layer needs.
type Simulator interface {
	Touch()
	Stop()
	State() simulator.State
	Snapshot() simulator.Snapshot
}

// Deps are the collaborators a Server is built from.
type Deps struct {
	Store          store.Store
	Simulator      Simulator
	Auth           *Authenticator
	Driver         string
	MetricsEnabled bool
	Logger         *slog.Logger
}

// Server serves the fleet over HTTP.
type Server struct {
	store   store.Store
	sim     Simulator
	auth    *Authenticator
	driver  string
	metrics bool
	log     *slog.Logger
}

// New returns a Server for deps.
func New(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:   d.Store,
		sim:     d.Simulator,
		auth:    d.Auth,
		driver:  d.Driver,
		metrics: d.MetricsEnabled,
		log:     log.With("component", "http"),
	}
}

// Handler builds the Gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware)
	s.RegisterPublicRoutes(r)
	s.RegisterAdminRoutes(r)
	RegisterDashboard(r)
	return r
}

// corsMiddleware allows any origin; the feed is meant for browser dashboards.
func corsMiddleware(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	if c.Request.Method == http.MethodOptions {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.Next()
}

// RegisterPublicRoutes wires the unauthenticated routes.
//
//	GET /          liveness text
//	GET /services  current fleet as a JSON array
//	GET /healthz   simulator + store status
//	GET /metrics   Prometheus exposition (when enabled)
func (s *Server) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API up. Try /services")
	})
	r.GET("/services", s.handleServices)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"simulator": s.sim.State().String(),
			"store":     s.driver,
			"time":      time.Now().UTC(),
		})
	})
	if s.metrics {
		r.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
}

// RegisterAdminRoutes wires the admin API. Everything except login is JWT-protected.
//
//	POST /api/login
//	GET  /api/simulator
//	POST /api/simulator/stop
//	POST /api/store/repair
//	GET  /api/host
func (s *Server) RegisterAdminRoutes(r *gin.Engine) {
	if s.auth == nil {
		return
	}
	api := r.Group("/api")
	api.POST("/login", s.handleLogin)

	admin := api.Group("/", s.auth.Middleware())
	{
		admin.GET("/simulator", s.handleSimulatorState)
		admin.POST("/simulator/stop", s.handleSimulatorStop)
		admin.POST("/store/repair", s.handleStoreRepair)
		admin.GET("/host", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"data": collectHostInfo()})
		})
	}
}

// ── Handlers ──────────────────────────────────────────────────────────────────

// handleServices records activity, makes sure the simulator runs and the
// store is healthy, then returns the fleet as a bare array.
func (s *Server) handleServices(c *gin.Context) {
	s.sim.Touch()

	ctx := c.Request.Context()
	if _, err := s.store.EnsureHealthy(ctx); err != nil {
		s.log.Warn("self-heal failed", "error", err)
	}

	list, err := s.store.Read(ctx)
	if err != nil {
		s.log.Error("read failed", "error", err)
		metrics.IncServicesRequest(strconv.Itoa(http.StatusInternalServerError))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to read data",
			"detail": err.Error(),
		})
		return
	}
	if list == nil {
		list = models.ServiceCollection{}
	}
	metrics.IncServicesRequest(strconv.Itoa(http.StatusOK))
	c.JSON(http.StatusOK, list)
}

// handleLogin accepts username + password and returns a signed JWT.
//
//	POST /api/login
//	Body: { "username": "admin", "password": "admin" }
func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	token, err := s.auth.Login(body.Username, body.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(tokenTTL.Seconds()),
		"type":       "Bearer",
	})
}

func (s *Server) handleSimulatorState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.sim.Snapshot()})
}

// handleSimulatorStop pauses the simulator until the next /services request.
func (s *Server) handleSimulatorStop(c *gin.Context) {
	s.sim.Stop()
	s.log.Info("simulator stopped by admin", "user", c.GetString("username"))
	c.JSON(http.StatusOK, gin.H{"data": s.sim.Snapshot()})
}

func (s *Server) handleStoreRepair(c *gin.Context) {
	repaired, err := s.store.EnsureHealthy(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"repaired": repaired})
}
