// Package server provides the HTTP surface of the enforcement engine: the
// authenticated resource API and a separate operational listener for health
// and metrics.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/authz-engine/pep-core/internal/config"
	"github.com/authz-engine/pep-core/internal/enforce"
	"github.com/authz-engine/pep-core/internal/metrics"
)

// Server assembles the resource API router.
type Server struct {
	engine   *gin.Engine
	enforcer *enforce.PolicyEnforcer
	logger   *zap.Logger
}

// New builds the router with authentication and the document routes mounted
// under /v1.
func New(cfg config.AuthConfig, enforcer *enforce.PolicyEnforcer, api *DocumentAPI, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(AuthMiddleware(cfg, logger))

	s := &Server{engine: engine, enforcer: enforcer, logger: logger}

	v1 := engine.Group("/v1")
	api.RegisterRoutes(v1)
	v1.GET("/capabilities", s.capabilitiesHandler)

	return s
}

// Handler returns the router for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// capabilitiesHandler reports the predicate families this deployment
// advertises to the PDP.
func (s *Server) capabilitiesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"capabilities": s.enforcer.Capabilities()})
}

// NewHTTPServer wraps the handler with the configured timeouts.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// NewOpsServer builds the operational listener serving health and metrics.
func NewOpsServer(cfg config.ServerConfig, m metrics.Metrics, ready func() bool) *http.Server {
	return &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: NewOpsRouter(m, ready),
	}
}
