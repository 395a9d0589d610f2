// Package api provides the local HTTP API that exposes the Google Ads session
// to other processes: status, access token, interactive login and logout.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/carlwiddowson/googleadsdashboard/internal/api/handlers"
	"github.com/carlwiddowson/googleadsdashboard/internal/api/middleware"
	"github.com/carlwiddowson/googleadsdashboard/internal/config"
	"github.com/carlwiddowson/googleadsdashboard/internal/logging"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Server wraps the gin engine and its http.Server.
type Server struct {
	engine *gin.Engine
	server *http.Server
	holder *config.Holder
	cancel context.CancelFunc
}

// NewServer builds the API server for session. Listen address and API keys are
// taken from holder; keys are re-read on every request.
func NewServer(holder *config.Holder, session handlers.Session) *Server {
	cfg := holder.Load()
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())

	base, cancel := context.WithCancel(context.Background())
	s := &Server{engine: engine, holder: holder, cancel: cancel}
	s.setupRoutes(handlers.NewAuthHandler(base, session))

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(h *handlers.AuthHandler) {
	s.engine.GET("/healthz", func(c *gin.Context) {
		logging.SkipGinRequestLogging(c)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v0 := s.engine.Group("/v0/auth")
	v0.Use(middleware.APIKeyAuth(func() []string {
		return s.holder.Load().API.Keys
	}))
	{
		v0.GET("/status", h.Status)
		v0.GET("/token", h.Token)
		v0.POST("/login", h.Login)
		v0.POST("/logout", h.Logout)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens and serves until Stop is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	cfg := s.holder.Load()
	if len(cfg.API.Keys) == 0 && !config.IsLoopbackHost(cfg.API.Host) {
		log.Warnf("api listening on %s without api keys; every caller can read the access token", s.server.Addr)
	}
	log.Infof("api server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop cancels background sign-ins and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
