// Package server wires the gin engine: the /v1/messages proxy endpoint, the
// dashboard API and the process lifecycle around them.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/cc-launcher/cc-launcher/internal/config"
	"github.com/cc-launcher/cc-launcher/internal/obs"
	"github.com/cc-launcher/cc-launcher/internal/server/middleware"
	"github.com/cc-launcher/cc-launcher/pkg/oauth"
)

// Server is the proxy process: one gin engine, one upstream client, one
// optional OAuth token cache.
type Server struct {
	config   *config.Config
	engine   *gin.Engine
	http     *http.Server
	upstream *UpstreamClient
	oauth    *oauth.Manager
	logger   *obs.MemoryLogger
	tracker  *obs.TokenTracker

	host        string
	version     string
	openBrowser bool
	startedAt   time.Time
}

// Option customizes a Server before its routes are registered.
type Option func(*Server)

// WithVersion sets the version string reported by /health.
func WithVersion(version string) Option {
	return func(s *Server) { s.version = version }
}

// WithHost sets the listen host. Default is all interfaces.
func WithHost(host string) Option {
	return func(s *Server) { s.host = host }
}

// WithOpenBrowser opens the dashboard in the local browser after start.
func WithOpenBrowser(open bool) Option {
	return func(s *Server) { s.openBrowser = open }
}

// WithTokenTracker attaches a metrics tracker. Nil is valid and disables
// metric recording.
func WithTokenTracker(tracker *obs.TokenTracker) Option {
	return func(s *Server) { s.tracker = tracker }
}

// New builds the server and registers all routes. OAuth engages when the
// grant is fully configured and dev mode is off.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		config:    cfg,
		upstream:  NewUpstreamClient(cfg.TargetEndpoint, cfg.SkipSSLVerify),
		logger:    obs.NewMemoryLogger(),
		version:   "dev",
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.IsOAuthConfigured() && !cfg.DevMode {
		s.oauth = oauth.NewManager(oauth.Config{
			TokenEndpoint: cfg.OAuthTokenEndpoint,
			ClientID:      cfg.OAuthClientID,
			ClientSecret:  cfg.OAuthClientSecret,
			Scope:         cfg.OAuthScope,
			RefreshBuffer: cfg.OAuthRefreshBuffer,
		})
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.handleHealth)

	authed := engine.Group("/", middleware.ProxyAuth(cfg.ProxyAccessToken))
	authed.POST("/v1/messages", s.handleMessages)
	s.registerDashboardRoutes(authed.Group("/api"))

	s.engine = engine
	return s
}

// Run starts listening and blocks until the listener fails or Shutdown is
// called. The OAuth warm-up happens in the background so a slow token
// endpoint never delays startup.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.config.Port)
	s.http = &http.Server{Addr: addr, Handler: s.engine}

	s.printBanner()
	s.logger.LogServerEvent("info", "server starting", map[string]any{"addr": addr})

	if s.oauth != nil {
		go s.warmUpOAuth()
	}
	if s.openBrowser {
		go s.openDashboard()
	}

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// warmUpOAuth fetches the first token ahead of the first request.
func (s *Server) warmUpOAuth() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.oauth.GetToken(ctx); err != nil {
		logrus.Warnf("OAuth warm-up failed, will retry on first request: %v", err)
		s.logger.LogServerEvent("warn", "oauth warm-up failed", map[string]any{"error": err.Error()})
		return
	}
	s.logger.LogServerEvent("info", "oauth token obtained", nil)
}

func (s *Server) openDashboard() {
	// Give the listener a moment to come up.
	time.Sleep(500 * time.Millisecond)
	url := fmt.Sprintf("http://localhost:%d/health", s.config.Port)
	if err := browser.OpenURL(url); err != nil {
		logrus.Debugf("cannot open browser: %v", err)
	}
}

// printBanner shows the client-side environment needed to point an Anthropic
// SDK or CLI at this proxy.
func (s *Server) printBanner() {
	auth := "none"
	switch {
	case s.config.DevMode:
		auth = "dev mode (mock token)"
	case s.oauth != nil:
		auth = "oauth client credentials"
	case s.config.IsAPIKeyConfigured():
		auth = "static api key"
	}

	fmt.Printf(`
cc-launcher %s
  listening on      http://localhost:%d
  target endpoint   %s
  upstream auth     %s
  placeholder mode  %v

Point your Anthropic client at the proxy:

  export ANTHROPIC_BASE_URL=http://localhost:%d
  export ANTHROPIC_API_KEY=%s

`, s.version, s.config.Port, s.config.TargetEndpoint, auth,
		s.config.UsePlaceholderMode, s.config.Port, s.config.ProxyAccessToken)
}
