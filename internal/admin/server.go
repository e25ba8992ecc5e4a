// Package admin serves a read-only HTTP view of running session scopes.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/uwbranging/internal/logging"
	"github.com/danmuck/uwbranging/internal/multiplexer"
	"github.com/danmuck/uwbranging/internal/observability"
	"github.com/danmuck/uwbranging/internal/uwb"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

// Source is the subset of a session scope the admin surface reads.
type Source interface {
	Local() uwb.Endpoint
	Role() string
	Running() bool
	BoundPeers() int
	Sessions() []multiplexer.SessionInfo
	Session(endpointID string) (multiplexer.SessionInfo, bool)
}

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	router  *gin.Engine
	sources []Source
}

type ScopeView struct {
	Local      string                    `json:"local"`
	Role       string                    `json:"role"`
	Running    bool                      `json:"running"`
	BoundPeers int                       `json:"bound_peers"`
	Sessions   []multiplexer.SessionInfo `json:"sessions"`
}

func New(id, addr string, corsOrigins []string, sources ...Source) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logging.Logger()))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		router:   r,
		sources:  sources,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"scopes":  len(s.sources),
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		ready := len(s.sources) > 0
		for _, src := range s.sources {
			ready = ready && src.Running()
		}
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": version,
		})
	})

	s.router.GET("/sessions", func(c *gin.Context) {
		views := make([]ScopeView, 0, len(s.sources))
		for _, src := range s.sources {
			views = append(views, ScopeView{
				Local:      src.Local().ID,
				Role:       src.Role(),
				Running:    src.Running(),
				BoundPeers: src.BoundPeers(),
				Sessions:   src.Sessions(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"scopes": views})
	})

	s.router.GET("/sessions/:endpoint", func(c *gin.Context) {
		endpointID := c.Param("endpoint")
		type match struct {
			Scope   string                  `json:"scope"`
			Role    string                  `json:"role"`
			Session multiplexer.SessionInfo `json:"session"`
		}
		var matches []match
		for _, src := range s.sources {
			if info, ok := src.Session(endpointID); ok {
				matches = append(matches, match{Scope: src.Local().ID, Role: src.Role(), Session: info})
			}
		}
		if len(matches) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"endpoint": endpointID, "sessions": matches})
	})
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("admin.Server listening addr=%q", s.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logging.Infof("admin.Server stopped addr=%q", s.Addr)
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
