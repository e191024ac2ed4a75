package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cjeanneret/ScoutCam/internal/debug"
	"github.com/cjeanneret/ScoutCam/internal/scout"
)

// shutdownTimeout bounds graceful shutdown; open SSE streams are cut after it.
const shutdownTimeout = 5 * time.Second

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
	router   *gin.Engine

	detach func() // removes the calibration listener
	once   sync.Once
}

// NewServer creates a server for the given address and dependencies.
// Calibration changes made through svc are forwarded to the broadcaster
// until Close is called.
func NewServer(addr string, svc *scout.Service, broadcaster *StatusBroadcaster) (*Server, error) {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, fmt.Errorf("web: static fs: %w", err)
	}

	handlers := NewHandlers(svc, broadcaster, subFS)

	s := &Server{
		addr:     addr,
		handlers: handlers,
		detach:   svc.Calibration().OnChange(CalibrationListener(broadcaster)),
	}
	s.router = s.newRouter()
	return s, nil
}

func (s *Server) newRouter() *gin.Engine {
	h := s.handlers
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger())

	router.GET("/health", h.HealthCheck)
	router.GET("/", h.ServeIndex)
	router.StaticFS("/static", http.FS(h.staticFS))

	api := router.Group("/api")
	{
		api.GET("/catalog", h.HandleCatalog)
		api.POST("/match", h.HandleMatch)

		api.GET("/sun", h.HandleSun)
		api.GET("/sun/position", h.HandleSunPosition)
		api.GET("/sun/plan", h.HandleSunPlan)

		api.GET("/calibration", h.HandleCalibration)
		api.PUT("/calibration/:role", h.HandleSetMultiplier)
		api.DELETE("/calibration/:role", h.HandleResetMultiplier)
		api.POST("/calibration/reset", h.HandleResetAll)

		api.GET("/status/stream", h.HandleStatusStream)
	}
	return router
}

// Handler returns the router with all routes registered.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops forwarding calibration changes to the broadcaster. It is
// safe to call more than once.
func (s *Server) Close() {
	s.once.Do(s.detach)
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully. The server is closed when Run returns.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}
