// Package server exposes the parse and materialize operations over HTTP
// with the JSON envelope existing clients expect.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vidparse/internal/media"
	"vidparse/internal/service"
)

// Service is the pipeline the handlers call.
type Service interface {
	Parse(ctx context.Context, text, client string) (media.ParseResult, error)
	Materialize(ctx context.Context, req service.MaterializeRequest) (service.MaterializeResult, error)
}

// Options configures a Server.
type Options struct {
	Listen    string
	VideosDir string // served under /static/videos
	Debug     bool
	Logger    *zap.Logger
}

// Server is the HTTP front end.
type Server struct {
	svc    Service
	opts   Options
	logger *zap.Logger
}

// New creates a Server.
func New(svc Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{svc: svc, opts: opts, logger: opts.Logger}
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	if s.opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(requestID(), accessLog(s.logger), recovery(s.logger))

	r.GET("/", s.index)
	r.GET("/health", s.health)

	api := r.Group("/api")
	api.POST("/parse", s.parse)
	api.POST("/download", s.download)

	if s.opts.VideosDir != "" {
		r.Static("/static/videos", s.opts.VideosDir)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.opts.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
