package slackhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rafaeldc/triagebot/internal/adapter/inbound/slackhook/middleware"
)

// ServerConfig holds HTTP server settings for the webhook listener.
type ServerConfig struct {
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerMinute int
}

// Server hosts the Slack webhook endpoint with graceful shutdown.
type Server struct {
	cfg     ServerConfig
	handler *Handler
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer creates a Server around the given webhook handler.
func NewServer(cfg ServerConfig, handler *Handler, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, handler: handler, logger: logger}
}

// Routes builds the handler chain:
//
//	POST /slack/events - webhook receiver
//	GET  /health       - liveness probe
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/slack/events", s.handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	var h http.Handler = mux
	if s.cfg.RequestsPerMinute > 0 {
		h = middleware.RateLimit(s.cfg.RequestsPerMinute)(h)
	}
	h = middleware.Logging(s.logger)(h)
	return h
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("slack webhook server listening", "port", s.cfg.Port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
