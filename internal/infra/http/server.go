package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-ai-generation/internal/config"
)

// Server exposes the operational surface: health and readiness probes,
// Prometheus metrics, and the static pages the payment gateway redirects
// users to. Payment state itself is reconciled by polling, not by callback.
type Server struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	server *http.Server
	log    *zerolog.Logger
}

func NewServer(cfg *config.Config, pool *pgxpool.Pool, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{cfg: cfg, pool: pool, log: &l}
}

func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/payment/success", s.handlePaymentSuccess)
	r.Get("/payment/failed", s.handlePaymentFailed)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.HTTP.Port),
		Handler: r,
	}
	s.log.Info().Int("port", s.cfg.HTTP.Port).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pool.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ready")
}

func (s *Server) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	s.renderRedirectPage(w, "Payment Successful", "Your payment has been processed. Return to the bot — your plan is already active.")
}

func (s *Server) handlePaymentFailed(w http.ResponseWriter, r *http.Request) {
	s.renderRedirectPage(w, "Payment Failed", "Your payment could not be processed. Please try again from the bot.")
}

func (s *Server) renderRedirectPage(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>body { font-family: Arial, sans-serif; text-align: center; padding: 50px; }</style>
</head>
<body>
    <h1>%[1]s</h1>
    <p>%[2]s</p>
    <p><a href="https://t.me/%[3]s">Return to Bot</a></p>
</body>
</html>
`, title, body, s.cfg.Bot.Username)
}
