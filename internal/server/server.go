// Package server exposes the market-data service over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Fuuurma/FinanceHub-sub000/internal/server/handler"
	"github.com/Fuuurma/FinanceHub-sub000/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Book   *handler.BookHandler
	Trades *handler.TradesHandler
}

// Server is the headless HTTP API server for the market-data service.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (logging, CORS, auth) applied.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and runtime stats (no auth required for health).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/stats", handlers.Health.Stats)

	// Symbol lifecycle.
	mux.HandleFunc("GET /api/symbols", handlers.Book.ListSymbols)
	mux.HandleFunc("POST /api/symbols/{symbol}/track", handlers.Book.TrackSymbol)
	mux.HandleFunc("DELETE /api/symbols/{symbol}", handlers.Book.UntrackSymbol)

	// Order book.
	mux.HandleFunc("GET /api/book/{symbol}", handlers.Book.GetBook)
	mux.HandleFunc("GET /api/book/{symbol}/depth", handlers.Book.GetDepth)
	mux.HandleFunc("GET /api/book/{symbol}/distribution", handlers.Book.GetDistribution)
	mux.HandleFunc("GET /api/book/{symbol}/impact", handlers.Book.GetImpact)
	mux.HandleFunc("GET /api/book/{symbol}/impact-curve", handlers.Book.GetImpactCurve)
	mux.HandleFunc("GET /api/book/{symbol}/liquidity", handlers.Book.GetLiquidity)
	mux.HandleFunc("GET /api/book/{symbol}/imbalance-history", handlers.Book.GetImbalanceHistory)
	mux.HandleFunc("GET /api/book/{symbol}/bbo-history", handlers.Book.GetBBOHistory)

	// Trade tape and analytics.
	mux.HandleFunc("GET /api/trades/{symbol}", handlers.Trades.ListTrades)
	mux.HandleFunc("GET /api/trades/{symbol}/agg", handlers.Trades.ListAggTrades)
	mux.HandleFunc("GET /api/trades/{symbol}/stats", handlers.Trades.GetStats)
	mux.HandleFunc("GET /api/trades/{symbol}/flow", handlers.Trades.GetFlow)
	mux.HandleFunc("GET /api/trades/{symbol}/whales", handlers.Trades.GetWhales)
	mux.HandleFunc("GET /api/trades/{symbol}/profile", handlers.Trades.GetProfile)
	mux.HandleFunc("GET /api/trades/{symbol}/history", handlers.Trades.ListHistory)
	mux.HandleFunc("GET /api/trades/{symbol}/agg-history", handlers.Trades.ListAggHistory)
	mux.HandleFunc("GET /api/trades/{symbol}/whale-alerts", handlers.Trades.ListWhaleAlerts)

	// Build the middleware chain.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = corsMiddleware(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware returns middleware that sets CORS headers for the allowed
// origins. If no origins are specified, all origins are allowed.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				allowed := len(allowedOrigins) == 0
				for _, o := range allowedOrigins {
					if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
						allowed = true
						break
					}
				}

				if allowed {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
