// Package api exposes question resolution over HTTP as a JSON API.
package api

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psybrarian/psybrarian/internal/log"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Resolver    Resolver      // Required
	Reactions   ReactionStore // Required
	Indexer     Reindexer     // Optional: nil disables the admin reindex hook
	Pool        *pgxpool.Pool // Optional: nil makes /ready report unavailable
	CORSOrigins []string      // Allowed origins for CORS
	TrustProxy  bool          // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int           // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if cfg.Reactions == nil {
		return nil, errors.New("reaction store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ah := &askHandler{
		resolver:  cfg.Resolver,
		reactions: cfg.Reactions,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/ask", ah.ask)
	mux.HandleFunc("POST /api/v1/chatlogs/{id}/answer", ah.complete)
	mux.HandleFunc("POST /api/v1/chatlogs/{id}/reaction", ah.react)

	// Admin hooks are only registered when an indexer is provided.
	if cfg.Indexer != nil {
		rh := &reindexHandler{indexer: cfg.Indexer, logger: logger}
		mux.HandleFunc("POST /api/v1/admin/reindex/{entryID}", rh.reindex)
	}

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be before RateLimit so preflight OPTIONS gets
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
