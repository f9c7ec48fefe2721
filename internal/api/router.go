// Package api exposes a running client session over HTTP: the mirrored world
// as JSON or PNG, session counters, a WebSocket push of new snapshots, and an
// admin endpoint that forwards raw commands to the game server.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"dkjr-client/internal/client"
	"dkjr-client/internal/render"
	"dkjr-client/internal/world"
)

// SessionInterface is the part of client.Session the API uses.
// Tests supply a fake backed by a plain world.Store.
type SessionInterface interface {
	// Snapshot returns the latest complete world
	Snapshot() *world.Snapshot
	// Stats returns the session counters
	Stats() client.Stats
	// Mode tells whether commands may be forwarded
	Mode() client.Mode
	// Send writes one raw command line to the server
	Send(text string) error
}

// RouterConfig contains everything NewRouter needs.
//
//	router := api.NewRouter(api.RouterConfig{
//	    Session:        fake,
//	    DisableLogging: true,
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Session is the client session (required)
	Session SessionInterface

	// Rasterizer draws /api/world.png. Nil creates a full-size one.
	Rasterizer *render.Rasterizer

	// RateLimiter is an optional pre-built limiter. If nil, one is created
	// from RateLimitConfig or DefaultRateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used when RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins overrides the default local origins.
	CORSOrigins []string

	// Auth guards POST /api/command. Nil leaves it open.
	Auth *TokenAuth

	// DisableLogging turns off the request logger.
	DisableLogging bool
}

type routerHandlers struct {
	session SessionInterface
	raster  *render.Rasterizer
}

// NewRouter builds the HTTP router. It starts no goroutines and opens no listeners.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS so floods are rejected early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	raster := cfg.Rasterizer
	if raster == nil {
		raster = render.NewRasterizer(0, 0)
	}
	h := &routerHandlers{session: cfg.Session, raster: raster}

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/world", h.handleGetWorld)
		r.Get("/world.png", h.handleWorldPNG)
		r.Get("/roster", h.handleGetRoster)
		r.Get("/stats", h.handleGetStats)

		r.Group(func(r chi.Router) {
			if cfg.Auth.Enabled() {
				r.Use(cfg.Auth.Middleware)
			}
			r.Post("/command", h.handleCommand)
		})
	})

	return r
}

// metricsMiddleware records every request under its route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
