package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"dkjr-client/internal/config"
	"dkjr-client/internal/render"
)

// Server is the status API with WebSocket push.
//
// Background workers do not start until Start is called, so tests can build
// a Server and exercise Router() without goroutines or listeners.
type Server struct {
	session     SessionInterface
	router      *chi.Mux
	wsHub       *WebSocketHub
	wsLoop      *render.Loop
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	addr        string
}

// NewServer creates the API server for session.
func NewServer(session SessionInterface, apiCfg config.APIConfig, renderCfg config.RenderConfig) *Server {
	s := &Server{
		session:     session,
		wsHub:       NewWebSocketHub(),
		rateLimiter: NewIPRateLimiter(DefaultRateLimitConfig),
		addr:        apiCfg.Addr,
	}
	s.wsLoop = s.wsHub.SnapshotLoop(session)

	s.router = NewRouter(RouterConfig{
		Session:     session,
		Rasterizer:  render.NewRasterizer(renderCfg.Width, renderCfg.Height),
		RateLimiter: s.rateLimiter,
		Auth:        NewTokenAuth(apiCfg.AdminToken),
	})
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Router returns the HTTP handler, for httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Start opens the listener and starts the hub and broadcast loop.
// It returns once the listener is bound; serving continues in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	go s.wsHub.Run()
	s.wsLoop.Start()

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server listening on http://%s", ln.Addr())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ API server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down and stops background workers.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wsLoop.Stop()
	s.wsHub.Stop()
	return err
}
