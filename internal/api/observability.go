package api

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dkjr-client/internal/client"
	"dkjr-client/internal/protocol"
)

// HTTP and WebSocket metrics. Labels stay bounded: endpoints are route
// patterns, never raw URLs.
var (
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Requests and connections refused by a limiter or origin check",
	}, []string{"reason"}) // "rate_limit", "origin", "ws_total_limit", "ws_ip_limit", "auth"

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "api_png_render_duration_seconds",
		Help:    "Time spent rasterizing a snapshot for /api/world.png",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
	})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket broadcasts sent",
	})
)

// RecordConnectionRejected counts a refusal. reason must be a fixed string.
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records latency and outcome of one HTTP request
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// RecordRender records PNG rasterization time
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// UpdateWSConnections sets the WebSocket connection gauge
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one broadcast
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// StatsSource is anything that reports session counters.
type StatsSource interface {
	Stats() client.Stats
}

// SessionCollector exports a session's counters on every scrape.
// The session keeps its own atomics; nothing is copied between scrapes.
type SessionCollector struct {
	source StatsSource

	bytesReceived  *prometheus.Desc
	lines          *prometheus.Desc
	parseErrors    *prometheus.Desc
	unknownLines   *prometheus.Desc
	frames         *prometheus.Desc
	overflowBytes  *prometheus.Desc
	discardedLines *prometheus.Desc
	dropped        *prometheus.Desc
	commands       *prometheus.Desc
	reconnects     *prometheus.Desc
	state          *prometheus.Desc
}

// NewSessionCollector creates a collector reading from source.
func NewSessionCollector(source StatsSource) *SessionCollector {
	return &SessionCollector{
		source:         source,
		bytesReceived:  prometheus.NewDesc("client_bytes_received_total", "Bytes read from the game server", nil, nil),
		lines:          prometheus.NewDesc("client_lines_total", "Complete lines received by kind", []string{"kind"}, nil),
		parseErrors:    prometheus.NewDesc("client_parse_errors_total", "Lines skipped as malformed", nil, nil),
		unknownLines:   prometheus.NewDesc("client_unknown_lines_total", "Lines with an unrecognized keyword", nil, nil),
		frames:         prometheus.NewDesc("client_frames_total", "Protocol frames started", nil, nil),
		overflowBytes:  prometheus.NewDesc("client_framer_overflow_bytes_total", "Bytes discarded by the line framer", nil, nil),
		discardedLines: prometheus.NewDesc("client_framer_discarded_lines_total", "Lines truncated by framer overflow", nil, nil),
		dropped:        prometheus.NewDesc("client_entities_dropped_total", "Entities dropped by capacity limits", []string{"entity"}, nil),
		commands:       prometheus.NewDesc("client_commands_sent_total", "Commands by outcome", []string{"result"}, nil),
		reconnects:     prometheus.NewDesc("client_reconnects_total", "Reconnect attempts", nil, nil),
		state:          prometheus.NewDesc("client_connection_state", "0 connecting, 1 streaming, 2 closed", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.bytesReceived, c.lines, c.parseErrors, c.unknownLines, c.frames, c.overflowBytes,
		c.discardedLines, c.dropped, c.commands, c.reconnects, c.state,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.source.Stats()
	p := st.Pipeline

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.bytesReceived, p.BytesReceived)
	for k := 0; k < protocol.NumKinds; k++ {
		counter(c.lines, p.Lines[k], protocol.Kind(k).String())
	}
	counter(c.parseErrors, p.ParseErrors)
	counter(c.unknownLines, p.UnknownLines)
	counter(c.frames, p.Frames)
	counter(c.overflowBytes, p.OverflowBytes)
	counter(c.discardedLines, p.DiscardedLines)
	counter(c.dropped, st.DroppedPlayers, "player")
	counter(c.dropped, st.DroppedCreatures, "creature")
	counter(c.dropped, st.DroppedItems, "item")
	counter(c.commands, st.CommandsSent, "sent")
	counter(c.commands, st.CommandsFailed, "failed")
	counter(c.commands, st.CommandsLimited, "limited")
	counter(c.reconnects, uint64(st.Reconnects))
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(st.State))
}

// RegisterSession adds a SessionCollector for source to the default registry.
// Registering a second session replaces nothing and returns the error.
func RegisterSession(source StatsSource) error {
	return prometheus.Register(NewSessionCollector(source))
}

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // Loopback only unless ALLOW_DEBUG_EXTERNAL=true
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// isLoopback reports whether addr binds only to the local machine
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// DebugHandler serves pprof, /metrics and /health
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the observability server in the background.
// The returned server is nil when disabled.
func StartDebugServer(cfg ObservabilityConfig) *http.Server {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopback(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Printf("⚠️ Debug server forced to localhost (requested %s)", cfg.ListenAddr)
		cfg.ListenAddr = DefaultObservabilityConfig().ListenAddr
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           DebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return srv
}

// ShutdownDebugServer stops srv if it was started
func ShutdownDebugServer(ctx context.Context, srv *http.Server) {
	if srv != nil {
		srv.Shutdown(ctx)
	}
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !tokenEqual(u, user) || !tokenEqual(p, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
