package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"dkjr-client/internal/config"
)

var (
	// ErrServerClosed is returned when the server closes the connection.
	ErrServerClosed = errors.New("server closed connection")
	// ErrIdleTimeout is returned when the server sends nothing for IdleTimeout.
	ErrIdleTimeout = errors.New("server idle timeout")
)

// maxReconnectDelay caps the exponential backoff between reconnect attempts.
const maxReconnectDelay = 10 * time.Second

// State is the receiver's connection state.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Receiver reads the server stream on its own goroutine and feeds it to a Pipeline.
type Receiver struct {
	cfg      config.NetConfig
	pipeline *Pipeline
	dial     dialFunc

	conn   net.Conn
	connMu sync.Mutex

	state       int32        // atomic State
	connectedAt atomic.Value // time.Time

	// Stats
	reconnects int64 // atomic
	readErrors int64 // atomic

	// Result
	err      error
	errMu    sync.Mutex
	done     chan struct{}
	doneOnce sync.Once

	// Control
	started  int32 // atomic
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Callbacks
	onConnect    func(net.Conn)
	onDisconnect func(error)
}

// NewReceiver creates a receiver for cfg.Addr() feeding pipeline.
func NewReceiver(cfg config.NetConfig, pipeline *Pipeline) *Receiver {
	if cfg.ReadChunk <= 0 {
		cfg.ReadChunk = config.DefaultNet().ReadChunk
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = config.DefaultNet().ReadTimeout
	}

	d := &net.Dialer{Timeout: cfg.DialTimeout}
	return &Receiver{
		cfg:      cfg,
		pipeline: pipeline,
		dial:     d.DialContext,
		done:     make(chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

// OnConnect sets a callback for when a connection is established.
// It runs on the receiver goroutine before the first read.
func (r *Receiver) OnConnect(fn func(net.Conn)) {
	r.onConnect = fn
}

// OnDisconnect sets a callback for when a connection is lost
func (r *Receiver) OnDisconnect(fn func(error)) {
	r.onDisconnect = fn
}

// Start dials the server and, on success, begins streaming in the background.
// A failed initial dial leaves the receiver Closed with the dial error.
func (r *Receiver) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return nil // Already running
	}

	r.setState(StateConnecting)
	conn, err := r.connect(ctx)
	if err != nil {
		r.finish(err)
		return err
	}

	r.wg.Add(2)
	go r.connectionLoop(ctx, conn)
	go r.watchContext(ctx)
	return nil
}

// Close stops the receiver and waits for its goroutine to exit. Closing the
// connection unblocks a pending read immediately.
func (r *Receiver) Close() error {
	r.shutdown()
	r.wg.Wait()
	if atomic.LoadInt32(&r.started) == 0 {
		r.finish(nil)
	}
	return nil
}

func (r *Receiver) shutdown() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		r.connMu.Lock()
		if r.conn != nil {
			r.conn.Close()
		}
		r.connMu.Unlock()
	})
}

func (r *Receiver) watchContext(ctx context.Context) {
	defer r.wg.Done()
	select {
	case <-ctx.Done():
		r.shutdown()
	case <-r.stopCh:
	case <-r.done:
	}
}

// Done is closed once the receiver reaches StateClosed for good.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

// Err returns why the receiver closed; nil for a requested shutdown.
func (r *Receiver) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// State returns the current connection state.
func (r *Receiver) State() State {
	return State(atomic.LoadInt32(&r.state))
}

// ConnectedAt returns when the current connection was established.
func (r *Receiver) ConnectedAt() time.Time {
	if v := r.connectedAt.Load(); v != nil {
		return v.(time.Time)
	}
	return time.Time{}
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats() (reconnects int64, readErrors int64) {
	return atomic.LoadInt64(&r.reconnects), atomic.LoadInt64(&r.readErrors)
}

func (r *Receiver) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}

func (r *Receiver) stopping() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

func (r *Receiver) finish(err error) {
	r.doneOnce.Do(func() {
		r.errMu.Lock()
		r.err = err
		r.errMu.Unlock()
		r.setState(StateClosed)
		close(r.done)
	})
}

// connect dials the server once.
func (r *Receiver) connect(ctx context.Context) (net.Conn, error) {
	addr := r.cfg.Addr()
	conn, err := r.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	r.connMu.Lock()
	r.conn = conn
	r.connMu.Unlock()

	// Close raced with the dial
	if r.stopping() {
		conn.Close()
		return nil, net.ErrClosed
	}

	r.connectedAt.Store(time.Now())
	r.setState(StateStreaming)
	log.Printf("✅ Connected to server at %s", addr)
	return conn, nil
}

// connectionLoop streams conn, then reconnects with backoff while attempts remain.
func (r *Receiver) connectionLoop(ctx context.Context, conn net.Conn) {
	defer r.wg.Done()

	attempt := 0
	for {
		if r.onConnect != nil {
			r.onConnect(conn)
		}

		received, err := r.readLoop(conn)
		r.disconnect(conn, err)
		if received {
			attempt = 0
		}

		for {
			if r.stopping() {
				r.finish(nil)
				return
			}
			if attempt >= r.cfg.MaxReconnects {
				r.finish(err)
				return
			}
			attempt++

			delay := backoff(r.cfg.ReconnectDelay, attempt)
			log.Printf("🔄 Reconnecting in %v (attempt %d/%d)", delay, attempt, r.cfg.MaxReconnects)
			select {
			case <-r.stopCh:
				r.finish(nil)
				return
			case <-time.After(delay):
			}

			r.setState(StateConnecting)
			conn, err = r.connect(ctx)
			if err == nil {
				break
			}
			log.Printf("⚠️ Reconnect failed: %v", err)
		}

		atomic.AddInt64(&r.reconnects, 1)
		r.pipeline.Reset()
	}
}

// disconnect releases conn and publishes whatever frame was in flight.
func (r *Receiver) disconnect(conn net.Conn, cause error) {
	r.connMu.Lock()
	r.conn = nil
	r.connMu.Unlock()
	conn.Close()

	r.pipeline.Flush()
	r.setState(StateClosed)

	if r.onDisconnect != nil {
		r.onDisconnect(cause)
	}
}

// readLoop reads until the connection fails, the peer goes idle or Close is called.
// The bool reports whether any byte arrived on this connection.
func (r *Receiver) readLoop(conn net.Conn) (bool, error) {
	buf := make([]byte, r.cfg.ReadChunk)
	lastData := time.Now()
	received := false

	for {
		conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))

		n, err := conn.Read(buf)
		if n > 0 {
			received = true
			lastData = time.Now()
			r.pipeline.Feed(buf[:n])
		}
		if err == nil {
			continue
		}

		if r.stopping() {
			return received, nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// Quiet period: the frame in progress is complete
			r.pipeline.Flush()
			if r.cfg.IdleTimeout > 0 && time.Since(lastData) >= r.cfg.IdleTimeout {
				log.Printf("⚠️ No data from server for %v", r.cfg.IdleTimeout)
				return received, ErrIdleTimeout
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			log.Println("🔌 Server closed connection")
			return received, ErrServerClosed
		}

		log.Printf("⚠️ Read error: %v", err)
		atomic.AddInt64(&r.readErrors, 1)
		return received, fmt.Errorf("read: %w", err)
	}
}

// backoff doubles base per attempt, capped at maxReconnectDelay.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = config.DefaultNet().ReconnectDelay
	}
	d := base
	for i := 1; i < attempt && d < maxReconnectDelay; i++ {
		d *= 2
	}
	return min(d, maxReconnectDelay)
}
