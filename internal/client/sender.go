package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"dkjr-client/internal/config"
	"dkjr-client/internal/protocol"
)

var (
	// ErrNotConnected is returned when no connection is attached.
	ErrNotConnected = errors.New("not connected")
	// ErrRateLimited is returned when commands are sent faster than the configured rate.
	ErrRateLimited = errors.New("command rate limit exceeded")
)

// Sender writes one command per line to the server. Safe for concurrent use;
// writes are serialized so lines never interleave.
type Sender struct {
	mu           sync.Mutex
	conn         net.Conn
	writeTimeout time.Duration
	limiter      *rate.Limiter

	// Stats
	sent    uint64 // atomic
	failed  uint64 // atomic
	limited uint64 // atomic
}

// NewSender creates a sender. A zero cfg.Rate disables throttling.
func NewSender(cfg config.CommandConfig, writeTimeout time.Duration) *Sender {
	s := &Sender{writeTimeout: writeTimeout}
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return s
}

// Attach points the sender at conn.
func (s *Sender) Attach(conn net.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

// Detach drops the current connection; Send fails until the next Attach.
func (s *Sender) Detach() {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
}

// Send writes text followed by exactly one newline. The text must not
// contain line breaks of its own.
func (s *Sender) Send(text string) error {
	if err := protocol.ValidateCommand(text); err != nil {
		return err
	}
	if s.limiter != nil && !s.limiter.Allow() {
		atomic.AddUint64(&s.limited, 1)
		return ErrRateLimited
	}

	data := make([]byte, 0, len(text)+1)
	data = append(data, text...)
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		atomic.AddUint64(&s.failed, 1)
		return ErrNotConnected
	}
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := writeAll(s.conn, data); err != nil {
		atomic.AddUint64(&s.failed, 1)
		return fmt.Errorf("send %q: %w", text, err)
	}
	atomic.AddUint64(&s.sent, 1)
	return nil
}

// Join registers as a player under name.
func (s *Sender) Join(name string) error {
	cmd, err := protocol.JoinCommand(name)
	if err != nil {
		return err
	}
	return s.Send(cmd)
}

// Input sends one input event for player slot idx.
func (s *Sender) Input(idx int, a protocol.Action) error {
	cmd, err := protocol.InputCommand(idx, a)
	if err != nil {
		return err
	}
	return s.Send(cmd)
}

// Admin sends an administrative command.
func (s *Sender) Admin(args ...string) error {
	cmd, err := protocol.AdminCommand(args...)
	if err != nil {
		return err
	}
	return s.Send(cmd)
}

// AdminPlayers requests the roster.
func (s *Sender) AdminPlayers() error {
	return s.Send(protocol.AdminPlayers)
}

// Spectate asks to observe playerID.
func (s *Sender) Spectate(playerID int) error {
	return s.Send(protocol.SpectateCommand(playerID))
}

// GetStats returns sender statistics
func (s *Sender) GetStats() (sent, failed, limited uint64) {
	return atomic.LoadUint64(&s.sent),
		atomic.LoadUint64(&s.failed),
		atomic.LoadUint64(&s.limited)
}

// writeAll writes the entirety of data to conn, returning an error if the
// write fails or is short.
func writeAll(conn net.Conn, data []byte) error {
	for len(data) > 0 {
		n, err := conn.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
