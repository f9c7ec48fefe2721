package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"dkjr-client/internal/config"
	"dkjr-client/internal/world"
)

// ErrUnknownMode is returned for a session mode other than player, spectator or admin.
var ErrUnknownMode = errors.New("unknown session mode")

// Mode is what the session announces to the server after connecting.
type Mode string

const (
	ModePlayer    Mode = "player"    // JOIN player <name>
	ModeSpectator Mode = "spectator" // ADMIN PLAYERS, then SPECTATE <id>
	ModeAdmin     Mode = "admin"     // ADMIN PLAYERS
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePlayer, ModeSpectator, ModeAdmin:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Options selects how the session identifies itself.
type Options struct {
	Mode       Mode
	Name       string    // player name for ModePlayer
	SpectateID int       // observed player for ModeSpectator
	Record     io.Writer // optional raw stream recording
}

// Session owns one server connection: the world it mirrors, the receiver
// filling it and the sender writing commands.
type Session struct {
	cfg  config.AppConfig
	opts Options

	store    *world.Store
	pipeline *Pipeline
	receiver *Receiver
	sender   *Sender
	recorder *Recorder

	startedAt time.Time
	closeOnce sync.Once
}

// New builds an unconnected session. Most callers want Dial.
func New(cfg config.AppConfig, opts Options) (*Session, error) {
	if opts.Mode == "" {
		opts.Mode = ModeSpectator
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, err
	}

	store := world.NewStore(world.Limits{
		MaxPlayers:   cfg.Limits.MaxPlayers,
		MaxCreatures: cfg.Limits.MaxCreatures,
		MaxItems:     cfg.Limits.MaxItems,
	})
	pipeline := NewPipeline(store, cfg.Limits.FramerCapacity)
	pipeline.SetDebug(cfg.Debug)

	s := &Session{
		cfg:      cfg,
		opts:     opts,
		store:    store,
		pipeline: pipeline,
		receiver: NewReceiver(cfg.Net, pipeline),
		sender:   NewSender(cfg.Command, cfg.Net.WriteTimeout),
	}
	if opts.Record != nil {
		s.recorder = NewRecorder(opts.Record)
		pipeline.SetTap(s.recorder)
	}

	s.receiver.OnConnect(s.handleConnect)
	s.receiver.OnDisconnect(s.handleDisconnect)
	return s, nil
}

// Dial connects to the configured server and starts receiving.
func Dial(ctx context.Context, cfg config.AppConfig, opts Options) (*Session, error) {
	s, err := New(cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Start connects and begins receiving in the background.
func (s *Session) Start(ctx context.Context) error {
	s.startedAt = time.Now()
	if err := s.receiver.Start(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// OnRoster sets a callback for every roster document the server sends.
// It runs on the receive goroutine and must be set before Start.
func (s *Session) OnRoster(fn func([]world.RosterEntry)) {
	s.pipeline.OnRoster(fn)
}

// handleConnect binds the sender to conn and announces the session mode.
// Runs again after every reconnect.
func (s *Session) handleConnect(conn net.Conn) {
	s.sender.Attach(conn)

	var err error
	switch s.opts.Mode {
	case ModePlayer:
		err = s.sender.Join(s.opts.Name)
	case ModeSpectator:
		// Ask for the roster first so the user can pick whom to watch
		if err = s.sender.AdminPlayers(); err == nil {
			err = s.sender.Spectate(s.opts.SpectateID)
		}
	case ModeAdmin:
		err = s.sender.AdminPlayers()
	}
	if err != nil {
		log.Printf("⚠️ Failed to announce %s session: %v", s.opts.Mode, err)
		return
	}
	log.Printf("🎮 Session ready as %s", s.opts.Mode)
}

func (s *Session) handleDisconnect(cause error) {
	s.sender.Detach()
	if cause != nil {
		log.Printf("🔌 Disconnected: %v", cause)
	}
}

// Store returns the mirrored world.
func (s *Session) Store() *world.Store { return s.store }

// Snapshot returns the latest complete world.
func (s *Session) Snapshot() *world.Snapshot { return s.store.Snapshot() }

// Sender returns the command sender.
func (s *Session) Sender() *Sender { return s.sender }

// Send writes one raw command line to the server.
func (s *Session) Send(text string) error { return s.sender.Send(text) }

// Pipeline returns the receive pipeline.
func (s *Session) Pipeline() *Pipeline { return s.pipeline }

// Mode returns the session mode.
func (s *Session) Mode() Mode { return s.opts.Mode }

// State returns the connection state.
func (s *Session) State() State { return s.receiver.State() }

// Done is closed when the connection is gone for good.
func (s *Session) Done() <-chan struct{} { return s.receiver.Done() }

// Err returns why the session ended; nil after Close.
func (s *Session) Err() error { return s.receiver.Err() }

// Close disconnects and waits for the receiver to stop. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.receiver.Close()
		s.sender.Detach()
	})
	return nil
}
