// Package client connects to the game server: it frames and applies the
// inbound stream to a world.Store and writes outbound commands.
package client

import (
	"errors"
	"io"
	"log"
	"sync/atomic"

	"dkjr-client/internal/protocol"
	"dkjr-client/internal/world"
)

// Pipeline turns received bytes into world updates. It is driven by a
// single goroutine (the receiver or a replay).
type Pipeline struct {
	framer *protocol.LineFramer
	store  *world.Store
	debug  bool

	// Stats
	bytesReceived uint64 // atomic
	frames        uint64 // atomic
	parseErrors   uint64 // atomic
	unknownLines  uint64 // atomic
	dropped       uint64 // atomic
	lines         [protocol.NumKinds]uint64

	// Raw bytes are copied here before framing when set
	tap io.Writer

	// Callbacks
	onRoster func([]world.RosterEntry)
}

// NewPipeline creates a pipeline writing into store.
func NewPipeline(store *world.Store, framerCapacity int) *Pipeline {
	return &Pipeline{
		framer: protocol.NewLineFramer(framerCapacity),
		store:  store,
	}
}

// SetDebug enables per-line logging of rejected lines.
func (p *Pipeline) SetDebug(debug bool) {
	p.debug = debug
}

// OnRoster sets a callback for when a roster document is received
func (p *Pipeline) OnRoster(fn func([]world.RosterEntry)) {
	p.onRoster = fn
}

// SetTap copies every fed chunk to w, typically a Recorder. Write errors
// are ignored by the pipeline.
func (p *Pipeline) SetTap(w io.Writer) {
	p.tap = w
}

// Store returns the world this pipeline writes.
func (p *Pipeline) Store() *world.Store {
	return p.store
}

// Feed frames b and applies every complete line. Returns the number of lines seen.
func (p *Pipeline) Feed(b []byte) int {
	atomic.AddUint64(&p.bytesReceived, uint64(len(b)))
	if p.tap != nil {
		p.tap.Write(b)
	}
	lines := p.framer.Feed(b)
	for _, line := range lines {
		p.ApplyLine(line)
	}
	return len(lines)
}

// ApplyLine runs the frame-boundary rule for line and then applies it.
// Lines that fail to decode are counted and skipped; the error is returned
// for callers that want it.
func (p *Pipeline) ApplyLine(line string) error {
	kind := protocol.Classify(line)
	atomic.AddUint64(&p.lines[kind], 1)

	// A PLAYER keyword opens a new frame even if the rest of the line is bad
	if kind == protocol.KindPlayer {
		p.store.BeginFrame()
		atomic.AddUint64(&p.frames, 1)
	}

	msg, err := protocol.Decode(line)
	if err != nil {
		switch {
		case errors.Is(err, protocol.ErrEmptyLine):
			return nil
		case errors.Is(err, protocol.ErrUnknownKind):
			atomic.AddUint64(&p.unknownLines, 1)
		default:
			atomic.AddUint64(&p.parseErrors, 1)
		}
		if p.debug {
			log.Printf("🔍 Skipped line %q: %v", line, err)
		}
		return err
	}

	if !applyMessage(p.store, msg) {
		atomic.AddUint64(&p.dropped, 1)
	}

	if roster, ok := msg.(protocol.RosterMsg); ok && p.onRoster != nil {
		p.onRoster(toWorldRoster(roster.Entries))
	}
	return nil
}

// Flush publishes the frame being built. Called when the stream goes quiet.
func (p *Pipeline) Flush() bool {
	return p.store.Commit()
}

// Reset drops buffered partial input and returns the world to its initial
// state. The receiver calls it before streaming a new connection.
func (p *Pipeline) Reset() {
	p.framer.Reset()
	p.store.Reset()
}

// PipelineStats is a point-in-time copy of the pipeline counters.
type PipelineStats struct {
	BytesReceived   uint64
	Frames          uint64
	ParseErrors     uint64
	UnknownLines    uint64
	DroppedEntities uint64
	OverflowBytes   uint64
	DiscardedLines  uint64
	Lines           [protocol.NumKinds]uint64
}

// TotalLines sums the per-kind line counters.
func (s PipelineStats) TotalLines() uint64 {
	var n uint64
	for _, c := range s.Lines {
		n += c
	}
	return n
}

// GetStats returns pipeline statistics
func (p *Pipeline) GetStats() PipelineStats {
	st := PipelineStats{
		BytesReceived:   atomic.LoadUint64(&p.bytesReceived),
		Frames:          atomic.LoadUint64(&p.frames),
		ParseErrors:     atomic.LoadUint64(&p.parseErrors),
		UnknownLines:    atomic.LoadUint64(&p.unknownLines),
		DroppedEntities: atomic.LoadUint64(&p.dropped),
	}
	st.OverflowBytes, st.DiscardedLines = p.framer.GetStats()
	for i := range p.lines {
		st.Lines[i] = atomic.LoadUint64(&p.lines[i])
	}
	return st
}
