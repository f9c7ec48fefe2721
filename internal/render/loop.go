// Package render consumes the world on its own schedule. It stands in for
// the game's drawing loop: a Loop polls the latest snapshot at a fixed rate
// and hands new frames to a Sink such as the terminal HUD or the Rasterizer.
package render

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"dkjr-client/internal/world"
)

// SnapshotSource is anything that publishes world snapshots.
// world.Store and client.Session both satisfy it.
type SnapshotSource interface {
	Snapshot() *world.Snapshot
}

// Sink receives each snapshot the loop has not seen before.
type Sink func(snap *world.Snapshot)

// Loop polls a SnapshotSource at a fixed rate.
type Loop struct {
	source SnapshotSource
	sink   Sink
	fps    int

	last *world.Snapshot // loop goroutine only

	// Stats
	ticks     uint64 // atomic
	delivered uint64 // atomic
	skipped   uint64 // atomic

	// Control
	running  int32 // atomic
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewLoop creates a loop calling sink at most fps times per second.
func NewLoop(source SnapshotSource, fps int, sink Sink) *Loop {
	if fps <= 0 {
		fps = 60
	}
	return &Loop{
		source:   source,
		sink:     sink,
		fps:      fps,
		stopChan: make(chan struct{}),
	}
}

// Start begins polling on a new goroutine.
func (l *Loop) Start() {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return
	}
	l.wg.Add(1)
	go l.frameLoop()
	log.Printf("🖼️ Render loop started at %d FPS", l.fps)
}

// Stop ends the loop and waits for the goroutine. Safe to call more than once.
func (l *Loop) Stop() {
	if !atomic.CompareAndSwapInt32(&l.running, 1, 0) {
		return
	}
	close(l.stopChan)
	l.wg.Wait()
}

func (l *Loop) frameLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(l.fps))
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick checks the source once and delivers the snapshot if it is new.
// Returns true when the sink was called. Exposed for callers that drive
// their own schedule.
func (l *Loop) Tick() bool {
	atomic.AddUint64(&l.ticks, 1)

	snap := l.source.Snapshot()
	if snap == nil || snap == l.last {
		atomic.AddUint64(&l.skipped, 1)
		return false
	}
	l.last = snap
	atomic.AddUint64(&l.delivered, 1)
	if l.sink != nil {
		l.sink(snap)
	}
	return true
}

// GetStats returns loop statistics
func (l *Loop) GetStats() (ticks, delivered, skipped uint64) {
	return atomic.LoadUint64(&l.ticks),
		atomic.LoadUint64(&l.delivered),
		atomic.LoadUint64(&l.skipped)
}
