package client

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"
)

// recordMagic opens every recording. Files without it are replayed as a
// plain byte capture.
const recordMagic = "DKJRREC1"

// quietGap is the pause in a recording after which replay publishes the
// pending frame, the same way a live read deadline does.
const quietGap = 100 * time.Millisecond

// maxChunk bounds one recorded chunk. Larger writes are split on record and
// rejected on replay.
const maxChunk = 1 << 20

// ErrChunkTooLarge is returned when a recording announces a chunk over maxChunk.
var ErrChunkTooLarge = errors.New("exceeds limit")

// Recorder writes every received chunk with its arrival time so a session
// can be replayed later with the same read boundaries.
//
// Record layout: magic, then per chunk a big-endian uint32 offset in
// milliseconds since the first chunk, a uint32 length and the bytes.
type Recorder struct {
	mu     sync.Mutex
	w      io.Writer
	start  time.Time
	header bool
	err    error

	chunks uint64
	bytes  uint64
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// Write records p as one chunk. After the first failure the recorder stops
// writing and keeps returning that error.
func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return 0, r.err
	}
	if !r.header {
		r.start = time.Now()
		if _, err := io.WriteString(r.w, recordMagic); err != nil {
			return 0, r.fail(err)
		}
		r.header = true
	}

	at := uint32(time.Since(r.start).Milliseconds())
	for rest := p; len(rest) > 0; {
		n := min(len(rest), maxChunk)
		if err := r.writeChunk(at, rest[:n]); err != nil {
			return 0, err
		}
		rest = rest[n:]
	}
	return len(p), nil
}

func (r *Recorder) writeChunk(at uint32, p []byte) error {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], at)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(len(p)))
	if _, err := r.w.Write(hdr[:]); err != nil {
		return r.fail(err)
	}
	if _, err := r.w.Write(p); err != nil {
		return r.fail(err)
	}
	r.chunks++
	r.bytes += uint64(len(p))
	return nil
}

func (r *Recorder) fail(err error) error {
	r.err = fmt.Errorf("recording: %w", err)
	log.Printf("⚠️ Recording stopped: %v", err)
	return r.err
}

// GetStats returns the number of chunks and bytes recorded.
func (r *Recorder) GetStats() (chunks, bytes uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chunks, r.bytes
}

// ReplayOptions controls how a recording is fed back.
type ReplayOptions struct {
	Speed float64 // 1 is real time; 0 or less replays as fast as possible
	Chunk int     // read size for plain captures
}

// Replay feeds a recording or plain capture through p. The pending frame is
// published at every quiet gap and at the end. Returns the number of bytes fed.
func Replay(ctx context.Context, r io.Reader, p *Pipeline, opts ReplayOptions) (int64, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(recordMagic))
	if err == nil && string(head) == recordMagic {
		br.Discard(len(recordMagic))
		return replayChunks(ctx, br, p, opts)
	}
	return replayRaw(ctx, br, p, opts)
}

func replayChunks(ctx context.Context, r io.Reader, p *Pipeline, opts ReplayOptions) (int64, error) {
	var total int64
	var last uint32
	var hdr [8]byte
	buf := make([]byte, 0, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				p.Flush()
				return total, nil
			}
			return total, fmt.Errorf("replay header: %w", err)
		}
		at := binary.BigEndian.Uint32(hdr[0:4])
		n := binary.BigEndian.Uint32(hdr[4:8])

		if n > maxChunk {
			return total, fmt.Errorf("replay chunk: length %d %w", n, ErrChunkTooLarge)
		}
		if int(n) > cap(buf) {
			buf = make([]byte, n)
		}
		buf = buf[:n]
		if _, err := io.ReadFull(r, buf); err != nil {
			return total, fmt.Errorf("replay chunk: %w", err)
		}

		// Offsets only grow in a well-formed recording; a step back is no gap
		var gap time.Duration
		if at > last {
			gap = time.Duration(at-last) * time.Millisecond
			last = at
		}
		if gap >= quietGap {
			p.Flush()
		}
		if opts.Speed > 0 && gap > 0 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(time.Duration(float64(gap) / opts.Speed)):
			}
		}

		p.Feed(buf)
		total += int64(n)
	}
}

func replayRaw(ctx context.Context, r io.Reader, p *Pipeline, opts ReplayOptions) (int64, error) {
	chunk := opts.Chunk
	if chunk <= 0 {
		chunk = 2048
	}
	buf := make([]byte, chunk)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			p.Flush()
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("replay: %w", err)
		}
	}
}
