package protocol

import (
	"bytes"
	"sync/atomic"
)

// DefaultFramerCapacity is the buffer size used when none is configured.
const DefaultFramerCapacity = 4096

// LineFramer turns a raw byte stream into newline-terminated lines.
//
// The buffer never grows past its capacity. When a line does not fit, the
// oldest bytes are dropped and the truncated line is discarded when its
// newline finally arrives; the next PLAYER line resynchronizes the stream.
// A LineFramer is not safe for concurrent use; the receiver owns it.
type LineFramer struct {
	buf       []byte
	capacity  int
	truncated bool // head of buf is the tail of a line that lost its start

	// Stats
	droppedBytes   uint64 // atomic
	discardedLines uint64 // atomic
}

// NewLineFramer creates a framer holding at most capacity bytes.
func NewLineFramer(capacity int) *LineFramer {
	if capacity <= 0 {
		capacity = DefaultFramerCapacity
	}
	return &LineFramer{
		buf:      make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Feed appends p and returns every complete line in arrival order.
// A trailing '\r' is trimmed from each line. Bytes after the last newline
// are kept for the next call.
func (f *LineFramer) Feed(p []byte) []string {
	var lines []string
	for len(p) > 0 {
		if len(f.buf) == f.capacity {
			// Full and no newline in sight: make room by dropping the oldest bytes
			drop := min(len(p), f.capacity)
			n := copy(f.buf, f.buf[drop:])
			f.buf = f.buf[:n]
			f.truncated = true
			atomic.AddUint64(&f.droppedBytes, uint64(drop))
		}

		n := min(f.capacity-len(f.buf), len(p))
		from := len(f.buf)
		f.buf = append(f.buf, p[:n]...)
		p = p[n:]

		lines = f.extract(lines, from)
	}
	return lines
}

// extract pulls complete lines out of buf. Bytes before from are known to
// contain no newline.
func (f *LineFramer) extract(lines []string, from int) []string {
	start := 0
	for {
		i := bytes.IndexByte(f.buf[from:], '\n')
		if i < 0 {
			break
		}
		end := from + i
		if f.truncated {
			f.truncated = false
			atomic.AddUint64(&f.discardedLines, 1)
		} else {
			lines = append(lines, string(bytes.TrimSuffix(f.buf[start:end], []byte{'\r'})))
		}
		start = end + 1
		from = start
	}

	if start > 0 {
		n := copy(f.buf, f.buf[start:])
		f.buf = f.buf[:n]
	}
	return lines
}

// Buffered returns the number of bytes waiting for a newline.
func (f *LineFramer) Buffered() int {
	return len(f.buf)
}

// Capacity returns the maximum number of buffered bytes.
func (f *LineFramer) Capacity() int {
	return f.capacity
}

// Reset discards any partial line, e.g. after a reconnect.
func (f *LineFramer) Reset() {
	f.buf = f.buf[:0]
	f.truncated = false
}

// GetStats returns overflow statistics.
func (f *LineFramer) GetStats() (droppedBytes, discardedLines uint64) {
	return atomic.LoadUint64(&f.droppedBytes),
		atomic.LoadUint64(&f.discardedLines)
}
