package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"
)

type recChunk struct {
	at   uint32 // ms offset
	data string
}

// recording builds a recording by hand.
func recording(chunks ...recChunk) []byte {
	var b bytes.Buffer
	b.WriteString(recordMagic)
	for _, c := range chunks {
		var hdr [8]byte
		binary.BigEndian.PutUint32(hdr[0:4], c.at)
		binary.BigEndian.PutUint32(hdr[4:8], uint32(len(c.data)))
		b.Write(hdr[:])
		b.WriteString(c.data)
	}
	return b.Bytes()
}

// TestRecordReplay reproduces the same world from a recording
func TestRecordReplay(t *testing.T) {
	chunks := []string{
		"PLAYER 0 x=1 y=1 lives=3 sc",
		"ore=0\nCREATURE 0 type=RED x=5 y=5 alive=1\nITEM 0 type=BANANA x=1 y=1 points=10 active=1\n",
		"PLAYER 0 x=2 y=2 lives=2 score=10\nCREATURE 1 type=BLUE x=9 y=9 alive=1\n",
	}

	live := newTestPipeline()
	var rec bytes.Buffer
	live.SetTap(NewRecorder(&rec))
	for _, c := range chunks {
		live.Feed([]byte(c))
	}
	live.Flush()

	replayed := newTestPipeline()
	n, err := Replay(context.Background(), &rec, replayed, ReplayOptions{})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if n != int64(len(strings.Join(chunks, ""))) {
		t.Errorf("Replayed %d bytes", n)
	}
	if !sameWorld(live.Store().Snapshot(), replayed.Store().Snapshot()) {
		t.Errorf("Replay differs:\nlive=%+v\nreplay=%+v", live.Store().Snapshot(), replayed.Store().Snapshot())
	}
}

// TestReplayRawCapture accepts a plain byte capture without header
func TestReplayRawCapture(t *testing.T) {
	capture := strings.NewReader(testFrame + "LEVEL 3 LADDERS=4 VEL_SCALE=1.2\n")

	p := newTestPipeline()
	if _, err := Replay(context.Background(), capture, p, ReplayOptions{Chunk: 7}); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	snap := p.Store().Snapshot()
	if snap.CreatureCount() != 1 || snap.Level.Index != 3 {
		t.Errorf("Unexpected world: %+v", snap)
	}
}

// TestReplayTruncated reports a cut-off recording
func TestReplayTruncated(t *testing.T) {
	var rec bytes.Buffer
	r := NewRecorder(&rec)
	r.Write([]byte(testFrame))
	cut := rec.Bytes()[:rec.Len()-5]

	_, err := Replay(context.Background(), bytes.NewReader(cut), newTestPipeline(), ReplayOptions{})
	if err == nil {
		t.Fatal("Expected error for truncated recording")
	}
}

// TestReplayCanceled stops when the context is done
func TestReplayCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Replay(ctx, strings.NewReader(testFrame), newTestPipeline(), ReplayOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

// TestRecorderStopsAfterError keeps returning the first failure
func TestRecorderStopsAfterError(t *testing.T) {
	r := NewRecorder(failingWriter{})
	_, err1 := r.Write([]byte("a"))
	_, err2 := r.Write([]byte("b"))
	if err1 == nil || err2 == nil || err1.Error() != err2.Error() {
		t.Errorf("Expected the same sticky error, got %v and %v", err1, err2)
	}
	if chunks, _ := r.GetStats(); chunks != 0 {
		t.Errorf("Expected nothing recorded, got %d chunks", chunks)
	}
}

// TestReplayRejectsOversizedChunk fails fast on a length no recorder writes
func TestReplayRejectsOversizedChunk(t *testing.T) {
	rec := recording(recChunk{0, "PLA"})
	binary.BigEndian.PutUint32(rec[len(recordMagic)+4:], 1<<30)

	_, err := Replay(context.Background(), bytes.NewReader(rec), newTestPipeline(), ReplayOptions{})
	if !errors.Is(err, ErrChunkTooLarge) {
		t.Fatalf("Expected ErrChunkTooLarge, got %v", err)
	}
	if !strings.Contains(err.Error(), "length 1073741824") {
		t.Errorf("Error should name the length: %v", err)
	}
}

// TestReplayBackwardsOffset treats a step back in time as no gap
func TestReplayBackwardsOffset(t *testing.T) {
	rec := recording(
		recChunk{50, "PLAYER 0 x=1 y=1 lives=3 score=0\n"},
		recChunk{10, "CREATURE 0 type=RED x=5 y=5 alive=1\n"},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := Replay(ctx, bytes.NewReader(rec), newTestPipeline(), ReplayOptions{Speed: 1})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Replay waited %v on a backwards offset", elapsed)
	}
}

// TestRecorderSplitsLargeWrites keeps every chunk within the replay limit
func TestRecorderSplitsLargeWrites(t *testing.T) {
	var rec bytes.Buffer
	r := NewRecorder(&rec)
	big := bytes.Repeat([]byte("x"), maxChunk+10)
	if n, err := r.Write(big); err != nil || n != len(big) {
		t.Fatalf("Write returned %d, %v", n, err)
	}
	if chunks, _ := r.GetStats(); chunks != 2 {
		t.Errorf("Expected 2 chunks, got %d", chunks)
	}

	n, err := Replay(context.Background(), &rec, newTestPipeline(), ReplayOptions{})
	if err != nil || n != int64(len(big)) {
		t.Errorf("Replay returned %d, %v", n, err)
	}
}
