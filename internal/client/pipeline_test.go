package client

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"time"

	"dkjr-client/internal/protocol"
	"dkjr-client/internal/world"
)

func newTestPipeline() *Pipeline {
	return NewPipeline(world.NewStore(world.DefaultLimits), 0)
}

// sameWorld compares snapshots ignoring publication time.
func sameWorld(a, b *world.Snapshot) bool {
	x, y := *a, *b
	x.UpdatedAt, y.UpdatedAt = time.Time{}, time.Time{}
	return reflect.DeepEqual(x, y)
}

// TestFrameResetInvariant checks that a PLAYER line clears creatures before later lines apply
func TestFrameResetInvariant(t *testing.T) {
	p := newTestPipeline()
	p.Feed([]byte("PLAYER 0 x=1 y=1 lives=3 score=0\n" +
		"CREATURE 0 type=RED x=5 y=5 alive=1\n" +
		"PLAYER 0 x=2 y=2 lives=3 score=10\n"))

	if c, _ := p.Store().Pending(); c != 0 {
		t.Fatalf("Expected creatureCount 0 after second PLAYER, got %d", c)
	}

	// The first frame was published whole at the boundary
	if got := p.Store().Snapshot().CreatureCount(); got != 1 {
		t.Errorf("Expected first frame with 1 creature, got %d", got)
	}

	p.Flush()
	snap := p.Store().Snapshot()
	if snap.CreatureCount() != 0 {
		t.Errorf("Expected 0 creatures after flush, got %d", snap.CreatureCount())
	}
	pl, ok := snap.Player(0)
	if !ok || pl.X != 2 || pl.Score != 10 {
		t.Errorf("Expected second player line applied, got %+v", pl)
	}
}

// TestFramesDoNotAccumulate guards against stale entries piling up across frames
func TestFramesDoNotAccumulate(t *testing.T) {
	p := newTestPipeline()
	for i := 0; i < 100; i++ {
		p.Feed([]byte("PLAYER 0 x=1 y=1 lives=3 score=0\n" +
			"CREATURE 0 type=RED x=5 y=5 alive=1\n" +
			"CREATURE 1 type=BLUE x=6 y=5 alive=1\n" +
			"ITEM 0 type=BANANA x=1 y=1 points=10 active=1\n"))
	}
	p.Flush()

	snap := p.Store().Snapshot()
	if snap.CreatureCount() != 2 || snap.ItemCount() != 1 {
		t.Errorf("Expected 2 creatures and 1 item, got %d and %d", snap.CreatureCount(), snap.ItemCount())
	}
	if st := p.GetStats(); st.Frames != 100 {
		t.Errorf("Expected 100 frames, got %d", st.Frames)
	}
}

// TestMalformedLinesSkipped leaves the world untouched by bad lines
func TestMalformedLinesSkipped(t *testing.T) {
	p := newTestPipeline()
	p.Feed([]byte("PLAYER 0 x=1 y=1 lives=3 score=0\nCREATURE 0 type=RED x=5 y=5 alive=1\n"))
	p.Flush()
	before := p.Store().Snapshot()

	p.Feed([]byte("CREATURE 1 type=GREEN x=1 y=1 alive=1\n" +
		"ITEM x type=BANANA\n" +
		"LEVEL\n"))
	p.Flush()

	if !sameWorld(before, p.Store().Snapshot()) {
		t.Errorf("Malformed lines changed the world")
	}
	if st := p.GetStats(); st.ParseErrors != 3 {
		t.Errorf("Expected 3 parse errors, got %d", st.ParseErrors)
	}
}

// TestMalformedPlayerStillStartsFrame applies the boundary on the keyword alone
func TestMalformedPlayerStillStartsFrame(t *testing.T) {
	p := newTestPipeline()
	p.Feed([]byte("PLAYER 0 x=1 y=1 lives=3 score=0\nCREATURE 0 type=RED x=5 y=5 alive=1\n"))

	err := p.ApplyLine("PLAYER abc not_a_number")
	if !errors.Is(err, protocol.ErrMalformed) {
		t.Fatalf("Expected ErrMalformed, got %v", err)
	}
	if c, _ := p.Store().Pending(); c != 0 {
		t.Errorf("Expected frame reset on malformed PLAYER, got %d creatures", c)
	}
	pl, _ := p.Store().Snapshot().Player(0)
	if pl.X != 1 {
		t.Errorf("Malformed PLAYER must not change the player, got %+v", pl)
	}
}

// TestUnknownKeywordTolerated ignores lines with unknown keywords
func TestUnknownKeywordTolerated(t *testing.T) {
	p := newTestPipeline()
	p.Feed([]byte("PLAYER 0 x=1 y=1 lives=3 score=0\n"))
	p.Flush()
	before := p.Store().Snapshot()

	if err := p.ApplyLine("FOOBAR 1 2 3"); !errors.Is(err, protocol.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
	if err := p.ApplyLine(""); err != nil {
		t.Errorf("Empty lines should be ignored silently, got %v", err)
	}
	p.Flush()

	if !sameWorld(before, p.Store().Snapshot()) {
		t.Error("Unknown line changed the world")
	}
	st := p.GetStats()
	if st.UnknownLines != 1 || st.ParseErrors != 0 {
		t.Errorf("Expected 1 unknown line and no parse errors, got %+v", st)
	}
}

// TestInvalidFieldKeepsPreviousValue applies parse-or-skip per field
func TestInvalidFieldKeepsPreviousValue(t *testing.T) {
	p := newTestPipeline()
	p.Feed([]byte("PLAYER 0 x=10 y=20 lives=3 score=5 jumping=1\n"))
	p.Feed([]byte("PLAYER 0 x=abc y=25 lives=2 score=6\n"))
	p.Flush()

	pl, _ := p.Store().Snapshot().Player(0)
	if pl.X != 10 || pl.Y != 25 || pl.Lives != 2 || pl.Score != 6 {
		t.Errorf("Unexpected player: %+v", pl)
	}
	if !pl.Jumping {
		t.Error("Absent optional flag should keep its previous value")
	}
}

// TestSessionMetadata maps LEVEL, STATE, MARIO and roster lines into the world
func TestSessionMetadata(t *testing.T) {
	p := newTestPipeline()
	var roster []world.RosterEntry
	p.OnRoster(func(r []world.RosterEntry) { roster = r })

	p.Feed([]byte("LEVEL 2 LADDERS=5 VEL_SCALE=1.5\n" +
		"STATE TIME=1200 SPEED=2\n" +
		"MARIO 0 x=300 y=40 dir=R\n" +
		"CAGE 0 x=1 y=1\n" +
		`[{"id":1,"name":"DKJr"}]` + "\n"))
	p.Flush()

	snap := p.Store().Snapshot()
	if snap.Level.Index != 2 || snap.Level.Ladders != 5 || snap.Level.SpeedScale != 1.5 {
		t.Errorf("Unexpected level: %+v", snap.Level)
	}
	if snap.Clock.TimeMs != 1200 || snap.Clock.Speed != 2 {
		t.Errorf("Unexpected clock: %+v", snap.Clock)
	}
	if !snap.Actor.Visible || !snap.Actor.FacingRight || snap.Actor.X != 300 {
		t.Errorf("Unexpected actor: %+v", snap.Actor)
	}
	if len(snap.Roster) != 1 || snap.Roster[0].Name != "DKJr" {
		t.Errorf("Unexpected roster: %+v", snap.Roster)
	}
	if len(roster) != 1 || roster[0].ID != 1 {
		t.Errorf("Roster callback not called: %+v", roster)
	}
}

// TestSplitFeedSameWorld yields the same world however the stream is chunked
func TestSplitFeedSameWorld(t *testing.T) {
	stream := []byte("PLAYER 0 x=1 y=1 lives=3 score=0\r\n" +
		"CROC 0 type=ROJO liana=2 x=5 y=5 alive=1\n" +
		"FRUIT 0 type=Banana x=7 y=8 points=70 active=1\n" +
		"PLAYER 0 x=2 y=2 lives=3 score=10\n" +
		"CREATURE 1 type=BLUE x=9 y=9 alive=0\n")

	whole := newTestPipeline()
	whole.Feed(stream)
	whole.Flush()

	split := newTestPipeline()
	for i := range stream {
		split.Feed(stream[i : i+1])
	}
	split.Flush()

	a, b := whole.Store().Snapshot(), split.Store().Snapshot()
	if !sameWorld(a, b) {
		t.Errorf("Chunking changed the result:\nwhole=%+v\nsplit=%+v", a, b)
	}
	if a.CreatureCount() != 1 || a.Creatures[0].Kind != world.CreatureBlue {
		t.Errorf("Unexpected creatures: %+v", a.Creatures)
	}
}

// TestPipelineTapSeesRawBytes copies every chunk before framing
func TestPipelineTapSeesRawBytes(t *testing.T) {
	p := newTestPipeline()
	var tap bytes.Buffer
	p.SetTap(&tap)

	p.Feed([]byte("PLAYER 0 x=1 "))
	p.Feed([]byte("y=1 lives=3 score=0\n"))

	if tap.String() != "PLAYER 0 x=1 y=1 lives=3 score=0\n" {
		t.Errorf("Unexpected tap contents %q", tap.String())
	}
	if st := p.GetStats(); st.BytesReceived != uint64(tap.Len()) {
		t.Errorf("Expected %d bytes counted, got %d", tap.Len(), st.BytesReceived)
	}
}

// TestPipelineResetClearsWorld forgets partial input and the previous session's world
func TestPipelineResetClearsWorld(t *testing.T) {
	p := newTestPipeline()
	p.Feed([]byte(testFrame + "PLAYER 1 x=3"))
	p.Flush()
	if _, ok := p.Store().Snapshot().Player(0); !ok {
		t.Fatal("Expected player 0 before reset")
	}

	p.Reset()
	if _, ok := p.Store().Snapshot().Player(0); ok {
		t.Error("Player 0 survived reset")
	}

	// The cut-off PLAYER 1 line must not join the next input
	p.Feed([]byte(" y=4 lives=3 score=0\n"))
	p.Flush()
	if _, ok := p.Store().Snapshot().Player(1); ok {
		t.Error("Partial line from before reset was applied")
	}
}
