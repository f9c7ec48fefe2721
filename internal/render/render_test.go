package render

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"dkjr-client/internal/world"
)

func testWorld() *world.Store {
	s := world.NewStore(world.DefaultLimits)
	s.BeginFrame()
	s.UpdatePlayer(0, func(p *world.Player) {
		p.X, p.Y, p.Lives, p.Score, p.OnRope = 100, 200, 3, 1250, true
	})
	s.AppendCreature(world.Creature{ID: 0, Kind: world.CreatureRed, X: 400, Y: 300, Alive: true})
	s.AppendCreature(world.Creature{ID: 1, Kind: world.CreatureBlue, X: 500, Y: 300, Alive: false})
	s.AppendItem(world.Item{ID: 0, X: 600, Y: 100, Points: 70, Active: true, Category: "BANANA"})
	s.UpdateLevel(func(l *world.LevelInfo) { l.Index, l.SpeedScale = 2, 1.25 })
	s.Commit()
	return s
}

// TestHUDLine includes the key facts of the frame
func TestHUDLine(t *testing.T) {
	line := HUDLine(testWorld().Snapshot())

	for _, want := range []string{"#1", "L2", "x1.25", "P0", "lives=3", "score=1,250", "[rope]", "crocs 1/2", "fruits 1"} {
		if !strings.Contains(line, want) {
			t.Errorf("HUD %q missing %q", line, want)
		}
	}

	empty := HUDLine(world.NewStore(world.DefaultLimits).Snapshot())
	if !strings.Contains(empty, "waiting for players") {
		t.Errorf("Expected waiting message, got %q", empty)
	}
}

// TestLoopDeliversNewSnapshotsOnce skips polls that see the same snapshot
func TestLoopDeliversNewSnapshotsOnce(t *testing.T) {
	store := testWorld()
	var got []*world.Snapshot
	loop := NewLoop(store, 60, func(s *world.Snapshot) { got = append(got, s) })

	loop.Tick()
	loop.Tick()
	store.BeginFrame()
	store.Commit()
	loop.Tick()

	if len(got) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(got))
	}
	if got[1].Frame != 2 {
		t.Errorf("Expected frame 2, got %d", got[1].Frame)
	}
	ticks, delivered, skipped := loop.GetStats()
	if ticks != 3 || delivered != 2 || skipped != 1 {
		t.Errorf("Unexpected stats: %d %d %d", ticks, delivered, skipped)
	}
}

// TestLoopRunsOnItsOwnGoroutine polls until stopped
func TestLoopRunsOnItsOwnGoroutine(t *testing.T) {
	store := testWorld()
	var mu sync.Mutex
	calls := 0
	loop := NewLoop(store, 200, func(*world.Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	loop.Start()
	time.Sleep(50 * time.Millisecond)
	loop.Stop()
	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected exactly 1 delivery of an unchanged world, got %d", calls)
	}
	if ticks, _, _ := loop.GetStats(); ticks < 2 {
		t.Errorf("Expected several ticks, got %d", ticks)
	}
}

// TestRasterizerDrawsEntities checks size and a few pixel colors
func TestRasterizerDrawsEntities(t *testing.T) {
	r := NewRasterizer(960, 540)
	img := r.Render(testWorld().Snapshot())

	if b := img.Bounds(); b.Dx() != 960 || b.Dy() != 540 {
		t.Fatalf("Unexpected bounds %v", b)
	}

	at := func(x, y int) color.RGBA {
		return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
	}
	if c := at(415, 315); c != colorRed {
		t.Errorf("Expected red creature at (415,315), got %v", c)
	}
	if c := at(515, 315); c != colorDead {
		t.Errorf("Expected dead creature gray at (515,315), got %v", c)
	}
	if c := at(112, 214); c != colorPlayer {
		t.Errorf("Expected player at (112,214), got %v", c)
	}
	if c := at(900, 500); c != colorBackground {
		t.Errorf("Expected background at (900,500), got %v", c)
	}
}

// TestRasterizerScales draws the full field into a smaller image
func TestRasterizerScales(t *testing.T) {
	r := NewRasterizer(480, 270)
	img := r.Render(testWorld().Snapshot())

	c := color.RGBAModel.Convert(img.At(206, 156)).(color.RGBA)
	if c != colorRed {
		t.Errorf("Expected red creature at half scale, got %v", c)
	}
	if w, h := r.Size(); w != 480 || h != 270 {
		t.Errorf("Unexpected size %dx%d", w, h)
	}
}

// TestEncodePNG produces a decodable image
func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRasterizer(320, 180).EncodePNG(&buf, testWorld().Snapshot()); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Invalid PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Errorf("Unexpected bounds %v", b)
	}
}

// TestParseHexColor falls back to white
func TestParseHexColor(t *testing.T) {
	if c := parseHexColor("#ff9500"); c != (color.RGBA{255, 149, 0, 255}) {
		t.Errorf("Unexpected color %v", c)
	}
	if c := parseHexColor(""); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected white fallback, got %v", c)
	}
}
