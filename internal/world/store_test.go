package world

import (
	"sync"
	"testing"
)

// TestNewStoreDefaults verifies the initial published snapshot
func TestNewStoreDefaults(t *testing.T) {
	s := NewStore(Limits{})
	snap := s.Snapshot()

	if snap == nil {
		t.Fatal("Snapshot must never be nil")
	}
	if snap.Level.Index != 1 || snap.Level.SpeedScale != 1 {
		t.Errorf("Expected level 1 at speed 1, got %+v", snap.Level)
	}
	if len(snap.Players) != 0 || snap.CreatureCount() != 0 || snap.ItemCount() != 0 {
		t.Errorf("Expected empty world, got %+v", snap)
	}
	if s.Limits() != DefaultLimits {
		t.Errorf("Expected default limits, got %+v", s.Limits())
	}
}

// TestBeginFrameResetsCollections verifies the reset-on-frame-boundary rule
func TestBeginFrameResetsCollections(t *testing.T) {
	s := NewStore(DefaultLimits)

	s.BeginFrame()
	s.UpdatePlayer(0, func(p *Player) { p.X = 1 })
	s.AppendCreature(Creature{ID: 0, Alive: true})
	s.AppendCreature(Creature{ID: 1, Alive: true})
	s.AppendItem(Item{ID: 0, Points: 70})

	s.BeginFrame()
	if c, i := s.Pending(); c != 0 || i != 0 {
		t.Fatalf("Expected empty frame after boundary, got %d creatures %d items", c, i)
	}

	// The boundary published the previous frame intact
	snap := s.Snapshot()
	if snap.CreatureCount() != 2 || snap.ItemCount() != 1 {
		t.Errorf("Previous frame not published whole: %d creatures %d items", snap.CreatureCount(), snap.ItemCount())
	}
	if snap.Frame != 1 {
		t.Errorf("Expected frame 1, got %d", snap.Frame)
	}
}

// TestCapacityDropsExcess silently drops creatures and items past the limit
func TestCapacityDropsExcess(t *testing.T) {
	s := NewStore(Limits{MaxPlayers: 1, MaxCreatures: 2, MaxItems: 1})

	s.BeginFrame()
	for i := 0; i < 5; i++ {
		s.AppendCreature(Creature{ID: i})
		s.AppendItem(Item{ID: i})
	}
	if ok := s.UpdatePlayer(3, func(p *Player) {}); ok {
		t.Error("Player id beyond limit should be dropped")
	}
	s.Commit()

	snap := s.Snapshot()
	if snap.CreatureCount() != 2 || snap.ItemCount() != 1 {
		t.Errorf("Expected capped counts 2/1, got %d/%d", snap.CreatureCount(), snap.ItemCount())
	}

	_, droppedC, droppedI, droppedP := s.GetStats()
	if droppedC != 3 || droppedI != 4 || droppedP != 1 {
		t.Errorf("Unexpected drop stats: creatures=%d items=%d players=%d", droppedC, droppedI, droppedP)
	}
}

// TestSnapshotIsImmutable verifies published data is not aliased by the writer
func TestSnapshotIsImmutable(t *testing.T) {
	s := NewStore(DefaultLimits)
	s.BeginFrame()
	s.AppendCreature(Creature{ID: 7, X: 1})
	s.Commit()
	before := s.Snapshot()

	s.BeginFrame()
	s.AppendCreature(Creature{ID: 8, X: 99})
	s.Commit()

	if before.Creatures[0].ID != 7 || before.Creatures[0].X != 1 {
		t.Errorf("Published snapshot was mutated: %+v", before.Creatures[0])
	}
	if s.Snapshot().Creatures[0].ID != 8 {
		t.Errorf("Expected new snapshot to hold the new frame")
	}
}

// TestCommitOnlyWhenDirty avoids publishing identical snapshots
func TestCommitOnlyWhenDirty(t *testing.T) {
	s := NewStore(DefaultLimits)
	if s.Commit() {
		t.Error("Commit on a clean store should not publish")
	}
	s.UpdateClock(func(c *Clock) { c.TimeMs = 100 })
	if !s.Commit() {
		t.Error("Commit after a change should publish")
	}
	if s.Commit() {
		t.Error("Second commit should be a no-op")
	}
	if s.Snapshot().Clock.TimeMs != 100 {
		t.Errorf("Clock not published: %+v", s.Snapshot().Clock)
	}
}

// TestUpdatePlayerKeepsUntouchedFields only changes what fn sets
func TestUpdatePlayerKeepsUntouchedFields(t *testing.T) {
	s := NewStore(DefaultLimits)
	s.UpdatePlayer(1, func(p *Player) { p.X, p.Lives, p.Score = 10, 3, 50 })
	s.UpdatePlayer(1, func(p *Player) { p.X = 20 })
	s.Commit()

	p, ok := s.Snapshot().Player(1)
	if !ok {
		t.Fatal("Player 1 not published")
	}
	if p.X != 20 || p.Lives != 3 || p.Score != 50 || !p.Active {
		t.Errorf("Unexpected player: %+v", p)
	}
	if _, ok := s.Snapshot().Player(0); ok {
		t.Error("Unseen player slot should not be published")
	}
}

// TestResetClearsSession returns to the initial world
func TestResetClearsSession(t *testing.T) {
	s := NewStore(DefaultLimits)
	s.BeginFrame()
	s.UpdatePlayer(0, func(p *Player) { p.Score = 10 })
	s.AppendCreature(Creature{})
	s.SetRoster([]RosterEntry{{ID: 1, Name: "a"}})
	s.UpdateLevel(func(l *LevelInfo) { l.Index = 4 })
	s.Reset()

	snap := s.Snapshot()
	if len(snap.Players) != 0 || snap.CreatureCount() != 0 || len(snap.Roster) != 0 || snap.Level.Index != 1 {
		t.Errorf("Reset left state behind: %+v", snap)
	}
}

// TestConcurrentReadersSeeWholeFrames checks frames are never observed half-built
func TestConcurrentReadersSeeWholeFrames(t *testing.T) {
	s := NewStore(Limits{MaxPlayers: 1, MaxCreatures: 8, MaxItems: 8})
	const frames = 2000

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 1)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				// Every frame n carries n%8 creatures all tagged with n
				if snap.CreatureCount() != int(snap.Frame%8) {
					select {
					case errs <- "creature count does not match frame":
					default:
					}
					return
				}
				for _, c := range snap.Creatures {
					if uint64(c.ID) != snap.Frame {
						select {
						case errs <- "creature from another frame":
						default:
						}
						return
					}
				}
			}
		}()
	}

	for f := 1; f <= frames; f++ {
		s.BeginFrame()
		s.UpdatePlayer(0, func(p *Player) { p.Score = f })
		for c := 0; c < f%8; c++ {
			s.AppendCreature(Creature{ID: f})
		}
	}
	s.Commit()
	close(stop)
	wg.Wait()

	select {
	case msg := <-errs:
		t.Fatal(msg)
	default:
	}
}
