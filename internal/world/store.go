package world

import (
	"sync/atomic"
	"time"
)

// Store is the world state shared between the receiver and its readers.
//
// All mutating methods must be called from a single goroutine. Snapshot may
// be called from any goroutine at any time and never blocks.
type Store struct {
	limits Limits

	// Working state (writer goroutine only)
	players   []Player
	seen      []bool
	creatures []Creature
	items     []Item
	actor     Actor
	level     LevelInfo
	clock     Clock
	roster    []RosterEntry
	frame     uint64
	dirty     bool

	// Latest published snapshot (lock-free access)
	published atomic.Value // *Snapshot

	// Stats
	commits          uint64 // atomic
	droppedCreatures uint64 // atomic
	droppedItems     uint64 // atomic
	droppedPlayers   uint64 // atomic
}

// NewStore creates a zeroed world. Non-positive limits fall back to DefaultLimits.
func NewStore(limits Limits) *Store {
	if limits.MaxPlayers <= 0 {
		limits.MaxPlayers = DefaultLimits.MaxPlayers
	}
	if limits.MaxCreatures <= 0 {
		limits.MaxCreatures = DefaultLimits.MaxCreatures
	}
	if limits.MaxItems <= 0 {
		limits.MaxItems = DefaultLimits.MaxItems
	}

	s := &Store{
		limits:    limits,
		players:   make([]Player, limits.MaxPlayers),
		seen:      make([]bool, limits.MaxPlayers),
		creatures: make([]Creature, 0, limits.MaxCreatures),
		items:     make([]Item, 0, limits.MaxItems),
	}
	s.resetSession()
	s.published.Store(s.copyState())
	return s
}

func (s *Store) resetSession() {
	for i := range s.players {
		s.players[i] = Player{ID: i}
		s.seen[i] = false
	}
	s.creatures = s.creatures[:0]
	s.items = s.items[:0]
	s.actor = Actor{}
	s.level = LevelInfo{Index: 1, SpeedScale: 1}
	s.clock = Clock{Speed: 1}
	s.roster = nil
}

// Limits returns the effective capacity limits.
func (s *Store) Limits() Limits {
	return s.limits
}

// BeginFrame marks a frame boundary. The previous frame, if any, is
// published first; then the creature and item sequences are emptied so the
// lines that follow describe the whole new set.
func (s *Store) BeginFrame() {
	s.Commit()
	s.creatures = s.creatures[:0]
	s.items = s.items[:0]
	s.frame++
	s.dirty = true
}

// UpdatePlayer applies fn to the player slot id and marks it active.
// Ids outside the configured range are dropped.
func (s *Store) UpdatePlayer(id int, fn func(p *Player)) bool {
	if id < 0 || id >= len(s.players) {
		atomic.AddUint64(&s.droppedPlayers, 1)
		return false
	}
	p := &s.players[id]
	fn(p)
	p.ID = id
	p.Active = true
	s.seen[id] = true
	s.dirty = true
	return true
}

// AppendCreature adds a creature to the current frame. Returns false when
// the frame is already at capacity and the creature was dropped.
func (s *Store) AppendCreature(c Creature) bool {
	if len(s.creatures) >= s.limits.MaxCreatures {
		atomic.AddUint64(&s.droppedCreatures, 1)
		return false
	}
	s.creatures = append(s.creatures, c)
	s.dirty = true
	return true
}

// AppendItem adds an item to the current frame. Returns false when the
// frame is already at capacity and the item was dropped.
func (s *Store) AppendItem(it Item) bool {
	if len(s.items) >= s.limits.MaxItems {
		atomic.AddUint64(&s.droppedItems, 1)
		return false
	}
	s.items = append(s.items, it)
	s.dirty = true
	return true
}

// UpdateLevel applies fn to the level metadata.
func (s *Store) UpdateLevel(fn func(l *LevelInfo)) {
	fn(&s.level)
	s.dirty = true
}

// UpdateClock applies fn to the session clock.
func (s *Store) UpdateClock(fn func(c *Clock)) {
	fn(&s.clock)
	s.dirty = true
}

// SetActor overwrites the secondary actor.
func (s *Store) SetActor(a Actor) {
	a.Visible = true
	s.actor = a
	s.dirty = true
}

// SetRoster replaces the player roster.
func (s *Store) SetRoster(entries []RosterEntry) {
	s.roster = append([]RosterEntry(nil), entries...)
	s.dirty = true
}

// Pending returns the creature and item counts of the frame being built.
// Writer goroutine only.
func (s *Store) Pending() (creatures, items int) {
	return len(s.creatures), len(s.items)
}

// Reset returns the world to its initial state and publishes it, e.g. after
// reconnecting to a different session.
func (s *Store) Reset() {
	s.resetSession()
	s.dirty = true
	s.Commit()
}

// Commit publishes the working state if it changed since the last commit.
// Returns true when a new snapshot was published.
func (s *Store) Commit() bool {
	if !s.dirty {
		return false
	}
	s.published.Store(s.copyState())
	s.dirty = false
	atomic.AddUint64(&s.commits, 1)
	return true
}

// copyState deep-copies the working state into a fresh Snapshot.
func (s *Store) copyState() *Snapshot {
	snap := &Snapshot{
		Frame:     s.frame,
		UpdatedAt: time.Now(),
		Players:   make([]Player, 0, len(s.players)),
		Creatures: make([]Creature, len(s.creatures)),
		Items:     make([]Item, len(s.items)),
		Actor:     s.actor,
		Level:     s.level,
		Clock:     s.clock,
		Roster:    append([]RosterEntry(nil), s.roster...),
	}
	for i, p := range s.players {
		if s.seen[i] {
			snap.Players = append(snap.Players, p)
		}
	}
	copy(snap.Creatures, s.creatures)
	copy(snap.Items, s.items)
	return snap
}

// Snapshot returns the latest published world (lock-free). Never nil.
func (s *Store) Snapshot() *Snapshot {
	return s.published.Load().(*Snapshot)
}

// GetStats returns store statistics.
func (s *Store) GetStats() (commits, droppedCreatures, droppedItems, droppedPlayers uint64) {
	return atomic.LoadUint64(&s.commits),
		atomic.LoadUint64(&s.droppedCreatures),
		atomic.LoadUint64(&s.droppedItems),
		atomic.LoadUint64(&s.droppedPlayers)
}
