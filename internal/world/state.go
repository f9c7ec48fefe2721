// Package world holds the client-side mirror of server-pushed game facts.
//
// A Store has exactly one writer (the receiver goroutine) mutating a working
// State, and any number of readers loading immutable Snapshots that are
// published once per complete protocol frame.
package world

import "time"

// CreatureKind is the enemy variant.
type CreatureKind int

const (
	CreatureRed CreatureKind = iota
	CreatureBlue
)

func (k CreatureKind) String() string {
	if k == CreatureBlue {
		return "BLUE"
	}
	return "RED"
}

// ParseCreatureKind maps the wire type name.
func ParseCreatureKind(s string) (CreatureKind, bool) {
	switch s {
	case "RED":
		return CreatureRed, true
	case "BLUE":
		return CreatureBlue, true
	}
	return CreatureRed, false
}

// Player is one player's last known state.
type Player struct {
	ID         int     `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	Lives      int     `json:"lives"`
	Score      int     `json:"score"`
	Active     bool    `json:"active"`
	OnRope     bool    `json:"onRope"`
	Jumping    bool    `json:"jumping"`
	Won        bool    `json:"won"`
	GainedLife bool    `json:"gainedLife"`
}

// Creature is an enemy live in the current frame.
type Creature struct {
	ID    int          `json:"id"`
	Kind  CreatureKind `json:"kind"`
	Lane  int          `json:"lane"`
	X     float64      `json:"x"`
	Y     float64      `json:"y"`
	Alive bool         `json:"alive"`
}

// Item is a collectible live in the current frame.
type Item struct {
	ID       int     `json:"id"`
	Lane     int     `json:"lane"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Points   int     `json:"points"`
	Active   bool    `json:"active"`
	Category string  `json:"category"`
}

// Actor is the secondary character guarding the cage.
type Actor struct {
	ID          int     `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	FacingRight bool    `json:"facingRight"`
	Visible     bool    `json:"visible"`
}

// LevelInfo is coarse session metadata.
type LevelInfo struct {
	Index      int     `json:"index"`
	Ladders    int     `json:"ladders"`
	SpeedScale float64 `json:"speedScale"`
}

// Clock is the server's session clock.
type Clock struct {
	TimeMs int64   `json:"timeMs"`
	Speed  float64 `json:"speed"`
}

// RosterEntry is one connected player as listed by the server.
type RosterEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Limits caps every collection in the world.
type Limits struct {
	MaxPlayers   int
	MaxCreatures int
	MaxItems     int
}

// DefaultLimits matches the server's own maximums.
var DefaultLimits = Limits{
	MaxPlayers:   4,
	MaxCreatures: 32,
	MaxItems:     32,
}

// Snapshot is an immutable copy of the world for readers.
// Uses value slices that are never mutated after publication.
type Snapshot struct {
	Frame     uint64        `json:"frame"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Players   []Player      `json:"players"`
	Creatures []Creature    `json:"creatures"`
	Items     []Item        `json:"items"`
	Actor     Actor         `json:"actor"`
	Level     LevelInfo     `json:"level"`
	Clock     Clock         `json:"clock"`
	Roster    []RosterEntry `json:"roster"`
}

// CreatureCount is the number of valid creatures in this frame.
func (s *Snapshot) CreatureCount() int { return len(s.Creatures) }

// ItemCount is the number of valid items in this frame.
func (s *Snapshot) ItemCount() int { return len(s.Items) }

// Player returns the player with the given id, if it has been seen.
func (s *Snapshot) Player(id int) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// LiveCreatures counts creatures flagged alive.
func (s *Snapshot) LiveCreatures() int {
	n := 0
	for _, c := range s.Creatures {
		if c.Alive {
			n++
		}
	}
	return n
}
