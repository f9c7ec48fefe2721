// Package protocol implements the newline-delimited text protocol spoken by
// the game server: framing of the byte stream, classification and decoding
// of inbound lines, and formatting of outbound commands.
package protocol

import "strings"

// Kind identifies an inbound message by its leading keyword.
type Kind int

const (
	KindUnknown Kind = iota
	KindPlayer
	KindCreature
	KindItem
	KindLevel
	KindState
	KindActor
	KindDecor
	KindRoster

	// NumKinds is the number of Kind values, for per-kind counters.
	NumKinds = int(KindRoster) + 1
)

var kindNames = [...]string{
	KindUnknown:  "unknown",
	KindPlayer:   "player",
	KindCreature: "creature",
	KindItem:     "item",
	KindLevel:    "level",
	KindState:    "state",
	KindActor:    "actor",
	KindDecor:    "decor",
	KindRoster:   "roster",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// keywords maps every accepted leading token, legacy spellings included.
// Matching is case-sensitive.
var keywords = map[string]Kind{
	"PLAYER":   KindPlayer,
	"CREATURE": KindCreature,
	"CROC":     KindCreature,
	"ITEM":     KindItem,
	"FRUIT":    KindItem,
	"LEVEL":    KindLevel,
	"STATE":    KindState,
	"MARIO":    KindActor,
	"ACTOR":    KindActor,
	"CAGE":     KindDecor,
}

// Classify returns the kind of line without decoding its fields.
func Classify(line string) Kind {
	line = strings.TrimLeft(line, " \t")
	if line == "" {
		return KindUnknown
	}
	if line[0] == '[' || line[0] == '{' {
		return KindRoster
	}
	kw := line
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		kw = line[:i]
	}
	if k, ok := keywords[kw]; ok {
		return k
	}
	return KindUnknown
}

// IsFrameStart reports whether line opens a new protocol frame.
func IsFrameStart(line string) bool {
	return Classify(line) == KindPlayer
}
