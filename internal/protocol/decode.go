package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyLine is returned for blank lines.
	ErrEmptyLine = errors.New("empty line")
	// ErrUnknownKind is returned for lines with an unrecognized keyword.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrMalformed is returned when a known message lacks an id or mandatory field.
	ErrMalformed = errors.New("malformed message")
)

// Message is one decoded inbound line.
type Message interface {
	Kind() Kind
}

// PlayerFields records which player fields were present and parsed.
type PlayerFields uint16

const (
	FieldX PlayerFields = 1 << iota
	FieldY
	FieldVX
	FieldVY
	FieldLives
	FieldScore
	FieldJumping
	FieldOnRope
	FieldWon
	FieldGainedLife
)

const playerCore = FieldX | FieldY | FieldLives | FieldScore

// PlayerMsg is a full snapshot of one player and marks a frame start.
// Only fields flagged in Fields carry data; the rest keep their previous value.
type PlayerMsg struct {
	ID         int
	X, Y       float64
	VX, VY     float64
	Lives      int
	Score      int
	Jumping    bool
	OnRope     bool
	Won        bool
	GainedLife bool
	Fields     PlayerFields
}

func (PlayerMsg) Kind() Kind { return KindPlayer }

// Has reports whether every field in f was decoded.
func (m PlayerMsg) Has(f PlayerFields) bool {
	return m.Fields&f == f
}

// CreatureMsg is one live enemy of the current frame.
type CreatureMsg struct {
	ID      int
	Type    string // "RED" or "BLUE"
	Lane    int
	HasLane bool
	X, Y    float64
	Alive   bool
}

func (CreatureMsg) Kind() Kind { return KindCreature }

// ItemMsg is one collectible of the current frame.
type ItemMsg struct {
	ID       int
	Category string
	Lane     int
	HasLane  bool
	X, Y     float64
	Points   int
	Active   bool
}

func (ItemMsg) Kind() Kind { return KindItem }

// LevelMsg updates level metadata.
type LevelMsg struct {
	Index         int
	Ladders       int
	HasLadders    bool
	SpeedScale    float64
	HasSpeedScale bool
}

func (LevelMsg) Kind() Kind { return KindLevel }

// StateMsg updates the session clock.
type StateMsg struct {
	TimeMs   int64
	HasTime  bool
	Speed    float64
	HasSpeed bool
}

func (StateMsg) Kind() Kind { return KindState }

// ActorMsg positions the secondary actor that chases the player.
type ActorMsg struct {
	ID          int
	X, Y        float64
	FacingRight bool
}

func (ActorMsg) Kind() Kind { return KindActor }

// DecorMsg is a decorative line that carries no state.
type DecorMsg struct{}

func (DecorMsg) Kind() Kind { return KindDecor }

// Decode classifies line and extracts its fields. It never panics; lines it
// cannot use come back as an error wrapping ErrEmptyLine, ErrUnknownKind or
// ErrMalformed.
func Decode(line string) (Message, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrEmptyLine
	}

	kind := Classify(line)
	if kind == KindRoster {
		return decodeRoster(line)
	}

	tokens := strings.Fields(line)
	switch kind {
	case KindPlayer:
		return decodePlayer(tokens)
	case KindCreature:
		return decodeCreature(tokens)
	case KindItem:
		return decodeItem(tokens)
	case KindLevel:
		return decodeLevel(tokens)
	case KindState:
		return decodeState(tokens)
	case KindActor:
		return decodeActor(tokens)
	case KindDecor:
		return DecorMsg{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, tokens[0])
}

func malformed(kind Kind, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, kind, reason)
}

// decodeID parses the mandatory integer id following the keyword.
func decodeID(kind Kind, tokens []string) (int, error) {
	if len(tokens) < 2 {
		return 0, malformed(kind, "missing id")
	}
	id, ok := parseInt(tokens[1])
	if !ok {
		return 0, malformed(kind, "bad id "+tokens[1])
	}
	return id, nil
}

// PLAYER <id> x= y= [vx= vy=] lives= score= [jumping=] [onrope=] [won=] [gained_life=]
// PLAYER <id> <x> <y> <lives> <score>
func decodePlayer(tokens []string) (Message, error) {
	id, err := decodeID(KindPlayer, tokens)
	if err != nil {
		return nil, err
	}
	fs := splitFields(tokens[2:])
	m := PlayerMsg{ID: id}

	var raw [4]string
	if fs.keyed() {
		// Extended grammar first; the optional keys are simply absent on old servers
		for i, key := range []string{"x", "y", "lives", "score"} {
			v, ok := fs.lookup(key)
			if !ok {
				return nil, malformed(KindPlayer, "missing "+key)
			}
			raw[i] = v
		}
		if v, ok := fs.lookup("vx"); ok {
			m.setFloat(&m.VX, FieldVX, v)
		}
		if v, ok := fs.lookup("vy"); ok {
			m.setFloat(&m.VY, FieldVY, v)
		}
		if v, ok := fs.lookup("jumping"); ok {
			m.setBool(&m.Jumping, FieldJumping, v)
		}
		if v, ok := fs.lookup("onrope", "onliana", "on_rope"); ok {
			m.setBool(&m.OnRope, FieldOnRope, v)
		}
		if v, ok := fs.lookup("won", "haswon"); ok {
			m.setBool(&m.Won, FieldWon, v)
		}
		if v, ok := fs.lookup("gained_life", "gainedlife"); ok {
			m.setBool(&m.GainedLife, FieldGainedLife, v)
		}
	} else {
		if len(fs.pos) < 4 {
			return nil, malformed(KindPlayer, "expected x y lives score")
		}
		copy(raw[:], fs.pos[:4])
	}

	m.setFloat(&m.X, FieldX, raw[0])
	m.setFloat(&m.Y, FieldY, raw[1])
	m.setInt(&m.Lives, FieldLives, raw[2])
	m.setInt(&m.Score, FieldScore, raw[3])

	if m.Fields&playerCore == 0 {
		return nil, malformed(KindPlayer, "no usable core field")
	}
	return m, nil
}

func (m *PlayerMsg) setFloat(dst *float64, f PlayerFields, s string) {
	if v, ok := parseFloat(s); ok {
		*dst = v
		m.Fields |= f
	}
}

func (m *PlayerMsg) setInt(dst *int, f PlayerFields, s string) {
	if v, ok := parseInt(s); ok {
		*dst = v
		m.Fields |= f
	}
}

func (m *PlayerMsg) setBool(dst *bool, f PlayerFields, s string) {
	if v, ok := parseBool(s); ok {
		*dst = v
		m.Fields |= f
	}
}

// normalizeCreatureType maps wire spellings, legacy Spanish ones included.
func normalizeCreatureType(s string) (string, bool) {
	switch strings.ToUpper(s) {
	case "RED", "ROJO":
		return "RED", true
	case "BLUE", "AZUL":
		return "BLUE", true
	}
	return "", false
}

// positionFields extracts x and y, which every entity line must carry.
func positionFields(kind Kind, fs fieldSet, posX, posY int) (float64, float64, error) {
	var sx, sy string
	var okx, oky bool
	if fs.keyed() {
		sx, okx = fs.lookup("x")
		sy, oky = fs.lookup("y")
	} else {
		sx, okx = fs.positional(posX)
		sy, oky = fs.positional(posY)
	}
	if !okx || !oky {
		return 0, 0, malformed(kind, "missing position")
	}
	x, okx := parseFloat(sx)
	y, oky := parseFloat(sy)
	if !okx || !oky {
		return 0, 0, malformed(kind, "bad position")
	}
	return x, y, nil
}

// laneField reads the optional lane assignment.
func laneField(fs fieldSet) (int, bool) {
	if v, ok := fs.lookup("lane", "liana", "rope"); ok {
		return parseInt(v)
	}
	return 0, false
}

// CREATURE <id> type=<RED|BLUE> [lane=] x= y= alive=
// CREATURE <id> <type> <x> <y> <alive>
func decodeCreature(tokens []string) (Message, error) {
	id, err := decodeID(KindCreature, tokens)
	if err != nil {
		return nil, err
	}
	fs := splitFields(tokens[2:])
	m := CreatureMsg{ID: id, Alive: true}

	var rawType, rawAlive string
	var hasAlive bool
	if fs.keyed() {
		rawType, _ = fs.lookup("type")
		rawAlive, hasAlive = fs.lookup("alive")
		m.Lane, m.HasLane = laneField(fs)
	} else {
		rawType, _ = fs.positional(0)
		rawAlive, hasAlive = fs.positional(3)
	}

	t, ok := normalizeCreatureType(rawType)
	if !ok {
		return nil, malformed(KindCreature, "bad type "+rawType)
	}
	m.Type = t

	if m.X, m.Y, err = positionFields(KindCreature, fs, 1, 2); err != nil {
		return nil, err
	}
	if hasAlive {
		if b, ok := parseBool(rawAlive); ok {
			m.Alive = b
		}
	}
	return m, nil
}

// ITEM <id> type=<name> [lane=] x= y= points= active=
// ITEM <id> <type> <x> <y> <points> <active>
func decodeItem(tokens []string) (Message, error) {
	id, err := decodeID(KindItem, tokens)
	if err != nil {
		return nil, err
	}
	fs := splitFields(tokens[2:])
	m := ItemMsg{ID: id, Active: true}

	var rawPoints, rawActive string
	var hasPoints, hasActive bool
	if fs.keyed() {
		m.Category, _ = fs.lookup("type", "category")
		rawPoints, hasPoints = fs.lookup("points")
		rawActive, hasActive = fs.lookup("active")
		m.Lane, m.HasLane = laneField(fs)
	} else {
		m.Category, _ = fs.positional(0)
		rawPoints, hasPoints = fs.positional(3)
		rawActive, hasActive = fs.positional(4)
	}
	m.Category = strings.ToUpper(m.Category)

	if m.X, m.Y, err = positionFields(KindItem, fs, 1, 2); err != nil {
		return nil, err
	}
	if hasPoints {
		if p, ok := parseInt(rawPoints); ok {
			m.Points = p
		}
	}
	if hasActive {
		if b, ok := parseBool(rawActive); ok {
			m.Active = b
		}
	}
	return m, nil
}

// LEVEL <idx> LADDERS=<i> VEL_SCALE=<f>
// LEVEL <idx> <ladders> <scale>
func decodeLevel(tokens []string) (Message, error) {
	idx, err := decodeID(KindLevel, tokens)
	if err != nil {
		return nil, err
	}
	fs := splitFields(tokens[2:])
	m := LevelMsg{Index: idx}

	var rawLadders, rawScale string
	var okLadders, okScale bool
	if fs.keyed() {
		rawLadders, okLadders = fs.lookup("ladders", "ropes", "lianas")
		rawScale, okScale = fs.lookup("vel_scale", "speed")
	} else {
		rawLadders, okLadders = fs.positional(0)
		rawScale, okScale = fs.positional(1)
	}
	if okLadders {
		m.Ladders, m.HasLadders = parseInt(rawLadders)
	}
	if okScale {
		m.SpeedScale, m.HasSpeedScale = parseFloat(rawScale)
	}
	return m, nil
}

// STATE TIME=<i> SPEED=<f>
// STATE <time> <speed>
func decodeState(tokens []string) (Message, error) {
	fs := splitFields(tokens[1:])
	m := StateMsg{}

	var rawTime, rawSpeed string
	var okTime, okSpeed bool
	if fs.keyed() {
		rawTime, okTime = fs.lookup("time")
		rawSpeed, okSpeed = fs.lookup("speed")
	} else {
		rawTime, okTime = fs.positional(0)
		rawSpeed, okSpeed = fs.positional(1)
	}
	if okTime {
		if t, ok := parseInt(rawTime); ok && t >= 0 {
			m.TimeMs, m.HasTime = int64(t), true
		}
	}
	if okSpeed {
		m.Speed, m.HasSpeed = parseFloat(rawSpeed)
	}
	if !m.HasTime && !m.HasSpeed {
		return nil, malformed(KindState, "no usable field")
	}
	return m, nil
}

// MARIO <id> x= y= dir=<R|L>
// MARIO <id> <x> <y> <R|L>
func decodeActor(tokens []string) (Message, error) {
	id, err := decodeID(KindActor, tokens)
	if err != nil {
		return nil, err
	}
	fs := splitFields(tokens[2:])
	m := ActorMsg{ID: id, FacingRight: true}

	if m.X, m.Y, err = positionFields(KindActor, fs, 0, 1); err != nil {
		return nil, err
	}

	var dir string
	var ok bool
	if fs.keyed() {
		dir, ok = fs.lookup("dir", "direction")
	} else {
		dir, ok = fs.positional(2)
	}
	if ok {
		switch strings.ToUpper(dir) {
		case "L", "LEFT":
			m.FacingRight = false
		case "R", "RIGHT":
			m.FacingRight = true
		}
	}
	return m, nil
}
