package client

import (
	"dkjr-client/internal/protocol"
	"dkjr-client/internal/world"
)

// applyMessage writes a decoded message into the working world.
// Returns false when the store dropped it for capacity or range reasons.
func applyMessage(store *world.Store, msg protocol.Message) bool {
	switch m := msg.(type) {
	case protocol.PlayerMsg:
		return store.UpdatePlayer(m.ID, func(p *world.Player) { copyPlayerFields(p, m) })

	case protocol.CreatureMsg:
		kind, _ := world.ParseCreatureKind(m.Type)
		return store.AppendCreature(world.Creature{
			ID:    m.ID,
			Kind:  kind,
			Lane:  m.Lane,
			X:     m.X,
			Y:     m.Y,
			Alive: m.Alive,
		})

	case protocol.ItemMsg:
		return store.AppendItem(world.Item{
			ID:       m.ID,
			Lane:     m.Lane,
			X:        m.X,
			Y:        m.Y,
			Points:   m.Points,
			Active:   m.Active,
			Category: m.Category,
		})

	case protocol.LevelMsg:
		store.UpdateLevel(func(l *world.LevelInfo) {
			l.Index = m.Index
			if m.HasLadders {
				l.Ladders = m.Ladders
			}
			if m.HasSpeedScale {
				l.SpeedScale = m.SpeedScale
			}
		})

	case protocol.StateMsg:
		store.UpdateClock(func(c *world.Clock) {
			if m.HasTime {
				c.TimeMs = m.TimeMs
			}
			if m.HasSpeed {
				c.Speed = m.Speed
			}
		})

	case protocol.ActorMsg:
		store.SetActor(world.Actor{
			ID:          m.ID,
			X:           m.X,
			Y:           m.Y,
			FacingRight: m.FacingRight,
		})

	case protocol.RosterMsg:
		store.SetRoster(toWorldRoster(m.Entries))
	}
	return true
}

// copyPlayerFields overwrites only the fields the decoder marked valid.
func copyPlayerFields(p *world.Player, m protocol.PlayerMsg) {
	if m.Has(protocol.FieldX) {
		p.X = m.X
	}
	if m.Has(protocol.FieldY) {
		p.Y = m.Y
	}
	if m.Has(protocol.FieldVX) {
		p.VX = m.VX
	}
	if m.Has(protocol.FieldVY) {
		p.VY = m.VY
	}
	if m.Has(protocol.FieldLives) {
		p.Lives = m.Lives
	}
	if m.Has(protocol.FieldScore) {
		p.Score = m.Score
	}
	if m.Has(protocol.FieldJumping) {
		p.Jumping = m.Jumping
	}
	if m.Has(protocol.FieldOnRope) {
		p.OnRope = m.OnRope
	}
	if m.Has(protocol.FieldWon) {
		p.Won = m.Won
	}
	if m.Has(protocol.FieldGainedLife) {
		p.GainedLife = m.GainedLife
	}
}

func toWorldRoster(entries []protocol.RosterEntry) []world.RosterEntry {
	out := make([]world.RosterEntry, len(entries))
	for i, e := range entries {
		out[i] = world.RosterEntry{ID: e.ID, Name: e.Name}
	}
	return out
}
