package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dkjr-client/internal/world"
)

// HUDLine formats a snapshot as a single line of text for the terminal.
func HUDLine(snap *world.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "#%d L%d", snap.Frame, snap.Level.Index)
	if snap.Level.SpeedScale != 1 {
		fmt.Fprintf(&b, " x%.2f", snap.Level.SpeedScale)
	}
	if snap.Clock.TimeMs > 0 {
		t := time.Duration(snap.Clock.TimeMs) * time.Millisecond
		fmt.Fprintf(&b, " t=%s", t.Truncate(100*time.Millisecond))
	}

	if len(snap.Players) == 0 {
		b.WriteString(" | waiting for players")
	}
	for _, p := range snap.Players {
		fmt.Fprintf(&b, " | P%d (%.0f,%.0f) lives=%d score=%s", p.ID, p.X, p.Y, p.Lives, humanize.Comma(int64(p.Score)))
		for _, f := range playerFlags(p) {
			b.WriteString(" ")
			b.WriteString(f)
		}
	}

	fmt.Fprintf(&b, " | crocs %d/%d fruits %d", snap.LiveCreatures(), snap.CreatureCount(), activeItems(snap))
	if snap.Actor.Visible {
		fmt.Fprintf(&b, " | mario (%.0f,%.0f)", snap.Actor.X, snap.Actor.Y)
	}
	return b.String()
}

func playerFlags(p world.Player) []string {
	var flags []string
	if p.OnRope {
		flags = append(flags, "[rope]")
	}
	if p.Jumping {
		flags = append(flags, "[jump]")
	}
	if p.Won {
		flags = append(flags, "[WON]")
	}
	if p.GainedLife {
		flags = append(flags, "[+1UP]")
	}
	return flags
}

func activeItems(snap *world.Snapshot) int {
	n := 0
	for _, it := range snap.Items {
		if it.Active {
			n++
		}
	}
	return n
}
