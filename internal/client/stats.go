package client

import (
	"context"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"dkjr-client/internal/protocol"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// Stats is a point-in-time view of a session.
type Stats struct {
	State       State
	Mode        Mode
	Uptime      time.Duration
	ConnectedAt time.Time

	Pipeline PipelineStats

	StoreCommits     uint64
	DroppedCreatures uint64
	DroppedItems     uint64
	DroppedPlayers   uint64

	CommandsSent    uint64
	CommandsFailed  uint64
	CommandsLimited uint64

	Reconnects int64
	ReadErrors int64

	RecordedBytes uint64
}

// Stats collects counters from every part of the session.
func (s *Session) Stats() Stats {
	st := Stats{
		State:       s.receiver.State(),
		Mode:        s.opts.Mode,
		ConnectedAt: s.receiver.ConnectedAt(),
		Pipeline:    s.pipeline.GetStats(),
	}
	if !s.startedAt.IsZero() {
		st.Uptime = time.Since(s.startedAt)
	}
	st.StoreCommits, st.DroppedCreatures, st.DroppedItems, st.DroppedPlayers = s.store.GetStats()
	st.CommandsSent, st.CommandsFailed, st.CommandsLimited = s.sender.GetStats()
	st.Reconnects, st.ReadErrors = s.receiver.GetStats()
	if s.recorder != nil {
		_, st.RecordedBytes = s.recorder.GetStats()
	}
	return st
}

// Summary formats the stats as one log line.
func (st Stats) Summary() string {
	p := st.Pipeline
	return "state=" + st.State.String() +
		" up=" + durafmt.Parse(st.Uptime.Round(time.Second)).LimitFirstN(2).Format(shortUnits) +
		" recv=" + humanize.Bytes(p.BytesReceived) +
		" frames=" + humanize.Comma(int64(p.Frames)) +
		" lines=" + humanize.Comma(int64(p.TotalLines())) +
		" players=" + humanize.Comma(int64(p.Lines[protocol.KindPlayer])) +
		" parseErrors=" + humanize.Comma(int64(p.ParseErrors)) +
		" unknown=" + humanize.Comma(int64(p.UnknownLines)) +
		" overflow=" + humanize.Bytes(p.OverflowBytes) +
		" dropped=" + humanize.Comma(int64(st.DroppedCreatures+st.DroppedItems+st.DroppedPlayers)) +
		" sent=" + humanize.Comma(int64(st.CommandsSent))
}

// LogStats logs a stats line every interval until ctx is done or the session ends.
func (s *Session) LogStats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			return
		case <-ticker.C:
			log.Printf("📊 %s", s.Stats().Summary())
		}
	}
}
