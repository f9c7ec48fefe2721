// =============================================================================
// DKJR SOAK
// =============================================================================
// Opens many spectator sessions against one server and reports what each
// received. Useful to check that the server keeps up with watchers and that
// the client pipeline holds steady over long runs.
//
// USAGE:
//   go run ./cmd/soak -n 50 -c 10 -d 2m
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/remeh/sizedwaitgroup"

	"dkjr-client/internal/client"
	"dkjr-client/internal/config"
)

// soakOptions controls one soak run.
type soakOptions struct {
	Sessions    int
	Concurrency int
	Duration    time.Duration
	Stagger     time.Duration
}

// result is what one session saw.
type result struct {
	ID          int
	Err         error
	Bytes       uint64
	Frames      uint64
	Lines       uint64
	ParseErrors uint64
	Dropped     uint64
	Elapsed     time.Duration
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	var opts soakOptions
	flag.IntVar(&opts.Sessions, "n", 10, "number of spectator sessions")
	flag.IntVar(&opts.Concurrency, "c", 10, "sessions connected at once")
	flag.DurationVar(&opts.Duration, "d", 30*time.Second, "how long each session stays connected")
	flag.DurationVar(&opts.Stagger, "stagger", 50*time.Millisecond, "delay between session starts")
	flag.Parse()

	cfg := config.Load()
	cfg.API.Enabled = false

	log.Printf("🧪 Soaking %s with %d sessions (%d at once) for %s",
		cfg.Net.Addr(), opts.Sessions, opts.Concurrency, opts.Duration)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	results := runSoak(ctx, cfg, opts)
	failed := report(results)
	if failed > 0 {
		os.Exit(1)
	}
}

// runSoak runs opts.Sessions spectators, at most opts.Concurrency at a time.
func runSoak(ctx context.Context, cfg config.AppConfig, opts soakOptions) []result {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	results := make([]result, opts.Sessions)
	swg := sizedwaitgroup.New(opts.Concurrency)

	for i := 0; i < opts.Sessions; i++ {
		if err := swg.AddWithContext(ctx); err != nil {
			results[i] = result{ID: i, Err: err}
			continue
		}
		go func(i int) {
			defer swg.Done()
			results[i] = runOne(ctx, cfg, i, opts.Duration)
		}(i)

		if opts.Stagger > 0 && i < opts.Sessions-1 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.Stagger):
			}
		}
	}
	swg.Wait()
	return results
}

// runOne keeps a spectator connected for d or until the server drops it.
func runOne(ctx context.Context, cfg config.AppConfig, id int, d time.Duration) result {
	res := result{ID: id}
	start := time.Now()

	session, err := client.Dial(ctx, cfg, client.Options{
		Mode:       client.ModeSpectator,
		SpectateID: id % cfg.Limits.MaxPlayers,
	})
	if err != nil {
		res.Err = err
		return res
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-session.Done():
		res.Err = session.Err()
	}
	session.Close()

	st := session.Stats()
	res.Bytes = st.Pipeline.BytesReceived
	res.Frames = st.Pipeline.Frames
	res.Lines = st.Pipeline.TotalLines()
	res.ParseErrors = st.Pipeline.ParseErrors
	res.Dropped = st.DroppedPlayers + st.DroppedCreatures + st.DroppedItems
	res.Elapsed = time.Since(start)
	return res
}

// report logs one line per session plus totals and returns the failure count.
func report(results []result) int {
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })

	var failed int
	var bytes, frames uint64
	for _, r := range results {
		if r.Err != nil {
			failed++
			log.Printf("❌ #%d %v", r.ID, r.Err)
			continue
		}
		bytes += r.Bytes
		frames += r.Frames
		log.Printf("✅ #%d %s, %s frames (%s/s), %s lines, %d parse errors, %d dropped",
			r.ID, humanize.Bytes(r.Bytes), humanize.Comma(int64(r.Frames)),
			rate(r.Frames, r.Elapsed), humanize.Comma(int64(r.Lines)), r.ParseErrors, r.Dropped)
	}

	log.Printf("📊 %d/%d sessions ok, %s received, %s frames",
		len(results)-failed, len(results), humanize.Bytes(bytes), humanize.Comma(int64(frames)))
	return failed
}

func rate(n uint64, d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return fmt.Sprintf("%.1f", float64(n)/d.Seconds())
}
