// =============================================================================
// DKJR CLIENT
// =============================================================================
// Connects to a game server, mirrors the world it streams and prints a HUD
// line as frames arrive. Typed lines on stdin become commands for the
// session's mode. A status API and a localhost debug server run alongside.
//
// USAGE:
//   go run ./cmd/client -mode spectator -spectate 0
//   go run ./cmd/client -mode player -name ana -record session.rec
//   go run ./cmd/client -replay session.rec -png last.png
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dkjr-client/internal/api"
	"dkjr-client/internal/client"
	"dkjr-client/internal/config"
	"dkjr-client/internal/render"
	"dkjr-client/internal/world"
)

const (
	statsInterval = 30 * time.Second
	hudInterval   = 500 * time.Millisecond
)

func main() {
	if err := godotenv.Load("../.env"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	appConfig := config.Load()

	modeFlag := flag.String("mode", "spectator", "session mode: player, spectator or admin")
	name := flag.String("name", os.Getenv("PLAYER_NAME"), "player name for -mode player")
	spectate := flag.Int("spectate", 0, "player id to observe for -mode spectator")
	recordPath := flag.String("record", "", "write the received byte stream to this file")
	replayPath := flag.String("replay", "", "replay a recording instead of connecting")
	replaySpeed := flag.Float64("speed", 0, "replay speed, 1 is real time, 0 is as fast as possible")
	pngPath := flag.String("png", "", "write the final world to this PNG file on exit")
	noConsole := flag.Bool("no-stdin", false, "do not read commands from stdin")
	flag.Parse()

	log.Println("🐒 ================================")
	log.Println("🐒  DKJR CLIENT")
	log.Println("🐒 ================================")

	if *replayPath != "" {
		if err := runReplay(appConfig, *replayPath, *replaySpeed, *pngPath); err != nil {
			log.Fatalf("❌ Replay failed: %v", err)
		}
		return
	}

	mode, err := client.ParseMode(*modeFlag)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	opts := client.Options{Mode: mode, Name: *name, SpectateID: *spectate}
	var recordFile *os.File
	if *recordPath != "" {
		recordFile, err = os.Create(*recordPath)
		if err != nil {
			log.Fatalf("❌ Cannot create recording: %v", err)
		}
		defer recordFile.Close()
		opts.Record = recordFile
		log.Printf("📼 Recording to %s", *recordPath)
	}

	log.Printf("🎮 Config: server %s, mode %s, framer %d bytes, %d FPS",
		appConfig.Net.Addr(), mode, appConfig.Limits.FramerCapacity, appConfig.Render.FPS)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session, err := client.New(appConfig, opts)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	session.OnRoster(func(entries []world.RosterEntry) {
		log.Printf("👥 Players: %s", formatRoster(entries))
	})
	if err := session.Start(ctx); err != nil {
		log.Fatalf("❌ %v", err)
	}

	// Headless consumer standing in for the game's draw loop
	loop := render.NewLoop(session, appConfig.Render.FPS, hudSink())
	loop.Start()

	var server *api.Server
	debugServer := api.StartDebugServer(api.ObservabilityConfig{
		Enabled:    appConfig.API.Enabled && os.Getenv("DISABLE_DEBUG_SERVER") != "true",
		ListenAddr: appConfig.API.DebugAddr,
	})
	if appConfig.API.Enabled {
		if err := api.RegisterSession(session); err != nil {
			log.Printf("⚠️ Metrics registration failed: %v", err)
		}
		server = api.NewServer(session, appConfig.API, appConfig.Render)
		if err := server.Start(); err != nil {
			log.Printf("⚠️ API server disabled: %v", err)
			server = nil
		}
	}

	go session.LogStats(ctx, statsInterval)
	if !*noConsole {
		go readConsole(os.Stdin, mode, session.Send)
	}

	log.Println("✅ Client ready! Press Ctrl+C to stop.")
	select {
	case <-ctx.Done():
		log.Println("🛑 Shutting down...")
	case <-session.Done():
		log.Println("🔌 Connection ended")
	}

	loop.Stop()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if server != nil {
		server.Stop(shutdownCtx)
	}
	api.ShutdownDebugServer(shutdownCtx, debugServer)
	session.Close()

	if *pngPath != "" {
		if err := writePNG(*pngPath, session.Snapshot(), appConfig.Render); err != nil {
			log.Printf("⚠️ %v", err)
		}
	}

	log.Printf("📊 %s", session.Stats().Summary())
	if err := session.Err(); err != nil {
		log.Printf("❌ Session ended: %v", err)
		if recordFile != nil {
			recordFile.Close()
		}
		os.Exit(1)
	}
	log.Println("👋 Goodbye!")
}

// hudSink prints the HUD at most twice a second.
func hudSink() render.Sink {
	var last time.Time
	return func(snap *world.Snapshot) {
		if time.Since(last) < hudInterval {
			return
		}
		last = time.Now()
		fmt.Println(render.HUDLine(snap))
	}
}

// runReplay feeds a recording into a fresh world and prints the result.
func runReplay(cfg config.AppConfig, path string, speed float64, pngPath string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	store := world.NewStore(world.Limits{
		MaxPlayers:   cfg.Limits.MaxPlayers,
		MaxCreatures: cfg.Limits.MaxCreatures,
		MaxItems:     cfg.Limits.MaxItems,
	})
	pipeline := client.NewPipeline(store, cfg.Limits.FramerCapacity)
	pipeline.SetDebug(cfg.Debug)

	loop := render.NewLoop(store, cfg.Render.FPS, hudSink())
	loop.Start()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("📼 Replaying %s", path)
	start := time.Now()
	n, err := client.Replay(ctx, f, pipeline, client.ReplayOptions{Speed: speed})
	loop.Stop()
	if err != nil {
		return err
	}

	st := pipeline.GetStats()
	log.Printf("✅ Replayed %d bytes, %d frames, %d lines in %s",
		n, st.Frames, st.TotalLines(), time.Since(start).Round(time.Millisecond))
	fmt.Println(render.HUDLine(store.Snapshot()))

	if pngPath != "" {
		return writePNG(pngPath, store.Snapshot(), cfg.Render)
	}
	return nil
}

func writePNG(path string, snap *world.Snapshot, cfg config.RenderConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("png: %w", err)
	}
	defer f.Close()

	if err := render.NewRasterizer(cfg.Width, cfg.Height).EncodePNG(f, snap); err != nil {
		return fmt.Errorf("png: %w", err)
	}
	log.Printf("🖼️ Wrote %s", path)
	return nil
}
