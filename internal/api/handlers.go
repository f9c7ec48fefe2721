package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"dkjr-client/internal/client"
	"dkjr-client/internal/protocol"
	"dkjr-client/internal/world"
)

// maxCommandBody bounds POST /api/command payloads
const maxCommandBody = 4096

// Handler methods for routerHandlers

func (h *routerHandlers) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.session.Snapshot())
}

func (h *routerHandlers) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	roster := snap.Roster
	if roster == nil {
		roster = []world.RosterEntry{}
	}
	writeJSON(w, map[string]interface{}{
		"frame":  snap.Frame,
		"roster": roster,
	})
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	st := h.session.Stats()
	p := st.Pipeline

	lines := make(map[string]uint64, protocol.NumKinds)
	for k := 0; k < protocol.NumKinds; k++ {
		lines[protocol.Kind(k).String()] = p.Lines[k]
	}

	writeJSON(w, map[string]interface{}{
		"state":         st.State.String(),
		"mode":          string(st.Mode),
		"uptimeSeconds": st.Uptime.Seconds(),
		"summary":       st.Summary(),
		"pipeline": map[string]interface{}{
			"bytesReceived":  p.BytesReceived,
			"frames":         p.Frames,
			"lines":          lines,
			"parseErrors":    p.ParseErrors,
			"unknownLines":   p.UnknownLines,
			"overflowBytes":  p.OverflowBytes,
			"discardedLines": p.DiscardedLines,
		},
		"dropped": map[string]uint64{
			"players":   st.DroppedPlayers,
			"creatures": st.DroppedCreatures,
			"items":     st.DroppedItems,
		},
		"commands": map[string]uint64{
			"sent":    st.CommandsSent,
			"failed":  st.CommandsFailed,
			"limited": st.CommandsLimited,
		},
		"reconnects": st.Reconnects,
	})
}

func (h *routerHandlers) handleWorldPNG(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var buf bytes.Buffer
	if err := h.raster.EncodePNG(&buf, h.session.Snapshot()); err != nil {
		log.Printf("❌ PNG encode failed: %v", err)
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleCommand(w http.ResponseWriter, r *http.Request) {
	if h.session.Mode() != client.ModeAdmin {
		writeError(w, "commands require an admin session", http.StatusForbidden)
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBody)).Decode(&req); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	err := h.session.Send(req.Command)
	switch {
	case err == nil:
		log.Printf("📨 Command forwarded: %q", req.Command)
		writeJSON(w, map[string]bool{"success": true})
	case errors.Is(err, protocol.ErrInvalidCommand):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, client.ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		writeError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, client.ErrNotConnected):
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		log.Printf("❌ Command failed: %v", err)
		writeError(w, err.Error(), http.StatusBadGateway)
	}
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := h.session.Stats().State
	status := http.StatusOK
	if state == client.StateClosed {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"state": state.String()})
}

// Helper functions

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
