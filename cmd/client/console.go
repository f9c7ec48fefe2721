package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"dkjr-client/internal/client"
	"dkjr-client/internal/protocol"
	"dkjr-client/internal/world"
)

// errSkip marks console lines that produce no command.
var errSkip = errors.New("nothing to send")

// consoleCommand turns one line typed on stdin into a wire command.
//
//	player:    "[idx] ACTION"  -> INPUT idx ACTION (idx defaults to 0)
//	spectator: "ID"            -> SPECTATE ID
//	admin:     "ARGS..."       -> ADMIN ARGS...
//	not player: "players"      -> ADMIN PLAYERS
//	any mode:  "/raw TEXT"     -> TEXT unchanged
func consoleCommand(mode client.Mode, line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errSkip
	}
	if rest, ok := strings.CutPrefix(line, "/raw "); ok {
		return rest, protocol.ValidateCommand(rest)
	}

	if strings.EqualFold(line, "players") && mode != client.ModePlayer {
		return protocol.AdminPlayers, nil
	}

	fields := strings.Fields(line)
	switch mode {
	case client.ModePlayer:
		idx := 0
		if len(fields) == 2 {
			n, err := strconv.Atoi(fields[0])
			if err != nil {
				return "", fmt.Errorf("%w: bad player index %q", protocol.ErrInvalidCommand, fields[0])
			}
			idx, fields = n, fields[1:]
		}
		if len(fields) != 1 {
			return "", fmt.Errorf("%w: expected [idx] ACTION", protocol.ErrInvalidCommand)
		}
		a, err := protocol.ParseAction(fields[0])
		if err != nil {
			return "", err
		}
		return protocol.InputCommand(idx, a)

	case client.ModeSpectator:
		id, err := strconv.Atoi(line)
		if err != nil || id < 0 {
			return "", fmt.Errorf("%w: expected a player id", protocol.ErrInvalidCommand)
		}
		return protocol.SpectateCommand(id), nil

	case client.ModeAdmin:
		return protocol.AdminCommand(fields...)
	}
	return "", fmt.Errorf("%w: %q", client.ErrUnknownMode, mode)
}

// formatRoster renders a roster as "0 DKJr, 1 Mario".
func formatRoster(entries []world.RosterEntry) string {
	if len(entries) == 0 {
		return "none"
	}
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = fmt.Sprintf("%d %s", e.ID, e.Name)
	}
	return strings.Join(parts, ", ")
}

// readConsole sends one command per stdin line until r is exhausted.
func readConsole(r io.Reader, mode client.Mode, send func(string) error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd, err := consoleCommand(mode, scanner.Text())
		if errors.Is(err, errSkip) {
			continue
		}
		if err != nil {
			log.Printf("⚠️ %v", err)
			continue
		}
		if err := send(cmd); err != nil {
			log.Printf("⚠️ Send failed: %v", err)
		}
	}
}
