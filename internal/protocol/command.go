package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCommand is returned for commands that would break line framing.
var ErrInvalidCommand = errors.New("invalid command")

// Action is a player input understood by the server.
type Action string

const (
	ActionLeft  Action = "LEFT"
	ActionRight Action = "RIGHT"
	ActionUp    Action = "UP"
	ActionDown  Action = "DOWN"
	ActionJump  Action = "JUMP"
	ActionStop  Action = "STOP"
)

// Actions lists every valid input in wire order.
var Actions = []Action{ActionLeft, ActionRight, ActionUp, ActionDown, ActionJump, ActionStop}

// ParseAction accepts an action name in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, s)
}

// AdminPlayers asks the server for the roster.
const AdminPlayers = "ADMIN PLAYERS"

// ValidateCommand rejects empty text and embedded line breaks.
func ValidateCommand(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCommand)
	}
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("%w: contains line break", ErrInvalidCommand)
	}
	return nil
}

// JoinCommand registers the connection as a player.
func JoinCommand(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", fmt.Errorf("%w: bad player name %q", ErrInvalidCommand, name)
	}
	cmd := "JOIN player " + name
	return cmd, ValidateCommand(cmd)
}

// InputCommand formats one input event for player slot idx.
func InputCommand(idx int, a Action) (string, error) {
	if idx < 0 {
		return "", fmt.Errorf("%w: negative player index", ErrInvalidCommand)
	}
	if _, err := ParseAction(string(a)); err != nil {
		return "", err
	}
	return "INPUT " + strconv.Itoa(idx) + " " + string(a), nil
}

// AdminCommand formats an administrative mutation, e.g. AdminCommand("0", "CROC", "ROJO").
func AdminCommand(args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: admin command needs a subcommand", ErrInvalidCommand)
	}
	cmd := "ADMIN " + strings.Join(args, " ")
	return cmd, ValidateCommand(cmd)
}

// SpectateCommand asks to observe the given player.
func SpectateCommand(playerID int) string {
	return "SPECTATE " + strconv.Itoa(playerID)
}
