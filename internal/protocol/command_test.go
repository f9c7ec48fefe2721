package protocol

import (
	"errors"
	"testing"
)

// TestCommandFormats verifies the exact wire text of every outbound command
func TestCommandFormats(t *testing.T) {
	join, err := JoinCommand("DKJr")
	if err != nil || join != "JOIN player DKJr" {
		t.Errorf("JoinCommand = %q, %v", join, err)
	}

	input, err := InputCommand(0, ActionLeft)
	if err != nil || input != "INPUT 0 LEFT" {
		t.Errorf("InputCommand = %q, %v", input, err)
	}

	admin, err := AdminCommand("1", "CROC", "ROJO")
	if err != nil || admin != "ADMIN 1 CROC ROJO" {
		t.Errorf("AdminCommand = %q, %v", admin, err)
	}

	if got := SpectateCommand(2); got != "SPECTATE 2" {
		t.Errorf("SpectateCommand = %q", got)
	}
}

// TestParseAction accepts any case and rejects unknown inputs
func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(" " + string(a) + " ")
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %q, %v", a, got, err)
		}
	}
	if got, err := ParseAction("jump"); err != nil || got != ActionJump {
		t.Errorf("Expected lowercase jump accepted, got %q, %v", got, err)
	}
	if _, err := ParseAction("FLY"); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Expected ErrInvalidCommand, got %v", err)
	}
}

// TestCommandValidation rejects text that would break framing
func TestCommandValidation(t *testing.T) {
	bad := []string{"", "   ", "INPUT 0 LEFT\nINPUT 0 RIGHT", "ADMIN\r"}
	for _, text := range bad {
		if err := ValidateCommand(text); !errors.Is(err, ErrInvalidCommand) {
			t.Errorf("ValidateCommand(%q) = %v, expected ErrInvalidCommand", text, err)
		}
	}

	if _, err := JoinCommand("two words"); err == nil {
		t.Error("Expected names with spaces to be rejected")
	}
	if _, err := InputCommand(-1, ActionUp); err == nil {
		t.Error("Expected negative index to be rejected")
	}
	if _, err := AdminCommand(); err == nil {
		t.Error("Expected empty admin command to be rejected")
	}
}
