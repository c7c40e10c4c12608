package types

import (
	"math"
	"testing"
	"time"
)

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{
		"forward":  DirectionForward,
		"UP":       DirectionForward,
		"backward": DirectionBackward,
		"down":     DirectionBackward,
		" left ":   DirectionLeft,
		"right":    DirectionRight,
		"special":  DirectionSpecial,
	}
	for in, want := range cases {
		got, err := ParseDirection(in)
		if err != nil {
			t.Errorf("ParseDirection(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDirection(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseDirection("sideways"); err == nil {
		t.Error("Expected error for unknown direction")
	}
}

func TestParseButton(t *testing.T) {
	if ParseButton("konami") != ButtonSpecial {
		t.Error("Expected konami to map to the special button")
	}
	if ParseButton("a") != ButtonUnknown {
		t.Error("Expected unknown button")
	}
}

func TestParseMoveCommand(t *testing.T) {
	cmd, err := ParseMoveCommand("left", 250*time.Millisecond)
	if err != nil {
		t.Fatalf("ParseMoveCommand failed: %v", err)
	}
	if cmd != (MoveCommand{Direction: DirectionLeft, Duration: 250 * time.Millisecond}) {
		t.Errorf("Unexpected command: %+v", cmd)
	}

	cmd, err = ParseMoveCommand("Stop", 0)
	if err != nil || !cmd.Stop {
		t.Errorf("Expected stop command, got %+v, err=%v", cmd, err)
	}

	if _, err := ParseMoveCommand("forward", -time.Second); err == nil {
		t.Error("Expected error for negative duration")
	}
	if _, err := ParseMoveCommand("jump", 0); err == nil {
		t.Error("Expected error for unknown direction")
	}
}

func TestMoveDuration(t *testing.T) {
	d, err := MoveDuration(1500)
	if err != nil || d != 1500*time.Millisecond {
		t.Errorf("MoveDuration(1500) = %s, %v", d, err)
	}
	d, err = MoveDuration(MaxMoveMillis)
	if err != nil || d <= 0 {
		t.Errorf("MoveDuration(max) = %s, %v", d, err)
	}

	for _, ms := range []int64{-1, MaxMoveMillis + 1, math.MaxInt64} {
		if d, err := MoveDuration(ms); err == nil {
			t.Errorf("MoveDuration(%d) = %s, expected error", ms, d)
		}
	}
}

func TestMotorOrder(t *testing.T) {
	for i, m := range Motors {
		if int(m) != i {
			t.Errorf("Motors[%d] = %s, want index %d", i, m, i)
		}
	}
}
