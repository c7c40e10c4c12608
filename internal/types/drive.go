package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Direction is a logical drive direction.
type Direction uint8

const (
	DirectionForward Direction = iota
	DirectionBackward
	DirectionLeft
	DirectionRight
	// DirectionSpecial is the reserved code bound to the special button. It never drives motors.
	DirectionSpecial
)

// SteeringDirections lists the directions that have a row in the direction table.
var SteeringDirections = []Direction{DirectionForward, DirectionBackward, DirectionLeft, DirectionRight}

func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	case DirectionSpecial:
		return "special"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection parses the wire name of a direction as used by the Redis and HTTP commands.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "up":
		return DirectionForward, nil
	case "backward", "down":
		return DirectionBackward, nil
	case "left":
		return DirectionLeft, nil
	case "right":
		return DirectionRight, nil
	case "special":
		return DirectionSpecial, nil
	default:
		return 0, fmt.Errorf("unknown direction: %q", s)
	}
}

// MotorID identifies one of the four wheel motors.
type MotorID uint8

const (
	MotorFrontLeft MotorID = iota
	MotorFrontRight
	MotorBackLeft
	MotorBackRight
)

// MotorCount is the number of wheel motors.
const MotorCount = 4

// Motors lists every motor in dispatch order.
var Motors = [MotorCount]MotorID{MotorFrontLeft, MotorFrontRight, MotorBackLeft, MotorBackRight}

func (m MotorID) String() string {
	switch m {
	case MotorFrontLeft:
		return "front-left"
	case MotorFrontRight:
		return "front-right"
	case MotorBackLeft:
		return "back-left"
	case MotorBackRight:
		return "back-right"
	default:
		return fmt.Sprintf("motor(%d)", uint8(m))
	}
}

// MotorDirection is the tri-state signal sent to a single motor.
type MotorDirection uint8

const (
	MotorRelease MotorDirection = iota
	MotorForward
	MotorBackward
)

func (d MotorDirection) String() string {
	switch d {
	case MotorRelease:
		return "release"
	case MotorForward:
		return "forward"
	case MotorBackward:
		return "backward"
	default:
		return fmt.Sprintf("motor-direction(%d)", uint8(d))
	}
}

// MoveKind tells a move start from a move stop.
type MoveKind uint8

const (
	MoveKindStart MoveKind = iota
	MoveKindStop
)

// MoveEvent is a debounced, edge-triggered drive intent.
type MoveEvent struct {
	Kind      MoveKind
	Direction Direction // only meaningful for MoveKindStart
}

// MoveStart returns a start event for d.
func MoveStart(d Direction) MoveEvent {
	return MoveEvent{Kind: MoveKindStart, Direction: d}
}

// MoveStop returns a stop event.
func MoveStop() MoveEvent {
	return MoveEvent{Kind: MoveKindStop}
}

func (e MoveEvent) String() string {
	if e.Kind == MoveKindStop {
		return "stop"
	}
	return "start(" + e.Direction.String() + ")"
}

// ButtonCode is a controller button. The zero value is not a recognized button.
type ButtonCode uint8

const (
	ButtonUnknown ButtonCode = iota
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonSpecial
)

func (b ButtonCode) String() string {
	switch b {
	case ButtonUp:
		return "up"
	case ButtonDown:
		return "down"
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonSpecial:
		return "special"
	default:
		return "unknown"
	}
}

// ParseButton maps a button name to its code. Unrecognized names yield ButtonUnknown.
func ParseButton(s string) ButtonCode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return ButtonUp
	case "down":
		return ButtonDown
	case "left":
		return ButtonLeft
	case "right":
		return ButtonRight
	case "special", "konami":
		return ButtonSpecial
	default:
		return ButtonUnknown
	}
}

// MoveCommand is a timed move requested over the network.
type MoveCommand struct {
	Direction Direction
	Stop      bool
	// Duration is how long to drive before stopping. Zero selects the configured default.
	Duration time.Duration
}

// MaxMoveMillis is the longest move duration in milliseconds that fits a time.Duration.
const MaxMoveMillis = math.MaxInt64 / int64(time.Millisecond)

// MoveDuration converts a move duration in milliseconds, rejecting values a time.Duration
// cannot hold.
func MoveDuration(ms int64) (time.Duration, error) {
	if ms < 0 {
		return 0, fmt.Errorf("negative move duration: %dms", ms)
	}
	if ms > MaxMoveMillis {
		return 0, fmt.Errorf("move duration too long: %dms", ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ParseMoveCommand builds a command from a direction name or "stop".
func ParseMoveCommand(direction string, duration time.Duration) (MoveCommand, error) {
	if duration < 0 {
		return MoveCommand{}, fmt.Errorf("negative move duration: %s", duration)
	}
	if strings.EqualFold(strings.TrimSpace(direction), "stop") {
		return MoveCommand{Stop: true}, nil
	}
	dir, err := ParseDirection(direction)
	if err != nil {
		return MoveCommand{}, err
	}
	return MoveCommand{Direction: dir, Duration: duration}, nil
}

func (c MoveCommand) String() string {
	if c.Stop {
		return "stop"
	}
	if c.Duration == 0 {
		return c.Direction.String()
	}
	return fmt.Sprintf("%s for %s", c.Direction, c.Duration)
}
