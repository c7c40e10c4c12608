// Package input turns level-triggered controller button events into edge-triggered move events.
package input

import "robocar-service/internal/types"

// Debouncer collapses held-button reports into one start per press and one stop per release.
// It is not safe for concurrent use; callers serialize events.
type Debouncer struct {
	moving bool
}

// NewDebouncer returns a debouncer in the not-moving state.
func NewDebouncer() *Debouncer {
	return &Debouncer{}
}

// Handle consumes one button event and reports the resulting move event, if any.
//
// A press while already moving is a repeat and yields nothing. A release always yields a stop,
// whichever button was released, since only one direction is active at a time. A press of an
// unrecognized button yields nothing and leaves the state untouched.
func (d *Debouncer) Handle(button types.ButtonCode, pressed bool) (types.MoveEvent, bool) {
	if pressed && d.moving {
		return types.MoveEvent{}, false
	}

	if !pressed {
		d.moving = false
		return types.MoveStop(), true
	}

	dir, ok := DirectionFor(button)
	if !ok {
		return types.MoveEvent{}, false
	}
	d.moving = true
	return types.MoveStart(dir), true
}

// Moving reports whether a press has been accepted without a matching release.
func (d *Debouncer) Moving() bool {
	return d.moving
}

// DirectionFor maps a recognized button to its drive direction.
func DirectionFor(button types.ButtonCode) (types.Direction, bool) {
	switch button {
	case types.ButtonUp:
		return types.DirectionForward, true
	case types.ButtonDown:
		return types.DirectionBackward, true
	case types.ButtonLeft:
		return types.DirectionLeft, true
	case types.ButtonRight:
		return types.DirectionRight, true
	case types.ButtonSpecial:
		return types.DirectionSpecial, true
	default:
		return 0, false
	}
}
