package fsm

import "github.com/librescoot/librefsm"

// Actions defines the state entry hooks of the robocar lifecycle.
// RobocarSystem implements this interface. The hooks run on the state machine's goroutine
// and must not block on the drive loop.
type Actions interface {
	EnterIdle(c *librefsm.Context) error
	EnterDriving(c *librefsm.Context) error
	EnterShuttingDown(c *librefsm.Context) error
}
