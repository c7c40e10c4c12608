package fsm

import "github.com/librescoot/librefsm"

// Robocar states
const (
	StateInit         librefsm.StateID = "init"
	StateIdle         librefsm.StateID = "idle"
	StateDriving      librefsm.StateID = "driving"
	StateShuttingDown librefsm.StateID = "shutting-down"
)

// Robocar events
const (
	// Startup finished: motors configured and released
	EvReady librefsm.EventID = "ready"

	// Drive controller edges
	EvMoveStart librefsm.EventID = "move-start"
	EvMoveStop  librefsm.EventID = "move-stop"

	EvShutdown librefsm.EventID = "shutdown"
)
