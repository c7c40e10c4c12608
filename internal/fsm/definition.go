package fsm

import "github.com/librescoot/librefsm"

// NewDefinition creates the robocar FSM definition.
func NewDefinition(actions Actions) *librefsm.Definition {
	return librefsm.NewDefinition().
		State(StateInit).
		State(StateIdle,
			librefsm.WithOnEnter(actions.EnterIdle),
		).
		State(StateDriving,
			librefsm.WithOnEnter(actions.EnterDriving),
		).
		State(StateShuttingDown,
			librefsm.WithOnEnter(actions.EnterShuttingDown),
		).

		// From Init
		Transition(StateInit, EvReady, StateIdle).
		Transition(StateInit, EvShutdown, StateShuttingDown).

		// From Idle
		Transition(StateIdle, EvMoveStart, StateDriving).
		Transition(StateIdle, EvShutdown, StateShuttingDown).

		// From Driving
		Transition(StateDriving, EvMoveStop, StateIdle).
		Transition(StateDriving, EvShutdown, StateShuttingDown).
		Initial(StateInit)
}
