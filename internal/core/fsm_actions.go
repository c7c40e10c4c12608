package core

import (
	"context"

	"github.com/librescoot/librefsm"

	"robocar-service/internal/fsm"
	"robocar-service/internal/types"
)

// Ensure RobocarSystem implements fsm.Actions
var _ fsm.Actions = (*RobocarSystem)(nil)

// stateIDToSystemState converts a librefsm StateID to the published state name
func stateIDToSystemState(id librefsm.StateID) types.SystemState {
	switch id {
	case fsm.StateInit:
		return types.StateInit
	case fsm.StateIdle:
		return types.StateIdle
	case fsm.StateDriving:
		return types.StateDriving
	case fsm.StateShuttingDown:
		return types.StateShuttingDown
	default:
		return types.SystemState(string(id))
	}
}

// initFSM builds and starts the lifecycle machine. State changes are published to Redis.
func (s *RobocarSystem) initFSM(ctx context.Context) error {
	def := fsm.NewDefinition(s)
	machine, err := def.Build()
	if err != nil {
		return err
	}

	machine.OnStateChange(func(from, to librefsm.StateID) {
		newState := stateIDToSystemState(to)
		oldState := stateIDToSystemState(from)

		s.statusMu.Lock()
		s.status.State = newState
		s.statusMu.Unlock()

		s.logger.Infof("State transition: %s -> %s", oldState, newState)

		if s.redis != nil {
			if err := s.redis.PublishState(newState); err != nil {
				s.logger.Errorf("Failed to publish state: %v", err)
			}
		}
	})

	fsmCtx, cancel := context.WithCancel(ctx)
	if err := machine.Start(fsmCtx); err != nil {
		cancel()
		return err
	}
	s.machine = machine
	s.fsmCancel = cancel

	s.logger.Infof("librefsm state machine started")
	return nil
}

// sendEvent sends an event to the FSM
func (s *RobocarSystem) sendEvent(event librefsm.EventID) error {
	return s.machine.SendSync(librefsm.Event{ID: event})
}

// === State Entry Actions ===

func (s *RobocarSystem) EnterIdle(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterIdle")
	if c.FromState == fsm.StateInit {
		s.logger.Infof("Motors configured and released, ready for input")
	}
	return nil
}

func (s *RobocarSystem) EnterDriving(c *librefsm.Context) error {
	s.logger.Debugf("FSM: EnterDriving")
	return nil
}

func (s *RobocarSystem) EnterShuttingDown(c *librefsm.Context) error {
	s.logger.Infof("FSM: EnterShuttingDown from %s, motors will be released", c.FromState)
	return nil
}
