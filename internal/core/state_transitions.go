package core

import (
	"robocar-service/internal/fsm"
	"robocar-service/internal/types"
)

// apply hands a move event to the drive controller, then brings the lifecycle state and the
// published direction in line with what the controller is doing.
func (s *RobocarSystem) apply(evt types.MoveEvent) {
	s.logger.Debugf("Move event: %s", evt)
	if err := s.controller.OnMoveEvent(evt); err != nil {
		s.logger.Errorf("Failed to apply %s: %v", evt, err)
	}

	dir, moving := s.controller.Current()
	direction := types.DirectionNone
	if moving {
		direction = dir.String()
	}
	s.setDirection(moving, direction)

	state := s.machine.CurrentState()
	switch {
	case moving && state == fsm.StateIdle:
		if err := s.sendEvent(fsm.EvMoveStart); err != nil {
			s.logger.Warnf("Failed to enter driving state: %v", err)
		}
	case !moving && state == fsm.StateDriving:
		if err := s.sendEvent(fsm.EvMoveStop); err != nil {
			s.logger.Warnf("Failed to enter idle state: %v", err)
		}
	}
}

func (s *RobocarSystem) setDirection(moving bool, direction string) {
	s.statusMu.Lock()
	s.status.Moving = moving
	s.status.Direction = direction
	s.statusMu.Unlock()

	s.publishDirection(direction)
}

// publishDirection writes the direction to Redis when it differs from the last one written.
func (s *RobocarSystem) publishDirection(direction string) {
	if s.redis == nil || direction == s.published {
		return
	}
	s.published = direction
	if err := s.redis.PublishDirection(direction); err != nil {
		s.logger.Warnf("Failed to publish direction %s: %v", direction, err)
	}
}
