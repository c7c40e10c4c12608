package core

import (
	"github.com/google/uuid"

	"robocar-service/internal/types"
)

// HandleRemoteMove queues a timed move from Redis or the HTTP API and returns its id.
// A steering move stops by itself after its duration unless a newer move replaces it.
func (s *RobocarSystem) HandleRemoteMove(cmd types.MoveCommand) (string, error) {
	id := uuid.NewString()
	if err := s.enqueue(func() {
		s.onRemoteMove(id, cmd)
	}); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RobocarSystem) handleRedisMove(cmd types.MoveCommand) error {
	_, err := s.HandleRemoteMove(cmd)
	return err
}

func (s *RobocarSystem) onRemoteMove(id string, cmd types.MoveCommand) {
	s.logger.Infof("Remote move %s: %s", id, cmd)

	switch {
	case cmd.Stop:
		s.cancelRemoteStop()
		s.apply(types.MoveStop())
	case cmd.Direction == types.DirectionSpecial:
		s.apply(types.MoveStart(types.DirectionSpecial))
	default:
		s.scheduleRemoteStop(id, cmd)
		s.apply(types.MoveStart(cmd.Direction))
	}
}

func (s *RobocarSystem) scheduleRemoteStop(id string, cmd types.MoveCommand) {
	s.cancelRemoteStop()

	duration := cmd.Duration
	if duration <= 0 {
		duration = s.cfg.RemoteMoveDuration
	}
	if duration > s.cfg.RemoteMoveMax {
		s.logger.Warnf("Remote move %s: duration %s capped to %s", id, duration, s.cfg.RemoteMoveMax)
		duration = s.cfg.RemoteMoveMax
	}

	seq := s.remoteSeq
	s.remoteTimer = s.clock.AfterFunc(duration, func() {
		if err := s.enqueue(func() {
			s.onRemoteMoveExpired(id, seq)
		}); err != nil {
			s.logger.Debugf("Remote move %s expired after shutdown", id)
		}
	})
}

// cancelRemoteStop invalidates the pending remote stop, including one already queued.
func (s *RobocarSystem) cancelRemoteStop() {
	s.remoteSeq++
	if s.remoteTimer != nil {
		s.remoteTimer.Stop()
		s.remoteTimer = nil
	}
}

func (s *RobocarSystem) onRemoteMoveExpired(id string, seq uint64) {
	if seq != s.remoteSeq {
		s.logger.Debugf("Ignoring stale stop for remote move %s", id)
		return
	}
	s.remoteTimer = nil
	s.logger.Infof("Remote move %s finished", id)
	s.apply(types.MoveStop())
}
