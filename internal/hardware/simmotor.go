package hardware

import (
	"fmt"
	"sync"

	"robocar-service/internal/logger"
	"robocar-service/internal/types"
)

// SimMotors stands in for the motor hardware on development machines. It only logs.
type SimMotors struct {
	logger *logger.Logger
	mu     sync.Mutex
	speeds [types.MotorCount]uint8
	dirs   [types.MotorCount]types.MotorDirection
}

func NewSimMotors(l *logger.Logger) *SimMotors {
	return &SimMotors{logger: l}
}

func (s *SimMotors) SetSpeed(motor types.MotorID, speed uint8) error {
	if int(motor) >= types.MotorCount {
		return fmt.Errorf("%w: %s", ErrUnknownMotor, motor)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speeds[motor] = speed
	s.logger.Debugf("sim: %s speed=%d", motor, speed)
	return nil
}

func (s *SimMotors) Run(motor types.MotorID, dir types.MotorDirection) error {
	if int(motor) >= types.MotorCount {
		return fmt.Errorf("%w: %s", ErrUnknownMotor, motor)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[motor] = dir
	s.logger.Debugf("sim: %s %s", motor, dir)
	return nil
}

// Directions returns the last direction sent to each motor.
func (s *SimMotors) Directions() [types.MotorCount]types.MotorDirection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs
}

func (s *SimMotors) Close() error {
	s.logger.Infof("sim: motors closed")
	return nil
}
