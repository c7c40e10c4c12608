package hardware

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"robocar-service/internal/logger"
	"robocar-service/internal/types"
)

const (
	serialCmdMotor  = 0x01
	serialFrameEnd  = 0xFF
	serialReverse   = 0x04
	serialSpeedBase = 0x40
)

// SerialMotors drives the motors through a microcontroller bridge on a serial port. The bridge
// takes one 5-byte frame per motor update: command, channel, speed high bits with the reverse
// flag, speed low bits, terminator.
type SerialMotors struct {
	logger *logger.Logger
	port   io.WriteCloser
	mu     sync.Mutex
	speeds [types.MotorCount]uint8
}

// OpenSerialMotors opens the serial port of the motor bridge.
func OpenSerialMotors(name string, baud int, l *logger.Logger) (*SerialMotors, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: time.Second,
		Size:        8,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	l.Infof("Opened motor bridge on %s at %d baud", name, baud)
	return newSerialMotors(port, l), nil
}

func newSerialMotors(port io.WriteCloser, l *logger.Logger) *SerialMotors {
	return &SerialMotors{
		logger: l,
		port:   port,
	}
}

// SetSpeed stores the magnitude used by subsequent Run calls.
func (s *SerialMotors) SetSpeed(motor types.MotorID, speed uint8) error {
	if int(motor) >= types.MotorCount {
		return fmt.Errorf("%w: %s", ErrUnknownMotor, motor)
	}
	s.mu.Lock()
	s.speeds[motor] = speed
	s.mu.Unlock()
	return nil
}

// Run sends the stored speed in the requested direction; Release sends speed zero.
func (s *SerialMotors) Run(motor types.MotorID, dir types.MotorDirection) error {
	if int(motor) >= types.MotorCount {
		return fmt.Errorf("%w: %s", ErrUnknownMotor, motor)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	speed := s.speeds[motor]
	reversed := false
	switch dir {
	case types.MotorForward:
	case types.MotorBackward:
		reversed = true
	case types.MotorRelease:
		speed = 0
	default:
		return fmt.Errorf("unknown motor direction: %d", dir)
	}

	frame := motorFrame(uint8(motor), speed, reversed)
	s.logger.Debugf("Motor %s: %s speed=%d frame=% x", motor, dir, speed, frame)
	if _, err := s.port.Write(frame); err != nil {
		return fmt.Errorf("failed to write motor command: %w", err)
	}
	return nil
}

// Close closes the serial port.
func (s *SerialMotors) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}

func motorFrame(channel, speed uint8, reversed bool) []byte {
	high := speed / serialSpeedBase
	if reversed {
		high += serialReverse
	}
	return []byte{serialCmdMotor, channel, high, speed % serialSpeedBase, serialFrameEnd}
}
