// Package drive owns the wheel motors and turns move events into skid-steer actuation.
package drive

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"robocar-service/internal/logger"
	"robocar-service/internal/types"
)

// MaxSpeed is the full-scale speed applied to every motor at startup.
const MaxSpeed uint8 = 255

// ErrClosed is returned by OnMoveEvent after Close.
var ErrClosed = errors.New("drive controller closed")

// MotorDriver is the actuation surface of the four wheel motors.
type MotorDriver interface {
	SetSpeed(motor types.MotorID, speed uint8) error
	Run(motor types.MotorID, dir types.MotorDirection) error
	Close() error
}

// Row holds one motor direction per motor, indexed by types.MotorID.
type Row [types.MotorCount]types.MotorDirection

// directionTable drives the left and right wheel groups in matched or opposite directions.
var directionTable = map[types.Direction]Row{
	//                        FrontLeft           FrontRight          BackLeft            BackRight
	types.DirectionForward:  {types.MotorForward, types.MotorBackward, types.MotorBackward, types.MotorForward},
	types.DirectionBackward: {types.MotorBackward, types.MotorForward, types.MotorForward, types.MotorBackward},
	types.DirectionLeft:     {types.MotorBackward, types.MotorBackward, types.MotorForward, types.MotorForward},
	types.DirectionRight:    {types.MotorForward, types.MotorForward, types.MotorBackward, types.MotorBackward},
}

// TableRow returns the motor directions for a steering direction.
func TableRow(d types.Direction) (Row, bool) {
	row, ok := directionTable[d]
	return row, ok
}

// SpecialHandler is called for MoveStart(Special). It must not touch the motors.
type SpecialHandler func()

// Option configures a Controller.
type Option func(*Controller)

// WithSpecialHandler installs the hook run on the special button.
func WithSpecialHandler(h SpecialHandler) Option {
	return func(c *Controller) {
		c.special = h
	}
}

// Controller holds the commanded direction and the motor driver it exclusively owns.
// It is not safe for concurrent use.
type Controller struct {
	motors  MotorDriver
	logger  *logger.Logger
	special SpecialHandler

	current types.Direction
	moving  bool
	closed  bool
}

// New configures every motor to full speed and releases it. If any motor cannot be configured
// the driver is closed and no controller is returned.
func New(motors MotorDriver, l *logger.Logger, opts ...Option) (*Controller, error) {
	c := &Controller{
		motors: motors,
		logger: l,
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, m := range types.Motors {
		if err := motors.SetSpeed(m, MaxSpeed); err != nil {
			err = fmt.Errorf("failed to set speed of %s motor: %w", m, err)
			return nil, multierr.Append(err, motors.Close())
		}
	}

	if err := c.release(); err != nil {
		err = fmt.Errorf("failed to release motors: %w", err)
		return nil, multierr.Append(err, motors.Close())
	}

	c.logger.Infof("Configured %d motors at speed %d", types.MotorCount, MaxSpeed)
	return c, nil
}

// Current returns the direction being driven, if any.
func (c *Controller) Current() (types.Direction, bool) {
	return c.current, c.moving
}

// OnMoveEvent applies a debounced move event. All four motors are always addressed, even when
// one of them fails; the failures are returned together.
func (c *Controller) OnMoveEvent(evt types.MoveEvent) error {
	if c.closed {
		return ErrClosed
	}

	if evt.Kind == types.MoveKindStop {
		c.logger.Debugf("Release")
		c.moving = false
		return c.release()
	}

	row, ok := directionTable[evt.Direction]
	if !ok {
		// Special has no table row; the current direction is left as it was.
		c.logger.Debugf("No actuation for %s", evt.Direction)
		if evt.Direction == types.DirectionSpecial && c.special != nil {
			c.special()
		}
		return nil
	}

	c.logger.Debugf("Moving %s", evt.Direction)
	c.current = evt.Direction
	c.moving = true
	return c.runAll(func(m types.MotorID) types.MotorDirection { return row[m] })
}

// Close releases every motor and then closes the driver. Release failures do not stop the
// remaining motors from being released.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.moving = false

	c.logger.Infof("Releasing motors before closing driver")
	err := c.release()
	if cerr := c.motors.Close(); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("failed to close motor driver: %w", cerr))
	}
	return err
}

func (c *Controller) release() error {
	return c.runAll(func(types.MotorID) types.MotorDirection { return types.MotorRelease })
}

func (c *Controller) runAll(dirFor func(types.MotorID) types.MotorDirection) error {
	var err error
	for _, m := range types.Motors {
		dir := dirFor(m)
		if rerr := c.motors.Run(m, dir); rerr != nil {
			c.logger.Errorf("Failed to run %s motor %s: %v", m, dir, rerr)
			err = multierr.Append(err, fmt.Errorf("%s motor: %w", m, rerr))
		}
	}
	return err
}
