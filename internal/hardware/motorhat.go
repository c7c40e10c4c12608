package hardware

import (
	"fmt"
	"math"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"robocar-service/internal/logger"
	"robocar-service/internal/types"
)

// PCA9685 registers
const (
	pcaMode1      = 0x00
	pcaMode2      = 0x01
	pcaPrescale   = 0xFE
	pcaLed0OnL    = 0x06
	pcaAllLedOnL  = 0xFA
	pcaRestart    = 0x80
	pcaSleep      = 0x10
	pcaAllCall    = 0x01
	pcaOutDrv     = 0x04
	pcaFullOn     = 0x1000
	pcaOscillator = 25000000.0
)

// hatChannels is the TB6612 wiring of one motor port on the PCA9685 outputs.
type hatChannels struct {
	pwm, in1, in2 byte
}

// Motor ports M1..M4 as wired on the Adafruit DC & Stepper Motor HAT, by wheel position.
var hatWiring = map[types.MotorID]hatChannels{
	types.MotorFrontLeft:  {pwm: 8, in2: 9, in1: 10},  // M1
	types.MotorBackLeft:   {pwm: 13, in2: 12, in1: 11}, // M2
	types.MotorFrontRight: {pwm: 2, in2: 3, in1: 4},    // M3
	types.MotorBackRight:  {pwm: 7, in2: 6, in1: 5},    // M4
}

// registerWriter is the part of an I2C device the HAT needs.
type registerWriter interface {
	Tx(w, r []byte) error
}

// MotorHat drives four DC motors through a PCA9685 PWM controller on the I2C bus.
type MotorHat struct {
	logger *logger.Logger
	dev    registerWriter
	bus    i2c.BusCloser
	mu     sync.Mutex
	sleep  func(time.Duration)
}

// HatAddress validates a 7-bit I2C address given on the command line.
func HatAddress(addr uint) (uint16, error) {
	if addr > MaxHatAddress {
		return 0, fmt.Errorf("I2C address %#x out of range, expected 0x00-%#02x", addr, MaxHatAddress)
	}
	return uint16(addr), nil
}

// OpenMotorHat opens the I2C bus (empty name selects the first one), resets the PCA9685 at
// addr and sets its PWM frequency.
func OpenMotorHat(busName string, addr uint16, freq float64, l *logger.Logger) (*MotorHat, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}

	hat := newMotorHat(&i2c.Dev{Addr: addr, Bus: bus}, l)
	hat.bus = bus
	if err := hat.init(freq); err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize motor HAT at %#02x: %w", addr, err)
	}

	l.Infof("Motor HAT ready on %s at %#02x (%.0f Hz)", bus, addr, freq)
	return hat, nil
}

func newMotorHat(dev registerWriter, l *logger.Logger) *MotorHat {
	return &MotorHat{
		logger: l,
		dev:    dev,
		sleep:  time.Sleep,
	}
}

func (h *MotorHat) init(freq float64) error {
	if err := h.setAllPWM(0, 0); err != nil {
		return err
	}
	if err := h.writeReg(pcaMode2, pcaOutDrv); err != nil {
		return err
	}
	if err := h.writeReg(pcaMode1, pcaAllCall); err != nil {
		return err
	}
	h.sleep(5 * time.Millisecond)

	mode1, err := h.readReg(pcaMode1)
	if err != nil {
		return err
	}
	if err := h.writeReg(pcaMode1, mode1&^pcaSleep); err != nil {
		return err
	}
	h.sleep(5 * time.Millisecond)

	return h.setFrequency(freq)
}

func (h *MotorHat) setFrequency(freq float64) error {
	if freq <= 0 {
		return fmt.Errorf("invalid PWM frequency: %v", freq)
	}
	prescale := math.Floor(pcaOscillator/4096.0/freq - 1.0 + 0.5)
	if prescale < 3 || prescale > 255 {
		return fmt.Errorf("PWM frequency %v out of range", freq)
	}
	h.logger.Debugf("Setting PWM frequency to %.0f Hz (prescale %d)", freq, int(prescale))

	old, err := h.readReg(pcaMode1)
	if err != nil {
		return err
	}
	if err := h.writeReg(pcaMode1, (old&0x7F)|pcaSleep); err != nil {
		return err
	}
	if err := h.writeReg(pcaPrescale, byte(prescale)); err != nil {
		return err
	}
	if err := h.writeReg(pcaMode1, old); err != nil {
		return err
	}
	h.sleep(5 * time.Millisecond)
	return h.writeReg(pcaMode1, old|pcaRestart)
}

// SetSpeed sets the duty cycle of the motor's PWM output; 255 is full scale.
func (h *MotorHat) SetSpeed(motor types.MotorID, speed uint8) error {
	ch, ok := hatWiring[motor]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMotor, motor)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.setPWM(ch.pwm, 0, uint16(speed)*16)
}

// Run sets the H-bridge inputs of the motor.
func (h *MotorHat) Run(motor types.MotorID, dir types.MotorDirection) error {
	ch, ok := hatWiring[motor]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMotor, motor)
	}

	var in1, in2 bool
	switch dir {
	case types.MotorForward:
		in1 = true
	case types.MotorBackward:
		in2 = true
	case types.MotorRelease:
	default:
		return fmt.Errorf("unknown motor direction: %d", dir)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Drop the active input first so both are never high together.
	if in1 {
		if err := h.setPin(ch.in2, false); err != nil {
			return err
		}
		return h.setPin(ch.in1, true)
	}
	if err := h.setPin(ch.in1, false); err != nil {
		return err
	}
	return h.setPin(ch.in2, in2)
}

// Close turns every output off and releases the bus.
func (h *MotorHat) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.setAllPWM(0, 0)
	if h.bus != nil {
		if cerr := h.bus.Close(); cerr != nil && err == nil {
			err = cerr
		}
		h.bus = nil
	}
	h.logger.Infof("Motor HAT closed")
	return err
}

func (h *MotorHat) setPin(channel byte, high bool) error {
	if high {
		return h.setPWM(channel, pcaFullOn, 0)
	}
	return h.setPWM(channel, 0, pcaFullOn)
}

func (h *MotorHat) setPWM(channel byte, on, off uint16) error {
	reg := pcaLed0OnL + 4*channel
	if err := h.dev.Tx([]byte{reg, byte(on), byte(on >> 8), byte(off), byte(off >> 8)}, nil); err != nil {
		return fmt.Errorf("failed to set PWM channel %d: %w", channel, err)
	}
	return nil
}

func (h *MotorHat) setAllPWM(on, off uint16) error {
	if err := h.dev.Tx([]byte{pcaAllLedOnL, byte(on), byte(on >> 8), byte(off), byte(off >> 8)}, nil); err != nil {
		return fmt.Errorf("failed to set all PWM channels: %w", err)
	}
	return nil
}

func (h *MotorHat) writeReg(reg, value byte) error {
	if err := h.dev.Tx([]byte{reg, value}, nil); err != nil {
		return fmt.Errorf("failed to write register %#02x: %w", reg, err)
	}
	return nil
}

func (h *MotorHat) readReg(reg byte) (byte, error) {
	buf := make([]byte, 1)
	if err := h.dev.Tx([]byte{reg}, buf); err != nil {
		return 0, fmt.Errorf("failed to read register %#02x: %w", reg, err)
	}
	return buf[0], nil
}
