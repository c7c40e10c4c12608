package hardware

import "errors"

var ErrUnknownMotor = errors.New("unknown motor")

const (
	// DefaultHatAddress is the I2C address of the motor HAT with no address jumpers set.
	DefaultHatAddress = 0x60
	// MaxHatAddress is the highest 7-bit I2C address.
	MaxHatAddress = 0x7F
	DefaultPwmFreq    = 1600

	DefaultSerialPort = "/dev/ttyACM0"
	DefaultSerialBaud = 9600

	GpioConsumer = "robocar-service"
)

// Linux input event codes (linux/input-event-codes.h)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03

	KEY_UP    = 103
	KEY_LEFT  = 105
	KEY_RIGHT = 106
	KEY_DOWN  = 108

	BTN_SELECT = 0x13a
	BTN_START  = 0x13b

	BTN_DPAD_UP    = 0x220
	BTN_DPAD_DOWN  = 0x221
	BTN_DPAD_LEFT  = 0x222
	BTN_DPAD_RIGHT = 0x223

	ABS_HAT0X = 0x10
	ABS_HAT0Y = 0x11
)
