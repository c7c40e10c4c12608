package hardware

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"robocar-service/internal/logger"
	"robocar-service/internal/types"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(nil, logger.LogLevelError)
}

// Mock I2C device backed by a register file
type mockI2C struct {
	regs   [256]byte
	writes [][]byte
	err    error
}

func (m *mockI2C) Tx(w, r []byte) error {
	if m.err != nil {
		return m.err
	}
	if len(r) > 0 {
		copy(r, m.regs[w[0]:])
		return nil
	}
	m.writes = append(m.writes, append([]byte(nil), w...))
	copy(m.regs[w[0]:], w[1:])
	return nil
}

// channel returns the on and off counts programmed for a PCA9685 channel.
func (m *mockI2C) channel(ch byte) (on, off uint16) {
	base := pcaLed0OnL + 4*int(ch)
	on = uint16(m.regs[base]) | uint16(m.regs[base+1])<<8
	off = uint16(m.regs[base+2]) | uint16(m.regs[base+3])<<8
	return on, off
}

func newTestHat() (*MotorHat, *mockI2C) {
	dev := &mockI2C{}
	hat := newMotorHat(dev, testLogger())
	hat.sleep = func(time.Duration) {}
	return hat, dev
}

func TestMotorHatInit(t *testing.T) {
	hat, dev := newTestHat()

	if err := hat.init(DefaultPwmFreq); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	// 25MHz / 4096 / 1600 - 1 = 2.81 -> 3
	if dev.regs[pcaPrescale] != 3 {
		t.Errorf("Expected prescale 3, got %d", dev.regs[pcaPrescale])
	}
	if dev.regs[pcaMode2] != pcaOutDrv {
		t.Errorf("Expected MODE2 OUTDRV, got %#x", dev.regs[pcaMode2])
	}
	if dev.regs[pcaMode1]&pcaSleep != 0 {
		t.Errorf("Expected oscillator awake, MODE1=%#x", dev.regs[pcaMode1])
	}
	if dev.regs[pcaMode1]&pcaRestart == 0 {
		t.Errorf("Expected restart bit set, MODE1=%#x", dev.regs[pcaMode1])
	}
}

func TestHatAddress(t *testing.T) {
	for _, addr := range []uint{0x00, DefaultHatAddress, MaxHatAddress} {
		got, err := HatAddress(addr)
		if err != nil || uint(got) != addr {
			t.Errorf("HatAddress(%#x) = %#x, %v", addr, got, err)
		}
	}
	for _, addr := range []uint{0x80, 0x160, 0x10060} {
		if got, err := HatAddress(addr); err == nil {
			t.Errorf("HatAddress(%#x) = %#x, expected error", addr, got)
		}
	}
}

func TestMotorHatRejectsBadFrequency(t *testing.T) {
	hat, _ := newTestHat()
	if err := hat.setFrequency(0); err == nil {
		t.Error("Expected error for zero frequency")
	}
	if err := hat.setFrequency(10); err == nil {
		t.Error("Expected error for frequency below prescale range")
	}
}

func TestMotorHatSetSpeed(t *testing.T) {
	hat, dev := newTestHat()

	if err := hat.SetSpeed(types.MotorFrontLeft, 255); err != nil {
		t.Fatalf("SetSpeed failed: %v", err)
	}
	on, off := dev.channel(hatWiring[types.MotorFrontLeft].pwm)
	if on != 0 || off != 255*16 {
		t.Errorf("Expected PWM (0, %d), got (%d, %d)", 255*16, on, off)
	}
}

func TestMotorHatRun(t *testing.T) {
	cases := []struct {
		dir      types.MotorDirection
		in1, in2 bool
	}{
		{types.MotorForward, true, false},
		{types.MotorBackward, false, true},
		{types.MotorRelease, false, false},
	}

	for _, motor := range types.Motors {
		for _, c := range cases {
			hat, dev := newTestHat()
			if err := hat.Run(motor, c.dir); err != nil {
				t.Fatalf("%s %s: Run failed: %v", motor, c.dir, err)
			}
			ch := hatWiring[motor]
			if got := pinHigh(dev, ch.in1); got != c.in1 {
				t.Errorf("%s %s: in1 high=%v, want %v", motor, c.dir, got, c.in1)
			}
			if got := pinHigh(dev, ch.in2); got != c.in2 {
				t.Errorf("%s %s: in2 high=%v, want %v", motor, c.dir, got, c.in2)
			}
		}
	}
}

func pinHigh(dev *mockI2C, ch byte) bool {
	on, off := dev.channel(ch)
	return on == pcaFullOn && off == 0
}

func TestMotorHatUnknownMotor(t *testing.T) {
	hat, _ := newTestHat()
	if err := hat.Run(types.MotorID(9), types.MotorForward); !errors.Is(err, ErrUnknownMotor) {
		t.Errorf("Expected ErrUnknownMotor, got %v", err)
	}
	if err := hat.SetSpeed(types.MotorID(9), 1); !errors.Is(err, ErrUnknownMotor) {
		t.Errorf("Expected ErrUnknownMotor, got %v", err)
	}
}

func TestMotorHatBusError(t *testing.T) {
	hat, dev := newTestHat()
	dev.err = errors.New("nack")
	if err := hat.Run(types.MotorBackRight, types.MotorForward); err == nil {
		t.Error("Expected bus error to be returned")
	}
}

func TestMotorHatWiringCoversAllMotors(t *testing.T) {
	seen := make(map[byte]bool)
	for _, motor := range types.Motors {
		ch, ok := hatWiring[motor]
		if !ok {
			t.Fatalf("No wiring for %s", motor)
		}
		for _, c := range []byte{ch.pwm, ch.in1, ch.in2} {
			if seen[c] {
				t.Errorf("Channel %d used twice", c)
			}
			seen[c] = true
		}
	}
}

// Mock serial port
type mockPort struct {
	bytes.Buffer
	closed bool
}

func (p *mockPort) Close() error {
	p.closed = true
	return nil
}

func TestSerialMotorsFrames(t *testing.T) {
	port := &mockPort{}
	s := newSerialMotors(port, testLogger())

	_ = s.SetSpeed(types.MotorBackLeft, 255)
	if port.Len() != 0 {
		t.Fatalf("SetSpeed must not write, got % x", port.Bytes())
	}

	if err := s.Run(types.MotorBackLeft, types.MotorForward); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := s.Run(types.MotorBackLeft, types.MotorBackward); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := s.Run(types.MotorBackLeft, types.MotorRelease); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []byte{
		0x01, 0x02, 0x03, 0x3F, 0xFF, // 255 = 3*64 + 63
		0x01, 0x02, 0x07, 0x3F, 0xFF, // reversed
		0x01, 0x02, 0x00, 0x00, 0xFF, // released
	}
	if diff := cmp.Diff(want, port.Bytes()); diff != "" {
		t.Errorf("Frames mismatch (-want +got):\n%s", diff)
	}

	if err := s.Close(); err != nil || !port.closed {
		t.Errorf("Expected port closed, err=%v", err)
	}
}

func TestSimMotorsRecordsDirections(t *testing.T) {
	s := NewSimMotors(testLogger())
	_ = s.Run(types.MotorFrontRight, types.MotorBackward)

	dirs := s.Directions()
	if dirs[types.MotorFrontRight] != types.MotorBackward {
		t.Errorf("Expected backward, got %v", dirs[types.MotorFrontRight])
	}
	if err := s.Run(types.MotorID(7), types.MotorForward); !errors.Is(err, ErrUnknownMotor) {
		t.Errorf("Expected ErrUnknownMotor, got %v", err)
	}
}
