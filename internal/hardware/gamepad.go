package hardware

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"robocar-service/internal/logger"
	"robocar-service/internal/types"
)

const eviocgrab = 0x40044590 // _IOW('E', 0x90, int)

// inputEventSize is sizeof(struct input_event): a timeval followed by type, code and value.
var inputEventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

// InputEvent is a decoded evdev event with the timestamp dropped.
type InputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// ButtonCallback receives controller button transitions.
type ButtonCallback func(button types.ButtonCode, pressed bool)

// Gamepad reads d-pad and select button events from a Linux evdev node, such as a Bluetooth
// game controller once it is paired.
type Gamepad struct {
	logger   *logger.Logger
	path     string
	reader   io.ReadCloser
	callback ButtonCallback
	hatX     int32
	hatY     int32
	closing  chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// OpenGamepad opens the event device and grabs it so no other reader sees its events.
func OpenGamepad(path string, l *logger.Logger) (*Gamepad, error) {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open input device %s: %w", path, err)
	}

	conn, err := file.SyscallConn()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to access input device %s: %w", path, err)
	}
	var grabErr error
	if err := conn.Control(func(fd uintptr) {
		grabErr = unix.IoctlSetInt(int(fd), eviocgrab, 1)
	}); err != nil {
		grabErr = err
	}
	if grabErr != nil {
		l.Warnf("Failed to grab %s, events will be shared: %v", path, grabErr)
	}

	l.Infof("Opened gamepad %s", path)
	g := newGamepad(file, l)
	g.path = path
	return g, nil
}

func newGamepad(r io.ReadCloser, l *logger.Logger) *Gamepad {
	return &Gamepad{
		logger:  l,
		reader:  r,
		closing: make(chan struct{}),
	}
}

// Start begins delivering button events to cb from a background goroutine.
func (g *Gamepad) Start(cb ButtonCallback) error {
	g.callback = cb
	g.wg.Add(1)
	go g.monitorInputs()
	return nil
}

// Close stops the reader and waits for it to exit.
func (g *Gamepad) Close() error {
	var err error
	g.once.Do(func() {
		close(g.closing)
		err = g.reader.Close()
		g.wg.Wait()
		g.logger.Infof("Closed gamepad %s", g.path)
	})
	return err
}

func (g *Gamepad) monitorInputs() {
	defer g.wg.Done()

	buffer := make([]byte, inputEventSize)
	g.logger.Debugf("Starting input event monitoring with event size: %d", len(buffer))

	for {
		_, err := io.ReadFull(g.reader, buffer)
		if err != nil {
			select {
			case <-g.closing:
				g.logger.Debugf("Stopping input monitoring")
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
				g.logger.Errorf("Input device %s went away: %v", g.path, err)
				return
			}
			g.logger.Warnf("Error reading input: %v", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		g.handleEvent(decodeInputEvent(buffer))
	}
}

func decodeInputEvent(buf []byte) InputEvent {
	off := len(buf) - 8
	return InputEvent{
		Type:  binary.LittleEndian.Uint16(buf[off : off+2]),
		Code:  binary.LittleEndian.Uint16(buf[off+2 : off+4]),
		Value: int32(binary.LittleEndian.Uint32(buf[off+4 : off+8])),
	}
}

func (g *Gamepad) handleEvent(ev InputEvent) {
	switch ev.Type {
	case EV_KEY:
		button := mapKeycode(ev.Code)
		if button == types.ButtonUnknown {
			g.logger.Debugf("Ignoring key code %d", ev.Code)
			return
		}
		// Autorepeat (2) is reported as another press.
		g.emit(button, ev.Value != 0)
	case EV_ABS:
		switch ev.Code {
		case ABS_HAT0X:
			g.hatX = g.handleHat(g.hatX, ev.Value, types.ButtonLeft, types.ButtonRight)
		case ABS_HAT0Y:
			g.hatY = g.handleHat(g.hatY, ev.Value, types.ButtonUp, types.ButtonDown)
		}
	}
}

// handleHat turns a hat axis position change into release and press events.
func (g *Gamepad) handleHat(prev, value int32, negative, positive types.ButtonCode) int32 {
	if value == prev {
		return prev
	}
	pick := func(v int32) types.ButtonCode {
		if v < 0 {
			return negative
		}
		return positive
	}
	if prev != 0 {
		g.emit(pick(prev), false)
	}
	if value != 0 {
		g.emit(pick(value), true)
	}
	return value
}

func (g *Gamepad) emit(button types.ButtonCode, pressed bool) {
	g.logger.Debugf("Button %s pressed=%v", button, pressed)
	if g.callback != nil {
		g.callback(button, pressed)
	}
}

func mapKeycode(code uint16) types.ButtonCode {
	switch code {
	case KEY_UP, BTN_DPAD_UP:
		return types.ButtonUp
	case KEY_DOWN, BTN_DPAD_DOWN:
		return types.ButtonDown
	case KEY_LEFT, BTN_DPAD_LEFT:
		return types.ButtonLeft
	case KEY_RIGHT, BTN_DPAD_RIGHT:
		return types.ButtonRight
	case BTN_SELECT:
		return types.ButtonSpecial
	default:
		return types.ButtonUnknown
	}
}
