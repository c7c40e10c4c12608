package hardware

import (
	"encoding/binary"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/warthog618/go-gpiocdev"

	"robocar-service/internal/types"
)

type buttonEvent struct {
	Button  types.ButtonCode
	Pressed bool
}

type recorder struct {
	mu     sync.Mutex
	events []buttonEvent
}

func (r *recorder) record(button types.ButtonCode, pressed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, buttonEvent{button, pressed})
}

func (r *recorder) snapshot() []buttonEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]buttonEvent(nil), r.events...)
}

func encodeInputEvent(typ, code uint16, value int32) []byte {
	buf := make([]byte, inputEventSize)
	off := len(buf) - 8
	binary.LittleEndian.PutUint16(buf[off:], typ)
	binary.LittleEndian.PutUint16(buf[off+2:], code)
	binary.LittleEndian.PutUint32(buf[off+4:], uint32(value))
	return buf
}

func TestDecodeInputEvent(t *testing.T) {
	ev := decodeInputEvent(encodeInputEvent(EV_ABS, ABS_HAT0Y, -1))
	want := InputEvent{Type: EV_ABS, Code: ABS_HAT0Y, Value: -1}
	if ev != want {
		t.Errorf("Expected %+v, got %+v", want, ev)
	}
}

func TestGamepadKeyEvents(t *testing.T) {
	rec := &recorder{}
	g := newGamepad(io.NopCloser(nil), testLogger())
	g.callback = rec.record

	g.handleEvent(InputEvent{Type: EV_KEY, Code: KEY_UP, Value: 1})
	g.handleEvent(InputEvent{Type: EV_KEY, Code: KEY_UP, Value: 2})
	g.handleEvent(InputEvent{Type: EV_KEY, Code: KEY_UP, Value: 0})
	g.handleEvent(InputEvent{Type: EV_KEY, Code: BTN_SELECT, Value: 1})
	g.handleEvent(InputEvent{Type: EV_KEY, Code: BTN_START, Value: 1}) // unmapped
	g.handleEvent(InputEvent{Type: EV_SYN, Code: 0, Value: 0})

	want := []buttonEvent{
		{types.ButtonUp, true},
		{types.ButtonUp, true},
		{types.ButtonUp, false},
		{types.ButtonSpecial, true},
	}
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
}

func TestGamepadHatEvents(t *testing.T) {
	rec := &recorder{}
	g := newGamepad(io.NopCloser(nil), testLogger())
	g.callback = rec.record

	g.handleEvent(InputEvent{Type: EV_ABS, Code: ABS_HAT0Y, Value: -1}) // up
	g.handleEvent(InputEvent{Type: EV_ABS, Code: ABS_HAT0Y, Value: -1}) // unchanged
	g.handleEvent(InputEvent{Type: EV_ABS, Code: ABS_HAT0Y, Value: 1})  // straight to down
	g.handleEvent(InputEvent{Type: EV_ABS, Code: ABS_HAT0Y, Value: 0})
	g.handleEvent(InputEvent{Type: EV_ABS, Code: ABS_HAT0X, Value: 1}) // right
	g.handleEvent(InputEvent{Type: EV_ABS, Code: ABS_HAT0X, Value: 0})

	want := []buttonEvent{
		{types.ButtonUp, true},
		{types.ButtonUp, false},
		{types.ButtonDown, true},
		{types.ButtonDown, false},
		{types.ButtonRight, true},
		{types.ButtonRight, false},
	}
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
}

func TestGamepadReadsFromDevice(t *testing.T) {
	r, w := io.Pipe()
	rec := &recorder{}
	g := newGamepad(r, testLogger())
	if err := g.Start(rec.record); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go func() {
		w.Write(encodeInputEvent(EV_KEY, KEY_LEFT, 1))
		w.Write(encodeInputEvent(EV_SYN, 0, 0))
		w.Write(encodeInputEvent(EV_KEY, KEY_LEFT, 0))
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(rec.snapshot()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := g.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	want := []buttonEvent{{types.ButtonLeft, true}, {types.ButtonLeft, false}}
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
}

func TestParseButtonMap(t *testing.T) {
	got, err := ParseButtonMap("up=17, down=27,left=22,right=23,special=24")
	if err != nil {
		t.Fatalf("ParseButtonMap failed: %v", err)
	}
	want := map[int]types.ButtonCode{
		17: types.ButtonUp,
		27: types.ButtonDown,
		22: types.ButtonLeft,
		23: types.ButtonRight,
		24: types.ButtonSpecial,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Mapping mismatch (-want +got):\n%s", diff)
	}

	bad := []string{"", "up", "jump=3", "up=x", "up=-1", "up=3,down=3"}
	for _, s := range bad {
		if _, err := ParseButtonMap(s); err == nil {
			t.Errorf("Expected error for %q", s)
		}
	}
}

func TestButtonsLineEvents(t *testing.T) {
	rec := &recorder{}
	b := NewButtons("gpiochip0", map[int]types.ButtonCode{17: types.ButtonUp, 22: types.ButtonLeft}, testLogger())
	b.callback = rec.record

	b.handleLineEvent(gpiocdev.LineEvent{Offset: 17, Type: gpiocdev.LineEventRisingEdge})
	b.handleLineEvent(gpiocdev.LineEvent{Offset: 17, Type: gpiocdev.LineEventFallingEdge})
	b.handleLineEvent(gpiocdev.LineEvent{Offset: 5, Type: gpiocdev.LineEventRisingEdge})
	b.handleLineEvent(gpiocdev.LineEvent{Offset: 22, Type: gpiocdev.LineEventRisingEdge})

	want := []buttonEvent{
		{types.ButtonUp, true},
		{types.ButtonUp, false},
		{types.ButtonLeft, true},
	}
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}

	if err := b.Close(); err != nil {
		t.Errorf("Close without Start should be a no-op, got %v", err)
	}
}
