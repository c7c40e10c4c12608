package hardware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"robocar-service/internal/logger"
	"robocar-service/internal/types"
)

const buttonDebounce = 10 * time.Millisecond

// ParseButtonMap parses "up=17,down=27,left=22,right=23,special=24" into line offsets.
func ParseButtonMap(s string) (map[int]types.ButtonCode, error) {
	mapping := make(map[int]types.ButtonCode)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, offsetStr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid button mapping %q, expected name=line", part)
		}
		button := types.ParseButton(name)
		if button == types.ButtonUnknown {
			return nil, fmt.Errorf("unknown button %q", name)
		}
		offset, err := strconv.Atoi(strings.TrimSpace(offsetStr))
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("invalid line offset %q for button %s", offsetStr, name)
		}
		if prev, dup := mapping[offset]; dup {
			return nil, fmt.Errorf("line %d mapped to both %s and %s", offset, prev, button)
		}
		mapping[offset] = button
	}
	if len(mapping) == 0 {
		return nil, fmt.Errorf("no buttons mapped")
	}
	return mapping, nil
}

// Buttons watches push buttons wired to GPIO lines (active low with pull-ups) and reports
// presses and releases.
type Buttons struct {
	logger   *logger.Logger
	chip     string
	mapping  map[int]types.ButtonCode
	lines    *gpiocdev.Lines
	callback ButtonCallback
}

func NewButtons(chip string, mapping map[int]types.ButtonCode, l *logger.Logger) *Buttons {
	return &Buttons{
		logger:  l,
		chip:    chip,
		mapping: mapping,
	}
}

// Start requests the lines with edge detection. Events are delivered on the gpiocdev event
// goroutine.
func (b *Buttons) Start(cb ButtonCallback) error {
	b.callback = cb

	offsets := make([]int, 0, len(b.mapping))
	for offset := range b.mapping {
		offsets = append(offsets, offset)
	}

	lines, err := gpiocdev.RequestLines(b.chip, offsets,
		gpiocdev.AsInput,
		gpiocdev.AsActiveLow,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(buttonDebounce),
		gpiocdev.WithEventHandler(b.handleLineEvent),
		gpiocdev.WithConsumer(GpioConsumer))
	if err != nil {
		return fmt.Errorf("failed to request button lines %v on %s: %w", offsets, b.chip, err)
	}
	b.lines = lines

	for offset, button := range b.mapping {
		b.logger.Infof("Configured button %s: chip=%s, line=%d", button, b.chip, offset)
	}
	return nil
}

func (b *Buttons) handleLineEvent(evt gpiocdev.LineEvent) {
	button, ok := b.mapping[evt.Offset]
	if !ok {
		b.logger.Debugf("Event on unmapped line %d", evt.Offset)
		return
	}
	pressed := evt.Type == gpiocdev.LineEventRisingEdge
	b.logger.Debugf("Button %s (line %d) pressed=%v", button, evt.Offset, pressed)
	if b.callback != nil {
		b.callback(button, pressed)
	}
}

// Close releases the lines.
func (b *Buttons) Close() error {
	if b.lines == nil {
		return nil
	}
	err := b.lines.Close()
	b.lines = nil
	b.logger.Infof("Closed button lines on %s", b.chip)
	return err
}
