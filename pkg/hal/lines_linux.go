//go:build linux && !tinygo

package hal

import (
	"errors"
	"fmt"
	"slices"

	"github.com/warthog618/gpiod"
)

// LineOutputs drives pins through the GPIO character device instead of the
// register block. It needs no /dev/mem access.
type LineOutputs struct {
	chip   *gpiod.Chip
	lines  *gpiod.Lines
	pins   []int
	values []int
}

// NewLineOutputs requests pins on chip (e.g. "gpiochip0") as outputs driven low.
func NewLineOutputs(chip string, pins ...int) (*LineOutputs, error) {
	for _, pin := range pins {
		if err := validatePin(pin); err != nil {
			return nil, err
		}
	}

	c, err := gpiod.NewChip(chip, gpiod.WithConsumer("alphabot"))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", chip, err)
	}

	values := make([]int, len(pins))
	lines, err := c.RequestLines(pins, gpiod.AsOutput(values...))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to request lines %v on %s: %w", pins, chip, err)
	}

	return &LineOutputs{
		chip:   c,
		lines:  lines,
		pins:   slices.Clone(pins),
		values: values,
	}, nil
}

// Drive sets the pins in high and clears the pins in low in one request.
func (l *LineOutputs) Drive(high, low []int) error {
	if l.lines == nil {
		return errClosed("gpio lines")
	}

	values := slices.Clone(l.values)
	for level, pins := range [][]int{low, high} {
		for _, pin := range pins {
			idx := slices.Index(l.pins, pin)
			if idx < 0 {
				return NewError(KindInvalidPin, fmt.Sprintf("pin %d is not a requested output line", pin),
					fmt.Sprintf("requested output lines: %v", l.pins),
				)
			}
			values[idx] = level
		}
	}

	if err := l.lines.SetValues(values); err != nil {
		return err
	}
	l.values = values
	return nil
}

func (l *LineOutputs) Close() error {
	if l.lines == nil {
		return nil
	}
	err := errors.Join(l.lines.Close(), l.chip.Close())
	l.lines, l.chip = nil, nil
	return err
}
