package hal

import (
	"context"
	"fmt"
	"slices"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"go.uber.org/zap"
)

func validatePin(pin int) error {
	if pin < 0 || pin > bcm2837.MaxPin {
		return NewError(KindInvalidPin, fmt.Sprintf("pin %d does not exist", pin),
			fmt.Sprintf("use a BCM pin number between 0 and %d", bcm2837.MaxPin),
		)
	}
	return nil
}

// setFunction switches pin to fn through its GPFSELn register.
func setFunction(gpio mmio.Registers, pin int, fn bcm2837.Function) {
	offset, shift := bcm2837.FselOffset(pin)
	v := gpio.Read32(offset)
	v = (v &^ (0b111 << shift)) | (uint32(fn) << shift)
	gpio.Write32(offset, v)
}

// getFunction reads pin's current function select.
func getFunction(gpio mmio.Registers, pin int) bcm2837.Function {
	offset, shift := bcm2837.FselOffset(pin)
	return bcm2837.Function((gpio.Read32(offset) >> shift) & 0b111)
}

// bankMasks splits pins into the 32-bit masks of GPIO banks 0 and 1.
func bankMasks(pins []int) (bank0, bank1 uint32) {
	for _, pin := range pins {
		if pin < 32 {
			bank0 |= 1 << pin
		} else {
			bank1 |= 1 << (pin - 32)
		}
	}
	return bank0, bank1
}

// GpioOut drives a fixed set of pins as push-pull outputs via the GPIO registers.
type GpioOut struct {
	reg  *Registry
	gpio mmio.Registers
	pins []int
}

// NewGpioOut switches pins to output mode.
func NewGpioOut(ctx context.Context, reg *Registry, pins ...int) (*GpioOut, error) {
	for _, pin := range pins {
		if err := validatePin(pin); err != nil {
			return nil, err
		}
	}

	gpio, err := reg.Acquire(ctx, BlockGPIO)
	if err != nil {
		return nil, err
	}

	for _, pin := range pins {
		setFunction(gpio, pin, bcm2837.FuncOutput)
	}
	log.FromContext(ctx).Debug("configured gpio outputs", zap.Ints("pins", pins))

	return &GpioOut{
		reg:  reg,
		gpio: gpio,
		pins: slices.Clone(pins),
	}, nil
}

// Drive sets the pins in high and clears the pins in low.
func (g *GpioOut) Drive(high, low []int) error {
	if g.gpio == nil {
		return errClosed("gpio output")
	}
	for _, pin := range append(slices.Clone(high), low...) {
		if !slices.Contains(g.pins, pin) {
			return NewError(KindInvalidPin, fmt.Sprintf("pin %d is not configured as an output", pin),
				fmt.Sprintf("configured output pins: %v", g.pins),
			)
		}
	}

	set0, set1 := bankMasks(high)
	clr0, clr1 := bankMasks(low)
	if set0 != 0 {
		g.gpio.Write32(bcm2837.GPSET0, set0)
	}
	if set1 != 0 {
		g.gpio.Write32(bcm2837.GPSET1, set1)
	}
	if clr0 != 0 {
		g.gpio.Write32(bcm2837.GPCLR0, clr0)
	}
	if clr1 != 0 {
		g.gpio.Write32(bcm2837.GPCLR1, clr1)
	}
	return nil
}

// Level reads the pin level from GPLEVn.
func (g *GpioOut) Level(pin int) (bool, error) {
	if g.gpio == nil {
		return false, errClosed("gpio output")
	}
	if err := validatePin(pin); err != nil {
		return false, err
	}
	if pin < 32 {
		return g.gpio.Read32(bcm2837.GPLEV0)&(1<<pin) != 0, nil
	}
	return g.gpio.Read32(bcm2837.GPLEV1)&(1<<(pin-32)) != 0, nil
}

func (g *GpioOut) Pins() []int {
	return slices.Clone(g.pins)
}

// Close returns the pins to inputs and releases the GPIO block.
func (g *GpioOut) Close() error {
	if g.gpio == nil {
		return nil
	}
	for _, pin := range g.pins {
		setFunction(g.gpio, pin, bcm2837.FuncInput)
	}
	g.gpio = nil
	return g.reg.Release(BlockGPIO)
}
