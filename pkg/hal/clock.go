package hal

import (
	"context"
	"errors"
	"fmt"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"go.uber.org/zap"
)

const (
	MinClockHz = bcm2837.OscillatorHz / bcm2837.CmDiviMax
	MaxClockHz = bcm2837.OscillatorHz
)

// stopClock disables a clock manager channel and waits for BUSY to drop.
func (r *Registry) stopClock(ctx context.Context, clk mmio.Registers, ctlOffset uint32, op string) error {
	clk.Write32(ctlOffset, bcm2837.CmPassword|bcm2837.CmSrcOsc)
	return r.waitUntil(ctx, op, func() bool {
		return clk.Read32(ctlOffset)&bcm2837.CmBusy == 0
	})
}

// programClock stops the channel, writes the divisor and restarts it from the oscillator.
func (r *Registry) programClock(ctx context.Context, clk mmio.Registers, ctlOffset, divOffset uint32, divi, divf, mash uint32, op string) error {
	if err := r.stopClock(ctx, clk, ctlOffset, op); err != nil {
		return err
	}
	clk.Write32(divOffset, bcm2837.CmPassword|(divi&bcm2837.CmDiviMax)<<bcm2837.CmDiviShift|(divf&bcm2837.CmDivfMax))
	clk.Write32(ctlOffset, bcm2837.CmPassword|mash<<bcm2837.CmMashShift|bcm2837.CmEnable|bcm2837.CmSrcOsc)
	return nil
}

// ClockDivisors computes the integer and fractional divisor of the 19.2 MHz
// oscillator for hz. Frequencies the divisor cannot reach are rejected.
func ClockDivisors(hz uint32) (divi, divf uint32, err error) {
	if hz < MinClockHz || hz > MaxClockHz {
		return 0, 0, NewError(KindInvalidArgument,
			fmt.Sprintf("clock frequency %d Hz is out of range", hz),
			fmt.Sprintf("use a frequency between %d Hz and %d Hz", MinClockHz, MaxClockHz),
		)
	}

	divi = bcm2837.OscillatorHz / hz
	divf = uint32(uint64(bcm2837.OscillatorHz%hz) * 4096 / uint64(hz))
	return divi, divf, nil
}

// Clock drives a general purpose clock (GPCLK0..2) onto a pin.
type Clock struct {
	reg     *Registry
	pin     int
	channel ChannelID
	gpio    mmio.Registers
	clk     mmio.Registers
	hz      uint32
	closed  bool
}

// NewClock claims the clock channel of pin and starts it at hz.
func NewClock(ctx context.Context, reg *Registry, pin int, hz uint32) (*Clock, error) {
	if _, _, err := ClockDivisors(hz); err != nil {
		return nil, err
	}

	channel, err := reg.Arbiter().Claim(ClassClock, pin)
	if err != nil {
		return nil, err
	}
	c := &Clock{reg: reg, pin: pin, channel: channel}

	if c.gpio, err = reg.Acquire(ctx, BlockGPIO); err != nil {
		return nil, errors.Join(err, c.Close())
	}
	if c.clk, err = reg.Acquire(ctx, BlockClock); err != nil {
		return nil, errors.Join(err, c.Close())
	}

	route, _ := LookupRoute(ClassClock, pin)
	setFunction(c.gpio, pin, route.Function)

	if err := c.SetFrequency(ctx, hz); err != nil {
		return nil, errors.Join(err, c.Close())
	}
	return c, nil
}

func (c *Clock) ctlOffset() uint32 {
	return bcm2837.CmGP0CTL + uint32(c.channel)*8
}

func (c *Clock) divOffset() uint32 {
	return bcm2837.CmGP0DIV + uint32(c.channel)*8
}

// SetFrequency reprograms the divisor. MASH 1 is used when a fractional part is needed.
func (c *Clock) SetFrequency(ctx context.Context, hz uint32) error {
	if c.clk == nil {
		return errClosed("clock")
	}
	divi, divf, err := ClockDivisors(hz)
	if err != nil {
		return err
	}

	var mash uint32
	if divf != 0 && divi >= 2 {
		mash = 1
	} else {
		divf = 0
	}

	if err := c.reg.programClock(ctx, c.clk, c.ctlOffset(), c.divOffset(), divi, divf, mash, "gpclk_stop"); err != nil {
		return err
	}
	c.hz = hz

	log.FromContext(ctx).Debug("clock configured",
		zap.Int("pin", c.pin), zap.Int("channel", int(c.channel)),
		zap.Uint32("hz", hz), zap.Uint32("divi", divi), zap.Uint32("divf", divf))
	return nil
}

// Stop halts the clock output.
func (c *Clock) Stop(ctx context.Context) error {
	if c.clk == nil {
		return errClosed("clock")
	}
	if err := c.reg.stopClock(ctx, c.clk, c.ctlOffset(), "gpclk_stop"); err != nil {
		return err
	}
	c.hz = 0
	return nil
}

// Frequency returns the programmed frequency, 0 when stopped.
func (c *Clock) Frequency() uint32 {
	return c.hz
}

func (c *Clock) Channel() ChannelID {
	return c.channel
}

// Close stops the clock, returns the pin to input and releases everything claimed.
func (c *Clock) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	last := c.reg.Arbiter().Release(ClassClock, c.channel)

	var errs []error
	if c.clk != nil {
		if last {
			c.clk.Write32(c.ctlOffset(), bcm2837.CmPassword|bcm2837.CmSrcOsc)
		}
		errs = append(errs, c.reg.Release(BlockClock))
		c.clk = nil
	}
	if c.gpio != nil {
		if last {
			setFunction(c.gpio, c.pin, bcm2837.FuncInput)
		}
		errs = append(errs, c.reg.Release(BlockGPIO))
		c.gpio = nil
	}
	return errors.Join(errs...)
}
