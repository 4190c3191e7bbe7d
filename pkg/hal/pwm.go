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

// PwmMode selects how a PWM channel turns data into pulses.
type PwmMode int

const (
	// PwmModeBalance spreads DAT/RNG high ticks evenly over the range.
	PwmModeBalance PwmMode = iota
	// PwmModeSerializer shifts out each data word MSB first, one bit per tick.
	PwmModeSerializer
)

func (m PwmMode) String() string {
	if m == PwmModeSerializer {
		return "serializer"
	}
	return "balance"
}

// PwmConfig is the configuration of one PWM channel.
type PwmConfig struct {
	// Range is the number of bit clock ticks per period (balance) or per word (serializer).
	Range uint32
	// Divisor divides the 19.2 MHz oscillator down to the bit clock.
	Divisor uint32
	Mode    PwmMode
	// UseFifo feeds the channel from the FIFO instead of DATx. Implied by serializer mode.
	UseFifo bool
}

func (c PwmConfig) validate() error {
	if c.Range == 0 {
		return NewError(KindInvalidArgument, "pwm range must be greater than zero")
	}
	if c.Divisor == 0 || c.Divisor > bcm2837.CmDiviMax {
		return NewError(KindInvalidArgument, fmt.Sprintf("pwm clock divisor %d is out of range", c.Divisor),
			fmt.Sprintf("use a divisor between 1 and %d", bcm2837.CmDiviMax),
		)
	}
	return nil
}

// PwmStatus is the decoded STA register as seen by one channel.
type PwmStatus struct {
	FifoFull     bool
	FifoEmpty    bool
	BusError     bool
	Transmitting bool
}

// pwmChannelCtlMask covers a channel's CTL byte without the shared CLRF bit.
const pwmChannelCtlMask = bcm2837.PwmPWEN1 | bcm2837.PwmMODE1 | bcm2837.PwmRPTL1 | bcm2837.PwmSBIT1 |
	bcm2837.PwmPOLA1 | bcm2837.PwmUSEF1 | bcm2837.PwmMSEN1

// Pwm owns one PWM channel routed to a pin.
type Pwm struct {
	reg     *Registry
	pin     int
	channel ChannelID
	gpio    mmio.Registers
	pwm     mmio.Registers
	clk     mmio.Registers
	cfg     PwmConfig
	closed  bool
}

// NewPwm claims the PWM channel of pin, routes the pin to it and applies cfg.
func NewPwm(ctx context.Context, reg *Registry, pin int, cfg PwmConfig) (*Pwm, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	channel, err := reg.Arbiter().Claim(ClassPWM, pin)
	if err != nil {
		return nil, err
	}
	p := &Pwm{reg: reg, pin: pin, channel: channel}

	if p.gpio, err = reg.Acquire(ctx, BlockGPIO); err != nil {
		return nil, errors.Join(err, p.Close())
	}
	if p.pwm, err = reg.Acquire(ctx, BlockPWM); err != nil {
		return nil, errors.Join(err, p.Close())
	}
	if p.clk, err = reg.Acquire(ctx, BlockClock); err != nil {
		return nil, errors.Join(err, p.Close())
	}

	route, _ := LookupRoute(ClassPWM, pin)
	setFunction(p.gpio, pin, route.Function)

	if err := p.Configure(ctx, cfg); err != nil {
		return nil, errors.Join(err, p.Close())
	}
	return p, nil
}

func (p *Pwm) ctlShift() uint32 {
	if p.channel == 2 {
		return bcm2837.PwmChannel2Shift
	}
	return 0
}

func (p *Pwm) rngOffset() uint32 {
	if p.channel == 2 {
		return bcm2837.PwmRNG2
	}
	return bcm2837.PwmRNG1
}

func (p *Pwm) datOffset() uint32 {
	if p.channel == 2 {
		return bcm2837.PwmDAT2
	}
	return bcm2837.PwmDAT1
}

// Configure reprograms the channel in a fixed order: output off, bit clock,
// range, mode, bus error acknowledge. The output is left disabled.
func (p *Pwm) Configure(ctx context.Context, cfg PwmConfig) error {
	if p.closed {
		return errClosed("pwm")
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	if cfg.Mode == PwmModeSerializer {
		cfg.UseFifo = true
	}

	// 1. output off
	p.Disable()
	p.reg.settle()

	// 2. bit clock
	if err := p.reg.programClock(ctx, p.clk, bcm2837.CmPWMCTL, bcm2837.CmPWMDIV, cfg.Divisor, 0, 0, "pwm_clock_stop"); err != nil {
		return err
	}
	p.reg.settle()

	// 3. range
	p.pwm.Write32(p.rngOffset(), cfg.Range)
	p.reg.settle()

	// 4. mode
	var bits uint32
	if cfg.Mode == PwmModeSerializer {
		bits |= bcm2837.PwmMODE1
	}
	if cfg.UseFifo {
		bits |= bcm2837.PwmUSEF1
	}
	shift := p.ctlShift()
	ctl := p.pwm.Read32(bcm2837.PwmCTL)
	ctl = (ctl &^ (pwmChannelCtlMask << shift)) | bits<<shift
	p.pwm.Write32(bcm2837.PwmCTL, ctl)
	p.reg.settle()

	// 5. acknowledge bus errors
	p.pwm.Write32(bcm2837.PwmSTA, bcm2837.PwmBERR)
	if err := p.reg.waitUntil(ctx, "pwm_bus_error_clear", func() bool {
		return p.pwm.Read32(bcm2837.PwmSTA)&bcm2837.PwmBERR == 0
	}); err != nil {
		return err
	}

	p.cfg = cfg
	log.FromContext(ctx).Debug("pwm configured",
		zap.Int("pin", p.pin), zap.Int("channel", int(p.channel)),
		zap.Uint32("range", cfg.Range), zap.Uint32("divisor", cfg.Divisor),
		zap.Stringer("mode", cfg.Mode), zap.Bool("fifo", cfg.UseFifo))
	return nil
}

// PushFifo writes words to the FIFO in order, waiting for space whenever the FIFO is full.
func (p *Pwm) PushFifo(ctx context.Context, words []uint32) error {
	if p.closed {
		return errClosed("pwm")
	}
	for i, w := range words {
		if err := p.reg.waitUntil(ctx, "pwm_fifo_full", func() bool {
			return p.pwm.Read32(bcm2837.PwmSTA)&bcm2837.PwmFULL1 == 0
		}); err != nil {
			fifoWordsWritten.Add(float64(i))
			return err
		}
		p.pwm.Write32(bcm2837.PwmFIF1, w)
	}
	fifoWordsWritten.Add(float64(len(words)))
	return nil
}

// Enable sets the channel's output enable bit.
func (p *Pwm) Enable() {
	if p.closed {
		return
	}
	ctl := p.pwm.Read32(bcm2837.PwmCTL)
	p.pwm.Write32(bcm2837.PwmCTL, ctl|bcm2837.PwmPWEN1<<p.ctlShift())
}

// Disable clears the channel's output enable bit. Disabling twice is harmless.
func (p *Pwm) Disable() {
	if p.closed {
		return
	}
	ctl := p.pwm.Read32(bcm2837.PwmCTL)
	p.pwm.Write32(bcm2837.PwmCTL, ctl&^(bcm2837.PwmPWEN1<<p.ctlShift()))
}

// Enabled reports whether the output enable bit is set.
func (p *Pwm) Enabled() bool {
	if p.closed {
		return false
	}
	return p.pwm.Read32(bcm2837.PwmCTL)&(bcm2837.PwmPWEN1<<p.ctlShift()) != 0
}

// ClearFifo drops all queued FIFO words. CLRF resets itself.
func (p *Pwm) ClearFifo() {
	if p.closed {
		return
	}
	ctl := p.pwm.Read32(bcm2837.PwmCTL)
	p.pwm.Write32(bcm2837.PwmCTL, ctl|bcm2837.PwmCLRF1)
}

// SetData writes the DATx register used when the channel is not fed from the FIFO.
func (p *Pwm) SetData(value uint32) error {
	if p.closed {
		return errClosed("pwm")
	}
	if value > p.cfg.Range {
		return NewError(KindInvalidArgument, fmt.Sprintf("pwm data %d exceeds range %d", value, p.cfg.Range))
	}
	if p.cfg.UseFifo {
		return NewError(KindInvalidArgument, "pwm channel is fed from the FIFO",
			"configure the channel without FIFO to use DATx")
	}
	p.pwm.Write32(p.datOffset(), value)
	return nil
}

// Status decodes STA for this channel.
func (p *Pwm) Status() PwmStatus {
	if p.closed {
		return PwmStatus{}
	}
	sta := p.pwm.Read32(bcm2837.PwmSTA)
	transmitting := uint32(bcm2837.PwmSTA1)
	if p.channel == 2 {
		transmitting = bcm2837.PwmSTA2
	}
	return PwmStatus{
		FifoFull:     sta&bcm2837.PwmFULL1 != 0,
		FifoEmpty:    sta&bcm2837.PwmEMPT1 != 0,
		BusError:     sta&bcm2837.PwmBERR != 0,
		Transmitting: sta&transmitting != 0,
	}
}

func (p *Pwm) Channel() ChannelID {
	return p.channel
}

func (p *Pwm) Pin() int {
	return p.pin
}

func (p *Pwm) Config() PwmConfig {
	return p.cfg
}

// Close disables the output, disconnects the pin and releases the channel and register blocks.
func (p *Pwm) Close() error {
	if p.closed {
		return nil
	}

	// the channel stays live while another Pwm on the same pin holds it
	last := p.reg.Arbiter().Release(ClassPWM, p.channel)

	var errs []error
	if p.pwm != nil {
		if last {
			p.Disable()
		}
		errs = append(errs, p.reg.Release(BlockPWM))
	}
	if p.clk != nil {
		errs = append(errs, p.reg.Release(BlockClock))
	}
	if p.gpio != nil {
		if last {
			setFunction(p.gpio, p.pin, bcm2837.FuncInput)
		}
		errs = append(errs, p.reg.Release(BlockGPIO))
	}

	p.closed = true
	p.gpio, p.pwm, p.clk = nil, nil, nil
	return errors.Join(errs...)
}
