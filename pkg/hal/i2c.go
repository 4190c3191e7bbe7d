package hal

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"go.uber.org/zap"
	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*I2C)(nil)

// DefaultI2CBusHz is the standard-mode bus speed.
const DefaultI2CBusHz = 100_000

// i2cSclPins maps an SDA pin to its SCL partner.
var i2cSclPins = map[int]int{0: 1, 28: 29, 2: 3, 44: 45}

// I2C is a BSC master on one of the two I2C buses.
type I2C struct {
	reg     *Registry
	sda     int
	scl     int
	channel ChannelID
	block   BlockKind
	gpio    mmio.Registers
	bsc     mmio.Registers
	closed  bool
}

// NewI2C claims the bus wired to sda/scl and enables the controller at DefaultI2CBusHz.
func NewI2C(ctx context.Context, reg *Registry, sda, scl int) (*I2C, error) {
	if want, ok := i2cSclPins[sda]; !ok || want != scl {
		return nil, NewError(KindInvalidPin, fmt.Sprintf("pins %d/%d are not an I2C SDA/SCL pair", sda, scl),
			"use SDA/SCL pairs 0/1 or 28/29 for bus 0, 2/3 or 44/45 for bus 1",
		)
	}

	channel, err := reg.Arbiter().Claim(ClassI2C, sda)
	if err != nil {
		return nil, err
	}
	b := &I2C{reg: reg, sda: sda, scl: scl, channel: channel, block: BlockI2C0}
	if channel == 1 {
		b.block = BlockI2C1
	}

	if b.gpio, err = reg.Acquire(ctx, BlockGPIO); err != nil {
		return nil, errors.Join(err, b.Close())
	}
	if b.bsc, err = reg.Acquire(ctx, b.block); err != nil {
		return nil, errors.Join(err, b.Close())
	}

	route, _ := LookupRoute(ClassI2C, sda)
	setFunction(b.gpio, sda, route.Function)
	setFunction(b.gpio, scl, route.Function)

	b.bsc.Write32(bcm2837.BscC, bcm2837.BscCClear)
	b.bsc.Write32(bcm2837.BscS, bcm2837.BscSClkt|bcm2837.BscSErr|bcm2837.BscSDone)
	if err := b.SetBusSpeed(DefaultI2CBusHz); err != nil {
		return nil, errors.Join(err, b.Close())
	}
	b.bsc.Write32(bcm2837.BscC, bcm2837.BscCI2cen)

	log.FromContext(ctx).Debug("i2c bus ready", zap.Int("bus", int(channel)), zap.Int("sda", sda), zap.Int("scl", scl))
	return b, nil
}

// SetBusSpeed programs the SCL divider from the 250 MHz core clock.
func (b *I2C) SetBusSpeed(hz uint32) error {
	if b.closed {
		return errClosed("i2c bus")
	}
	if hz == 0 || hz > 400_000 {
		return NewError(KindInvalidArgument, fmt.Sprintf("i2c bus speed %d Hz is out of range", hz),
			"use a bus speed up to 400000 Hz")
	}
	cdiv := bcm2837.CoreClockHz / hz
	if cdiv > 0xFFFE {
		return NewError(KindInvalidArgument, fmt.Sprintf("i2c bus speed %d Hz is too slow", hz))
	}
	// CDIV is always rounded down to an even number by the hardware.
	b.bsc.Write32(bcm2837.BscDIV, cdiv&^1)
	return nil
}

func (b *I2C) Bus() ChannelID {
	return b.channel
}

// Tx writes w and then reads len(r) bytes from the device at addr.
func (b *I2C) Tx(addr uint16, w, r []byte) error {
	return b.TxContext(context.Background(), addr, w, r)
}

// TxContext is Tx bounded by ctx in addition to the registry timeout.
func (b *I2C) TxContext(ctx context.Context, addr uint16, w, r []byte) error {
	if b.closed {
		return errClosed("i2c bus")
	}
	if addr > 0x7F {
		return NewError(KindInvalidArgument, fmt.Sprintf("i2c address 0x%x is not a 7-bit address", addr))
	}
	if len(w) > 0xFFFF || len(r) > 0xFFFF {
		return NewError(KindInvalidArgument, "i2c transfers are limited to 65535 bytes")
	}

	if len(w) > 0 {
		if err := b.write(ctx, addr, w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		if err := b.read(ctx, addr, r); err != nil {
			return err
		}
	}
	return nil
}

// WriteRegister writes buf starting at register reg.
func (b *I2C) WriteRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), append([]byte{reg}, buf...), nil)
}

// ReadRegister reads len(buf) bytes starting at register reg.
func (b *I2C) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	return b.Tx(uint16(addr), []byte{reg}, buf)
}

func (b *I2C) start(addr uint16, n int, read bool) {
	b.bsc.Write32(bcm2837.BscA, uint32(addr))
	b.bsc.Write32(bcm2837.BscC, bcm2837.BscCI2cen|bcm2837.BscCClear)
	b.bsc.Write32(bcm2837.BscS, bcm2837.BscSClkt|bcm2837.BscSErr|bcm2837.BscSDone)
	b.bsc.Write32(bcm2837.BscDLEN, uint32(n))

	c := uint32(bcm2837.BscCI2cen | bcm2837.BscCSt)
	if read {
		c |= bcm2837.BscCRead
	}
	b.bsc.Write32(bcm2837.BscC, c)
}

func (b *I2C) aborted() bool {
	return b.bsc.Read32(bcm2837.BscS)&(bcm2837.BscSErr|bcm2837.BscSClkt) != 0
}

func (b *I2C) write(ctx context.Context, addr uint16, data []byte) error {
	b.start(addr, len(data), false)

	for _, v := range data {
		if err := b.reg.waitUntil(ctx, "i2c_tx_fifo", func() bool {
			return b.aborted() || b.bsc.Read32(bcm2837.BscS)&bcm2837.BscSTxd != 0
		}); err != nil {
			return b.finish(ctx, addr, "write", err)
		}
		if b.aborted() {
			break
		}
		b.bsc.Write32(bcm2837.BscFIFO, uint32(v))
	}

	return b.finish(ctx, addr, "write", nil)
}

func (b *I2C) read(ctx context.Context, addr uint16, buf []byte) error {
	b.start(addr, len(buf), true)

	for i := range buf {
		if err := b.reg.waitUntil(ctx, "i2c_rx_fifo", func() bool {
			return b.aborted() || b.bsc.Read32(bcm2837.BscS)&bcm2837.BscSRxd != 0
		}); err != nil {
			return b.finish(ctx, addr, "read", err)
		}
		if b.aborted() {
			break
		}
		buf[i] = byte(b.bsc.Read32(bcm2837.BscFIFO))
	}

	return b.finish(ctx, addr, "read", nil)
}

// finish waits for DONE, translates error flags and acknowledges the status.
func (b *I2C) finish(ctx context.Context, addr uint16, direction string, err error) error {
	if err == nil {
		err = b.reg.waitUntil(ctx, "i2c_transfer_done", func() bool {
			return b.aborted() || b.bsc.Read32(bcm2837.BscS)&bcm2837.BscSDone != 0
		})
	}

	status := b.bsc.Read32(bcm2837.BscS)
	b.bsc.Write32(bcm2837.BscS, bcm2837.BscSClkt|bcm2837.BscSErr|bcm2837.BscSDone)

	switch {
	case err != nil:
	case status&bcm2837.BscSErr != 0:
		err = NewError(KindBusError, fmt.Sprintf("i2c device 0x%02x did not acknowledge", addr),
			"check the device address and wiring", "ensure the device is powered")
	case status&bcm2837.BscSClkt != 0:
		err = NewError(KindBusError, fmt.Sprintf("i2c device 0x%02x stretched the clock too long", addr))
	}

	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	i2cTransfers.WithLabelValues(strconv.Itoa(int(b.channel)), direction, result).Inc()
	return err
}

// Close disables the controller, returns both pins to input and releases the bus.
func (b *I2C) Close() error {
	if b.closed {
		return nil
	}

	last := b.reg.Arbiter().Release(ClassI2C, b.channel)

	var errs []error
	if b.bsc != nil {
		if last {
			b.bsc.Write32(bcm2837.BscC, bcm2837.BscCClear)
		}
		errs = append(errs, b.reg.Release(b.block))
	}
	if b.gpio != nil {
		if last {
			setFunction(b.gpio, b.sda, bcm2837.FuncInput)
			setFunction(b.gpio, b.scl, bcm2837.FuncInput)
		}
		errs = append(errs, b.reg.Release(BlockGPIO))
	}

	b.closed = true
	b.gpio, b.bsc = nil, nil
	return errors.Join(errs...)
}
