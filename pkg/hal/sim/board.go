// Package sim models the BCM2837 register side effects the HAL relies on,
// so peripherals can run against memory instead of /dev/mem.
package sim

import (
	"sync"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
)

const pwmStaW1C = bcm2837.PwmWERR1 | bcm2837.PwmRERR1 | bcm2837.PwmGAPO1 | bcm2837.PwmGAPO2 |
	bcm2837.PwmGAPO3 | bcm2837.PwmGAPO4 | bcm2837.PwmBERR

// fifoHistory bounds the captured FIFO words kept for FifoWrites.
const fifoHistory = 1 << 14

// Board is a simulated Raspberry Pi 3B register map. It satisfies mmio.Gate.
type Board struct {
	*mmio.FakeGate

	mu          sync.Mutex
	fifoWrites  []uint32
	fifoFull    bool
	clockStuck  bool
	busErrStuck bool
	i2c         [2]*bscController
}

func NewBoard() *Board {
	b := &Board{FakeGate: mmio.NewFakeGate()}
	b.wireGpio(b.Memory(bcm2837.GpioBase))
	b.wirePwm(b.Memory(bcm2837.PwmBase))
	b.wireClock(b.Memory(bcm2837.ClockBase))
	b.i2c[0] = newBscController(b.Memory(bcm2837.Bsc0Base))
	b.i2c[1] = newBscController(b.Memory(bcm2837.Bsc1Base))
	return b
}

// Memory returns the register file at base.
func (b *Board) Memory(base int64) *mmio.Memory {
	return b.Block(base, bcm2837.BlockSize)
}

func (b *Board) wireGpio(mem *mmio.Memory) {
	levels := func(set, clr, lev uint32) {
		mem.OnWrite(set, func(_, v uint32) uint32 {
			mem.Poke(lev, mem.Peek(lev)|v)
			return 0
		})
		mem.OnWrite(clr, func(_, v uint32) uint32 {
			mem.Poke(lev, mem.Peek(lev)&^v)
			return 0
		})
	}
	levels(bcm2837.GPSET0, bcm2837.GPCLR0, bcm2837.GPLEV0)
	levels(bcm2837.GPSET1, bcm2837.GPCLR1, bcm2837.GPLEV1)
}

func (b *Board) wirePwm(mem *mmio.Memory) {
	mem.OnWrite(bcm2837.PwmSTA, func(old, v uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		clear := v & pwmStaW1C
		if b.busErrStuck {
			clear &^= bcm2837.PwmBERR
		}
		return old &^ clear
	})
	mem.OnRead(bcm2837.PwmSTA, func(stored uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		stored &^= bcm2837.PwmFULL1 | bcm2837.PwmEMPT1
		if b.fifoFull {
			return stored | bcm2837.PwmFULL1
		}
		return stored | bcm2837.PwmEMPT1
	})
	mem.OnWrite(bcm2837.PwmCTL, func(_, v uint32) uint32 {
		return v &^ bcm2837.PwmCLRF1
	})
	mem.OnWrite(bcm2837.PwmFIF1, func(_, v uint32) uint32 {
		b.mu.Lock()
		defer b.mu.Unlock()
		if len(b.fifoWrites) >= fifoHistory {
			b.fifoWrites = append(b.fifoWrites[:0], b.fifoWrites[fifoHistory/2:]...)
		}
		b.fifoWrites = append(b.fifoWrites, v)
		return 0
	})
}

func (b *Board) wireClock(mem *mmio.Memory) {
	ctl := func(old, v uint32) uint32 {
		if v&0xFF000000 != bcm2837.CmPassword {
			return old
		}
		v &^= 0xFF000000 | bcm2837.CmBusy
		b.mu.Lock()
		defer b.mu.Unlock()
		if v&bcm2837.CmEnable != 0 || b.clockStuck {
			v |= bcm2837.CmBusy
		}
		return v
	}
	div := func(old, v uint32) uint32 {
		if v&0xFF000000 != bcm2837.CmPassword {
			return old
		}
		return v &^ 0xFF000000
	}
	for _, off := range []uint32{bcm2837.CmGP0CTL, bcm2837.CmGP1CTL, bcm2837.CmGP2CTL, bcm2837.CmPWMCTL} {
		mem.OnWrite(off, ctl)
	}
	for _, off := range []uint32{bcm2837.CmGP0DIV, bcm2837.CmGP1DIV, bcm2837.CmGP2DIV, bcm2837.CmPWMDIV} {
		mem.OnWrite(off, div)
	}
}

// FifoWrites returns every word written to the PWM FIFO since the last ResetFifoWrites.
func (b *Board) FifoWrites() []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint32(nil), b.fifoWrites...)
}

func (b *Board) ResetFifoWrites() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fifoWrites = nil
}

// SetFifoFull pins the PWM FIFO-full flag.
func (b *Board) SetFifoFull(full bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fifoFull = full
}

// SetClockStuck keeps every clock manager channel reporting BUSY.
func (b *Board) SetClockStuck(stuck bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clockStuck = stuck
}

// SetBusErrorStuck raises PWM BERR and ignores attempts to clear it.
func (b *Board) SetBusErrorStuck(stuck bool) {
	b.mu.Lock()
	b.busErrStuck = stuck
	b.mu.Unlock()

	mem := b.Memory(bcm2837.PwmBase)
	if stuck {
		mem.Poke(bcm2837.PwmSTA, mem.Peek(bcm2837.PwmSTA)|bcm2837.PwmBERR)
	}
}

// Level reports the simulated output level of pin.
func (b *Board) Level(pin int) bool {
	mem := b.Memory(bcm2837.GpioBase)
	if pin < 32 {
		return mem.Peek(bcm2837.GPLEV0)&(1<<pin) != 0
	}
	return mem.Peek(bcm2837.GPLEV1)&(1<<(pin-32)) != 0
}

// Function reports the function select of pin.
func (b *Board) Function(pin int) bcm2837.Function {
	off, shift := bcm2837.FselOffset(pin)
	return bcm2837.Function((b.Memory(bcm2837.GpioBase).Peek(off) >> shift) & 0b111)
}

// AttachI2C places dev at addr on bus 0 or 1.
func (b *Board) AttachI2C(bus int, addr uint16, dev Device) {
	b.i2c[bus].attach(addr, dev)
}
