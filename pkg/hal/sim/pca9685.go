package sim

import (
	"errors"
	"sync"
)

const (
	pcaMode1     = 0x00
	pcaAllLedOnL = 0xFA
	pcaPrescale  = 0xFE

	pcaMode1Sleep = 0x10
	pcaMode1AI    = 0x20
)

// PCA9685 is a register-level model of the 16 channel PWM expander.
type PCA9685 struct {
	mu   sync.Mutex
	regs [256]byte
	ptr  byte
}

// NewPCA9685 returns a device in its power-on state: asleep, all-call enabled, 200 Hz prescale.
func NewPCA9685() *PCA9685 {
	d := &PCA9685{}
	d.regs[pcaMode1] = 0x11
	d.regs[0x01] = 0x04
	d.regs[pcaPrescale] = 0x1E
	return d
}

func (d *PCA9685) Write(p []byte) error {
	if len(p) == 0 {
		return errors.New("empty write")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ptr = p[0]
	for _, v := range p[1:] {
		d.store(d.ptr, v)
		d.advance()
	}
	return nil
}

func (d *PCA9685) Read(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range p {
		p[i] = d.regs[d.ptr]
		d.advance()
	}
	return nil
}

func (d *PCA9685) store(reg, v byte) {
	switch {
	case reg == pcaPrescale:
		if d.regs[pcaMode1]&pcaMode1Sleep == 0 {
			return
		}
	case reg >= pcaAllLedOnL && reg < pcaAllLedOnL+4:
		for ch := 0; ch < 16; ch++ {
			d.regs[0x06+4*ch+int(reg-pcaAllLedOnL)] = v
		}
	}
	d.regs[reg] = v
}

func (d *PCA9685) advance() {
	if d.regs[pcaMode1]&pcaMode1AI != 0 {
		d.ptr++
	}
}

// Register returns the current value of reg.
func (d *PCA9685) Register(reg byte) byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[reg]
}

// Channel returns the 12-bit on and off counts of channel ch.
func (d *PCA9685) Channel(ch int) (on, off uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	base := 0x06 + 4*ch
	on = uint16(d.regs[base]) | uint16(d.regs[base+1])<<8
	off = uint16(d.regs[base+2]) | uint16(d.regs[base+3])<<8
	return on, off
}
