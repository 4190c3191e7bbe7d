// Package pca9685 drives the NXP PCA9685 16-channel, 12-bit PWM expander
// over any tinygo drivers.I2C bus.
package pca9685

import (
	"fmt"
	"math"
	"time"

	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"tinygo.org/x/drivers"
)

const (
	DefaultAddress = 0x40
	// OscillatorHz is the internal oscillator frequency.
	OscillatorHz = 25_000_000
	MinFrequency = 40
	MaxFrequency = 1000
	Channels     = 16
	// MaxCount is the largest 12-bit on/off count.
	MaxCount = 4095
)

const (
	regMode1     = 0x00
	regLed0OnL   = 0x06
	regAllLedOnL = 0xFA
	regPrescale  = 0xFE

	mode1Restart = 0x80
	mode1AI      = 0x20
	mode1Sleep   = 0x10
	mode1AllCall = 0x01

	// fullBit in LEDn_ON_H / LEDn_OFF_H forces the output fully on / off.
	fullBit = 0x10

	oscillatorStartup = time.Millisecond
)

// Device is one PCA9685 on an I2C bus.
type Device struct {
	bus  drivers.I2C
	addr uint16
	hz   float64

	sleep func(time.Duration)
}

func New(bus drivers.I2C, addr uint16) *Device {
	return &Device{bus: bus, addr: addr, sleep: time.Sleep}
}

// Configure resets MODE1 to auto-increment with all-call and sets the output frequency.
func (d *Device) Configure(hz float64) error {
	if err := d.writeReg(regMode1, mode1AI|mode1AllCall); err != nil {
		return err
	}
	return d.SetFrequency(hz)
}

// Prescale returns the PRE_SCALE value for an output frequency of hz.
func Prescale(hz float64) (uint8, error) {
	if math.IsNaN(hz) || hz < MinFrequency || hz > MaxFrequency {
		return 0, hal.NewError(hal.KindInvalidArgument,
			fmt.Sprintf("pca9685 frequency %v Hz is out of range", hz),
			fmt.Sprintf("use a frequency between %d and %d Hz", MinFrequency, MaxFrequency),
		)
	}
	return uint8(math.Round(OscillatorHz/(4096*hz)) - 1), nil
}

// SetFrequency reprograms the prescaler. PRE_SCALE only accepts writes while
// the oscillator sleeps, and the oscillator needs up to 500 µs to restart.
func (d *Device) SetFrequency(hz float64) error {
	prescale, err := Prescale(hz)
	if err != nil {
		return err
	}

	if err := d.Sleep(); err != nil {
		return err
	}
	if err := d.writeReg(regPrescale, prescale); err != nil {
		return err
	}
	if err := d.Wake(); err != nil {
		return err
	}
	d.sleep(oscillatorStartup)
	if err := d.Restart(); err != nil {
		return err
	}

	d.hz = hz
	return nil
}

// Frequency returns the last frequency set, 0 before Configure.
func (d *Device) Frequency() float64 {
	return d.hz
}

// SetDutyCycle sets channel ch high for duty of each period, starting delay
// counts into the period. A duty of 0 or 1 uses the full-off / full-on bits.
func (d *Device) SetDutyCycle(ch int, duty float64, delay uint16) error {
	if err := validateChannel(ch); err != nil {
		return err
	}
	on, off, err := counts(duty, delay)
	if err != nil {
		return err
	}
	return d.writeCounts(regLed0OnL+byte(4*ch), on, off)
}

// SetCounts writes raw 12-bit on and off counts for channel ch.
func (d *Device) SetCounts(ch int, on, off uint16) error {
	if err := validateChannel(ch); err != nil {
		return err
	}
	if on > MaxCount || off > MaxCount {
		return hal.NewError(hal.KindInvalidArgument,
			fmt.Sprintf("pca9685 counts %d/%d exceed %d", on, off, MaxCount))
	}
	return d.writeCounts(regLed0OnL+byte(4*ch), on, off)
}

// SetAll applies a duty cycle to every channel at once.
func (d *Device) SetAll(duty float64, delay uint16) error {
	on, off, err := counts(duty, delay)
	if err != nil {
		return err
	}
	return d.writeCounts(regAllLedOnL, on, off)
}

// AllOff forces every output low.
func (d *Device) AllOff() error {
	return d.writeCounts(regAllLedOnL, 0, fullBit<<8)
}

// Sleep stops the oscillator; outputs go off.
func (d *Device) Sleep() error {
	mode, err := d.Mode1()
	if err != nil {
		return err
	}
	return d.writeReg(regMode1, (mode&^mode1Restart)|mode1Sleep)
}

// Wake restarts the oscillator.
func (d *Device) Wake() error {
	mode, err := d.Mode1()
	if err != nil {
		return err
	}
	return d.writeReg(regMode1, mode&^(mode1Sleep|mode1Restart))
}

// Restart resumes the PWM channels that were active before Sleep.
func (d *Device) Restart() error {
	mode, err := d.Mode1()
	if err != nil {
		return err
	}
	return d.writeReg(regMode1, mode|mode1Restart)
}

// Mode1 reads the MODE1 register.
func (d *Device) Mode1() (byte, error) {
	buf := []byte{0}
	if err := d.bus.Tx(d.addr, []byte{regMode1}, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func validateChannel(ch int) error {
	if ch < 0 || ch >= Channels {
		return hal.NewError(hal.KindInvalidArgument,
			fmt.Sprintf("pca9685 channel %d does not exist", ch),
			fmt.Sprintf("use a channel between 0 and %d", Channels-1),
		)
	}
	return nil
}

func counts(duty float64, delay uint16) (on, off uint16, err error) {
	if math.IsNaN(duty) || duty < 0 || duty > 1 {
		return 0, 0, hal.NewError(hal.KindInvalidArgument,
			fmt.Sprintf("pca9685 duty cycle %v is outside [0, 1]", duty))
	}
	if delay > MaxCount {
		return 0, 0, hal.NewError(hal.KindInvalidArgument,
			fmt.Sprintf("pca9685 delay %d exceeds %d", delay, MaxCount))
	}

	switch duty {
	case 0:
		return 0, fullBit << 8, nil
	case 1:
		return fullBit << 8, 0, nil
	}
	off = uint16(4096*duty+float64(delay)) & MaxCount
	return delay, off, nil
}

// writeCounts writes the four ON/OFF registers starting at base, one
// register per transfer.
func (d *Device) writeCounts(base byte, on, off uint16) error {
	values := [4]byte{byte(on), byte(on >> 8), byte(off), byte(off >> 8)}
	for i, v := range values {
		if err := d.writeReg(base+byte(i), v); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) writeReg(reg, value byte) error {
	return d.bus.Tx(d.addr, []byte{reg, value}, nil)
}
