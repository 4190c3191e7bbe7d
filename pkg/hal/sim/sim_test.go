package sim_test

import (
	"testing"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCA9685_Prescale(t *testing.T) {
	t.Parallel()

	dev := sim.NewPCA9685()
	assert.Equal(t, byte(0x11), dev.Register(0x00))

	// asleep at power-on, so the prescaler accepts writes
	require.NoError(t, dev.Write([]byte{0xFE, 0x79}))
	assert.Equal(t, byte(0x79), dev.Register(0xFE))

	require.NoError(t, dev.Write([]byte{0x00, 0x20}))
	require.NoError(t, dev.Write([]byte{0xFE, 0x03}))
	assert.Equal(t, byte(0x79), dev.Register(0xFE))
}

func TestPCA9685_AllLed(t *testing.T) {
	t.Parallel()

	dev := sim.NewPCA9685()
	require.NoError(t, dev.Write([]byte{0x00, 0x20}))
	require.NoError(t, dev.Write([]byte{0xFA, 0x00, 0x00, 0x00, 0x10}))

	for ch := 0; ch < 16; ch++ {
		on, off := dev.Channel(ch)
		assert.Equal(t, uint16(0), on)
		assert.Equal(t, uint16(0x1000), off)
	}
}

func TestBoard_ClockPassword(t *testing.T) {
	t.Parallel()

	board := sim.NewBoard()
	require.NoError(t, board.Open())
	m, err := board.Map(bcm2837.ClockBase, bcm2837.BlockSize)
	require.NoError(t, err)

	m.Write32(bcm2837.CmGP0CTL, bcm2837.CmEnable|bcm2837.CmSrcOsc)
	assert.Zero(t, m.Read32(bcm2837.CmGP0CTL))

	m.Write32(bcm2837.CmGP0CTL, bcm2837.CmPassword|bcm2837.CmEnable|bcm2837.CmSrcOsc)
	assert.Equal(t, uint32(bcm2837.CmEnable|bcm2837.CmSrcOsc|bcm2837.CmBusy), m.Read32(bcm2837.CmGP0CTL))

	m.Write32(bcm2837.CmGP0CTL, bcm2837.CmPassword|bcm2837.CmSrcOsc)
	assert.Equal(t, uint32(bcm2837.CmSrcOsc), m.Read32(bcm2837.CmGP0CTL))

	require.NoError(t, m.Unmap())
	require.NoError(t, board.Close())
}

func TestBoard_GpioLevels(t *testing.T) {
	t.Parallel()

	board := sim.NewBoard()
	gpio := board.Memory(bcm2837.GpioBase)

	gpio.Write32(bcm2837.GPSET0, 1<<5|1<<6)
	gpio.Write32(bcm2837.GPSET1, 1<<8)
	gpio.Write32(bcm2837.GPCLR0, 1<<6)

	assert.True(t, board.Level(5))
	assert.False(t, board.Level(6))
	assert.True(t, board.Level(40))
}
