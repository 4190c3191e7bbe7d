package hal_test

import (
	"context"
	"testing"

	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestI2C_Transfers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, board := newSimRegistry(t)
	dev := sim.NewPCA9685()
	board.AttachI2C(1, 0x40, dev)

	bus, err := hal.NewI2C(ctx, reg, 2, 3)
	require.NoError(t, err)
	defer bus.Close()

	assert.Equal(t, hal.ChannelID(1), bus.Bus())
	assert.Equal(t, bcm2837.FuncAlt0, board.Function(2))
	assert.Equal(t, bcm2837.FuncAlt0, board.Function(3))
	assert.Equal(t, uint32(2500), board.Memory(bcm2837.Bsc1Base).Peek(bcm2837.BscDIV))

	// MODE1: auto-increment, awake
	require.NoError(t, bus.WriteRegister(0x40, 0x00, []byte{0x20}))
	assert.Equal(t, byte(0x20), dev.Register(0x00))

	require.NoError(t, bus.Tx(0x40, []byte{0x06, 0x01, 0x02, 0x03, 0x04}, nil))
	on, off := dev.Channel(0)
	assert.Equal(t, uint16(0x0201), on)
	assert.Equal(t, uint16(0x0403), off)

	buf := make([]byte, 4)
	require.NoError(t, bus.ReadRegister(0x40, 0x06, buf))
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf)
}

func TestI2C_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, _ := newSimRegistry(t)

	bus, err := hal.NewI2C(ctx, reg, 0, 1)
	require.NoError(t, err)
	defer bus.Close()

	err = bus.Tx(0x41, []byte{0x00, 0x01}, nil)
	assert.ErrorIs(t, err, hal.ErrBusError)

	err = bus.Tx(0x41, nil, make([]byte, 1))
	assert.ErrorIs(t, err, hal.ErrBusError)

	assert.ErrorIs(t, bus.Tx(0x80, []byte{0}, nil), hal.ErrInvalidArgument)
	assert.ErrorIs(t, bus.SetBusSpeed(0), hal.ErrInvalidArgument)
	assert.ErrorIs(t, bus.SetBusSpeed(500_000), hal.ErrInvalidArgument)
	require.NoError(t, bus.SetBusSpeed(400_000))

	_, err = hal.NewI2C(ctx, reg, 28, 29)
	assert.ErrorIs(t, err, hal.ErrChannelOccupied)

	_, err = hal.NewI2C(ctx, reg, 2, 5)
	assert.ErrorIs(t, err, hal.ErrInvalidPin)
}

func TestI2C_AltPins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, board := newSimRegistry(t)

	bus, err := hal.NewI2C(ctx, reg, 44, 45)
	require.NoError(t, err)
	assert.Equal(t, bcm2837.FuncAlt2, board.Function(44))
	assert.Equal(t, bcm2837.FuncAlt2, board.Function(45))

	require.NoError(t, bus.Close())
	assert.Equal(t, bcm2837.FuncInput, board.Function(44))
	assert.False(t, reg.Mapped(hal.BlockI2C1))
	assert.Error(t, bus.Tx(0x40, []byte{0}, nil))
}
