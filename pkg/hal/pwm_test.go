package hal_test

import (
	"context"
	"testing"

	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serializerConfig = hal.PwmConfig{Range: 32, Divisor: 8, Mode: hal.PwmModeSerializer}

func TestPwm_ConfigureOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, board := newSimRegistry(t)

	p, err := hal.NewPwm(ctx, reg, 18, serializerConfig)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, hal.ChannelID(1), p.Channel())
	assert.Equal(t, bcm2837.FuncAlt5, board.Function(18))
	assert.True(t, p.Config().UseFifo)

	assert.Equal(t, []mmio.Access{
		{Offset: bcm2837.PwmCTL, Value: 0},
		{Offset: bcm2837.PwmRNG1, Value: 32},
		{Offset: bcm2837.PwmCTL, Value: bcm2837.PwmMODE1 | bcm2837.PwmUSEF1},
		{Offset: bcm2837.PwmSTA, Value: bcm2837.PwmBERR},
	}, board.Memory(bcm2837.PwmBase).Writes())

	assert.Equal(t, []mmio.Access{
		{Offset: bcm2837.CmPWMCTL, Value: bcm2837.CmPassword | bcm2837.CmSrcOsc},
		{Offset: bcm2837.CmPWMDIV, Value: bcm2837.CmPassword | 8<<bcm2837.CmDiviShift},
		{Offset: bcm2837.CmPWMCTL, Value: bcm2837.CmPassword | bcm2837.CmEnable | bcm2837.CmSrcOsc},
	}, board.Memory(bcm2837.ClockBase).Writes())
}

func TestPwm_SecondChannelKeepsFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, board := newSimRegistry(t)

	p1, err := hal.NewPwm(ctx, reg, 18, serializerConfig)
	require.NoError(t, err)
	defer p1.Close()
	p1.Enable()

	p2, err := hal.NewPwm(ctx, reg, 13, hal.PwmConfig{Range: 1024, Divisor: 16})
	require.NoError(t, err)
	defer p2.Close()

	ctl := board.Memory(bcm2837.PwmBase).Peek(bcm2837.PwmCTL)
	assert.Equal(t, uint32(bcm2837.PwmPWEN1|bcm2837.PwmMODE1|bcm2837.PwmUSEF1), ctl&0xFF)
	assert.Equal(t, uint32(0), ctl>>bcm2837.PwmChannel2Shift)
	assert.Equal(t, uint32(1024), board.Memory(bcm2837.PwmBase).Peek(bcm2837.PwmRNG2))

	require.NoError(t, p2.SetData(512))
	assert.Equal(t, uint32(512), board.Memory(bcm2837.PwmBase).Peek(bcm2837.PwmDAT2))
	assert.ErrorIs(t, p2.SetData(1025), hal.ErrInvalidArgument)
	assert.ErrorIs(t, p1.SetData(1), hal.ErrInvalidArgument)

	p2.Enable()
	assert.True(t, p2.Enabled())
	assert.True(t, p1.Enabled())
}

func TestPwm_SamePinSharesChannel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, board := newSimRegistry(t)

	p1, err := hal.NewPwm(ctx, reg, 18, serializerConfig)
	require.NoError(t, err)
	p2, err := hal.NewPwm(ctx, reg, 18, serializerConfig)
	require.NoError(t, err)
	p2.Enable()

	require.NoError(t, p1.Close())
	owner, held := reg.Arbiter().Owner(hal.ClassPWM, 1)
	require.True(t, held)
	assert.Equal(t, 18, owner)
	assert.Equal(t, bcm2837.FuncAlt5, board.Function(18))
	assert.True(t, p2.Enabled())

	_, err = hal.NewPwm(ctx, reg, 12, serializerConfig)
	assert.ErrorIs(t, err, hal.ErrChannelOccupied)

	require.NoError(t, p2.Close())
	_, held = reg.Arbiter().Owner(hal.ClassPWM, 1)
	assert.False(t, held)
	assert.Equal(t, bcm2837.FuncInput, board.Function(18))
	assert.False(t, reg.Mapped(hal.BlockPWM))
}

func TestPwm_EnableDisable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, _ := newSimRegistry(t)

	p, err := hal.NewPwm(ctx, reg, 12, serializerConfig)
	require.NoError(t, err)
	defer p.Close()

	assert.False(t, p.Enabled())
	p.Enable()
	assert.True(t, p.Enabled())
	p.Disable()
	p.Disable()
	assert.False(t, p.Enabled())
}

func TestPwm_PushFifo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, board := newSimRegistry(t)

	p, err := hal.NewPwm(ctx, reg, 18, serializerConfig)
	require.NoError(t, err)
	defer p.Close()

	words := []uint32{0x92492492, 0x49249249, 0x24000000}
	require.NoError(t, p.PushFifo(ctx, words))
	assert.Equal(t, words, board.FifoWrites())
	assert.True(t, p.Status().FifoEmpty)

	board.SetFifoFull(true)
	err = p.PushFifo(ctx, []uint32{1})
	assert.ErrorIs(t, err, hal.ErrTimingStall)
	assert.Len(t, board.FifoWrites(), len(words))

	board.SetFifoFull(false)
	p.ClearFifo()
	assert.Zero(t, board.Memory(bcm2837.PwmBase).Peek(bcm2837.PwmCTL)&bcm2837.PwmCLRF1)
}

func TestPwm_PushFifoCancelled(t *testing.T) {
	t.Parallel()

	reg, board := newSimRegistry(t)
	p, err := hal.NewPwm(context.Background(), reg, 18, serializerConfig)
	require.NoError(t, err)
	defer p.Close()

	board.SetFifoFull(true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.PushFifo(ctx, []uint32{1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, hal.ErrTimingStall)
	assert.Empty(t, board.FifoWrites())
}

func TestPwm_Stalls(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("clock busy", func(t *testing.T) {
		t.Parallel()
		reg, board := newSimRegistry(t)
		board.SetClockStuck(true)

		_, err := hal.NewPwm(ctx, reg, 18, serializerConfig)
		assert.ErrorIs(t, err, hal.ErrTimingStall)

		// a failed construction leaves nothing behind
		_, held := reg.Arbiter().Owner(hal.ClassPWM, 1)
		assert.False(t, held)
		assert.False(t, reg.Mapped(hal.BlockPWM))
		assert.False(t, reg.Mapped(hal.BlockGPIO))
		assert.Equal(t, bcm2837.FuncInput, board.Function(18))
	})

	t.Run("bus error", func(t *testing.T) {
		t.Parallel()
		reg, board := newSimRegistry(t)
		board.SetBusErrorStuck(true)

		_, err := hal.NewPwm(ctx, reg, 18, serializerConfig)
		assert.ErrorIs(t, err, hal.ErrTimingStall)
	})
}

func TestPwm_InvalidConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	testCases := []struct {
		name string
		cfg  hal.PwmConfig
	}{
		{"zero range", hal.PwmConfig{Range: 0, Divisor: 8}},
		{"zero divisor", hal.PwmConfig{Range: 32, Divisor: 0}},
		{"divisor too large", hal.PwmConfig{Range: 32, Divisor: 4096}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			reg, _ := newSimRegistry(t)
			_, err := hal.NewPwm(ctx, reg, 18, tc.cfg)
			assert.ErrorIs(t, err, hal.ErrInvalidArgument)
			assert.Empty(t, reg.Arbiter().Claims())
		})
	}

	reg, _ := newSimRegistry(t)
	_, err := hal.NewPwm(ctx, reg, 17, serializerConfig)
	assert.ErrorIs(t, err, hal.ErrInvalidPin)
}

func TestPwm_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, board := newSimRegistry(t)

	p, err := hal.NewPwm(ctx, reg, 18, serializerConfig)
	require.NoError(t, err)
	p.Enable()

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.False(t, reg.Mapped(hal.BlockPWM))
	assert.False(t, reg.Mapped(hal.BlockClock))
	assert.False(t, board.IsOpen())
	assert.Equal(t, bcm2837.FuncInput, board.Function(18))
	assert.Zero(t, board.Memory(bcm2837.PwmBase).Peek(bcm2837.PwmCTL)&bcm2837.PwmPWEN1)

	// the channel is free again
	p2, err := hal.NewPwm(ctx, reg, 12, serializerConfig)
	require.NoError(t, err)
	assert.NoError(t, p2.Close())
}
