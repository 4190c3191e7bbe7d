package ws2812b_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/sim"
	"github.com/alphabot-community/alphabot-agent/pkg/ws2812b"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Serializer that logs every call.
type recorder struct {
	calls   []string
	words   []uint32
	pushErr error
}

func (r *recorder) PushFifo(_ context.Context, words []uint32) error {
	r.calls = append(r.calls, "push")
	if r.pushErr != nil {
		return r.pushErr
	}
	r.words = append(r.words, words...)
	return nil
}

func (r *recorder) Enable()    { r.calls = append(r.calls, "enable") }
func (r *recorder) Disable()   { r.calls = append(r.calls, "disable") }
func (r *recorder) ClearFifo() { r.calls = append(r.calls, "clear") }

func TestController_PushFrame(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	var sleeps []time.Duration
	c := ws2812b.NewController(rec, ws2812b.WithSleep(func(d time.Duration) {
		rec.calls = append(rec.calls, "sleep")
		sleeps = append(sleeps, d)
	}))

	require.NoError(t, c.PushFrame(context.Background(), []led.Color{{}}, 1))

	assert.Equal(t, []string{"push", "enable", "sleep", "disable", "clear", "sleep"}, rec.calls)
	assert.Equal(t, []uint32{0x92492492, 0x49249249, 0x24000000}, rec.words)
	// 3 words x 32 bits at 2.4 MHz
	assert.Equal(t, []time.Duration{40 * time.Microsecond, ws2812b.DefaultLatch}, sleeps)
}

func TestController_Capacity(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	c := ws2812b.NewController(rec, ws2812b.WithSleep(func(time.Duration) {}))
	assert.Equal(t, 7, c.MaxPixels())

	require.NoError(t, c.PushFrame(context.Background(), make([]led.Color, 7), 1))

	rec.calls = nil
	err := c.PushFrame(context.Background(), make([]led.Color, 8), 1)
	assert.ErrorIs(t, err, hal.ErrInvalidArgument)
	assert.Empty(t, rec.calls)

	small := ws2812b.NewController(rec, ws2812b.WithFifoCapacity(3), ws2812b.WithSleep(func(time.Duration) {}))
	assert.Equal(t, 1, small.MaxPixels())
	assert.ErrorIs(t, small.PushFrame(context.Background(), make([]led.Color, 2), 1), hal.ErrInvalidArgument)
}

func TestController_PushFailure(t *testing.T) {
	t.Parallel()

	rec := &recorder{pushErr: errors.New("stalled")}
	c := ws2812b.NewController(rec, ws2812b.WithSleep(func(time.Duration) {}))

	err := c.PushFrame(context.Background(), []led.Color{{Red: 1}}, 1)
	assert.EqualError(t, err, "stalled")
	assert.Equal(t, []string{"push", "clear"}, rec.calls)
	assert.Zero(t, c.FrameTime(0))
}

func TestController_Open(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	board := sim.NewBoard()
	reg := hal.NewRegistry(hal.WithGate(board), hal.WithSettleDelay(0))
	defer reg.Close()

	c, err := ws2812b.Open(ctx, reg, 18, ws2812b.WithLatch(0))
	require.NoError(t, err)

	pwm := board.Memory(bcm2837.PwmBase)
	assert.Equal(t, uint32(ws2812b.WordBits), pwm.Peek(bcm2837.PwmRNG1))
	assert.Equal(t, uint32(ws2812b.ClockDivisor<<bcm2837.CmDiviShift), board.Memory(bcm2837.ClockBase).Peek(bcm2837.CmPWMDIV))

	pixels := []led.Color{{Red: 60}, {Green: 60}}
	require.NoError(t, c.PushFrame(ctx, pixels, 1))

	frame, err := ws2812b.Encode(pixels, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32(frame), board.FifoWrites())
	assert.Zero(t, pwm.Peek(bcm2837.PwmCTL)&bcm2837.PwmPWEN1)

	// strip pin already holds PWM channel 1
	_, err = ws2812b.Open(ctx, reg, 12)
	assert.ErrorIs(t, err, hal.ErrChannelOccupied)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Error(t, c.PushFrame(ctx, pixels, 1))
	assert.False(t, reg.Mapped(hal.BlockPWM))
}
