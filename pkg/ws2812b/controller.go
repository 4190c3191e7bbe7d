package ws2812b

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/bcm2837"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"go.uber.org/zap"
)

const (
	// WordBits is the PWM range used for the strip: one FIFO word per period.
	WordBits = 32
	// ClockDivisor turns the 19.2 MHz oscillator into the 2.4 MHz bit clock.
	ClockDivisor = 8
	// DefaultLatch is the idle time that makes the strip latch a frame (>= 50 µs).
	DefaultLatch = 60 * time.Microsecond
)

// Serializer is the part of a PWM channel the controller needs.
type Serializer interface {
	PushFifo(ctx context.Context, words []uint32) error
	Enable()
	Disable()
	ClearFifo()
}

type options struct {
	fifoWords  int
	bitClockHz int64
	latch      time.Duration
	sleep      func(time.Duration)
}

type Option func(*options)

// WithFifoCapacity sets the largest frame, in words, PushFrame accepts.
func WithFifoCapacity(words int) Option {
	return func(o *options) {
		o.fifoWords = words
	}
}

// WithLatch sets the idle time after each frame.
func WithLatch(d time.Duration) Option {
	return func(o *options) {
		o.latch = d
	}
}

// WithSleep replaces time.Sleep for the frame hold and latch waits.
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// Controller pushes frames to a strip: encode, fill the FIFO, transmit, latch.
type Controller struct {
	out    Serializer
	closer io.Closer
	opts   options

	mu     sync.Mutex
	closed bool
}

func NewController(out Serializer, opts ...Option) *Controller {
	o := options{
		fifoWords:  bcm2837.PwmFifoDepth,
		bitClockHz: bcm2837.OscillatorHz / ClockDivisor,
		latch:      DefaultLatch,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Controller{out: out, opts: o}
}

// Open claims the PWM channel of pin in serializer mode and returns a
// controller owning it.
func Open(ctx context.Context, reg *hal.Registry, pin int, opts ...Option) (*Controller, error) {
	pwm, err := hal.NewPwm(ctx, reg, pin, hal.PwmConfig{
		Range:   WordBits,
		Divisor: ClockDivisor,
		Mode:    hal.PwmModeSerializer,
	})
	if err != nil {
		return nil, err
	}

	c := NewController(pwm, opts...)
	c.closer = pwm
	log.FromContext(ctx).Info("led strip ready", zap.Int("pin", pin), zap.Int("max_pixels", c.MaxPixels()))
	return c, nil
}

// MaxPixels is the longest strip a single frame can address.
func (c *Controller) MaxPixels() int {
	return c.opts.fifoWords * 32 / PixelBits
}

// FrameTime is how long a frame of words takes to shift out.
func (c *Controller) FrameTime(words int) time.Duration {
	return time.Duration(int64(words) * WordBits * int64(time.Second) / c.opts.bitClockHz)
}

// PushFrame sends pixels to the strip and waits until they are latched.
func (c *Controller) PushFrame(ctx context.Context, pixels []led.Color, brightness float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("led controller is closed")
	}

	frame, err := Encode(pixels, brightness)
	if err != nil {
		framesPushed.WithLabelValues("rejected").Inc()
		return err
	}
	if len(frame) > c.opts.fifoWords {
		framesPushed.WithLabelValues("rejected").Inc()
		return hal.NewError(hal.KindInvalidArgument,
			fmt.Sprintf("%d pixels need %d FIFO words, capacity is %d", len(pixels), len(frame), c.opts.fifoWords),
			fmt.Sprintf("drive at most %d pixels per frame", c.MaxPixels()),
		)
	}

	if err := c.out.PushFifo(ctx, frame); err != nil {
		c.out.ClearFifo()
		framesPushed.WithLabelValues("failed").Inc()
		return err
	}

	c.out.Enable()
	c.opts.sleep(c.FrameTime(len(frame)))
	c.out.Disable()
	c.out.ClearFifo()
	c.opts.sleep(c.opts.latch)

	framesPushed.WithLabelValues("ok").Inc()
	return nil
}

// Off blanks n pixels.
func (c *Controller) Off(ctx context.Context, n int) error {
	return c.PushFrame(ctx, make([]led.Color, n), 1)
}

// Close releases the PWM channel if the controller opened it.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}
