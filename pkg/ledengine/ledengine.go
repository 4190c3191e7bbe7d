package ledengine

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.uber.org/zap"
)

// forever holds a frame until the pattern is replaced.
const forever = time.Duration(math.MaxInt64)

// Strip is the LED chain an engine renders into.
type Strip interface {
	PushFrame(ctx context.Context, pixels []led.Color, brightness float64) error
}

// Pattern is a looped sequence of strip frames, each shown for its delay.
type Pattern struct {
	Frames [][]led.Color
	Delays []time.Duration
}

func (p Pattern) validate() error {
	if len(p.Frames) == 0 {
		return humane.New("LED pattern has no frames", "Build patterns with the ledengine constructors")
	}
	if len(p.Frames) != len(p.Delays) {
		return humane.New(
			fmt.Sprintf("LED pattern has %d frames but %d delays", len(p.Frames), len(p.Delays)),
			"Give every frame exactly one delay",
		)
	}
	return nil
}

// NewStaticPattern lights n pixels with color until replaced.
func NewStaticPattern(n int, color led.Color) Pattern {
	return Pattern{
		Frames: [][]led.Color{fill(n, color)},
		Delays: []time.Duration{forever},
	}
}

// NewBlinkPattern alternates all n pixels between active and base.
func NewBlinkPattern(n int, base, active led.Color, on, off time.Duration) Pattern {
	return Pattern{
		Frames: [][]led.Color{fill(n, active), fill(n, base)},
		Delays: []time.Duration{on, off},
	}
}

// NewSlowBlinkPattern blinks once every two seconds.
func NewSlowBlinkPattern(n int, base, active led.Color) Pattern {
	return NewBlinkPattern(n, base, active, time.Second, time.Second)
}

// NewWaterLightPattern rotates palette across n pixels, one position per step.
func NewWaterLightPattern(n int, palette []led.Color, step time.Duration) Pattern {
	if len(palette) == 0 {
		return NewStaticPattern(n, led.Color{})
	}

	p := Pattern{
		Frames: make([][]led.Color, len(palette)),
		Delays: make([]time.Duration, len(palette)),
	}
	for k := range palette {
		frame := make([]led.Color, n)
		for i := range frame {
			frame[i] = palette[(i+k)%len(palette)]
		}
		p.Frames[k] = frame
		p.Delays[k] = step
	}
	return p
}

func fill(n int, color led.Color) []led.Color {
	frame := make([]led.Color, n)
	for i := range frame {
		frame[i] = color
	}
	return frame
}

type LedEngine interface {
	// SetPattern replaces the running pattern; safe to call while Run is active.
	SetPattern(Pattern) error
	// Pattern returns the current pattern.
	Pattern() Pattern
	// Run renders the pattern until ctx is done. It is the only writer to the strip.
	Run(ctx context.Context) error
}

type Options struct {
	Strip      Strip
	Brightness float64
	// After replaces time.After in tests.
	After func(time.Duration) <-chan time.Time
}

type ledEngineImpl struct {
	mu         sync.Mutex
	strip      Strip
	brightness float64
	after      func(time.Duration) <-chan time.Time
	pattern    Pattern
	restart    chan struct{}
}

// NewLedEngine starts with all LEDs off; the strip length follows the first pattern.
func NewLedEngine(opts Options) LedEngine {
	after := opts.After
	if after == nil {
		after = time.After
	}
	return &ledEngineImpl{
		strip:      opts.Strip,
		brightness: opts.Brightness,
		after:      after,
		pattern:    NewStaticPattern(0, led.Color{}),
		restart:    make(chan struct{}, 1),
	}
}

func (e *ledEngineImpl) SetPattern(pattern Pattern) error {
	if err := pattern.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	e.pattern = pattern
	e.mu.Unlock()

	select {
	case e.restart <- struct{}{}:
	default:
	}
	return nil
}

func (e *ledEngineImpl) Pattern() Pattern {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pattern
}

func (e *ledEngineImpl) Run(ctx context.Context) error {
	for {
		select {
		case <-e.restart:
		default:
		}
		pattern := e.Pattern()

	frames:
		for idx, frame := range pattern.Frames {
			if len(frame) > 0 {
				if err := e.strip.PushFrame(ctx, slices.Clone(frame), e.brightness); err != nil {
					log.FromContext(ctx).Warn("failed to render LED frame", zap.Int("frame", idx), zap.Error(err))
					return err
				}
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-e.restart:
				break frames
			case <-e.after(pattern.Delays[idx]):
			}
		}
	}
}
