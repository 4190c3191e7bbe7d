package servo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sierrasoftworks/humane-errors-go"
)

// Resolution is the number of PWM counts in one period of the expander.
const Resolution = 4096

var servoPosition = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "alphabot",
	Name:      "servo_position",
	Help:      "Servo position in PWM counts",
}, []string{"servo"})

// Config describes a servo on one expander channel. Positions are PWM counts
// out of Resolution.
type Config struct {
	Channel int    `mapstructure:"channel" yaml:"channel"`
	Min     uint16 `mapstructure:"min" yaml:"min"`
	Max     uint16 `mapstructure:"max" yaml:"max"`
}

// Output is the PWM channel a servo is wired to.
type Output interface {
	SetDutyCycle(ch int, duty float64, delay uint16) error
}

type Servo interface {
	// MoveTo sets the position in PWM counts; it must lie within [Min, Max].
	MoveTo(position uint16) error
	// MovePercent maps 0..100 onto [Min, Max].
	MovePercent(percent uint8) error
	// Sweep moves back and forth across the range until ctx is done.
	Sweep(ctx context.Context, step uint8, interval time.Duration) error
	Position() uint16
	Config() Config
}

type servo struct {
	mu       sync.Mutex
	name     string
	out      Output
	config   Config
	position uint16
}

// NewServo validates config and parks the servo at its minimum position.
func NewServo(name string, out Output, config Config) (Servo, error) {
	if config.Min >= config.Max {
		return nil, humane.New("servo minimum must be below its maximum",
			fmt.Sprintf("Ensure min %d < max %d for servo %s", config.Min, config.Max, name),
		)
	}
	if config.Max >= Resolution {
		return nil, humane.New("servo maximum exceeds the PWM resolution",
			fmt.Sprintf("Ensure max %d is below %d for servo %s", config.Max, Resolution, name),
		)
	}
	if config.Channel < 0 {
		return nil, humane.New("servo channel must not be negative",
			fmt.Sprintf("Check the channel of servo %s", name),
		)
	}

	s := &servo{name: name, out: out, config: config}
	if err := s.MoveTo(config.Min); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *servo) MoveTo(position uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveTo(position)
}

func (s *servo) moveTo(position uint16) error {
	if position < s.config.Min || position > s.config.Max {
		return hal.NewError(hal.KindInvalidArgument,
			fmt.Sprintf("position %d is outside the range of servo %s", position, s.name),
			fmt.Sprintf("use a position between %d and %d", s.config.Min, s.config.Max),
		)
	}

	if err := s.out.SetDutyCycle(s.config.Channel, float64(position)/Resolution, 0); err != nil {
		return err
	}
	s.position = position
	servoPosition.WithLabelValues(s.name).Set(float64(position))
	return nil
}

func (s *servo) MovePercent(percent uint8) error {
	if percent > 100 {
		return hal.NewError(hal.KindInvalidArgument, fmt.Sprintf("servo percent %d exceeds 100", percent))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveTo(s.positionFor(percent))
}

func (s *servo) positionFor(percent uint8) uint16 {
	span := uint32(s.config.Max - s.config.Min)
	return s.config.Min + uint16(span*uint32(percent)/100)
}

func (s *servo) Sweep(ctx context.Context, step uint8, interval time.Duration) error {
	if step == 0 || step > 100 {
		return hal.NewError(hal.KindInvalidArgument, fmt.Sprintf("sweep step %d is outside 1..100", step))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	percent, rising := 0, true
	for {
		if err := s.MovePercent(uint8(percent)); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if rising && percent == 100 {
			rising = false
		} else if !rising && percent == 0 {
			rising = true
		}
		if rising {
			percent = min(percent+int(step), 100)
		} else {
			percent = max(percent-int(step), 0)
		}
	}
}

func (s *servo) Position() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *servo) Config() Config {
	return s.config
}
