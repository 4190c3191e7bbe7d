package motor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sierrasoftworks/humane-errors-go"
)

var motorDirection = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "alphabot",
	Name:      "motor_direction",
	Help:      "Current motor bridge direction (1 for the active direction)",
}, []string{"direction"})

// Direction is a TB6612FNG bridge state applied to both motors.
type Direction int

const (
	Stop Direction = iota
	ShortBrake
	Clockwise
	CounterClockwise
)

var directions = []Direction{Stop, ShortBrake, Clockwise, CounterClockwise}

func (d Direction) String() string {
	switch d {
	case Stop:
		return "stop"
	case ShortBrake:
		return "brake"
	case Clockwise:
		return "cw"
	case CounterClockwise:
		return "ccw"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// ParseDirection accepts the names printed by Direction.String.
func ParseDirection(s string) (Direction, error) {
	for _, d := range directions {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return Stop, humane.New(fmt.Sprintf("unknown motor direction %q", s),
		"Use one of: stop, brake, cw, ccw",
	)
}

// Pins maps the TB6612FNG inputs to BCM pin numbers.
type Pins struct {
	AIN1 int `mapstructure:"ain1" yaml:"ain1"`
	AIN2 int `mapstructure:"ain2" yaml:"ain2"`
	PWMA int `mapstructure:"pwma" yaml:"pwma"`
	BIN1 int `mapstructure:"bin1" yaml:"bin1"`
	BIN2 int `mapstructure:"bin2" yaml:"bin2"`
	PWMB int `mapstructure:"pwmb" yaml:"pwmb"`
}

// DefaultPins is the AlphaBot2 wiring.
var DefaultPins = Pins{AIN1: 12, AIN2: 13, PWMA: 6, BIN1: 20, BIN2: 21, PWMB: 26}

// All lists every pin in input order.
func (p Pins) All() []int {
	return []int{p.AIN1, p.AIN2, p.PWMA, p.BIN1, p.BIN2, p.PWMB}
}

func (p Pins) Validate() error {
	seen := make(map[int]bool, 6)
	for _, pin := range p.All() {
		if seen[pin] {
			return humane.New(fmt.Sprintf("motor pin %d is assigned twice", pin),
				"Give every motor bridge input its own GPIO pin",
			)
		}
		seen[pin] = true
	}
	return nil
}

// Outputs drives a set of GPIO pins; hal.GpioOut and hal.LineOutputs both qualify.
type Outputs interface {
	Drive(high, low []int) error
}

// Bridge controls both motors of a TB6612FNG at full speed.
type Bridge struct {
	mu        sync.Mutex
	out       Outputs
	pins      Pins
	direction Direction
}

var _ Outputs = (*hal.GpioOut)(nil)

// NewBridge enables both PWM inputs and stops the motors.
func NewBridge(out Outputs, pins Pins) (*Bridge, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}

	b := &Bridge{out: out, pins: pins}
	if err := out.Drive([]int{pins.PWMA, pins.PWMB}, nil); err != nil {
		return nil, err
	}
	if err := b.Move(Stop); err != nil {
		return nil, err
	}
	return b, nil
}

// Levels returns the input pins to drive high and low for d.
func (p Pins) Levels(d Direction) (high, low []int, err error) {
	switch d {
	case ShortBrake:
		return []int{p.AIN1, p.AIN2, p.BIN1, p.BIN2}, nil, nil
	case Clockwise:
		return []int{p.AIN1, p.BIN1}, []int{p.AIN2, p.BIN2}, nil
	case CounterClockwise:
		return []int{p.AIN2, p.BIN2}, []int{p.AIN1, p.BIN1}, nil
	case Stop:
		return nil, []int{p.AIN1, p.AIN2, p.BIN1, p.BIN2}, nil
	}
	return nil, nil, hal.Errorf(hal.KindInvalidArgument, "unknown motor direction %d", int(d))
}

func (b *Bridge) Move(d Direction) error {
	high, low, err := b.pins.Levels(d)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.out.Drive(high, low); err != nil {
		return err
	}
	b.direction = d
	for _, other := range directions {
		v := 0.0
		if other == d {
			v = 1
		}
		motorDirection.WithLabelValues(other.String()).Set(v)
	}
	return nil
}

func (b *Bridge) Direction() Direction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.direction
}

func (b *Bridge) Pins() Pins {
	return b.pins
}
