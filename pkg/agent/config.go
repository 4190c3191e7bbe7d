package agent

import (
	"fmt"
	"time"

	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/mmio"
	"github.com/alphabot-community/alphabot-agent/pkg/motor"
	"github.com/alphabot-community/alphabot-agent/pkg/pca9685"
	"github.com/alphabot-community/alphabot-agent/pkg/servo"
	"github.com/sierrasoftworks/humane-errors-go"
	"gopkg.in/yaml.v3"
)

const (
	BackendGpio    = "gpio"
	BackendChardev = "chardev"
)

const (
	ListenTCP  = "tcp"
	ListenUnix = "unix"
)

type ApiConfig struct {
	// Mode is the gRPC listener network, tcp or unix.
	Mode    string `mapstructure:"mode" yaml:"mode"`
	Api     string `mapstructure:"api" yaml:"api"`
	Metrics string `mapstructure:"metrics" yaml:"metrics"`
}

type HalConfig struct {
	Device              string        `mapstructure:"device" yaml:"device"`
	PollInterval        time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Timeout             time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TemperatureInterval time.Duration `mapstructure:"temperature_interval" yaml:"temperature_interval"`
}

type LedConfig struct {
	Enabled    bool              `mapstructure:"enabled" yaml:"enabled"`
	Pin        int               `mapstructure:"pin" yaml:"pin"`
	Count      int               `mapstructure:"count" yaml:"count"`
	Brightness float64           `mapstructure:"brightness" yaml:"brightness"`
	Pattern    events.LedPattern `mapstructure:"pattern" yaml:"pattern"`
	Color      led.Color         `mapstructure:"color" yaml:"color"`
	Palette    []led.Color       `mapstructure:"palette" yaml:"palette"`
	Interval   time.Duration     `mapstructure:"interval" yaml:"interval"`
}

type MotorConfig struct {
	Enabled bool       `mapstructure:"enabled" yaml:"enabled"`
	Backend string     `mapstructure:"backend" yaml:"backend"`
	Chip    string     `mapstructure:"chip" yaml:"chip"`
	Pins    motor.Pins `mapstructure:"pins" yaml:"pins"`
}

type I2CBusConfig struct {
	SDA   int    `mapstructure:"sda" yaml:"sda"`
	SCL   int    `mapstructure:"scl" yaml:"scl"`
	Speed uint32 `mapstructure:"speed" yaml:"speed"`
}

type ServoConfig struct {
	Enabled   bool         `mapstructure:"enabled" yaml:"enabled"`
	Bus       I2CBusConfig `mapstructure:"bus" yaml:"bus"`
	Address   uint16       `mapstructure:"address" yaml:"address"`
	Frequency float64      `mapstructure:"frequency" yaml:"frequency"`
	Yaw       servo.Config `mapstructure:"yaw" yaml:"yaw"`
	Pitch     servo.Config `mapstructure:"pitch" yaml:"pitch"`
}

type BuzzerConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Pin     int  `mapstructure:"pin" yaml:"pin"`
}

// AlphaBotAgentConfig is the complete agent configuration as read by viper.
type AlphaBotAgentConfig struct {
	// Simulate runs every peripheral against an in-memory register model.
	Simulate bool `mapstructure:"simulate" yaml:"simulate"`

	Listen ApiConfig    `mapstructure:"listen" yaml:"listen"`
	Hal    HalConfig    `mapstructure:"hal" yaml:"hal"`
	Leds   LedConfig    `mapstructure:"leds" yaml:"leds"`
	Motors MotorConfig  `mapstructure:"motors" yaml:"motors"`
	Servos ServoConfig  `mapstructure:"servos" yaml:"servos"`
	Buzzer BuzzerConfig `mapstructure:"buzzer" yaml:"buzzer"`
}

// DefaultConfig is the AlphaBot2-Pi wiring.
func DefaultConfig() AlphaBotAgentConfig {
	return AlphaBotAgentConfig{
		Listen: ApiConfig{
			Mode:    ListenTCP,
			Api:     "localhost:9860",
			Metrics: ":9666",
		},
		Hal: HalConfig{
			Device:              mmio.DefaultDevMemPath,
			PollInterval:        hal.DefaultPollInterval,
			Timeout:             hal.DefaultTimeout,
			TemperatureInterval: 5 * time.Second,
		},
		Leds: LedConfig{
			Enabled:    true,
			Pin:        18,
			Count:      4,
			Brightness: 0.3,
			Pattern:    events.PatternWaterLight,
			Color:      led.Color{Green: 0x40},
			Palette: []led.Color{
				{Red: 0xFF},
				{Green: 0xFF},
				{Blue: 0xFF},
				{Red: 0xFF, Green: 0xFF},
			},
			Interval: 200 * time.Millisecond,
		},
		Motors: MotorConfig{
			Enabled: true,
			Backend: BackendGpio,
			Chip:    "gpiochip0",
			Pins:    motor.DefaultPins,
		},
		Servos: ServoConfig{
			Enabled:   true,
			Bus:       I2CBusConfig{SDA: 2, SCL: 3, Speed: hal.DefaultI2CBusHz},
			Address:   pca9685.DefaultAddress,
			Frequency: 50,
			Yaw:       servo.Config{Channel: 0, Min: 60, Max: 210},
			Pitch:     servo.Config{Channel: 1, Min: 100, Max: 160},
		},
		Buzzer: BuzzerConfig{
			Enabled: true,
			Pin:     4,
		},
	}
}

// DefaultConfigYAML renders DefaultConfig as a config file.
func DefaultConfigYAML() ([]byte, error) {
	return yaml.Marshal(DefaultConfig())
}

// Validate reports the first setting the agent cannot run with.
func (c AlphaBotAgentConfig) Validate() error {
	if c.Hal.PollInterval <= 0 || c.Hal.Timeout < c.Hal.PollInterval {
		return humane.New("invalid hal timing",
			"Set hal.poll_interval above zero and hal.timeout to at least hal.poll_interval",
		)
	}

	if c.Listen.Api != "" && c.Listen.Mode != ListenTCP && c.Listen.Mode != ListenUnix {
		return humane.New(fmt.Sprintf("unknown listen.mode %q", c.Listen.Mode),
			fmt.Sprintf("Set listen.mode to %q or %q", ListenTCP, ListenUnix),
		)
	}

	if c.Leds.Enabled {
		if _, ok := hal.LookupRoute(hal.ClassPWM, c.Leds.Pin); !ok {
			return humane.New(fmt.Sprintf("LED pin %d has no PWM channel", c.Leds.Pin),
				fmt.Sprintf("Use one of the PWM pins %v", hal.RoutedPins(hal.ClassPWM)),
			)
		}
		if c.Leds.Count <= 0 {
			return humane.New("leds.count must be positive", "Set leds.count to the number of pixels on the strip")
		}
		if c.Leds.Brightness < 0 || c.Leds.Brightness > 1 {
			return humane.New(fmt.Sprintf("leds.brightness %v is outside 0..1", c.Leds.Brightness))
		}
		if err := (events.Event{Type: events.LedEvent, Pattern: c.Leds.Pattern}).Validate(); err != nil {
			return err
		}
		if c.Leds.Pattern != events.PatternStatic && c.Leds.Pattern != events.PatternOff && c.Leds.Interval <= 0 {
			return humane.New("leds.interval must be positive for animated patterns")
		}
	}

	if c.Motors.Enabled {
		if c.Motors.Backend != BackendGpio && c.Motors.Backend != BackendChardev {
			return humane.New(fmt.Sprintf("unknown motor backend %q", c.Motors.Backend),
				fmt.Sprintf("Set motors.backend to %q or %q", BackendGpio, BackendChardev),
			)
		}
		if err := c.Motors.Pins.Validate(); err != nil {
			return err
		}
	}

	if c.Servos.Enabled {
		if c.Servos.Frequency < pca9685.MinFrequency || c.Servos.Frequency > pca9685.MaxFrequency {
			return humane.New(fmt.Sprintf("servos.frequency %v is out of range", c.Servos.Frequency),
				fmt.Sprintf("Use a frequency between %d and %d Hz", pca9685.MinFrequency, pca9685.MaxFrequency),
			)
		}
		for name, cfg := range map[string]servo.Config{"yaw": c.Servos.Yaw, "pitch": c.Servos.Pitch} {
			if cfg.Min >= cfg.Max || cfg.Max >= servo.Resolution || cfg.Channel < 0 || cfg.Channel >= pca9685.Channels {
				return humane.New(fmt.Sprintf("invalid %s servo range", name),
					fmt.Sprintf("Ensure servos.%s.min < servos.%s.max < %d and the channel is below %d", name, name, servo.Resolution, pca9685.Channels),
				)
			}
		}
		if c.Servos.Yaw.Channel == c.Servos.Pitch.Channel {
			return humane.New("yaw and pitch servos share a channel", "Give each servo its own PCA9685 channel")
		}
	}

	if c.Buzzer.Enabled {
		if _, ok := hal.LookupRoute(hal.ClassClock, c.Buzzer.Pin); !ok {
			return humane.New(fmt.Sprintf("buzzer pin %d has no clock channel", c.Buzzer.Pin),
				fmt.Sprintf("Use one of the clock pins %v", hal.RoutedPins(hal.ClassClock)),
			)
		}
	}

	return nil
}
