package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
	"github.com/sierrasoftworks/humane-errors-go"
)

type EventType int

const (
	NoopEvent EventType = iota
	// MoveEvent sets the motor bridge direction.
	MoveEvent
	// LedEvent switches the LED strip pattern.
	LedEvent
	// ServoEvent moves one camera servo to a percentage of its range.
	ServoEvent
	// SweepEvent sweeps one camera servo until the next servo event.
	SweepEvent
	// BuzzerEvent sets the buzzer tone; zero silences it.
	BuzzerEvent
	// HaltEvent stops the motors and any servo sweep, and silences the buzzer.
	HaltEvent
)

var eventTypes = []EventType{NoopEvent, MoveEvent, LedEvent, ServoEvent, SweepEvent, BuzzerEvent, HaltEvent}

func (t EventType) String() string {
	switch t {
	case NoopEvent:
		return "noop"
	case MoveEvent:
		return "move"
	case LedEvent:
		return "led"
	case ServoEvent:
		return "servo"
	case SweepEvent:
		return "sweep"
	case BuzzerEvent:
		return "buzzer"
	case HaltEvent:
		return "halt"
	}
	return "unknown"
}

func ParseEventType(s string) (EventType, error) {
	for _, t := range eventTypes {
		if strings.EqualFold(s, t.String()) {
			return t, nil
		}
	}
	return NoopEvent, humane.New(fmt.Sprintf("unknown event type %q", s),
		"Use one of: move, led, servo, sweep, buzzer, halt",
	)
}

func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(b []byte) error {
	parsed, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// LedPattern names the patterns the LED strip can show.
type LedPattern string

const (
	PatternOff        LedPattern = "off"
	PatternStatic     LedPattern = "static"
	PatternBlink      LedPattern = "blink"
	PatternWaterLight LedPattern = "water"
)

// Event is a request for the agent runtime. Only the fields of its type are used.
type Event struct {
	Type EventType `json:"type"`

	Direction string `json:"direction,omitempty"`

	Pattern LedPattern `json:"pattern,omitempty"`
	Color   led.Color  `json:"color,omitempty"`

	Servo   string `json:"servo,omitempty"`
	Percent uint8  `json:"percent,omitempty"`

	Frequency uint32 `json:"frequency,omitempty"`
}

func (e Event) String() string {
	return e.Type.String()
}

// Validate checks the fields the event type needs.
func (e Event) Validate() error {
	switch e.Type {
	case MoveEvent:
		if e.Direction == "" {
			return humane.New("move event has no direction", "Set direction to stop, brake, cw or ccw")
		}
	case LedEvent:
		switch e.Pattern {
		case PatternOff, PatternStatic, PatternBlink, PatternWaterLight:
		default:
			return humane.New(fmt.Sprintf("unknown LED pattern %q", e.Pattern),
				"Use one of: off, static, blink, water",
			)
		}
	case ServoEvent, SweepEvent:
		if e.Servo == "" {
			return humane.New(fmt.Sprintf("%s event has no servo", e.Type), "Set servo to yaw or pitch")
		}
		if e.Type == ServoEvent && e.Percent > 100 {
			return humane.New(fmt.Sprintf("servo percent %d exceeds 100", e.Percent), "Use a percentage between 0 and 100")
		}
	case NoopEvent, BuzzerEvent, HaltEvent:
	default:
		return humane.New(fmt.Sprintf("unknown event type %d", int(e.Type)))
	}
	return nil
}

// Decode parses a JSON event and validates it.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, humane.Wrap(err, "failed to decode event", "Send a JSON object with at least a type field")
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
