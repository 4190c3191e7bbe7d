package agent

import (
	"context"

	"github.com/alphabot-community/alphabot-agent/pkg/events"
)

// AlphaBotAgent owns the robot peripherals and applies events to them.
type AlphaBotAgent interface {
	// Run starts the agent and blocks until ctx is done or a component fails.
	Run(ctx context.Context) error
	// RunAsync runs the agent in a goroutine, cancelling with the failure cause.
	RunAsync(ctx context.Context, cancel context.CancelCauseFunc)
	// GracefulStop puts the hardware in a safe state and releases it.
	GracefulStop(ctx context.Context) error
	// EmitEvent queues an event for the agent runtime.
	EmitEvent(ctx context.Context, event events.Event) error
	// Status reports the current state of the robot.
	Status(ctx context.Context) (Status, error)
}

// ChannelClaim is a hardware channel held by a pin.
type ChannelClaim struct {
	Class   string `json:"class"`
	Channel int    `json:"channel"`
	Pin     int    `json:"pin"`
}

type Status struct {
	Platform  string `json:"platform"`
	Simulated bool   `json:"simulated"`
	// Temperature is the SoC temperature in °C, nil when unavailable.
	Temperature *float64 `json:"temperature,omitempty"`

	Direction  string            `json:"direction"`
	LedPattern events.LedPattern `json:"led_pattern"`
	Servos     map[string]uint16 `json:"servos"`
	Sweeping   string            `json:"sweeping,omitempty"`
	BuzzerHz   uint32            `json:"buzzer_hz"`

	MappedBlocks []string       `json:"mapped_blocks"`
	Claims       []ChannelClaim `json:"claims"`
}
