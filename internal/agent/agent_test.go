package internal_agent_test

import (
	"context"
	"testing"
	"time"

	internal_agent "github.com/alphabot-community/alphabot-agent/internal/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulatedConfig() agent.AlphaBotAgentConfig {
	cfg := agent.DefaultConfig()
	cfg.Simulate = true
	cfg.Listen = agent.ApiConfig{}
	cfg.Hal.PollInterval = 10 * time.Microsecond
	cfg.Hal.Timeout = 5 * time.Millisecond
	return cfg
}

func waitForStatus(t *testing.T, a agent.AlphaBotAgent, check func(agent.Status) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		status, err := a.Status(context.Background())
		return err == nil && check(status)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestAgent_SimulatedLifecycle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := internal_agent.NewAlphaBotAgent(ctx, simulatedConfig())
	require.NoError(t, err)

	status, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "simulated", status.Platform)
	assert.True(t, status.Simulated)
	assert.Nil(t, status.Temperature)
	assert.Equal(t, "stop", status.Direction)
	assert.Equal(t, map[string]uint16{"yaw": 60, "pitch": 100}, status.Servos)
	assert.ElementsMatch(t, []string{"gpio", "pwm", "clock", "i2c1"}, status.MappedBlocks)
	assert.ElementsMatch(t, []agent.ChannelClaim{
		{Class: "pwm", Channel: 1, Pin: 18},
		{Class: "i2c", Channel: 1, Pin: 2},
	}, status.Claims)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	waitForStatus(t, a, func(s agent.Status) bool { return s.LedPattern == events.PatternWaterLight })

	require.NoError(t, a.EmitEvent(ctx, events.Event{Type: events.MoveEvent, Direction: "cw"}))
	waitForStatus(t, a, func(s agent.Status) bool { return s.Direction == "cw" })

	require.NoError(t, a.EmitEvent(ctx, events.Event{Type: events.ServoEvent, Servo: "yaw", Percent: 100}))
	waitForStatus(t, a, func(s agent.Status) bool { return s.Servos["yaw"] == 210 })

	require.NoError(t, a.EmitEvent(ctx, events.Event{Type: events.LedEvent, Pattern: events.PatternStatic, Color: led.Color{Blue: 0x20}}))
	waitForStatus(t, a, func(s agent.Status) bool { return s.LedPattern == events.PatternStatic })

	require.NoError(t, a.EmitEvent(ctx, events.Event{Type: events.BuzzerEvent, Frequency: 5000}))
	waitForStatus(t, a, func(s agent.Status) bool { return s.BuzzerHz == 5000 })

	require.NoError(t, a.EmitEvent(ctx, events.Event{Type: events.SweepEvent, Servo: "pitch"}))
	waitForStatus(t, a, func(s agent.Status) bool { return s.Sweeping == "pitch" })

	require.NoError(t, a.EmitEvent(ctx, events.Event{Type: events.HaltEvent}))
	waitForStatus(t, a, func(s agent.Status) bool {
		return s.Sweeping == "" && s.Direction == "stop" && s.BuzzerHz == 0
	})

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.NoError(t, a.GracefulStop(context.Background()))
}

func TestAgent_EmitEventValidates(t *testing.T) {
	t.Parallel()

	a, err := internal_agent.NewAlphaBotAgent(context.Background(), simulatedConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.GracefulStop(context.Background()) })

	assert.Error(t, a.EmitEvent(context.Background(), events.Event{Type: events.MoveEvent}))
}

func TestAgent_DrivesSimulatedBoard(t *testing.T) {
	t.Parallel()

	cfg := simulatedConfig()
	board := sim.NewBoard()
	pca := sim.NewPCA9685()
	board.AttachI2C(1, cfg.Servos.Address, pca)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := internal_agent.NewAlphaBotAgent(ctx, cfg, internal_agent.WithGate(board))
	require.NoError(t, err)

	// 50 Hz prescale and both PWM enables of the motor bridge
	assert.Equal(t, byte(121), pca.Register(0xFE))
	assert.True(t, board.Level(cfg.Motors.Pins.PWMA))
	assert.True(t, board.Level(cfg.Motors.Pins.PWMB))

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.NoError(t, a.EmitEvent(ctx, events.Event{Type: events.MoveEvent, Direction: "ccw"}))
	require.Eventually(t, func() bool {
		return board.Level(cfg.Motors.Pins.AIN2) && !board.Level(cfg.Motors.Pins.AIN1)
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return len(board.FifoWrites()) > 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	require.NoError(t, a.GracefulStop(context.Background()))
	assert.False(t, board.IsOpen())
	assert.False(t, board.Level(cfg.Motors.Pins.AIN2))
}

func TestAgent_DisabledPeripherals(t *testing.T) {
	t.Parallel()

	cfg := simulatedConfig()
	cfg.Leds.Enabled = false
	cfg.Motors.Enabled = false
	cfg.Servos.Enabled = false
	cfg.Buzzer.Enabled = false

	a, err := internal_agent.NewAlphaBotAgent(context.Background(), cfg)
	require.NoError(t, err)

	status, err := a.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "disabled", status.Direction)
	assert.Empty(t, status.Servos)
	assert.Empty(t, status.MappedBlocks)
	assert.NoError(t, a.GracefulStop(context.Background()))
}

func TestAgent_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := simulatedConfig()
	cfg.Leds.Count = 8
	_, err := internal_agent.NewAlphaBotAgent(context.Background(), cfg)
	assert.Error(t, err)

	cfg = simulatedConfig()
	cfg.Motors.Backend = "sysfs"
	_, err = internal_agent.NewAlphaBotAgent(context.Background(), cfg)
	assert.Error(t, err)
}
