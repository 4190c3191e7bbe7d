package main

import (
	"fmt"

	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/util"
	"github.com/charmbracelet/lipgloss"
)

const (
	warningTemperature  = 70.0
	criticalTemperature = 80.0
)

func temperatureLabel(temp *float64) []any {
	if temp == nil {
		return []any{"n/a"}
	}
	return []any{fmt.Sprintf("%.1f°C", *temp)}
}

func temperatureStyle(temp *float64) func([]any) lipgloss.Style {
	return func([]any) lipgloss.Style {
		color := util.ColorUnknown
		switch {
		case temp == nil:
		case *temp >= criticalTemperature:
			color = util.ColorCritical
		case *temp >= warningTemperature:
			color = util.ColorWarning
		default:
			color = util.ColorOk
		}
		return lipgloss.NewStyle().Foreground(color)
	}
}

func activeLabel(b bool) []any {
	if b {
		return []any{"Active"}
	}
	return []any{"Off"}
}

// activeStyle flags anything that moves or makes noise.
func activeStyle(a []any) lipgloss.Style {
	color := util.ColorWarning

	switch active := fmt.Sprint(a[0]); active {
	case "Off", "stop", "brake", "disabled", "0 Hz":
		color = util.ColorOk
	}

	return lipgloss.NewStyle().Foreground(color)
}

func servoLabel(status agent.Status, name string) []any {
	position, ok := status.Servos[name]
	if !ok {
		return []any{"disabled"}
	}
	if status.Sweeping == name {
		return []any{fmt.Sprintf("%d (sweeping)", position)}
	}
	return []any{fmt.Sprint(position)}
}

func buildStatusKeyValues(status agent.Status) []util.KeyValuePair {
	return []util.KeyValuePair{
		{
			Key:    "Platform",
			Format: "%s",
			Value:  []any{status.Platform},
			Style:  util.OkStyle,
		},
		{
			Key:    "Simulated",
			Format: "%s",
			Value:  activeLabel(status.Simulated),
			Style:  util.OkStyle,
		},
		{
			Key:    "SoC Temperature",
			Format: "%s",
			Value:  temperatureLabel(status.Temperature),
			Style:  temperatureStyle(status.Temperature),
		},
		{
			Key:    "Motors",
			Format: "%s",
			Value:  []any{status.Direction},
			Style:  activeStyle,
		},
		{
			Key:    "LED Pattern",
			Format: "%s",
			Value:  []any{string(status.LedPattern)},
			Style:  util.OkStyle,
		},
		{
			Key:    "Yaw Servo",
			Format: "%s",
			Value:  servoLabel(status, "yaw"),
			Style:  util.OkStyle,
		},
		{
			Key:    "Pitch Servo",
			Format: "%s",
			Value:  servoLabel(status, "pitch"),
			Style:  util.OkStyle,
		},
		{
			Key:    "Buzzer",
			Format: "%d Hz",
			Value:  []any{status.BuzzerHz},
			Style: func(a []any) lipgloss.Style {
				return activeStyle([]any{fmt.Sprintf("%d Hz", a[0])})
			},
		},
		{
			Key:    "Mapped Blocks",
			Format: "%v",
			Value:  []any{status.MappedBlocks},
			Style:  util.OkStyle,
		},
	}
}

func buildClaimKeyValues(claims []agent.ChannelClaim) []util.KeyValuePair {
	values := make([]util.KeyValuePair, len(claims))
	for idx, claim := range claims {
		values[idx] = util.KeyValuePair{
			Key:    fmt.Sprintf("%s%d", claim.Class, claim.Channel),
			Format: "GPIO %d",
			Value:  []any{claim.Pin},
			Style:  util.OkStyle,
		}
	}
	return values
}
