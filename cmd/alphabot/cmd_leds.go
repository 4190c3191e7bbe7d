package main

import (
	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/alphabot-community/alphabot-agent/pkg/hal/led"
	"github.com/spf13/cobra"
)

var ledColor string

func init() {
	cmdLeds.Flags().StringVar(&ledColor, "color", "#00ff00", "Color for the static and blink patterns (#rrggbb)")
	rootCmd.AddCommand(cmdLeds)
}

var cmdLeds = &cobra.Command{
	Use:       "leds <off|static|blink|water>",
	Aliases:   []string{"led"},
	Short:     "Switch the pattern shown on the RGB LED strip",
	Example:   "alphabot leds static --color '#ff8800'",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"off", "static", "blink", "water"},
	RunE: func(cmd *cobra.Command, args []string) error {
		color, err := led.ParseColor(ledColor)
		if err != nil {
			return err
		}

		event := events.Event{Type: events.LedEvent, Pattern: events.LedPattern(args[0]), Color: color}
		if err := event.Validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		client := clientFromContext(ctx)
		return client.EmitEvent(ctx, event)
	},
}
