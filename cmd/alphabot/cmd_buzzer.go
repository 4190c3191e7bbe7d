package main

import (
	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/spf13/cobra"
)

var (
	buzzerFrequency uint32
	buzzerOff       bool
)

func init() {
	cmdBuzzer.Flags().Uint32VarP(&buzzerFrequency, "frequency", "f", 5000, "Tone frequency in Hz (4688 Hz and up)")
	cmdBuzzer.Flags().BoolVar(&buzzerOff, "off", false, "Silence the buzzer")
	rootCmd.AddCommand(cmdBuzzer)
}

var cmdBuzzer = &cobra.Command{
	Use:     "buzzer",
	Aliases: []string{"beep", "buzz"},
	Short:   "Drive the buzzer with a clock generator tone",
	Example: "alphabot buzzer --frequency 6000\nalphabot buzzer --off",
	Args:    cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		hz := buzzerFrequency
		if buzzerOff {
			hz = 0
		}

		ctx := cmd.Context()
		client := clientFromContext(ctx)
		return client.EmitEvent(ctx, events.Event{Type: events.BuzzerEvent, Frequency: hz})
	},
}
