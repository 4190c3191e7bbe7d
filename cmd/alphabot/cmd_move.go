package main

import (
	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/alphabot-community/alphabot-agent/pkg/motor"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdMove)
	rootCmd.AddCommand(cmdHalt)
}

var (
	cmdMove = &cobra.Command{
		Use:       "move <stop|brake|cw|ccw>",
		Aliases:   []string{"motor", "drive"},
		Short:     "Set the direction of both drive motors",
		Example:   "alphabot move cw",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"stop", "brake", "cw", "ccw"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := motor.ParseDirection(args[0]); err != nil {
				return err
			}

			ctx := cmd.Context()
			client := clientFromContext(ctx)
			return client.EmitEvent(ctx, events.Event{Type: events.MoveEvent, Direction: args[0]})
		},
	}

	cmdHalt = &cobra.Command{
		Use:     "halt",
		Aliases: []string{"stop"},
		Short:   "Stop the motors, any servo sweep and the buzzer",
		Example: "alphabot halt",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)
			return client.EmitEvent(ctx, events.Event{Type: events.HaltEvent})
		},
	}
)
