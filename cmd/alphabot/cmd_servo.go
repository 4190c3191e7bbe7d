package main

import (
	"fmt"
	"strconv"

	"github.com/alphabot-community/alphabot-agent/pkg/events"
	"github.com/spf13/cobra"
)

func init() {
	cmdServo.AddCommand(cmdServoSweep)
	rootCmd.AddCommand(cmdServo)
}

var (
	servoNames = []string{"yaw", "pitch"}

	cmdServo = &cobra.Command{
		Use:       "servo <yaw|pitch> <percent>",
		Aliases:   []string{"camera"},
		Short:     "Point a camera servo at a percentage of its range",
		Example:   "alphabot servo yaw 50",
		Args:      cobra.ExactArgs(2),
		ValidArgs: servoNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			percent, err := strconv.ParseUint(args[1], 10, 8)
			if err != nil || percent > 100 {
				return fmt.Errorf("invalid percentage %q: expected 0..100", args[1])
			}

			ctx := cmd.Context()
			client := clientFromContext(ctx)
			return client.EmitEvent(ctx, events.Event{Type: events.ServoEvent, Servo: args[0], Percent: uint8(percent)})
		},
	}

	cmdServoSweep = &cobra.Command{
		Use:       "sweep <yaw|pitch>",
		Short:     "Sweep a camera servo back and forth until the next servo command",
		Example:   "alphabot servo sweep pitch",
		Args:      cobra.ExactArgs(1),
		ValidArgs: servoNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)
			return client.EmitEvent(ctx, events.Event{Type: events.SweepEvent, Servo: args[0]})
		},
	}
)
