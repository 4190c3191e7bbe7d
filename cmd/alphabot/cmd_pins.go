package main

import (
	"fmt"
	"strings"

	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/alphabot-community/alphabot-agent/pkg/util"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdPins)
}

var cmdPins = &cobra.Command{
	Use:     "pins",
	Aliases: []string{"routes"},
	Short:   "List which GPIO pins reach the PWM, I2C and clock channels",
	Example: "alphabot pins",
	Args:    cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(util.PrintKeyValues(buildRouteKeyValues()))
		return nil
	},
}

func buildRouteKeyValues() []util.KeyValuePair {
	var values []util.KeyValuePair
	for _, class := range []hal.ResourceClass{hal.ClassPWM, hal.ClassI2C, hal.ClassClock} {
		for _, pin := range hal.RoutedPins(class) {
			route, _ := hal.LookupRoute(class, pin)
			key := fmt.Sprintf("GPIO %d", pin)
			if class == hal.ClassI2C {
				key = fmt.Sprintf("GPIO %d (SDA)", pin)
			}
			values = append(values, util.KeyValuePair{
				Key:    key,
				Format: "%s%d via %s",
				Value:  []any{strings.ToUpper(class.String()), int(route.Channel), route.Function},
				Style:  util.OkStyle,
			})
		}
	}
	return values
}
