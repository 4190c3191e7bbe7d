package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/util"
	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/spf13/cobra"
)

const chartWindowSize = 60

var showClaims bool

func init() {
	cmdStatus.Flags().BoolVar(&showClaims, "claims", false, "Also list the hardware channels held by the agent")
	rootCmd.AddCommand(cmdStatus)
	rootCmd.AddCommand(cmdMonitor)
}

var (
	cmdStatus = &cobra.Command{
		Use:     "status",
		Short:   "Get in-depth information about the current state of the robot",
		Example: "alphabot status --claims",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)
			status, err := client.GetStatus(ctx)
			if err != nil {
				return err
			}

			fmt.Println(util.PrintKeyValues(buildStatusKeyValues(status)))
			if showClaims && len(status.Claims) > 0 {
				fmt.Println()
				fmt.Println(util.PrintKeyValues(buildClaimKeyValues(status.Claims)))
			}
			return nil
		},
	}

	cmdMonitor = &cobra.Command{
		Use:     "monitor",
		Short:   "Render line-charts of the SoC temperature and servo positions",
		Example: "alphabot monitor",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := clientFromContext(ctx)

			if err := ui.Init(); err != nil {
				return fmt.Errorf("failed to initialize UI: %w", err)
			}
			defer ui.Close()

			events := ui.PollEvents()
			ticker := time.NewTicker(1 * time.Second)
			defer ticker.Stop()

			labelBox := widgets.NewParagraph()
			labelBox.Title = "AlphaBot Status"
			labelBox.Border = true
			labelBox.TextStyle = ui.NewStyle(ui.ColorWhite)

			tempPlot := newPlot("SoC Temperature (°C)", ui.ColorCyan)
			servoPlot := newPlot("Servo Position (yaw, pitch)", ui.ColorGreen, ui.ColorYellow)

			tempData := []float64{math.NaN(), math.NaN()}
			yawData := []float64{math.NaN(), math.NaN()}
			pitchData := []float64{math.NaN(), math.NaN()}

			for {
				select {
				case <-ctx.Done():
					if errors.Is(ctx.Err(), context.Canceled) {
						return nil
					}
					return ctx.Err()

				case e := <-events:
					switch e.ID {
					case "q", "<C-c>":
						return nil
					case "<Resize>":
						renderCharts(nil, tempPlot, servoPlot, labelBox)
						ui.Clear()
						ui.Render(labelBox, tempPlot, servoPlot)
					}

				case <-ticker.C:
					status, err := client.GetStatus(ctx)
					if err != nil {
						labelBox.Text = "Error retrieving robot status: " + err.Error()
						ui.Render(labelBox)
						continue
					}

					temp := math.NaN()
					if status.Temperature != nil {
						temp = *status.Temperature
					}
					tempData = appendAndTrim(tempData, temp)
					yawData = appendAndTrim(yawData, servoValue(status, "yaw"))
					pitchData = appendAndTrim(pitchData, servoValue(status, "pitch"))

					tempPlot.Data[0] = padToSize(tempData, chartWindowSize)
					servoPlot.Data[0] = padToSize(yawData, chartWindowSize)
					servoPlot.Data[1] = padToSize(pitchData, chartWindowSize)

					renderCharts(&status, tempPlot, servoPlot, labelBox)
					ui.Render(labelBox, tempPlot, servoPlot)
				}
			}
		},
	}
)

func servoValue(status agent.Status, name string) float64 {
	position, ok := status.Servos[name]
	if !ok {
		return math.NaN()
	}
	return float64(position)
}

func newPlot(title string, colors ...ui.Color) *widgets.Plot {
	plot := widgets.NewPlot()
	plot.Title = title
	plot.Data = make([][]float64, len(colors))
	plot.LineColors = colors
	plot.AxesColor = ui.ColorWhite
	plot.DrawDirection = widgets.DrawRight
	plot.HorizontalScale = 1
	return plot
}

func appendAndTrim(slice []float64, value float64) []float64 {
	slice = append(slice, value)
	if len(slice) > chartWindowSize {
		return slice[len(slice)-chartWindowSize:]
	}
	return slice
}

func padToSize(data []float64, size int) []float64 {
	pad := size - len(data)
	if pad <= 0 {
		// Ensure at least 2 points
		if len(data) < 2 {
			return append(data, data[len(data)-1])
		}
		return data
	}
	padded := make([]float64, pad)
	for i := range padded {
		padded[i] = math.NaN()
	}
	return append(padded, data...)
}

func renderCharts(status *agent.Status, tempPlot, servoPlot *widgets.Plot, labelBox *widgets.Paragraph) {
	width, height := ui.TerminalDimensions()
	labelHeight := 4
	if width >= 140 {
		width = 140
	}

	if status != nil {
		labelBox.Text = fmt.Sprintf(
			"Temp: %s | Motors: %s | LEDs: %s | Buzzer: %d Hz",
			temperatureLabel(status.Temperature)[0],
			status.Direction,
			status.LedPattern,
			status.BuzzerHz,
		)

		if status.Sweeping != "" {
			labelBox.Text = fmt.Sprintf("%s | Sweeping: %s", labelBox.Text, status.Sweeping)
		}
		if status.Simulated {
			labelBox.Text += " | simulated"
		}
	}

	labelBox.SetRect(0, 0, width, labelHeight)

	if width >= 140 {
		if height >= 25 {
			height = 25
		}
		tempPlot.SetRect(0, labelHeight, 70, height)
		servoPlot.SetRect(70, labelHeight, 140, height)
	} else {
		if height >= 50 {
			height = 50
		}
		midY := (height-labelHeight)/2 + labelHeight
		tempPlot.SetRect(0, labelHeight, 70, midY)
		servoPlot.SetRect(0, midY, 70, height)
	}
}
