package main

import (
	"context"
	"errors"
	"fmt"

	internal_agent "github.com/alphabot-community/alphabot-agent/internal/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/hal"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func init() {
	cmdServe.Flags().Bool("simulate", false, "Run against a simulated register map instead of /dev/mem")
	cmdServe.Flags().String("listen", agent.DefaultConfig().Listen.Api, "Address the agent API listens on")
	cmdServe.Flags().String("listen-mode", agent.DefaultConfig().Listen.Mode, "Network of the agent API listener (tcp or unix)")
	cmdServe.Flags().String("metrics-addr", agent.DefaultConfig().Listen.Metrics, "Address the prometheus metrics are served on")
	rootCmd.AddCommand(cmdServe)
}

var cmdServe = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"agent", "run"},
	Short:   "Run the agent that owns the robot hardware",
	Example: "alphabot serve --config /etc/alphabot/config.yaml",
	Args:    cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancelCause(cmd.Context())
		defer cancel(fmt.Errorf("cancel"))

		v := viper.New()
		if err := bindFlags(v, cmd.Flags(), map[string]string{
			"simulate":     "simulate",
			"listen":       "listen.api",
			"listen-mode":  "listen.mode",
			"metrics-addr": "listen.metrics",
		}); err != nil {
			return err
		}
		config, err := loadConfig(v)
		if err != nil {
			return err
		}
		log.FromContext(ctx).Info("Bootstrapping alphabot agent",
			zap.String("version", Version),
			zap.String("commit", Commit),
			zap.String("date", Date),
			zap.Bool("simulate", config.Simulate),
		)

		a, err := internal_agent.NewAlphaBotAgent(ctx, config)
		if err != nil {
			if errors.Is(err, hal.ErrMapFailed) {
				log.FromContext(ctx).Fatal("Failed to map peripheral registers", log.ErrorFields(err)...)
			}
			return err
		}

		a.RunAsync(ctx, cancel)
		<-ctx.Done()

		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			log.FromContext(ctx).Error("Agent stopped", zap.Error(cause))
		}
		return a.GracefulStop(context.WithoutCancel(ctx))
	},
}
