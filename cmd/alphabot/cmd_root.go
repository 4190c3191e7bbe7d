package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/alphabot-community/alphabot-agent/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	agentAddr  string
	configFile string
	logLevel   string
	debug      bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&agentAddr, "addr", agent.DefaultConfig().Listen.Api, "Address of the agent API (host:port or unix:///path/to/socket)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the agent configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Use the human readable development logger")
}

var rootCmd = &cobra.Command{
	Use:          "alphabot",
	Short:        "alphabot drives the motors, camera servos, LEDs and buzzer of an AlphaBot2-Pi",
	SilenceUsage: true,
	Version:      fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := log.New(logLevel, debug)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		zap.ReplaceGlobals(logger)

		// setup signal handlers for SIGINT and SIGTERM
		ctx, cancelCtx := context.WithCancel(log.IntoContext(cmd.Context(), logger))

		// setup signal handler channels
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		go func() {
			select {
			// Wait for context cancel
			case <-ctx.Done():

			// Wait for signal
			case sig := <-sigs:
				switch sig {
				case syscall.SIGTERM:
					fallthrough
				case syscall.SIGINT:
					fallthrough
				case syscall.SIGQUIT:
					// On terminate signal, cancel context causing the program to terminate
					cancelCtx()

				default:
					log.FromContext(ctx).Warn("Received unknown signal", zap.String("signal", sig.String()))
				}
			}
		}()

		client, err := agent.NewClient(agentAddr)
		if err != nil {
			cancelCtx()
			return err
		}

		cmd.SetContext(clientIntoContext(ctx, client))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if client, ok := cmd.Context().Value(defaultClientContextKey).(*agent.Client); ok {
			return client.Close()
		}
		return nil
	},
}
