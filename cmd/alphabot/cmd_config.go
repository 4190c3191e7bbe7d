package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var (
	configOutput string
	configForce  bool
)

func init() {
	cmdConfigInit.Flags().StringVarP(&configOutput, "output", "o", filepath.Join(defaultConfigDir, "config.yaml"), "Where to write the configuration, - for stdout")
	cmdConfigInit.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	cmdConfig.AddCommand(cmdConfigInit)
	cmdConfig.AddCommand(cmdConfigShow)
	rootCmd.AddCommand(cmdConfig)
}

var (
	cmdConfig = &cobra.Command{
		Use:   "config",
		Short: "Manage the agent configuration",
	}

	cmdConfigInit = &cobra.Command{
		Use:     "init",
		Short:   "Write the default configuration file",
		Example: "alphabot config init -o ./config.yaml",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := agent.DefaultConfigYAML()
			if err != nil {
				return err
			}

			if configOutput == "-" {
				_, err := os.Stdout.Write(data)
				return err
			}

			if _, err := os.Stat(configOutput); err == nil && !configForce {
				return humane.New(configOutput+" already exists", "pass --force to overwrite it")
			}
			if err := os.MkdirAll(filepath.Dir(configOutput), 0o755); err != nil {
				return humane.Wrap(err, "failed to create configuration directory", "run with sufficient permissions or choose another --output")
			}
			if err := os.WriteFile(configOutput, data, 0o644); err != nil {
				return humane.Wrap(err, "failed to write configuration", "run with sufficient permissions or choose another --output")
			}

			fmt.Println("Wrote", configOutput)
			return nil
		},
	}

	cmdConfigShow = &cobra.Command{
		Use:     "show",
		Short:   "Print the effective configuration after applying the file and environment",
		Example: "ALPHABOT_SIMULATE=true alphabot config show",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(viper.New())
			if err != nil {
				return err
			}
			if err := config.Validate(); err != nil {
				return err
			}

			data, err := yaml.Marshal(config)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
)
