package main

import (
	"bytes"
	"errors"
	"strings"

	"github.com/alphabot-community/alphabot-agent/pkg/agent"
	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultConfigDir = "/etc/alphabot"

// loadConfig layers the config file and ALPHABOT_* environment variables over the defaults.
func loadConfig(v *viper.Viper) (agent.AlphaBotAgentConfig, error) {
	defaults, err := agent.DefaultConfigYAML()
	if err != nil {
		return agent.AlphaBotAgentConfig{}, err
	}

	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return agent.AlphaBotAgentConfig{}, err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(defaultConfigDir)
		v.AddConfigPath("$HOME/.config/alphabot")
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return agent.AlphaBotAgentConfig{}, humane.Wrap(err, "failed to read configuration file",
				"check the YAML syntax of "+v.ConfigFileUsed(),
				"run 'alphabot config init' to generate a valid file",
			)
		}
	}

	v.SetEnvPrefix("ALPHABOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg agent.AlphaBotAgentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return agent.AlphaBotAgentConfig{}, humane.Wrap(err, "failed to decode configuration",
			"compare your configuration with the output of 'alphabot config init'",
		)
	}
	return cfg, nil
}

// bindFlags maps command line flags onto configuration keys.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}
