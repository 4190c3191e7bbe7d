package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigFile(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	configFile = path
	t.Cleanup(func() { configFile = "" })
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	withConfigFile(t, "simulate: true\nleds:\n  count: 2\n  pattern: static\n")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, 2, cfg.Leds.Count)
	assert.EqualValues(t, "static", cfg.Leds.Pattern)
	assert.Equal(t, 18, cfg.Leds.Pin)
	assert.Len(t, cfg.Leds.Palette, 4)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Environment(t *testing.T) {
	withConfigFile(t, "leds:\n  brightness: 0.2\n")
	t.Setenv("ALPHABOT_LEDS_BRIGHTNESS", "0.5")
	t.Setenv("ALPHABOT_MOTORS_BACKEND", "chardev")

	cfg, err := loadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Leds.Brightness)
	assert.Equal(t, "chardev", cfg.Motors.Backend)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	withConfigFile(t, "leds: [\n")

	_, err := loadConfig(viper.New())
	assert.Error(t, err)
}

func TestBuildRouteKeyValues(t *testing.T) {
	values := buildRouteKeyValues()
	require.NotEmpty(t, values)

	var found bool
	for _, kv := range values {
		if kv.Key == "GPIO 18" {
			found = true
			assert.Equal(t, []any{"PWM", 1, kv.Value[2]}, kv.Value)
			assert.Equal(t, "alt5", kv.Value[2].(interface{ String() string }).String())
		}
	}
	assert.True(t, found)
}
