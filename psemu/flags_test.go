package main

import (
	"testing"
	"time"

	"github.com/itohio/psemu/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	opts, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", opts.configPath)
	assert.False(t, opts.listPorts)

	cfg := config.Default()
	opts.apply(cfg)
	assert.Equal(t, config.Default(), cfg, "unset flags must not override the configuration")
}

func TestParseFlags_Overrides(t *testing.T) {
	opts, err := parseFlags([]string{
		"-config", "bench.yaml",
		"-mode", "tcp",
		"-p", "COM4",
		"-baud", "115200",
		"-tcp-port", "6000",
		"-tick", "250ms",
		"-plot",
		"-log-level", "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, "bench.yaml", opts.configPath)

	cfg := config.Default()
	opts.apply(cfg)
	assert.Equal(t, config.ModeTCP, cfg.Transport.Mode)
	assert.Equal(t, "COM4", cfg.Transport.Port)
	assert.Equal(t, 115200, cfg.Transport.BaudRate)
	assert.Equal(t, 6000, cfg.Transport.TCPPort)
	assert.Equal(t, 250*time.Millisecond, cfg.Emulator.TickPeriod)
	assert.True(t, cfg.Plot.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParseFlags_ScriptImpliesMode(t *testing.T) {
	opts, err := parseFlags([]string{"-script", "ramp.txt"})
	require.NoError(t, err)

	cfg := config.Default()
	opts.apply(cfg)
	assert.Equal(t, config.ModeScript, cfg.Transport.Mode)
	assert.Equal(t, "ramp.txt", cfg.Transport.Script)
	assert.NoError(t, cfg.Validate())
}

func TestParseFlags_PlotCanBeDisabled(t *testing.T) {
	opts, err := parseFlags([]string{"-plot=false"})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Plot.Enabled = true
	opts.apply(cfg)
	assert.False(t, cfg.Plot.Enabled)
}

func TestParseFlags_Invalid(t *testing.T) {
	_, err := parseFlags([]string{"-baud", "fast"})
	assert.Error(t, err)
}
