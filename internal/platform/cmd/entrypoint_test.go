package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testConfig struct {
	Address string `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string `env:"CMD_TEST_MODE" envDefault:"server"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Setenv("CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	require.NoError(t, ParseConfig(&cfgRef), "load config defaults")
	fs.StringVar(&cfgRef.Address, "address", cfgRef.Address, "address")
	fs.StringVar(&cfgRef.Mode, "mode", cfgRef.Mode, "mode")

	require.NoError(t, ParseArgs(fs, []string{"-address", "flag:9001"}), "parse flags")
	assert.Equal(t, "flag:9001", cfgRef.Address)
	assert.Equal(t, "env-mode", cfgRef.Mode)
}

func TestParseConfigRejectsNilTarget(t *testing.T) {
	assert.Error(t, ParseConfig[testConfig](nil))
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	assert.Error(t, ParseArgs(nil, []string{}))
}

func TestParseArgsAcceptsNilArgs(t *testing.T) {
	fs := flag.NewFlagSet("nil-args", flag.ContinueOnError)
	require.NoError(t, ParseArgs(fs, nil))
	assert.Empty(t, fs.Args())
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	err := RunWithTelemetryAndOptions(context.Background(), " ", RunOptions{}, func(context.Context) error { return nil })
	assert.Error(t, err, "missing service name")

	err = RunWithTelemetryAndOptions(context.Background(), ServiceRoadwork, RunOptions{}, nil)
	assert.Error(t, err, "missing run function")
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("ROADWORK_OTEL_ENDPOINT", "")

	want := errors.New("serve failed")
	err := RunWithTelemetryAndOptions(context.Background(), ServiceRoadwork, RunOptions{
		ShutdownTimeout: time.Second,
		Logger:          zap.NewNop(),
	}, func(context.Context) error {
		return want
	})
	assert.ErrorIs(t, err, want)
}
