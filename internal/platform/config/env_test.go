package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envTestConfig struct {
	Port    int           `env:"ROADWORK_TEST_PORT" envDefault:"123"`
	Path    string        `env:"ROADWORK_TEST_PATH" envDefault:"database/users"`
	Timeout time.Duration `env:"ROADWORK_TEST_TIMEOUT" envDefault:"2s"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 123, cfg.Port)
	assert.Equal(t, "database/users", cfg.Path)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("ROADWORK_TEST_PORT", "9000")
	t.Setenv("ROADWORK_TEST_PATH", "/var/lib/roadwork/users")

	var cfg envTestConfig
	require.NoError(t, ParseEnv(&cfg))
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/var/lib/roadwork/users", cfg.Path)
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("ROADWORK_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}
