package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, 1316, cfg.Port)
	require.Equal(t, 60000, cfg.IdleTimeoutMS)
	require.Equal(t, 40, cfg.WorkerPoolSize)
	require.Equal(t, 50, cfg.DBPoolSize)
	require.True(t, cfg.OpenLog)
	require.True(t, cfg.EdgeTriggered)
}

func TestMySQLHostEnvOverride(t *testing.T) {
	require.NoError(t, os.Setenv("MYSQL_HOST", "db.internal"))
	defer os.Unsetenv("MYSQL_HOST")

	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, "db.internal", cfg.MySQLHost)
}

func TestFlagOverridesDefault(t *testing.T) {
	fs := FlagSet()
	require.NoError(t, fs.Parse([]string{"--port", "9000", "-l"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.False(t, cfg.OpenLog)
}
