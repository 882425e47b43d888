package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frameloop.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "frameloop", cfg.Server.Name)
	assert.Equal(t, 50*time.Millisecond, cfg.Loop.FrameRate)
	assert.Equal(t, 32, cfg.World.MinBatch)
	assert.Empty(t, cfg.Database.Driver)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[world]
disable_parallel_processing = true
extent_xn = -50.0
extent_xp = 50.0

[pool]
workers = 3
stop_timeout = "2s"

[loop]
frame_rate = "16ms"
max_frames = 600

[database]
driver = "sqlite"
dsn = "file:snapshots.db"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.World.DisableParallelProcessing)
	assert.Equal(t, -50.0, cfg.World.ExtentXn)
	assert.Equal(t, 10.0, cfg.World.ExtentYp, "unset keys keep defaults")
	assert.Equal(t, 3, cfg.Pool.Workers)
	assert.Equal(t, 2*time.Second, cfg.Pool.StopTimeout)
	assert.Equal(t, 16*time.Millisecond, cfg.Loop.FrameRate)
	assert.Equal(t, uint64(600), cfg.Loop.MaxFrames)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[pool]
workers = 3
`)
	t.Setenv("FRAMELOOP_WORKERS", "7")
	t.Setenv("FRAMELOOP_FRAME_RATE", "100ms")
	t.Setenv("FRAMELOOP_DISABLE_PARALLEL", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Pool.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.Loop.FrameRate)
	assert.True(t, cfg.World.DisableParallelProcessing)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero frame rate", "[loop]\nframe_rate = \"0s\"\n"},
		{"negative workers", "[pool]\nworkers = -1\n"},
		{"empty extent", "[world]\nextent_xn = 5.0\nextent_xp = 5.0\n"},
		{"unknown driver", "[database]\ndriver = \"mysql\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorContains(t, err, "read config")
}
