package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/l1jgo/frameloop/internal/config"
	"github.com/l1jgo/frameloop/internal/core/ecs"
	"github.com/l1jgo/frameloop/internal/world"
)

const scenario = `
name: test
emitters:
  - every: 5
    burst: 4
    speed: 3
    life: 1s
markers:
  - x: 5
    y: 5
    label: M
deferred:
  - event: wave
    param: 2
    delay: 3
`

const script = `
waves = 0
emits = 0
on("wave", function(p) waves = waves + p end)
on("emit", function(n) emits = emits + n end)
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	scenarioPath := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(scenarioPath, []byte(scenario), 0o644))
	scripts := filepath.Join(dir, "scripts")
	require.NoError(t, os.Mkdir(scripts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "count.lua"), []byte(script), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Pool.Workers = 2
	cfg.World.MinBatch = 2
	cfg.Loop.FrameRate = time.Millisecond
	cfg.Loop.MaxFrames = 12
	cfg.Loop.Scenario = scenarioPath
	cfg.Loop.DrawEvery = 10
	cfg.Scripting.Dir = scripts
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = ":memory:"
	cfg.Database.SnapshotEvery = 4
	cfg.Database.SnapshotKeep = 0
	return cfg
}

func TestRunWiresEverything(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	ctx := context.Background()

	d, err := New(ctx, cfg, zaptest.NewLogger(t), &out)
	require.NoError(t, err)
	require.NotNil(t, d.Scripts)
	require.NotNil(t, d.Persist)

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, uint64(12), d.World.Frame())

	// canvas dumped at frame 10
	assert.Contains(t, out.String(), "frame 10 ")

	// frames 5 and 10 emit four particles each
	got, err := d.World.GetEntities(nil, []ecs.TypeID{world.TypeParticle}, ecs.FlagNone)
	require.NoError(t, err)
	assert.Len(t, got, 8)

	require.NoError(t, d.Scripts.DoString(`result = waves * 100 + emits`))
	assert.Equal(t, "208", d.Scripts.Global("result"))

	// frames 4, 8 and 12; the last write is still in flight after Run
	require.NoError(t, d.Persist.Close())
	n, err := d.Snapshots.Count(ctx, d.Persist.RunID())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(3), d.Persist.Saved())

	require.NoError(t, d.Close())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Loop.MaxFrames = 0
	cfg.Database.Driver = ""

	d, err := New(context.Background(), cfg, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, d.Run(ctx))
	assert.Positive(t, d.World.Frame())
	assert.Nil(t, d.Persist)
}

func TestNewFailsOnMissingScenario(t *testing.T) {
	cfg := testConfig(t)
	cfg.Loop.Scenario = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(context.Background(), cfg, zaptest.NewLogger(t), nil)
	assert.Error(t, err)
}

func TestStatsEvery(t *testing.T) {
	assert.Equal(t, uint64(200), statsEvery(50*time.Millisecond))
	assert.Equal(t, uint64(1), statsEvery(time.Minute))
	assert.Zero(t, statsEvery(0))
}
