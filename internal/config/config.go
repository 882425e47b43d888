package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config is loaded from TOML and then overridden by FRAMELOOP_* variables.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	World     WorldConfig     `toml:"world"`
	Pool      PoolConfig      `toml:"pool"`
	Loop      LoopConfig      `toml:"loop"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
	Scripting ScriptingConfig `toml:"scripting"`
}

type ServerConfig struct {
	Name      string `toml:"name" env:"FRAMELOOP_NAME"`
	StartTime int64  // set at boot, not from config
}

type WorldConfig struct {
	DisableParallelProcessing bool    `toml:"disable_parallel_processing" env:"FRAMELOOP_DISABLE_PARALLEL"`
	DisableUserEvents         bool    `toml:"disable_user_events" env:"FRAMELOOP_DISABLE_USER_EVENTS"`
	MinBatch                  int     `toml:"min_batch" env:"FRAMELOOP_MIN_BATCH"` // fewest entities per update task
	ExtentXn                  float64 `toml:"extent_xn"`
	ExtentXp                  float64 `toml:"extent_xp"`
	ExtentYn                  float64 `toml:"extent_yn"`
	ExtentYp                  float64 `toml:"extent_yp"`
	ExtentZn                  float64 `toml:"extent_zn"`
	ExtentZp                  float64 `toml:"extent_zp"`
}

type PoolConfig struct {
	Workers       int  `toml:"workers" env:"FRAMELOOP_WORKERS"` // 0 = one per CPU
	MaxQueued     int  `toml:"max_queued" env:"FRAMELOOP_MAX_QUEUED"`
	LockOSThreads bool `toml:"lock_os_threads" env:"FRAMELOOP_LOCK_OS_THREADS"`
	// StopTimeout bounds shutdown; queued tasks are abandoned after it.
	StopTimeout time.Duration `toml:"stop_timeout" env:"FRAMELOOP_STOP_TIMEOUT"`
}

type LoopConfig struct {
	FrameRate    time.Duration `toml:"frame_rate" env:"FRAMELOOP_FRAME_RATE"`
	MaxFrames    uint64        `toml:"max_frames" env:"FRAMELOOP_MAX_FRAMES"` // 0 = until signal
	Scenario     string        `toml:"scenario" env:"FRAMELOOP_SCENARIO"`
	DrawEvery    uint64        `toml:"draw_every"`    // frames between canvas dumps, 0 = never
	CanvasWidth  int           `toml:"canvas_width"`  // columns
	CanvasHeight int           `toml:"canvas_height"` // rows
}

type DatabaseConfig struct {
	Driver          string        `toml:"driver" env:"FRAMELOOP_DB_DRIVER"` // "postgres", "sqlite" or "" (disabled)
	DSN             string        `toml:"dsn" env:"FRAMELOOP_DB_DSN"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	SnapshotEvery   uint64        `toml:"snapshot_every" env:"FRAMELOOP_SNAPSHOT_EVERY"` // frames between snapshots
	SnapshotKeep    int           `toml:"snapshot_keep"`                                 // per run, 0 = keep all
}

type LoggingConfig struct {
	Level  string `toml:"level" env:"FRAMELOOP_LOG_LEVEL"`
	Format string `toml:"format" env:"FRAMELOOP_LOG_FORMAT"` // "json" or "console"
}

type ScriptingConfig struct {
	Dir string `toml:"dir" env:"FRAMELOOP_SCRIPTS"` // empty disables Lua
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Validate rejects settings the loop cannot run with.
func (c *Config) Validate() error {
	if c.Loop.FrameRate <= 0 {
		return fmt.Errorf("loop.frame_rate must be positive, got %s", c.Loop.FrameRate)
	}
	if c.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must not be negative, got %d", c.Pool.Workers)
	}
	if c.World.ExtentXn >= c.World.ExtentXp || c.World.ExtentYn >= c.World.ExtentYp || c.World.ExtentZn >= c.World.ExtentZp {
		return fmt.Errorf("world extents are empty")
	}
	switch c.Database.Driver {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver %q not supported", c.Database.Driver)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "frameloop",
		},
		World: WorldConfig{
			MinBatch: 32,
			ExtentXn: -10,
			ExtentXp: 10,
			ExtentYn: -10,
			ExtentYp: 10,
			ExtentZn: -10,
			ExtentZp: 10,
		},
		Pool: PoolConfig{
			Workers:     0,
			StopTimeout: 5 * time.Second,
		},
		Loop: LoopConfig{
			FrameRate:    50 * time.Millisecond,
			DrawEvery:    20,
			CanvasWidth:  60,
			CanvasHeight: 20,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			SnapshotEvery:   100,
			SnapshotKeep:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
