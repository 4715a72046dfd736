package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/plus3/sapphire/sph"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Simulation sph.Params      `toml:"simulation" yaml:"simulation"`
	Spawn      sph.SpawnConfig `toml:"spawn" yaml:"spawn"`
	Run        RunConfig       `toml:"run" yaml:"run"`
	Window     WindowConfig    `toml:"window" yaml:"window"`
	Logging    LoggingConfig   `toml:"logging" yaml:"logging"`
}

type RunConfig struct {
	GPU       bool          `toml:"gpu" yaml:"gpu"`
	TickRate  time.Duration `toml:"tick_rate" yaml:"tick_rate"`
	Frames    int           `toml:"frames" yaml:"frames"` // 0 runs until interrupted
	StatsEach int           `toml:"stats_each" yaml:"stats_each"`
}

type WindowConfig struct {
	Title     string  `toml:"title" yaml:"title"`
	Width     int     `toml:"width" yaml:"width"`
	Height    int     `toml:"height" yaml:"height"`
	FOV       float32 `toml:"fov" yaml:"fov"` // vertical, degrees
	DebugUI   bool    `toml:"debug_ui" yaml:"debug_ui"`
	PointSize float32 `toml:"point_size" yaml:"point_size"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "json" or "console"
	// Output is a file path the logs are appended to. Empty means stderr.
	Output string `toml:"output" yaml:"output"`
}

// Load reads a TOML or YAML file on top of the defaults. The format is
// picked from the extension; anything but .yaml and .yml is TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return defaults()
}

// Validate checks the sections a run cannot start without.
func (c *Config) Validate() error {
	if err := c.Simulation.Validate(); err != nil {
		return err
	}
	if c.Spawn.Spacing <= 0 {
		return fmt.Errorf("spawn spacing %v must be positive", c.Spawn.Spacing)
	}
	if c.Spawn.BlockSize <= 0 || c.Spawn.ClusterSize <= 0 {
		return fmt.Errorf("spawn sizes %d/%d out of range", c.Spawn.BlockSize, c.Spawn.ClusterSize)
	}
	if c.Run.TickRate <= 0 {
		return fmt.Errorf("tick rate %v must be positive", c.Run.TickRate)
	}
	return nil
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg *Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

func defaults() *Config {
	return &Config{
		Simulation: sph.DefaultParams(),
		Spawn:      sph.DefaultSpawnConfig(),
		Run: RunConfig{
			TickRate:  16 * time.Millisecond,
			StatsEach: 60,
		},
		Window: WindowConfig{
			Title:     "sapphire",
			Width:     1280,
			Height:    720,
			FOV:       45,
			DebugUI:   true,
			PointSize: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
