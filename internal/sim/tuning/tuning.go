package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/fov"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	// Applied to every player on join; clients may override both.
	DefaultFOV         FOV         `yaml:"default_fov"`
	DefaultLiveVersion LiveVersion `yaml:"default_live_version"`

	Maps []blocks.MapDefinition `yaml:"maps"`

	Stream Stream `yaml:"stream"`
	Log    Log    `yaml:"log"`
}

type FOV struct {
	MinBlockX int `yaml:"min_block_x"`
	MaxBlockX int `yaml:"max_block_x"`
	MinBlockY int `yaml:"min_block_y"`
	MaxBlockY int `yaml:"max_block_y"`
}

func (f FOV) Window() fov.Window {
	return fov.Window{MinX: f.MinBlockX, MaxX: f.MaxBlockX, MinY: f.MinBlockY, MaxY: f.MaxBlockY}
}

type LiveVersion struct {
	Major int `yaml:"major"`
	Minor int `yaml:"minor"`
}

type Stream struct {
	// Send hashes only for blocks that entered the client's view instead of
	// the whole window on every crossing.
	Incremental         bool `yaml:"incremental"`
	// Per-session outbound queue length.
	OutQueue            int  `yaml:"out_queue"`
	// Upper bound on blocks answered per BLOCK_REQUEST.
	MaxBlocksPerRequest int  `yaml:"max_blocks_per_request"`
}

type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

func Defaults() Tuning {
	w := fov.DefaultWindow()
	return Tuning{
		ProtocolVersion: "1.0",
		DefaultFOV:      FOV{MinBlockX: w.MinX, MaxBlockX: w.MaxX, MinBlockY: w.MinY, MaxBlockY: w.MaxY},
		Maps: []blocks.MapDefinition{
			{Number: 0, WidthTiles: 7168, HeightTiles: 4096, WrapWidthTiles: 5120, WrapHeightTiles: 4096},
			{Number: 1, WidthTiles: 7168, HeightTiles: 4096, WrapWidthTiles: 5120, WrapHeightTiles: 4096},
			{Number: 2, WidthTiles: 2304, HeightTiles: 1600, WrapWidthTiles: 2304, WrapHeightTiles: 1600},
			{Number: 3, WidthTiles: 2560, HeightTiles: 2048, WrapWidthTiles: 2560, WrapHeightTiles: 2048},
			{Number: 4, WidthTiles: 1448, HeightTiles: 1448, WrapWidthTiles: 1448, WrapHeightTiles: 1448},
			{Number: 5, WidthTiles: 1280, HeightTiles: 4096, WrapWidthTiles: 1280, WrapHeightTiles: 4096},
		},
		Stream: Stream{
			OutQueue:            256,
			MaxBlocksPerRequest: 64,
		},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load reads a tuning file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t *Tuning) Normalize() {
	t.ProtocolVersion = strings.TrimSpace(t.ProtocolVersion)
	if t.Stream.OutQueue <= 0 {
		t.Stream.OutQueue = 256
	}
	if t.Stream.OutQueue > 4096 {
		t.Stream.OutQueue = 4096
	}
	if t.Stream.MaxBlocksPerRequest <= 0 {
		t.Stream.MaxBlocksPerRequest = 64
	}
	t.Log.Level = strings.ToLower(strings.TrimSpace(t.Log.Level))
	if t.Log.Level == "" {
		t.Log.Level = "info"
	}
	t.Log.File = strings.TrimSpace(t.Log.File)
}

func (t Tuning) Validate() error {
	if t.ProtocolVersion == "" {
		return fmt.Errorf("protocol_version is required")
	}
	if err := t.DefaultFOV.Window().Validate(); err != nil {
		return fmt.Errorf("default_fov: %w", err)
	}
	if t.DefaultLiveVersion.Major < 0 || t.DefaultLiveVersion.Minor < 0 {
		return fmt.Errorf("default_live_version: %w", fov.ErrInvalidVersion)
	}
	if len(t.Maps) == 0 {
		return fmt.Errorf("maps: at least one map is required")
	}
	seen := map[uint8]bool{}
	for _, m := range t.Maps {
		if seen[m.Number] {
			return fmt.Errorf("maps: duplicate map %d", m.Number)
		}
		seen[m.Number] = true
		if err := m.Validate(); err != nil {
			return fmt.Errorf("maps: %w", err)
		}
	}
	return nil
}
