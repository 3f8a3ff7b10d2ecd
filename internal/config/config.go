// Package config loads the host daemon configuration: YAML file first,
// then HOSTD_* environment overrides for the handful of values that differ
// between deployments.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Listen is the public HTTP address (uploads, static game serving).
	Listen string `yaml:"listen" env:"HOSTD_LISTEN"`
	// DataDir is the root of the hosting tree: games, worlds, temp dirs,
	// server configs, deploy logs and the bindings database all live under
	// it.
	DataDir string `yaml:"data_dir" env:"HOSTD_DATA_DIR"`
	// MaxUploadMB caps the accepted archive size.
	MaxUploadMB int `yaml:"max_upload_mb" env:"HOSTD_MAX_UPLOAD_MB"`

	EasyRPG EasyRPGConfig `yaml:"easyrpg"`
	Sandbox SandboxConfig `yaml:"sandbox"`
}

type EasyRPGConfig struct {
	// IndexTool is the external generator producing index.json over a
	// staged game tree. Empty disables generation (uploads without a
	// prebuilt index still deploy; the runtime falls back to per-request
	// lookups).
	IndexTool string `yaml:"index_tool" env:"HOSTD_EASYRPG_INDEX_TOOL"`
	// IndexDepth is the recursion depth passed to the tool.
	IndexDepth int `yaml:"index_depth" env:"HOSTD_EASYRPG_INDEX_DEPTH"`
	// IndexStrict makes an index generation failure fail the upload
	// instead of deploying without an index.
	IndexStrict bool `yaml:"index_strict" env:"HOSTD_EASYRPG_INDEX_STRICT"`
}

type SandboxConfig struct {
	// Binary is the world server executable. Empty disables the sandbox
	// engine entirely.
	Binary string `yaml:"binary" env:"HOSTD_SANDBOX_BINARY"`
	// GameID is the subgame identifier written into each world descriptor.
	GameID string `yaml:"game_id" env:"HOSTD_SANDBOX_GAME_ID"`
	// BasePort is the first port handed to a new world; later worlds count
	// up from the highest binding on record.
	BasePort int `yaml:"base_port" env:"HOSTD_SANDBOX_BASE_PORT"`
	// StopTimeoutSec bounds the graceful-stop wait before a server process
	// is killed.
	StopTimeoutSec int `yaml:"stop_timeout_sec" env:"HOSTD_SANDBOX_STOP_TIMEOUT_SEC"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("hostd.yaml: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("hostd.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Listen:      ":8080",
		DataDir:     "data",
		MaxUploadMB: 512,
		EasyRPG: EasyRPGConfig{
			IndexDepth: 3,
		},
		Sandbox: SandboxConfig{
			GameID:         "voxelgame",
			BasePort:       30000,
			StopTimeoutSec: 10,
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	c.Listen = strings.TrimSpace(c.Listen)
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.MaxUploadMB <= 0 {
		c.MaxUploadMB = 512
	}
	if c.EasyRPG.IndexDepth <= 0 {
		c.EasyRPG.IndexDepth = 3
	}
	if c.Sandbox.BasePort <= 0 {
		c.Sandbox.BasePort = 30000
	}
	if c.Sandbox.StopTimeoutSec <= 0 {
		c.Sandbox.StopTimeoutSec = 10
	}
	if strings.TrimSpace(c.Sandbox.GameID) == "" {
		c.Sandbox.GameID = "voxelgame"
	}
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Sandbox.BasePort < 1024 || c.Sandbox.BasePort > 65000 {
		return fmt.Errorf("sandbox base_port %d out of range [1024, 65000]", c.Sandbox.BasePort)
	}
	return nil
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func (c Config) SandboxStopTimeout() time.Duration {
	return time.Duration(c.Sandbox.StopTimeoutSec) * time.Second
}
