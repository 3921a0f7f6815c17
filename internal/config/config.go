package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"tradearena/internal/profile"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the trading arena.
type Config struct {
	Storage  Storage                    `yaml:"storage"`
	Server   Server                     `yaml:"server"`
	Game     Game                       `yaml:"game"`
	Alpaca   Alpaca                     `yaml:"alpaca"`
	Logging  Logging                    `yaml:"logging"`
	Profiles map[string]profile.Profile `yaml:"profiles"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration and API auth.
type Server struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	AuthToken  string `yaml:"auth_token"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Game holds competition parameters.
type Game struct {
	StartingCash      float64 `yaml:"starting_cash"`
	MaxTradesPerRound int     `yaml:"max_trades_per_round"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies defaults, and then applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Game.StartingCash == 0 {
		cfg.Game.StartingCash = 100000
	}
	if cfg.Game.MaxTradesPerRound == 0 {
		cfg.Game.MaxTradesPerRound = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("ARENA_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ARENA_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}

	if v := os.Getenv("ARENA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca SDK env vars take highest priority.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// Registry builds the constraint-profile registry: class defaults overlaid
// with any per-class overrides from the config file.
func (c *Config) Registry() profile.Registry {
	reg := profile.DefaultRegistry()
	reg.Apply(c.Profiles)
	return reg
}
