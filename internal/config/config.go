package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const defaultPath = "configs/app.yaml"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Bidding   BiddingConfig   `yaml:"bidding"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // memory | postgres
	DSN    string `yaml:"dsn"`
}

type BiddingConfig struct {
	LockTimeout       time.Duration `yaml:"lock_timeout"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	SnipeWindow       time.Duration `yaml:"snipe_window"`
	SnipeExtension    time.Duration `yaml:"snipe_extension"`
	IneligibleBidders []string      `yaml:"ineligible_bidders"`
}

type RateLimitConfig struct {
	PerSecond int `yaml:"per_second"`
	Burst     int `yaml:"burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
		Store:     StoreConfig{Driver: "memory"},
		Bidding:   BiddingConfig{LockTimeout: 2 * time.Second, SweepInterval: 30 * time.Second, SnipeWindow: 5 * time.Minute, SnipeExtension: 5 * time.Minute},
		RateLimit: RateLimitConfig{PerSecond: 20, Burst: 40},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env (if present), the YAML file at CONFIG_PATH (or configs/app.yaml,
// if present) and finally environment overrides
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	cfg := Default()

	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}
	if err := loadFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("LOCK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LOCK_TIMEOUT: %w", err)
		}
		cfg.Bidding.LockTimeout = d
	}
	if v := os.Getenv("INELIGIBLE_BIDDERS"); v != "" {
		cfg.Bidding.IneligibleBidders = nil
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.Bidding.IneligibleBidders = append(cfg.Bidding.IneligibleBidders, id)
			}
		}
	}
	return nil
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("config: postgres store requires a dsn")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Bidding.LockTimeout <= 0 {
		return errors.New("config: lock_timeout must be positive")
	}
	if c.Bidding.SweepInterval <= 0 {
		return errors.New("config: sweep_interval must be positive")
	}
	if c.Bidding.SnipeWindow < 0 || c.Bidding.SnipeExtension < 0 {
		return errors.New("config: snipe durations must not be negative")
	}
	return nil
}

// Addr returns the listen address for gin
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
