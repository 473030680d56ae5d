package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for chartpi.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Logging   Logging   `yaml:"logging"`
	Providers Providers `yaml:"providers"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Dashboard Dashboard `yaml:"dashboard"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DBPath     string `yaml:"db_path"`
	ArchiveDir string `yaml:"archive_dir"`
}

// Logging configures the application logger. The TUI owns stdout, so the
// interactive binary always logs to File.
type Logging struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
}

// Providers holds upstream endpoints and request pacing. Empty URLs select
// the public defaults.
type Providers struct {
	BinanceURL       string        `yaml:"binance_url"`
	BinanceStreamURL string        `yaml:"binance_stream_url"`
	YahooURL         string        `yaml:"yahoo_url"`
	Timeout          time.Duration `yaml:"timeout"`
	RatePerMinute    int           `yaml:"rate_per_minute"`
}

// Alpaca holds the fallback stock provider's credentials and endpoints.
// Credentials saved in the dashboard take precedence over these.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Dashboard tunes the interactive grid.
type Dashboard struct {
	ClockTick       time.Duration `yaml:"clock_tick"`
	CalendarRefresh string        `yaml:"calendar_refresh"` // cron spec with seconds
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DBPath:     "chartpi.db",
			ArchiveDir: "archive",
		},
		Logging: Logging{
			Level:      "info",
			File:       "chartpi.log",
			MaxSizeMB:  10,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
		Providers: Providers{
			Timeout:       10 * time.Second,
			RatePerMinute: 600,
		},
		Alpaca: Alpaca{Feed: "iex"},
		Dashboard: Dashboard{
			ClockTick:       time.Second,
			CalendarRefresh: "0 0 5 * * *",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path over Default(),
// and then applies environment variable overrides. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Path returns the config file path from CHARTPI_CONFIG, or fallback.
func Path(fallback string) string {
	if v := os.Getenv("CHARTPI_CONFIG"); v != "" {
		return v
	}
	return fallback
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHARTPI_DB"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("CHARTPI_ARCHIVE_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}

	if v := os.Getenv("CHARTPI_RATE_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Providers.RatePerMinute = n
		}
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("ALPACA_FEED"); v != "" {
		cfg.Alpaca.Feed = v
	}

	// Standard Alpaca env vars, the canonical names used by the SDK.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
