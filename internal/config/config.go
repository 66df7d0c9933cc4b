package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Environment overrides
const (
	EnvBaseURL  = "ARXIVED_BASE_URL"
	EnvLogLevel = "ARXIVED_LOG_LEVEL"
)

type APIConfig struct {
	BaseURL     string `yaml:"base_url"`
	Timeout     string `yaml:"timeout"`
	MinInterval string `yaml:"min_interval"`
}

type ScrapeConfig struct {
	StepSize   int    `yaml:"step_size"`
	MaxRetries int    `yaml:"max_retries"`
	RetryDelay string `yaml:"retry_delay"`
	PageDelay  string `yaml:"page_delay"`
	MaxLimit   int    `yaml:"max_limit"`
}

type UIConfig struct {
	PreviewCap   int    `yaml:"preview_cap"`
	DefaultTopic string `yaml:"default_topic"`
	DefaultLimit int    `yaml:"default_limit"`
	AutoSearch   bool   `yaml:"auto_search"`
	Splash       bool   `yaml:"splash"`
}

type ExportConfig struct {
	Dir         string `yaml:"dir"`
	CSVFilename string `yaml:"csv_filename"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

type Config struct {
	API    APIConfig    `yaml:"api"`
	Scrape ScrapeConfig `yaml:"scrape"`
	UI     UIConfig     `yaml:"ui"`
	Export ExportConfig `yaml:"export"`
	Log    LogConfig    `yaml:"log"`
}

func (c *Config) Timeout() time.Duration {
	return parseDuration(c.API.Timeout, 60*time.Second)
}

// MinInterval is the minimum spacing between API requests; zero disables it
func (c *Config) MinInterval() time.Duration {
	return parseDuration(c.API.MinInterval, time.Second)
}

func (c *Config) RetryDelay() time.Duration {
	return parseDuration(c.Scrape.RetryDelay, 5*time.Second)
}

func (c *Config) PageDelay() time.Duration {
	return parseDuration(c.Scrape.PageDelay, 2*time.Second)
}

// GetMaxLimit returns the result limit cap, defaulting to 1000.
func (c *Config) GetMaxLimit() int {
	if c.Scrape.MaxLimit <= 0 {
		return 1000
	}
	return c.Scrape.MaxLimit
}

// GetPreviewCap returns how many records the results table shows, defaulting to 20.
func (c *Config) GetPreviewCap() int {
	if c.UI.PreviewCap <= 0 {
		return 20
	}
	return c.UI.PreviewCap
}

// LogLevel maps the configured level name, falling back to info
func (c *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// LogPath returns the configured log file or the XDG state location
func (c *Config) LogPath() string {
	if c.Log.File != "" {
		return c.Log.File
	}
	return filepath.Join(xdg.StateHome, "arxived", "arxived.log")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "arxived", "config.yaml")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (the XDG location when empty), writing the
// embedded defaults there on first run. A .env file in the working directory
// is loaded first so its variables can override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Non-fatal: embedded defaults still apply
		_ = writeDefaults(path)
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		// Unmarshal over the defaults so omitted keys keep their values
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url: scheme must be http or https, got %q", u.Scheme)
	}
	if cfg.Scrape.StepSize < 0 {
		return fmt.Errorf("scrape.step_size: must not be negative, got %d", cfg.Scrape.StepSize)
	}
	if cfg.UI.DefaultLimit < 0 {
		return fmt.Errorf("ui.default_limit: must not be negative, got %d", cfg.UI.DefaultLimit)
	}
	return nil
}
