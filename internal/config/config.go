package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level bankrec.yaml configuration.
type Config struct {
	Server        ServerConfig      `yaml:"server"`
	Database      DatabaseConfig    `yaml:"database"`
	Log           LogConfig         `yaml:"log"`
	Matching      MatchingConfig    `yaml:"matching"`
	Discrepancies DiscrepancyConfig `yaml:"discrepancies"`
	Reports       ReportsConfig     `yaml:"reports"`
	Events        EventsConfig      `yaml:"events"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port                string  `yaml:"port"`
	ReadTimeoutSeconds  int     `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int     `yaml:"write_timeout_seconds"`
	RateLimitPerSecond  float64 `yaml:"rate_limit_per_second"` // 0 disables limiting
	RateLimitBurst      int     `yaml:"rate_limit_burst"`
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MatchingConfig tunes candidate search and scoring.
type MatchingConfig struct {
	DateWindowDays       int     `yaml:"date_window_days"`
	SameDayToleranceDays int     `yaml:"same_day_tolerance_days"`
	AutoConfirm          float64 `yaml:"auto_confirm"`
	ListingThreshold     float64 `yaml:"listing_threshold"`
	MaxCombinationSize   int     `yaml:"max_combination_size"`
	AmountTolerance      float64 `yaml:"amount_tolerance"`
	DatePenaltyPerDay    float64 `yaml:"date_penalty_per_day"`
	MinConfidence        float64 `yaml:"min_confidence"`
}

// DiscrepancyConfig controls detection and the overdue view.
type DiscrepancyConfig struct {
	GracePeriodDays      int                `yaml:"grace_period_days"`
	OverdueDays          int                `yaml:"overdue_days"`
	DetectAfterAutoMatch bool               `yaml:"detect_after_auto_match"`
	Priority             PriorityThresholds `yaml:"priority"`
}

// PriorityThresholds are the minimum absolute amounts for each priority.
type PriorityThresholds struct {
	Critical float64 `yaml:"critical"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
}

// ReportsConfig controls report defaults.
type ReportsConfig struct {
	TrendMonths     int `yaml:"trend_months"`
	OutstandingDays int `yaml:"outstanding_days"`
}

// EventsConfig points the publisher at Kafka. No brokers means log-only.
type EventsConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic"`
}

// Load reads a bankrec.yaml file from disk. Keys absent from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Resolve loads path when it exists (defaults otherwise), loads a .env file
// from the working directory if present, then applies BANKREC_* overrides.
func Resolve(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with environment values found through lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("BANKREC_PORT"); ok && v != "" {
		cfg.Server.Port = v
	}
	if v, ok := lookup("BANKREC_DB_DRIVER"); ok && v != "" {
		cfg.Database.Driver = strings.ToLower(v)
	}
	if v, ok := lookup("BANKREC_DB_DSN"); ok && v != "" {
		cfg.Database.DSN = v
	}
	if v, ok := lookup("BANKREC_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookup("BANKREC_KAFKA_BROKERS"); ok {
		cfg.Events.Brokers = splitList(v)
	}
	if v, ok := lookup("BANKREC_KAFKA_TOPIC"); ok && v != "" {
		cfg.Events.Topic = v
	}
	if v, ok := lookup("BANKREC_RATE_LIMIT"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing BANKREC_RATE_LIMIT: %w", err)
		}
		cfg.Server.RateLimitPerSecond = rps
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	m := c.Matching
	if m.DateWindowDays < 0 || m.SameDayToleranceDays < 0 || m.SameDayToleranceDays > m.DateWindowDays {
		return fmt.Errorf("matching: same_day_tolerance_days must be within [0, date_window_days]")
	}
	if m.MaxCombinationSize < 2 {
		return fmt.Errorf("matching: max_combination_size must be at least 2")
	}
	if m.ListingThreshold > m.AutoConfirm {
		return fmt.Errorf("matching: listing_threshold must not exceed auto_confirm")
	}
	if c.Discrepancies.GracePeriodDays < 0 || c.Discrepancies.OverdueDays < 0 {
		return fmt.Errorf("discrepancies: day counts must not be negative")
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new deployment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                "8080",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 30,
			RateLimitPerSecond:  20,
			RateLimitBurst:      40,
		},
		Database: DatabaseConfig{
			Driver: "memory",
		},
		Log: LogConfig{
			Level: "info",
		},
		Matching: MatchingConfig{
			DateWindowDays:       3,
			SameDayToleranceDays: 1,
			AutoConfirm:          0.80,
			ListingThreshold:     0.20,
			MaxCombinationSize:   4,
			AmountTolerance:      0.05,
			DatePenaltyPerDay:    0.05,
			MinConfidence:        0.05,
		},
		Discrepancies: DiscrepancyConfig{
			GracePeriodDays:      5,
			OverdueDays:          7,
			DetectAfterAutoMatch: true,
			Priority: PriorityThresholds{
				Critical: 10000,
				High:     1000,
				Medium:   100,
			},
		},
		Reports: ReportsConfig{
			TrendMonths:     6,
			OutstandingDays: 30,
		},
		Events: EventsConfig{
			Topic: "bankrec.events",
		},
	}
}
