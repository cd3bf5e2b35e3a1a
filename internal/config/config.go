package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/money"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file
const (
	EnvConfigPath = "DUESINK_CONFIG"
	EnvDBKey      = "DUESINK_DB_KEY"
	EnvLogLevel   = "DUESINK_LOG_LEVEL"
)

type Config struct {
	// Database settings
	Database DatabaseConfig `yaml:"database"`

	// Invoice settings
	Invoice InvoiceConfig `yaml:"invoice"`

	// Overdue and early payment charges
	Charges ChargesConfig `yaml:"charges"`

	// Collection dispatch settings
	Collection CollectionConfig `yaml:"collection"`

	Log LogConfig `yaml:"log"`

	// DBKey is only ever read from the environment
	DBKey string `yaml:"-"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // Path to SQLite database
}

type InvoiceConfig struct {
	NumberPrefix   string `yaml:"number_prefix"`   // Invoice number prefix (e.g., "FAT")
	InterestPolicy string `yaml:"interest_policy"` // simple, compound or price
	DefaultDueDays int    `yaml:"default_due_days"`
}

// ChargesConfig rates are percentages written as strings so they parse
// exactly ("0.033" is 0.033% per day).
type ChargesConfig struct {
	DailyInterest   string `yaml:"daily_interest"`
	Penalty         string `yaml:"penalty"`
	MonthlyDiscount string `yaml:"monthly_discount"`
}

type CollectionConfig struct {
	DefaultChannel string        `yaml:"default_channel"`
	PhoneRegion    string        `yaml:"phone_region"` // ISO 3166 region for local phone numbers
	BackoffBase    time.Duration `yaml:"backoff_base"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	MaxAttempts    int           `yaml:"max_attempts"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	Output string `yaml:"output"` // stderr, stdout or a file path
}

// DefaultConfigPath returns ~/.config/duesink/config.yaml
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir unavailable
		return filepath.Join(".", ".config", "duesink", "config.yaml")
	}
	return filepath.Join(homeDir, ".config", "duesink", "config.yaml")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(homeDir, ".config", "duesink", "duesink.db"),
		},
		Invoice: InvoiceConfig{
			NumberPrefix:   "FAT",
			InterestPolicy: string(domain.InterestPolicyCompound),
			DefaultDueDays: 30,
		},
		Charges: ChargesConfig{
			DailyInterest:   "0.033",
			Penalty:         "2",
			MonthlyDiscount: "0",
		},
		Collection: CollectionConfig{
			DefaultChannel: string(domain.ChannelEmail),
			PhoneRegion:    "BR",
			BackoffBase:    24 * time.Hour,
			BackoffFactor:  2,
			BackoffMax:     7 * 24 * time.Hour,
			MaxAttempts:    5,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
			Output: "stderr",
		},
	}
}

// Load loads config from the given path, or returns defaults if file doesn't
// exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault reads .env from the working directory if present, then loads
// from DUESINK_CONFIG or the default config path
func LoadDefault() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}
	return Load(path)
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvDBKey); key != "" {
		c.DBKey = key
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = strings.ToLower(level)
	}
}

// Validate checks values that would otherwise fail deep inside a command
func (c *Config) Validate() error {
	if !domain.InterestPolicy(c.Invoice.InterestPolicy).Valid() {
		return fmt.Errorf("invoice.interest_policy: unknown policy %q", c.Invoice.InterestPolicy)
	}
	if !domain.Channel(c.Collection.DefaultChannel).Valid() {
		return fmt.Errorf("collection.default_channel: unknown channel %q", c.Collection.DefaultChannel)
	}
	if _, err := c.Rates(); err != nil {
		return err
	}
	return nil
}

// ChargeRates are the parsed charge percentages
type ChargeRates struct {
	DailyInterest   decimal.Decimal
	Penalty         decimal.Decimal
	MonthlyDiscount decimal.Decimal
}

// Rates parses the charges section
func (c *Config) Rates() (ChargeRates, error) {
	var r ChargeRates
	fields := []struct {
		name   string
		raw    string
		target *decimal.Decimal
	}{
		{"charges.daily_interest", c.Charges.DailyInterest, &r.DailyInterest},
		{"charges.penalty", c.Charges.Penalty, &r.Penalty},
		{"charges.monthly_discount", c.Charges.MonthlyDiscount, &r.MonthlyDiscount},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.raw) == "" {
			*f.target = decimal.Zero
			continue
		}
		d, err := money.ParseRate(f.raw)
		if err != nil {
			return ChargeRates{}, fmt.Errorf("%s: %w", f.name, err)
		}
		if d.IsNegative() {
			return ChargeRates{}, fmt.Errorf("%s: rate cannot be negative", f.name)
		}
		*f.target = d
	}
	return r, nil
}

// Save writes the config to the given path
func (c *Config) Save(path string) error {
	// Create parent directories if they don't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Marshal to YAML
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// Write to file
	return os.WriteFile(path, data, 0600)
}

// EnsureDirectories creates the database directory
func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(filepath.Dir(c.Database.Path), 0700)
}
