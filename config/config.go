package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/eodsim/risk"
	"github.com/rustyeddy/eodsim/strategies"
)

// Config represents a complete backtest configuration
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Data     DataConfig     `json:"data" yaml:"data"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Run      RunConfig      `json:"run" yaml:"run"`
	Risk     risk.Policy    `json:"risk" yaml:"risk"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	InitialDeposit float64 `json:"initial_deposit" yaml:"initial_deposit"`
}

// DataConfig locates the per-symbol EOD CSV files.
type DataConfig struct {
	Dir     string `json:"dir" yaml:"dir"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"` // doublestar glob, "*.csv" when empty
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
}

// StrategyConfig selects a registered strategy and its parameters
type StrategyConfig struct {
	Name     string             `json:"name" yaml:"name"`
	Symbols  []string           `json:"symbols" yaml:"symbols"`
	LookBack int                `json:"look_back" yaml:"look_back"`
	Params   map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// RunConfig contains per-run settings
type RunConfig struct {
	ID             string `json:"id,omitempty" yaml:"id,omitempty"`
	Seed           int64  `json:"seed,omitempty" yaml:"seed,omitempty"` // non-zero makes ids reproducible
	LiquidateAtEnd bool   `json:"liquidate_at_end" yaml:"liquidate_at_end"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development,omitempty" yaml:"development,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"` // text exposition dump after the run
}

var logLevels = []string{"debug", "info", "warn", "error"}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialDeposit <= 0 {
		return fmt.Errorf("account.initial_deposit must be positive")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if !slices.Contains(strategies.Names(), strings.ToLower(strings.TrimSpace(c.Strategy.Name))) {
		return fmt.Errorf("unknown strategy: %s", c.Strategy.Name)
	}
	if len(c.Strategy.Symbols) == 0 {
		return fmt.Errorf("strategy.symbols is required")
	}
	if c.Strategy.LookBack < 0 {
		return fmt.Errorf("strategy.look_back must not be negative")
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv", "sqlite":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path required for %s type", c.Journal.Type)
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.Log.Level != "" && !slices.Contains(logLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of %s", strings.Join(logLevels, "|"))
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			InitialDeposit: 10000,
		},
		Data: DataConfig{
			Dir:     "./data",
			Pattern: "*.csv",
		},
		Strategy: StrategyConfig{
			Name:    strategies.LongShortName,
			Symbols: []string{"AAPL", "MSFT"},
			Params:  map[string]float64{"capital_fraction": 1},
		},
		Run: RunConfig{
			LiquidateAtEnd: true,
		},
		Journal: JournalConfig{
			Type: "sqlite",
			Path: "./eodsim.sqlite",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// StrategyParams converts the strategy section into registry parameters.
func (c *Config) StrategyParams() strategies.Params {
	return strategies.Params{
		Symbols:  c.Strategy.Symbols,
		LookBack: c.Strategy.LookBack,
		Values:   c.Strategy.Params,
	}
}
