package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 10000.0, cfg.Account.InitialDeposit)
	assert.Equal(t, "long-short-reversal", cfg.Strategy.Name)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func(mod func(*Config)) *Config {
		c := Default()
		mod(c)
		return c
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			config: Default(),
		},
		{
			name:    "zero deposit",
			config:  &Config{},
			wantErr: true,
			errMsg:  "account.initial_deposit must be positive",
		},
		{
			name:    "missing data dir",
			config:  valid(func(c *Config) { c.Data.Dir = "" }),
			wantErr: true,
			errMsg:  "data.dir is required",
		},
		{
			name:    "unknown strategy",
			config:  valid(func(c *Config) { c.Strategy.Name = "moon-shot" }),
			wantErr: true,
			errMsg:  "unknown strategy",
		},
		{
			name:   "strategy name is case insensitive",
			config: valid(func(c *Config) { c.Strategy.Name = "Buy-And-Hold" }),
		},
		{
			name:    "no symbols",
			config:  valid(func(c *Config) { c.Strategy.Symbols = nil }),
			wantErr: true,
			errMsg:  "strategy.symbols is required",
		},
		{
			name:    "negative look-back",
			config:  valid(func(c *Config) { c.Strategy.LookBack = -1 }),
			wantErr: true,
			errMsg:  "strategy.look_back must not be negative",
		},
		{
			name:    "csv journal without path",
			config:  valid(func(c *Config) { c.Journal = JournalConfig{Type: "csv"} }),
			wantErr: true,
			errMsg:  "journal.path required for csv type",
		},
		{
			name:   "no journal",
			config: valid(func(c *Config) { c.Journal = JournalConfig{Type: "none"} }),
		},
		{
			name:    "bad journal type",
			config:  valid(func(c *Config) { c.Journal.Type = "postgres" }),
			wantErr: true,
			errMsg:  "journal.type must be",
		},
		{
			name:    "negative risk limit",
			config:  valid(func(c *Config) { c.Risk.MaxPositionPct = -1 }),
			wantErr: true,
			errMsg:  "risk: max_position_pct must not be negative",
		},
		{
			name:    "bad log level",
			config:  valid(func(c *Config) { c.Log.Level = "loud" }),
			wantErr: true,
			errMsg:  "log.level must be one of debug|info|warn|error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		ext  string
	}{
		{"json format", ".json"},
		{"yaml format", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Run.Seed = 42
			cfg.Risk.MaxOpenTrades = 3
			path := filepath.Join(tmpDir, "test"+tt.ext)

			err := cfg.SaveToFile(path)
			require.NoError(t, err)

			_, err = os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bt.yaml")
	src := `account:
  initial_deposit: 5000
data:
  dir: ./testdata
strategy:
  name: buy-and-hold
  symbols: [AAPL, MSFT]
  params:
    AAPL: 0.6
    MSFT: 0.4
journal:
  type: none
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, cfg.Account.InitialDeposit)

	p := cfg.StrategyParams()
	assert.Equal(t, []string{"AAPL", "MSFT"}, p.Symbols)
	assert.Equal(t, 0.6, p.Values["AAPL"])
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account: [unclosed"), 0o644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "parse config")
}
