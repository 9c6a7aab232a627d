package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/futuresim/risk"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 1000000.0, cfg.Account.Balance)
	assert.Equal(t, risk.MethodFixedRisk, cfg.Risk.Method)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"missing currency", func(c *Config) { c.Account.Currency = "" }, "account.currency is required"},
		{"negative balance", func(c *Config) { c.Account.Balance = -1000 }, "account.balance must be positive"},
		{"bad start", func(c *Config) { c.Simulation.Start = "01/02/2020" }, "simulation.start"},
		{"end before start", func(c *Config) { c.Simulation.End = "2019-01-01" }, "must not be before"},
		{"unknown sizing", func(c *Config) { c.Risk.Method = "kelly" }, "unknown position sizing method"},
		{"bad tenor", func(c *Config) { c.Broker.Tenor = "overnight" }, "broker.tenor"},
		{"no markets", func(c *Config) { c.Markets = nil }, "at least one market"},
		{"duplicate market", func(c *Config) { c.Markets = append(c.Markets, c.Markets[0]) }, "configured twice"},
		{"bad source", func(c *Config) { c.Markets[0].Source = "ftp" }, "source must be"},
		{"missing bars", func(c *Config) { c.Markets[0].Bars = "" }, "bars file is required"},
		{"bad roll method", func(c *Config) {
			c.Markets[0].Source = SourceContracts
			c.Markets[0].Roll.Method = "random"
		}, "unknown roll method"},
		{"missing margin study", func(c *Config) { c.Markets[0].Instrument.MarginStudy = "atr_long" }, "margin study"},
		{"missing atr study", func(c *Config) {
			c.Markets[0].Studies = c.Markets[0].Studies[1:]
			c.Markets[0].Instrument.MarginStudy = ""
		}, "fixed-risk sizing needs study"},
		{"unknown strategy market", func(c *Config) { c.Strategy.Markets = []string{"CL"} }, "strategy.markets"},
		{"bad journal", func(c *Config) { c.Journal.Type = "parquet" }, "journal.type"},
		{"csv journal without dir", func(c *Config) { c.Journal.Type = "csv" }, "journal dir required"},
		{"sqlite journal without path", func(c *Config) { c.Journal.DBPath = "" }, "db_path required"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"config.yaml", "config.json"} {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), name)
			want := Default()
			require.NoError(t, want.SaveToFile(path))

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("account: [\n"), 0o644))
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("account:\n  currency: USD\n"), 0o644))
	_, err = LoadFromFile(invalid)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadEnv(t *testing.T) {
	for _, k := range []string{EnvLogLevel, EnvDBPath} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Setenv(EnvDataDir, "/env/data")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(
		"FUTURESIM_LOG_LEVEL=debug\nFUTURESIM_DB_PATH=/tmp/run.db\nFUTURESIM_DATA_DIR=/file/data\n"), 0o644))

	cfg := Default()
	require.NoError(t, cfg.LoadEnv(path))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/run.db", cfg.Journal.DBPath)
	assert.Equal(t, "/env/data", cfg.Simulation.DataDir)
	assert.Equal(t, filepath.Join("/env/data", "ES.csv"), cfg.Path("ES.csv"))
	assert.Equal(t, "/abs/ES.csv", cfg.Path("/abs/ES.csv"))

	assert.NoError(t, Default().LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
