// Package config loads and validates the simulation configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/futuresim/broker"
	"github.com/rustyeddy/futuresim/indicators"
	"github.com/rustyeddy/futuresim/market"
	"github.com/rustyeddy/futuresim/portfolio"
	"github.com/rustyeddy/futuresim/pricing"
	"github.com/rustyeddy/futuresim/rates"
	"github.com/rustyeddy/futuresim/risk"
	"github.com/rustyeddy/futuresim/strategies"
)

// Environment variables LoadEnv overlays on a loaded configuration.
const (
	EnvLogLevel = "FUTURESIM_LOG_LEVEL"
	EnvDBPath   = "FUTURESIM_DB_PATH"
	EnvDataDir  = "FUTURESIM_DATA_DIR"
)

// Config represents the complete simulation configuration
type Config struct {
	Account    AccountConfig     `json:"account" yaml:"account"`
	Simulation SimulationConfig  `json:"simulation" yaml:"simulation"`
	Broker     broker.Config     `json:"broker" yaml:"broker"`
	Risk       risk.Params       `json:"risk" yaml:"risk"`
	Portfolio  portfolio.Config  `json:"portfolio" yaml:"portfolio"`
	Strategy   strategies.Config `json:"strategy" yaml:"strategy"`
	Markets    []MarketConfig    `json:"markets" yaml:"markets"`
	Rates      RatesConfig       `json:"rates" yaml:"rates"`
	Journal    JournalConfig     `json:"journal" yaml:"journal"`
	Log        LogConfig         `json:"log" yaml:"log"`
}

// AccountConfig contains account initialization parameters
type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// SimulationConfig bounds the run. Dates are YYYY-MM-DD.
type SimulationConfig struct {
	Start   string `json:"start" yaml:"start"`
	End     string `json:"end" yaml:"end"`
	DataDir string `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
}

// Series sources.
const (
	SourceVendor    = "vendor"
	SourceContracts = "contracts"
)

// Roll methods for contract-built series.
const (
	RollCalendar = "calendar"
	RollOptimal  = "optimal"
)

// MarketConfig describes one traded market and where its data lives.
type MarketConfig struct {
	Instrument market.Instrument `json:"instrument" yaml:"instrument"`

	// Source is "vendor" for an adjusted continuous feed or "contracts" for
	// raw per-contract bars stitched locally.
	Source string `json:"source" yaml:"source"`
	Bars   string `json:"bars" yaml:"bars"`
	// Rolls is the vendor roll report. Optional.
	Rolls string     `json:"rolls,omitempty" yaml:"rolls,omitempty"`
	Roll  RollConfig `json:"roll,omitempty" yaml:"roll,omitempty"`

	Studies []indicators.Spec `json:"studies" yaml:"studies"`
}

type RollConfig struct {
	Method    string              `json:"method,omitempty" yaml:"method,omitempty"`
	Schedule  market.RollSchedule `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Threshold float64             `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// Strategy builds the roll strategy the configuration names.
func (r RollConfig) Strategy() (market.RollStrategy, error) {
	switch strings.ToLower(r.Method) {
	case "", RollCalendar:
		return market.CalendarRoll{Schedule: r.Schedule}, nil
	case RollOptimal:
		return market.OptimalRoll{Schedule: r.Schedule, Threshold: r.Threshold}, nil
	}
	return nil, fmt.Errorf("unknown roll method %q", r.Method)
}

// RatesConfig lists the FX, interest and volatility inputs. Without a
// volatility file the table is built from the settled series over VolWindow
// days.
type RatesConfig struct {
	FX          []string `json:"fx,omitempty" yaml:"fx,omitempty"`
	Interest    []string `json:"interest,omitempty" yaml:"interest,omitempty"`
	Volatility  string   `json:"volatility,omitempty" yaml:"volatility,omitempty"`
	Correlation string   `json:"correlation,omitempty" yaml:"correlation,omitempty"`
	VolWindow   int      `json:"vol_window,omitempty" yaml:"vol_window,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type    string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	Dir     string `json:"dir,omitempty" yaml:"dir,omitempty"`
	DBPath  string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	OrgPath string `json:"org_path,omitempty" yaml:"org_path,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
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

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
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

// LoadEnv reads a .env file, when one exists, and overlays the FUTURESIM_*
// variables on c. Variables already set in the environment win over the file.
func (c *Config) LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Journal.DBPath = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Simulation.DataDir = v
	}
	return nil
}

// Path resolves a data file against the data directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Simulation.DataDir == "" {
		return p
	}
	return filepath.Join(c.Simulation.DataDir, p)
}

// Dates returns the parsed simulation bounds.
func (c *Config) Dates() (time.Time, time.Time, error) {
	start, err := pricing.ParseDate(c.Simulation.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("simulation.start: %w", err)
	}
	end, err := pricing.ParseDate(c.Simulation.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("simulation.end: %w", err)
	}
	return start, end, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}

	start, end, err := c.Dates()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("simulation.end must not be before simulation.start")
	}

	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.Portfolio.RebalanceThreshold < 0 {
		return fmt.Errorf("portfolio.rebalance_threshold must not be negative")
	}
	if c.Broker.CommissionRate < 0 {
		return fmt.Errorf("broker.commission_rate must not be negative")
	}
	switch c.Broker.Tenor {
	case "", rates.Immediate, rates.ThreeMonth:
	default:
		return fmt.Errorf("broker.tenor must be %q or %q", rates.Immediate, rates.ThreeMonth)
	}

	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if err := m.validate(); err != nil {
			return err
		}
		if seen[m.Instrument.Code] {
			return fmt.Errorf("market %s configured twice", m.Instrument.Code)
		}
		seen[m.Instrument.Code] = true

		if c.Risk.Method == risk.MethodFixedRisk && !m.hasStudy(c.atrStudy()) {
			return fmt.Errorf("market %s: fixed-risk sizing needs study %q", m.Instrument.Code, c.atrStudy())
		}
	}
	for _, m := range c.Strategy.Markets {
		if !seen[m] {
			return fmt.Errorf("strategy.markets: unknown market %q", m)
		}
	}

	switch c.Journal.Type {
	case "none", "":
	case "csv":
		if c.Journal.Dir == "" {
			return fmt.Errorf("journal dir required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'csv', 'sqlite' or 'none'")
	}
	return nil
}

func (c *Config) atrStudy() string {
	if c.Portfolio.ATRStudy != "" {
		return c.Portfolio.ATRStudy
	}
	return portfolio.DefaultATRStudy
}

func (m MarketConfig) validate() error {
	if err := m.Instrument.Validate(); err != nil {
		return err
	}
	code := m.Instrument.Code
	switch m.Source {
	case SourceVendor:
	case SourceContracts:
		if _, err := m.Roll.Strategy(); err != nil {
			return fmt.Errorf("market %s: %w", code, err)
		}
		if m.Rolls != "" {
			return fmt.Errorf("market %s: rolls file only applies to vendor series", code)
		}
	default:
		return fmt.Errorf("market %s: source must be %q or %q", code, SourceVendor, SourceContracts)
	}
	if m.Bars == "" {
		return fmt.Errorf("market %s: bars file is required", code)
	}
	if _, err := market.NewStudySet(m.Studies); err != nil {
		return fmt.Errorf("market %s: %w", code, err)
	}
	if m.Instrument.MarginStudy != "" && !m.hasStudy(m.Instrument.MarginStudy) {
		return fmt.Errorf("market %s: margin study %q is not configured", code, m.Instrument.MarginStudy)
	}
	return nil
}

func (m MarketConfig) hasStudy(name string) bool {
	for _, s := range m.Studies {
		if s.Name == name {
			return true
		}
	}
	return false
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Currency: "USD",
			Balance:  1000000,
		},
		Simulation: SimulationConfig{
			Start:   "2020-01-02",
			End:     "2023-12-29",
			DataDir: "./data",
		},
		Broker: broker.Config{
			CommissionRate: 2.5,
			MarginSpread:   1.5,
			BalanceSpread:  0.5,
			Tenor:          rates.ThreeMonth,
			Slippage:       broker.DefaultSlippage(),
		},
		Risk: risk.Params{
			Method:     risk.MethodFixedRisk,
			RiskFactor: 0.002,
		},
		Portfolio: portfolio.Config{
			ATRStudy:           portfolio.DefaultATRStudy,
			RebalanceThreshold: portfolio.DefaultRebalanceThreshold,
		},
		Strategy: strategies.Config{
			Name:      "ema-cross",
			FastStudy: "ema_fast",
			SlowStudy: "ema_slow",
			Forecast:  strategies.DefaultForecast,
		},
		Markets: []MarketConfig{
			{
				Instrument: market.Instrument{
					Code:           "ES",
					Name:           "E-mini S&P 500",
					Currency:       "USD",
					PointValue:     50,
					TickSize:       0.25,
					MarginMultiple: 3,
					MarginStudy:    "atr",
				},
				Source: SourceVendor,
				Bars:   "ES.csv",
				Studies: []indicators.Spec{
					{Name: "atr", Kind: indicators.KindATR, Window: 20},
					{Name: "ema_fast", Kind: indicators.KindEMA, Column: pricing.ColSettle, Window: 16},
					{Name: "ema_slow", Kind: indicators.KindEMA, Column: pricing.ColSettle, Window: 64},
				},
			},
		},
		Rates: RatesConfig{VolWindow: 25},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./futuresim.db",
		},
		Log: LogConfig{Level: "info"},
	}
}
