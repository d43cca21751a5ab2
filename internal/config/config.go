// Package config defines all configuration for the market-making agent.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via MM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	DryRun     bool             `mapstructure:"dry_run"`
	Credential CredentialConfig `mapstructure:"credential"`
	API        APIConfig        `mapstructure:"api"`
	Market     MarketConfig     `mapstructure:"market"`
	Trades     TrackerConfig    `mapstructure:"trades"`
	Book       TrackerConfig    `mapstructure:"book"`
	Execution  TrackerConfig    `mapstructure:"execution"`
	Account    TrackerConfig    `mapstructure:"account"`
	Gate       GateConfig       `mapstructure:"gate"`
	Maker      MakerConfig      `mapstructure:"maker"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

// CredentialConfig points at the two files holding the API key and secret,
// each a single line.
type CredentialConfig struct {
	KeyFile    string `mapstructure:"key_file"`
	SecretFile string `mapstructure:"secret_file"`
}

// APIConfig holds the exchange's REST base URL.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// MarketConfig identifies the traded pair and its fixed-point precision.
// PairDecimals/LotDecimals/FeePct are normally discovered from AssetPairs at
// bootstrap; the config values are the fallback used when that call fails
// (and FeePct also when the exchange's fee string cannot be parsed).
type MarketConfig struct {
	Pair          string  `mapstructure:"pair"`
	Base          string  `mapstructure:"base"`
	Quote         string  `mapstructure:"quote"`
	PairDecimals  int     `mapstructure:"pair_decimals"`
	LotDecimals   int     `mapstructure:"lot_decimals"`
	FeePct        float64 `mapstructure:"fee_pct"`
}

// TrackerConfig is the shared shape for the polling-delay trackers
// (TradesTracker, BookTracker, ExecutionTracker, AccountTracker).
type TrackerConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// GateConfig tunes the Gate's rate-limiting behavior.
type GateConfig struct {
	BucketCapacity float64 `mapstructure:"bucket_capacity"`
	RefillPerSec   float64 `mapstructure:"refill_per_sec"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// MakerConfig tunes the periodic round: sizing heuristics, ladder shape,
// and the Open Question (b) resolution flag.
//
//   - ResilienceFactor: scales max recent trade volume into a depth budget.
//   - FundFactor: overall fraction of available funds deployed per side.
//   - TargetingFactor: how aggressively inventory is rebalanced toward the
//     configured base/quote ratio.
//   - MaxOrders: ladder size cap per side.
//   - RefreshInterval: how often a round runs.
//   - StaleBookTimeout: cancel all orders if the book hasn't updated within
//     this window.
//   - PlaceInwardOnEqualPrice: resolves Open Question (b). Default false: a
//     desired order at exactly an old order's price keeps the old order
//     whatever the size difference. True: the size tolerance applies at
//     equal price, and an out-of-tolerance old order is cancelled and
//     re-placed at the same price. Inward replacement candidates are
//     strictly inward in both modes.
type MakerConfig struct {
	ResilienceFactor        float64       `mapstructure:"resilience_factor"`
	FundFactor              float64       `mapstructure:"fund_factor"`
	TargetingFactor         float64       `mapstructure:"targeting_factor"`
	MaxOrders               int           `mapstructure:"max_orders"`
	SizeToleranceFraction   float64       `mapstructure:"size_tolerance_fraction"`
	RefreshInterval         time.Duration `mapstructure:"refresh_interval"`
	StaleBookTimeout        time.Duration `mapstructure:"stale_book_timeout"`
	VWAPWindow              time.Duration `mapstructure:"vwap_window"`
	PlaceInwardOnEqualPrice bool          `mapstructure:"place_inward_on_equal_price"`
}

// RiskConfig sets the portfolio guard's limits.
type RiskConfig struct {
	MaxExposureQuote  float64       `mapstructure:"max_exposure_quote"`
	MaxDailyLossQuote float64       `mapstructure:"max_daily_loss_quote"`
	CooldownAfterKill time.Duration `mapstructure:"cooldown_after_kill"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the operator-facing HTTP/WebSocket surface.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive/deployment-specific fields use env vars:
// MM_CREDENTIAL_KEY_FILE, MM_CREDENTIAL_SECRET_FILE, MM_DRY_RUN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if f := os.Getenv("MM_CREDENTIAL_KEY_FILE"); f != "" {
		cfg.Credential.KeyFile = f
	}
	if f := os.Getenv("MM_CREDENTIAL_SECRET_FILE"); f != "" {
		cfg.Credential.SecretFile = f
	}
	if os.Getenv("MM_DRY_RUN") == "true" || os.Getenv("MM_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Credential.KeyFile == "" || c.Credential.SecretFile == "" {
		return fmt.Errorf("credential.key_file and credential.secret_file are required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Market.Pair == "" {
		return fmt.Errorf("market.pair is required")
	}
	if c.Maker.ResilienceFactor <= 0 {
		return fmt.Errorf("maker.resilience_factor must be > 0")
	}
	if c.Maker.FundFactor <= 0 {
		return fmt.Errorf("maker.fund_factor must be > 0")
	}
	if c.Maker.MaxOrders <= 0 {
		return fmt.Errorf("maker.max_orders must be > 0")
	}
	if c.Maker.VWAPWindow <= 0 {
		return fmt.Errorf("maker.vwap_window must be > 0")
	}
	if c.Risk.MaxExposureQuote <= 0 {
		return fmt.Errorf("risk.max_exposure_quote must be > 0")
	}
	return nil
}
