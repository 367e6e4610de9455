// Package config loads runtime configuration from a YAML file and the
// environment. Key material comes from the environment only.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"solana-arb-lab/internal/pool"
)

// envPrefix namespaces environment overrides, e.g. ARB_RPC_URL.
const envPrefix = "ARB"

// privateKeyEnv is the only source for the wallet key.
const privateKeyEnv = "ARB_PRIVATE_KEY"

// Config is the full runtime configuration.
type Config struct {
	RPCURL      string `mapstructure:"rpc_url"`
	WSURL       string `mapstructure:"ws_url"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	// PrivateKey is the base58 wallet key, environment only.
	PrivateKey string `mapstructure:"-"`

	CycleInterval   time.Duration `mapstructure:"cycle_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	BalanceInterval time.Duration `mapstructure:"balance_interval"`

	Detector  DetectorConfig  `mapstructure:"detector"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Compute   ComputeConfig   `mapstructure:"compute"`

	Pools []PoolConfig `mapstructure:"pools"`
}

// DetectorConfig tunes opportunity detection.
type DetectorConfig struct {
	MinProfitBps     int64  `mapstructure:"min_profit_bps"`
	TemporalDeltaBps int64  `mapstructure:"temporal_delta_bps"`
	TriangularMargin int64  `mapstructure:"triangular_margin_bps"`
	TradeSize        uint64 `mapstructure:"trade_size"`
	QuoteMint        string `mapstructure:"quote_mint"`
}

// RiskConfig tunes the pre-trade gate.
type RiskConfig struct {
	MaxTradeSize     uint64        `mapstructure:"max_trade_size"`
	FreshnessWindow  time.Duration `mapstructure:"freshness_window"`
	FeeMargin        uint64        `mapstructure:"fee_margin"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// ExecutionConfig tunes transaction submission.
type ExecutionConfig struct {
	DryRun         bool          `mapstructure:"dry_run"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	DedupCooldown  time.Duration `mapstructure:"dedup_cooldown"`
}

// ComputeConfig sets the compute budget attached to every swap.
type ComputeConfig struct {
	UnitLimit uint32 `mapstructure:"unit_limit"`
	UnitPrice uint64 `mapstructure:"unit_price"`
}

// PoolConfig seeds one pool into the registry. Only the fields the
// named venue needs have to be set.
type PoolConfig struct {
	Address       string `mapstructure:"address"`
	Venue         string `mapstructure:"venue"`
	BaseMint      string `mapstructure:"base_mint"`
	QuoteMint     string `mapstructure:"quote_mint"`
	FeeBps        uint16 `mapstructure:"fee_bps"`
	BaseDecimals  uint8  `mapstructure:"base_decimals"`
	QuoteDecimals uint8  `mapstructure:"quote_decimals"`

	Config     string `mapstructure:"config"`
	BaseVault  string `mapstructure:"base_vault"`
	QuoteVault string `mapstructure:"quote_vault"`

	OpenOrders    string `mapstructure:"open_orders"`
	TargetOrders  string `mapstructure:"target_orders"`
	MarketID      string `mapstructure:"market_id"`
	MarketProgram string `mapstructure:"market_program"`

	Observation string `mapstructure:"observation"`
	ExBitmap    string `mapstructure:"ex_bitmap"`
	TickSpacing uint16 `mapstructure:"tick_spacing"`

	Creator string `mapstructure:"creator"`

	GlobalConfig         string `mapstructure:"global_config"`
	ProtocolFeeRecipient string `mapstructure:"protocol_fee_recipient"`
}

// Record converts the seed entry into a registry record.
func (p PoolConfig) Record() (pool.Record, error) {
	rec := pool.Record{
		Address:       p.Address,
		BaseMint:      p.BaseMint,
		QuoteMint:     p.QuoteMint,
		FeeBps:        p.FeeBps,
		BaseDecimals:  p.BaseDecimals,
		QuoteDecimals: p.QuoteDecimals,
	}

	switch strings.ToLower(p.Venue) {
	case "raydium-amm":
		rec.Venue = pool.VenueRaydiumAMM
		rec.Meta = pool.RaydiumAMMMeta{
			BaseVault:     p.BaseVault,
			QuoteVault:    p.QuoteVault,
			OpenOrders:    p.OpenOrders,
			TargetOrders:  p.TargetOrders,
			MarketID:      p.MarketID,
			MarketProgram: p.MarketProgram,
		}
	case "raydium-cpmm":
		rec.Venue = pool.VenueRaydiumCPMM
		rec.Meta = pool.CPMMMeta{
			Config:     p.Config,
			BaseVault:  p.BaseVault,
			QuoteVault: p.QuoteVault,
		}
	case "raydium-clmm":
		rec.Venue = pool.VenueRaydiumCLMM
		rec.Meta = pool.CLMMMeta{
			Config:      p.Config,
			BaseVault:   p.BaseVault,
			QuoteVault:  p.QuoteVault,
			Observation: p.Observation,
			ExBitmap:    p.ExBitmap,
			TickSpacing: p.TickSpacing,
		}
	case "pumpfun":
		rec.Venue = pool.VenuePumpFun
		rec.Meta = pool.PumpFunMeta{Creator: p.Creator}
	case "pumpswap":
		rec.Venue = pool.VenuePumpSwap
		rec.Meta = pool.PumpSwapMeta{
			GlobalConfig:         p.GlobalConfig,
			BaseVault:            p.BaseVault,
			QuoteVault:           p.QuoteVault,
			ProtocolFeeRecipient: p.ProtocolFeeRecipient,
		}
	default:
		return pool.Record{}, fmt.Errorf("pool %s: unknown venue %q", p.Address, p.Venue)
	}

	if err := rec.Validate(); err != nil {
		return pool.Record{}, err
	}
	return rec, nil
}

// Load reads configuration from path, layering .env and environment
// overrides on top of the file.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.PrivateKey = os.Getenv(privateKeyEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metrics_addr", ":9100")
	v.SetDefault("cycle_interval", "500ms")
	v.SetDefault("refresh_interval", "2s")
	v.SetDefault("balance_interval", "10s")

	v.SetDefault("detector.min_profit_bps", 30)
	v.SetDefault("detector.temporal_delta_bps", 50)
	v.SetDefault("detector.triangular_margin_bps", 30)
	v.SetDefault("detector.trade_size", 100_000_000)
	v.SetDefault("detector.quote_mint", "So11111111111111111111111111111111111111112")

	v.SetDefault("risk.max_trade_size", 1_000_000_000)
	v.SetDefault("risk.freshness_window", "5s")
	v.SetDefault("risk.fee_margin", 10_000_000)
	v.SetDefault("risk.failure_threshold", 3)
	v.SetDefault("risk.cooldown", "30s")

	v.SetDefault("execution.dry_run", true)
	v.SetDefault("execution.settle_delay", "400ms")
	v.SetDefault("execution.confirm_timeout", "45s")
	v.SetDefault("execution.poll_interval", "500ms")
	v.SetDefault("execution.dedup_cooldown", "10s")

	v.SetDefault("compute.unit_limit", 400_000)
	v.SetDefault("compute.unit_price", 10_000)
}

// Validate checks the fields that have no sensible zero value.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if c.WSURL == "" {
		return errors.New("ws_url is required")
	}
	if !c.Execution.DryRun && c.PrivateKey == "" {
		return fmt.Errorf("%s is required for live trading", privateKeyEnv)
	}
	if c.Detector.TradeSize == 0 {
		return errors.New("detector.trade_size must be positive")
	}
	if len(c.Pools) == 0 {
		return errors.New("at least one pool must be configured")
	}
	for i := range c.Pools {
		if _, err := c.Pools[i].Record(); err != nil {
			return err
		}
	}
	return nil
}
