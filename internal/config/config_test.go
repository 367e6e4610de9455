package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-arb-lab/internal/pool"
)

const minimalYAML = `
rpc_url: https://rpc.example.com
ws_url: wss://ws.example.com
pools:
  - address: pool1
    venue: raydium-cpmm
    base_mint: mintA
    quote_mint: So11111111111111111111111111111111111111112
    fee_bps: 25
    config: cfg1
    base_vault: bv1
    quote_vault: qv1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com", cfg.RPCURL)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.CycleInterval)
	assert.Equal(t, int64(30), cfg.Detector.MinProfitBps)
	assert.Equal(t, uint32(3), cfg.Risk.FailureThreshold)
	assert.True(t, cfg.Execution.DryRun)
	assert.Equal(t, uint32(400_000), cfg.Compute.UnitLimit)
	require.Len(t, cfg.Pools, 1)
}

func TestLoadMissingRPCURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
ws_url: wss://ws.example.com
pools:
  - address: p
    venue: raydium-cpmm
    base_mint: a
    quote_mint: b
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc_url")
}

func TestLoadLiveModeRequiresKey(t *testing.T) {
	t.Setenv(privateKeyEnv, "")
	_, err := Load(writeConfig(t, minimalYAML+`
execution:
  dry_run: false
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), privateKeyEnv)
}

func TestLoadRejectsUnknownVenue(t *testing.T) {
	_, err := Load(writeConfig(t, `
rpc_url: https://rpc.example.com
ws_url: wss://ws.example.com
pools:
  - address: p
    venue: orca
    base_mint: a
    quote_mint: b
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown venue")
}

func TestPoolConfigRecordShapes(t *testing.T) {
	cases := []struct {
		venue string
		cfg   PoolConfig
		want  pool.Venue
	}{
		{
			venue: "raydium-amm",
			cfg: PoolConfig{
				Address: "p", Venue: "raydium-amm", BaseMint: "a", QuoteMint: "b",
				BaseVault: "bv", QuoteVault: "qv", OpenOrders: "oo",
				TargetOrders: "to", MarketID: "m", MarketProgram: "mp",
			},
			want: pool.VenueRaydiumAMM,
		},
		{
			venue: "raydium-clmm",
			cfg: PoolConfig{
				Address: "p", Venue: "raydium-clmm", BaseMint: "a", QuoteMint: "b",
				Config: "c", BaseVault: "bv", QuoteVault: "qv",
				Observation: "o", TickSpacing: 10,
			},
			want: pool.VenueRaydiumCLMM,
		},
		{
			venue: "pumpfun",
			cfg: PoolConfig{
				Address: "p", Venue: "pumpfun", BaseMint: "a", QuoteMint: "b",
				Creator: "cr",
			},
			want: pool.VenuePumpFun,
		},
		{
			venue: "pumpswap",
			cfg: PoolConfig{
				Address: "p", Venue: "pumpswap", BaseMint: "a", QuoteMint: "b",
				GlobalConfig: "g", BaseVault: "bv", QuoteVault: "qv",
				ProtocolFeeRecipient: "fr",
			},
			want: pool.VenuePumpSwap,
		},
	}

	for _, tc := range cases {
		rec, err := tc.cfg.Record()
		require.NoError(t, err, tc.venue)
		assert.Equal(t, tc.want, rec.Venue, tc.venue)
		assert.NoError(t, rec.Validate(), tc.venue)
	}
}
