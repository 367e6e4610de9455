package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-arb-lab/internal/pool"
)

const (
	wsol  = "So11111111111111111111111111111111111111112"
	mintB = "TokenB111111111111111111111111111111111111"
	mintC = "TokenC111111111111111111111111111111111111"
)

// deepPool returns a constant-product pool with reserves large enough
// that price impact on test-sized trades is negligible.
func deepPool(addr, base, quoteMint string, baseReserve, quoteReserve uint64) pool.Record {
	return pool.Record{
		Address:      addr,
		Venue:        pool.VenueRaydiumCPMM,
		BaseMint:     base,
		QuoteMint:    quoteMint,
		BaseReserve:  baseReserve,
		QuoteReserve: quoteReserve,
		FeeBps:       0,
		UpdatedAt:    1,
		Meta:         pool.CPMMMeta{Config: "c", BaseVault: "b", QuoteVault: "q"},
	}
}

func testConfig() Config {
	return Config{
		MinProfitBps:     10,
		TemporalDeltaBps: 50,
		TriangularMargin: 10,
		TradeSize:        1_000_000,
		QuoteMint:        wsol,
	}
}

func TestSpatialRanking(t *testing.T) {
	d := New(testConfig())

	t.Run("rate gap yields opportunity", func(t *testing.T) {
		snapshot := []pool.Record{
			deepPool("p1", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000), // rate 1.00
			deepPool("p2", mintB, wsol, 1_000_000_000_000, 1_100_000_000_000), // rate 1.10
		}
		found := d.FindSpatial(snapshot)
		require.NotEmpty(t, found)

		best, ok := Best(found)
		require.True(t, ok)
		assert.Equal(t, KindSpatial, best.Kind)
		assert.Equal(t, "p1", best.BuyPool.Address)
		assert.Equal(t, "p2", best.SellPool.Address)
		assert.Greater(t, best.ProfitBps, int64(0))
		assert.Greater(t, best.ExpectedProfit, int64(0))
	})

	t.Run("identical rates yield nothing", func(t *testing.T) {
		snapshot := []pool.Record{
			deepPool("p1", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000),
			deepPool("p2", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000),
		}
		assert.Empty(t, d.FindSpatial(snapshot))
	})
}

func TestSpatialHandlesFlippedPoolOrientation(t *testing.T) {
	d := New(testConfig())

	// p2 carries capital on its base side; the rate gap matches the
	// canonical orientation case above.
	snapshot := []pool.Record{
		deepPool("p1", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000),
		deepPool("p2", wsol, mintB, 1_100_000_000_000, 1_000_000_000_000),
	}
	found := d.FindSpatial(snapshot)
	require.NotEmpty(t, found)

	best, ok := Best(found)
	require.True(t, ok)
	assert.Equal(t, "p1", best.BuyPool.Address)
	assert.Equal(t, "p2", best.SellPool.Address)
	assert.Equal(t, mintB, best.TokenMint)
	assert.Equal(t, pool.QuoteIn, best.BuyDirection)
	// selling the token on p2 means spending p2's quote side
	assert.Equal(t, pool.QuoteIn, best.SellDirection)
	assert.Greater(t, best.ProfitBps, int64(0))
}

func TestSpatialSkipsPairsWithoutCapital(t *testing.T) {
	d := New(testConfig())

	snapshot := []pool.Record{
		deepPool("p1", mintB, mintC, 1_000_000_000_000, 1_000_000_000_000),
		deepPool("p2", mintB, mintC, 1_000_000_000_000, 1_100_000_000_000),
	}
	assert.Empty(t, d.FindSpatial(snapshot))
	assert.Empty(t, d.FindTemporal(snapshot))
}

func TestZeroTradeSizeFindsNothing(t *testing.T) {
	cfg := testConfig()
	cfg.TradeSize = 0
	d := New(cfg)

	snapshot := []pool.Record{
		deepPool("p1", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000),
		deepPool("p2", mintB, wsol, 1_000_000_000_000, 1_100_000_000_000),
	}
	assert.Empty(t, d.FindSpatial(snapshot))
	assert.Empty(t, d.FindTemporal(snapshot))

	pools := map[pool.PairKey][]pool.Record{
		pool.NewPairKey(wsol, mintB):  {deepPool("pAB", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000)},
		pool.NewPairKey(mintB, mintC): {deepPool("pBC", mintC, mintB, 1_000_000_000_000, 1_000_000_000_000)},
		pool.NewPairKey(mintC, wsol):  {deepPool("pCA", mintC, wsol, 1_000_000_000_000, 1_050_000_000_000)},
	}
	pairs := []pool.PairKey{
		pool.NewPairKey(wsol, mintB),
		pool.NewPairKey(mintB, mintC),
		pool.NewPairKey(mintC, wsol),
	}
	assert.Empty(t, d.FindTriangular(pairs, pools))
}

func TestSpatialDeterminism(t *testing.T) {
	snapshot := []pool.Record{
		deepPool("p1", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000),
		deepPool("p2", mintB, wsol, 1_000_000_000_000, 1_100_000_000_000),
		deepPool("p3", mintB, wsol, 1_000_000_000_000, 1_050_000_000_000),
	}

	d := New(testConfig())
	first := d.FindSpatial(snapshot)
	for i := 0; i < 5; i++ {
		again := New(testConfig()).FindSpatial(snapshot)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].BuyPool.Address, again[j].BuyPool.Address)
			assert.Equal(t, first[j].SellPool.Address, again[j].SellPool.Address)
			assert.Equal(t, first[j].ProfitBps, again[j].ProfitBps)
		}
	}
}

func TestTemporalDislocation(t *testing.T) {
	d := New(testConfig())

	stable := deepPool("p2", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000)
	before := deepPool("p1", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000)

	// First cycle populates the cache; nothing to compare against.
	assert.Empty(t, d.FindTemporal([]pool.Record{before, stable}))

	// Token got 5% cheaper on p1: the same capital now buys more.
	after := deepPool("p1", mintB, wsol, 1_050_000_000_000, 1_000_000_000_000)
	found := d.FindTemporal([]pool.Record{after, stable})
	require.Len(t, found, 1)
	assert.Equal(t, KindTemporal, found[0].Kind)
	assert.Equal(t, "p1", found[0].BuyPool.Address)
	assert.Equal(t, "p2", found[0].SellPool.Address)
	assert.Greater(t, found[0].ProfitBps, int64(0))
}

func TestTemporalBelowDeltaIgnored(t *testing.T) {
	d := New(testConfig())

	stable := deepPool("p2", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000)
	before := deepPool("p1", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000)
	d.FindTemporal([]pool.Record{before, stable})

	// 0.2% move stays under the 50 bps threshold.
	after := deepPool("p1", mintB, wsol, 1_002_000_000_000, 1_000_000_000_000)
	assert.Empty(t, d.FindTemporal([]pool.Record{after, stable}))
}

func TestTriangularCycle(t *testing.T) {
	d := New(testConfig())

	// SOL->B at 1, B->C at 1, C->SOL at 1.05: cycle product 1.05.
	pools := map[pool.PairKey][]pool.Record{
		pool.NewPairKey(wsol, mintB):  {deepPool("pAB", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000)},
		pool.NewPairKey(mintB, mintC): {deepPool("pBC", mintC, mintB, 1_000_000_000_000, 1_000_000_000_000)},
		pool.NewPairKey(mintC, wsol):  {deepPool("pCA", mintC, wsol, 1_000_000_000_000, 1_050_000_000_000)},
	}
	pairs := []pool.PairKey{
		pool.NewPairKey(wsol, mintB),
		pool.NewPairKey(mintB, mintC),
		pool.NewPairKey(mintC, wsol),
	}

	found := d.FindTriangular(pairs, pools)
	require.Len(t, found, 1)
	opp := found[0]
	assert.Equal(t, KindTriangular, opp.Kind)
	assert.Equal(t, "pAB", opp.BuyPool.Address)
	assert.Equal(t, "pCA", opp.SellPool.Address)
	require.NotNil(t, opp.MidPool)
	assert.Equal(t, "pBC", opp.MidPool.Address)
	assert.Greater(t, opp.ProfitBps, int64(400))
}

func TestTriangularFlatCycleIgnored(t *testing.T) {
	d := New(testConfig())

	pools := map[pool.PairKey][]pool.Record{
		pool.NewPairKey(wsol, mintB):  {deepPool("pAB", mintB, wsol, 1_000_000_000_000, 1_000_000_000_000)},
		pool.NewPairKey(mintB, mintC): {deepPool("pBC", mintC, mintB, 1_000_000_000_000, 1_000_000_000_000)},
		pool.NewPairKey(mintC, wsol):  {deepPool("pCA", mintC, wsol, 1_000_000_000_000, 1_000_000_000_000)},
	}
	pairs := []pool.PairKey{
		pool.NewPairKey(wsol, mintB),
		pool.NewPairKey(mintB, mintC),
		pool.NewPairKey(mintC, wsol),
	}

	assert.Empty(t, d.FindTriangular(pairs, pools))
}

func TestBestTieBreaksFirstSeen(t *testing.T) {
	a := Opportunity{Kind: KindSpatial, ProfitBps: 100, BuyPool: pool.Record{Address: "first"}}
	b := Opportunity{Kind: KindSpatial, ProfitBps: 100, BuyPool: pool.Record{Address: "second"}}
	c := Opportunity{Kind: KindTemporal, ProfitBps: 50, BuyPool: pool.Record{Address: "third"}}

	best, ok := Best([]Opportunity{a, b}, []Opportunity{c})
	require.True(t, ok)
	assert.Equal(t, "first", best.BuyPool.Address)

	_, ok = Best(nil, []Opportunity{})
	assert.False(t, ok)
}
