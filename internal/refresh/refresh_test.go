package refresh

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"solana-arb-lab/internal/pool"
	"solana-arb-lab/internal/solana"
)

func tokenAccountBytes(amount uint64) []byte {
	data := make([]byte, tokenAccountLen)
	binary.LittleEndian.PutUint64(data[tokenAccountAmountOff:], amount)
	return data
}

func curveBytes(virtualToken, virtualSol uint64, complete bool, creator []byte) []byte {
	data := make([]byte, bondingCurveLen)
	binary.LittleEndian.PutUint64(data[8:], virtualToken)
	binary.LittleEndian.PutUint64(data[16:], virtualSol)
	binary.LittleEndian.PutUint64(data[24:], virtualToken/2)
	binary.LittleEndian.PutUint64(data[32:], virtualSol/2)
	if complete {
		data[48] = 1
	}
	copy(data[49:], creator)
	return data
}

func clmmStateBytes(lo, hi uint64, tick int32) []byte {
	data := make([]byte, clmmStateMinLen)
	binary.LittleEndian.PutUint64(data[clmmSqrtPriceOff:], lo)
	binary.LittleEndian.PutUint64(data[clmmSqrtPriceOff+8:], hi)
	binary.LittleEndian.PutUint32(data[clmmTickOff:], uint32(tick))
	return data
}

func TestDecodeTokenAmount(t *testing.T) {
	amount, err := decodeTokenAmount(tokenAccountBytes(987_654_321))
	require.NoError(t, err)
	assert.Equal(t, uint64(987_654_321), amount)

	_, err = decodeTokenAmount(make([]byte, 10))
	assert.Error(t, err)
}

func TestDecodeBondingCurve(t *testing.T) {
	creator := make([]byte, 32)
	creator[0] = 7

	m, err := decodeBondingCurve(curveBytes(1_000_000, 30_000_000, true, creator))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), m.VirtualTokenReserves)
	assert.Equal(t, uint64(30_000_000), m.VirtualSolReserves)
	assert.Equal(t, uint64(500_000), m.RealTokenReserves)
	assert.True(t, m.Complete)
	assert.Equal(t, base58.Encode(creator), m.Creator)
}

func TestDecodeCLMMState(t *testing.T) {
	s, err := decodeCLMMState(clmmStateBytes(42, 1, -1200))
	require.NoError(t, err)
	assert.Equal(t, pool.Uint128{Lo: 42, Hi: 1}, s.SqrtPriceX64)
	assert.Equal(t, int32(-1200), s.TickCurrent)
}

func newTestRefresher(t *testing.T, recs ...pool.Record) (*Refresher, *pool.Registry) {
	t.Helper()
	reg := pool.NewRegistry()
	f := NewRefresher(reg, zap.NewNop())
	var ts int64 = 1000
	f.now = func() int64 { ts += 10; return ts }
	for _, rec := range recs {
		_, err := reg.Upsert(rec)
		require.NoError(t, err)
		require.NoError(t, f.Watch(rec))
	}
	return f, reg
}

func TestApplyVaultUpdatesReserve(t *testing.T) {
	rec := pool.Record{
		Address:   "pool1",
		Venue:     pool.VenueRaydiumCPMM,
		BaseMint:  "base",
		QuoteMint: "quote",
		UpdatedAt: 1,
		Meta:      pool.CPMMMeta{Config: "cfg", BaseVault: "bv", QuoteVault: "qv"},
	}
	f, reg := newTestRefresher(t, rec)

	require.NoError(t, f.Apply("bv", tokenAccountBytes(111)))
	require.NoError(t, f.Apply("qv", tokenAccountBytes(222)))

	got, ok := reg.Get("pool1")
	require.True(t, ok)
	assert.Equal(t, uint64(111), got.BaseReserve)
	assert.Equal(t, uint64(222), got.QuoteReserve)
	assert.Greater(t, got.UpdatedAt, int64(1))
}

func TestApplyCurveReplacesMetaAndReserves(t *testing.T) {
	rec := pool.Record{
		Address:   "curve1",
		Venue:     pool.VenuePumpFun,
		BaseMint:  "base",
		QuoteMint: "quote",
		UpdatedAt: 1,
		Meta:      pool.PumpFunMeta{Creator: base58.Encode(make([]byte, 32))},
	}
	f, reg := newTestRefresher(t, rec)

	creator := make([]byte, 32)
	creator[0] = 9
	require.NoError(t, f.Apply("curve1", curveBytes(2_000_000, 60_000_000, false, creator)))

	got, _ := reg.Get("curve1")
	assert.Equal(t, uint64(2_000_000), got.BaseReserve)
	assert.Equal(t, uint64(60_000_000), got.QuoteReserve)
	m := got.Meta.(pool.PumpFunMeta)
	assert.Equal(t, base58.Encode(creator), m.Creator)
	assert.False(t, m.Complete)
}

func TestApplyCLMMStateKeepsVaults(t *testing.T) {
	rec := pool.Record{
		Address:     "clmm1",
		Venue:       pool.VenueRaydiumCLMM,
		BaseMint:    "base",
		QuoteMint:   "quote",
		BaseReserve: 5,
		UpdatedAt:   1,
		Meta: pool.CLMMMeta{
			Config: "cfg", BaseVault: "bv", QuoteVault: "qv",
			Observation: "obs", TickSpacing: 10,
		},
	}
	f, reg := newTestRefresher(t, rec)

	require.NoError(t, f.Apply("clmm1", clmmStateBytes(7, 3, 880)))

	got, _ := reg.Get("clmm1")
	m := got.Meta.(pool.CLMMMeta)
	assert.Equal(t, pool.Uint128{Lo: 7, Hi: 3}, m.SqrtPriceX64)
	assert.Equal(t, int32(880), m.TickCurrent)
	assert.Equal(t, "cfg", m.Config)
	assert.Equal(t, uint64(5), got.BaseReserve)
}

func TestApplyIgnoresUnknownAccount(t *testing.T) {
	f, _ := newTestRefresher(t)
	assert.NoError(t, f.Apply("stranger", tokenAccountBytes(1)))
}

type fakeReader struct {
	mu       sync.Mutex
	accounts map[string]*solana.AccountInfo
	batches  [][]string
}

func (f *fakeReader) GetMultipleAccounts(_ context.Context, pubkeys []string) ([]*solana.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, pubkeys)
	out := make([]*solana.AccountInfo, len(pubkeys))
	for i, pk := range pubkeys {
		out[i] = f.accounts[pk]
	}
	return out, nil
}

func TestPollerSweepAppliesUpdates(t *testing.T) {
	rec := pool.Record{
		Address:   "pool1",
		Venue:     pool.VenueRaydiumCPMM,
		BaseMint:  "base",
		QuoteMint: "quote",
		UpdatedAt: 1,
		Meta:      pool.CPMMMeta{Config: "cfg", BaseVault: "bv", QuoteVault: "qv"},
	}
	f, reg := newTestRefresher(t, rec)

	reader := &fakeReader{accounts: map[string]*solana.AccountInfo{
		"bv": {Data: base64.StdEncoding.EncodeToString(tokenAccountBytes(777))},
		"qv": {Data: base64.StdEncoding.EncodeToString(tokenAccountBytes(888))},
	}}
	updates := prometheus.NewCounter(prometheus.CounterOpts{Name: "poll_updates"})
	p := NewPoller(reader, f, time.Hour, updates, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	got, _ := reg.Get("pool1")
	assert.Equal(t, uint64(777), got.BaseReserve)
	assert.Equal(t, uint64(888), got.QuoteReserve)
	assert.Equal(t, float64(2), testutil.ToFloat64(updates))
}

type fakeWS struct {
	mu   sync.Mutex
	subs map[string]chan solana.AccountNotification
}

func (f *fakeWS) SubscribeAccount(_ context.Context, pubkey string) (<-chan solana.AccountNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan solana.AccountNotification, 4)
	f.subs[pubkey] = ch
	return ch, nil
}

func (f *fakeWS) Close() error { return nil }

func TestSubscriberAppliesNotifications(t *testing.T) {
	rec := pool.Record{
		Address:   "pool1",
		Venue:     pool.VenueRaydiumCPMM,
		BaseMint:  "base",
		QuoteMint: "quote",
		UpdatedAt: 1,
		Meta:      pool.CPMMMeta{Config: "cfg", BaseVault: "bv", QuoteVault: "qv"},
	}
	f, reg := newTestRefresher(t, rec)

	ws := &fakeWS{subs: map[string]chan solana.AccountNotification{}}
	updates := prometheus.NewCounter(prometheus.CounterOpts{Name: "ws_updates"})
	sub := NewSubscriber(ws, f, updates, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sub.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		ws.mu.Lock()
		defer ws.mu.Unlock()
		return len(ws.subs) == 2
	}, time.Second, 5*time.Millisecond)

	ws.mu.Lock()
	ws.subs["bv"] <- solana.AccountNotification{
		Pubkey: "bv",
		Data:   base64.StdEncoding.EncodeToString(tokenAccountBytes(4242)),
	}
	ws.mu.Unlock()

	require.Eventually(t, func() bool {
		got, _ := reg.Get("pool1")
		return got.BaseReserve == 4242
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
