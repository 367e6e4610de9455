// Package refresh keeps registry records synchronized with on-chain
// account state, via polling and via websocket push.
package refresh

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-arb-lab/internal/pool"
)

// role identifies which slice of a pool record an account feeds.
type role int

const (
	roleBaseVault role = iota
	roleQuoteVault
	roleCurveState
	roleCLMMState
)

type binding struct {
	pool string
	role role
}

// Refresher routes raw account bytes into registry updates. Watch
// registers the accounts a pool depends on; Apply decodes one account
// and upserts the refreshed record.
type Refresher struct {
	reg    *pool.Registry
	logger *zap.Logger

	mu       sync.RWMutex
	bindings map[string]binding

	now func() int64
}

// NewRefresher creates a refresher over the registry.
func NewRefresher(reg *pool.Registry, logger *zap.Logger) *Refresher {
	return &Refresher{
		reg:      reg,
		logger:   logger,
		bindings: make(map[string]binding),
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// Watch registers the accounts that back a pool record. The record
// must already be in the registry.
func (f *Refresher) Watch(rec pool.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch m := rec.Meta.(type) {
	case pool.RaydiumAMMMeta:
		f.bindings[m.BaseVault] = binding{rec.Address, roleBaseVault}
		f.bindings[m.QuoteVault] = binding{rec.Address, roleQuoteVault}
	case pool.CPMMMeta:
		f.bindings[m.BaseVault] = binding{rec.Address, roleBaseVault}
		f.bindings[m.QuoteVault] = binding{rec.Address, roleQuoteVault}
	case pool.CLMMMeta:
		f.bindings[m.BaseVault] = binding{rec.Address, roleBaseVault}
		f.bindings[m.QuoteVault] = binding{rec.Address, roleQuoteVault}
		f.bindings[rec.Address] = binding{rec.Address, roleCLMMState}
	case pool.PumpFunMeta:
		// the curve account holds both sides
		f.bindings[rec.Address] = binding{rec.Address, roleCurveState}
	case pool.PumpSwapMeta:
		f.bindings[m.BaseVault] = binding{rec.Address, roleBaseVault}
		f.bindings[m.QuoteVault] = binding{rec.Address, roleQuoteVault}
	default:
		return fmt.Errorf("pool %s: unknown venue payload", rec.Address)
	}
	return nil
}

// Accounts returns every watched account, sorted.
func (f *Refresher) Accounts() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]string, 0, len(f.bindings))
	for a := range f.bindings {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Apply decodes one account's bytes and refreshes the owning record.
// Accounts without a binding are ignored.
func (f *Refresher) Apply(account string, data []byte) error {
	f.mu.RLock()
	b, ok := f.bindings[account]
	f.mu.RUnlock()
	if !ok {
		return nil
	}

	rec, ok := f.reg.Get(b.pool)
	if !ok {
		return fmt.Errorf("account %s: pool %s not registered", account, b.pool)
	}

	switch b.role {
	case roleBaseVault:
		amount, err := decodeTokenAmount(data)
		if err != nil {
			return fmt.Errorf("pool %s base vault: %w", b.pool, err)
		}
		rec.BaseReserve = amount
	case roleQuoteVault:
		amount, err := decodeTokenAmount(data)
		if err != nil {
			return fmt.Errorf("pool %s quote vault: %w", b.pool, err)
		}
		rec.QuoteReserve = amount
	case roleCurveState:
		curve, err := decodeBondingCurve(data)
		if err != nil {
			return fmt.Errorf("pool %s curve: %w", b.pool, err)
		}
		rec.BaseReserve = curve.VirtualTokenReserves
		rec.QuoteReserve = curve.VirtualSolReserves
		rec.Meta = curve
	case roleCLMMState:
		state, err := decodeCLMMState(data)
		if err != nil {
			return fmt.Errorf("pool %s state: %w", b.pool, err)
		}
		m := rec.Meta.(pool.CLMMMeta)
		m.SqrtPriceX64 = state.SqrtPriceX64
		m.TickCurrent = state.TickCurrent
		rec.Meta = m
	}

	rec.UpdatedAt = f.now()
	applied, err := f.reg.Upsert(rec)
	if err != nil {
		return err
	}
	if !applied {
		f.logger.Debug("stale refresh dropped", zap.String("pool", b.pool))
	}
	return nil
}
