// Package quote prices a swap against a single pool record. All
// functions are pure: identical inputs produce identical quotes, and
// integer math floors where the on-chain programs floor.
package quote

import (
	"errors"
	"fmt"
	"math/big"

	"solana-arb-lab/internal/pool"
)

// Quote errors for expected pricing failures.
var (
	// ErrInvalidPool is returned when a pool has zero or missing reserves.
	ErrInvalidPool = errors.New("invalid pool: zero or missing reserves")

	// ErrQuoteUnavailable is returned when the pool carries no usable
	// price source for the requested direction.
	ErrQuoteUnavailable = errors.New("quote unavailable: no usable price source")
)

// Quote is the ephemeral result of pricing one swap. It is never
// persisted; a fresh quote is computed every evaluation cycle.
type Quote struct {
	PoolAddress    string
	Venue          pool.Venue
	Direction      pool.Direction
	AmountIn       uint64
	AmountOut      uint64
	EffectivePrice float64 // out per in, raw base units
	PriceImpact    float64 // 1 - realizedRate/idealRate, 0 when ideal undefined
}

// quoteFunc prices one venue kind. The table below is the closed
// dispatch set; adding a venue means adding exactly one entry.
type quoteFunc func(rec *pool.Record, dir pool.Direction, amountIn uint64) (uint64, error)

var quoteTable = map[pool.Kind]quoteFunc{
	pool.KindConstantProduct:             quoteConstantProduct,
	pool.KindConstantProductExternalBook: quoteConstantProduct,
	pool.KindConcentratedLiquidity:       quoteConcentrated,
	pool.KindBondingCurve:                quoteBondingCurve,
}

// Compute prices amountIn against rec in the given direction.
func Compute(rec *pool.Record, dir pool.Direction, amountIn uint64) (Quote, error) {
	if err := rec.Validate(); err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrInvalidPool, err)
	}
	fn, ok := quoteTable[rec.Venue.Kind()]
	if !ok {
		return Quote{}, ErrQuoteUnavailable
	}

	out, err := fn(rec, dir, amountIn)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		PoolAddress: rec.Address,
		Venue:       rec.Venue,
		Direction:   dir,
		AmountIn:    amountIn,
		AmountOut:   out,
	}
	if amountIn > 0 {
		q.EffectivePrice = float64(out) / float64(amountIn)
	}
	q.PriceImpact = priceImpact(rec, dir, q.EffectivePrice)
	return q, nil
}

// applyFee reduces the input by the pool fee, flooring like the
// on-chain programs: effIn = in * (10000 - feeBps) / 10000.
func applyFee(amountIn uint64, feeBps uint16) *big.Int {
	eff := new(big.Int).SetUint64(amountIn)
	eff.Mul(eff, big.NewInt(int64(10000-feeBps)))
	return eff.Quo(eff, big.NewInt(10000))
}

// constantProductOut computes floor(effIn*reserveOut/(reserveIn+effIn)).
func constantProductOut(effIn *big.Int, reserveIn, reserveOut uint64) uint64 {
	num := new(big.Int).Mul(effIn, new(big.Int).SetUint64(reserveOut))
	den := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), effIn)
	num.Quo(num, den)
	return num.Uint64()
}

func quoteConstantProduct(rec *pool.Record, dir pool.Direction, amountIn uint64) (uint64, error) {
	reserveIn, reserveOut := rec.BaseReserve, rec.QuoteReserve
	if dir == pool.QuoteIn {
		reserveIn, reserveOut = reserveOut, reserveIn
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrInvalidPool
	}
	return constantProductOut(applyFee(amountIn, rec.FeeBps), reserveIn, reserveOut), nil
}

// q128 is the scale of a squared Q64.64 sqrt price.
var q128 = new(big.Int).Lsh(big.NewInt(1), 128)

// quoteConcentrated prices against the current sqrt price only. Valid
// while the trade stays within the active tick range; crossing ranges
// is caught by pre-submission simulation, not modeled here.
func quoteConcentrated(rec *pool.Record, dir pool.Direction, amountIn uint64) (uint64, error) {
	meta, ok := rec.Meta.(pool.CLMMMeta)
	if !ok || meta.SqrtPriceX64.IsZero() {
		return 0, ErrQuoteUnavailable
	}

	sqrtP := new(big.Int).SetUint64(meta.SqrtPriceX64.Hi)
	sqrtP.Lsh(sqrtP, 64)
	sqrtP.Or(sqrtP, new(big.Int).SetUint64(meta.SqrtPriceX64.Lo))

	priceX128 := new(big.Int).Mul(sqrtP, sqrtP) // quote per base, scaled 2^128
	effIn := applyFee(amountIn, rec.FeeBps)

	out := new(big.Int)
	if dir == pool.BaseIn {
		out.Mul(effIn, priceX128)
		out.Quo(out, q128)
	} else {
		out.Mul(effIn, q128)
		out.Quo(out, priceX128)
	}
	if !out.IsUint64() {
		return 0, ErrQuoteUnavailable
	}
	return out.Uint64(), nil
}

func quoteBondingCurve(rec *pool.Record, dir pool.Direction, amountIn uint64) (uint64, error) {
	meta, ok := rec.Meta.(pool.PumpFunMeta)
	if !ok {
		return 0, ErrQuoteUnavailable
	}
	if meta.Complete {
		// Curve migrated; it no longer trades on this venue.
		return 0, ErrQuoteUnavailable
	}

	virtualIn, virtualOut := meta.VirtualTokenReserves, meta.VirtualSolReserves
	if dir == pool.QuoteIn {
		virtualIn, virtualOut = virtualOut, virtualIn
	}
	if virtualIn == 0 || virtualOut == 0 {
		return 0, ErrInvalidPool
	}
	return constantProductOut(applyFee(amountIn, rec.FeeBps), virtualIn, virtualOut), nil
}

// priceImpact computes 1 - realizedRate/idealRate where idealRate is
// the raw reserve ratio for the direction. Returns 0 when the ideal
// rate is undefined.
func priceImpact(rec *pool.Record, dir pool.Direction, realizedRate float64) float64 {
	reserveIn, reserveOut := idealReserves(rec, dir)
	if reserveIn == 0 {
		return 0
	}
	ideal := float64(reserveOut) / float64(reserveIn)
	if ideal == 0 {
		return 0
	}
	impact := 1 - realizedRate/ideal
	if impact < 0 {
		return 0
	}
	return impact
}

func idealReserves(rec *pool.Record, dir pool.Direction) (uint64, uint64) {
	in, out := rec.BaseReserve, rec.QuoteReserve
	if meta, ok := rec.Meta.(pool.PumpFunMeta); ok {
		in, out = meta.VirtualTokenReserves, meta.VirtualSolReserves
	}
	if dir == pool.QuoteIn {
		in, out = out, in
	}
	return in, out
}
