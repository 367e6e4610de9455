// Package detector scans pool snapshots for two-leg arbitrage
// candidates. All scans are deterministic: identical snapshots produce
// identical candidate lists, with no randomness and first-seen
// tie-breaking.
package detector

import (
	"time"

	"solana-arb-lab/internal/pool"
	"solana-arb-lab/internal/quote"
)

// OpportunityKind classifies how a candidate was found.
type OpportunityKind int

const (
	KindSpatial OpportunityKind = iota
	KindTemporal
	KindTriangular
)

// String returns the kind name used in logs and dedup keys.
func (k OpportunityKind) String() string {
	switch k {
	case KindSpatial:
		return "spatial"
	case KindTemporal:
		return "temporal"
	case KindTriangular:
		return "triangular"
	default:
		return "unknown"
	}
}

// Opportunity is a candidate two-leg arbitrage. ExpectedProfit is a
// pre-execution estimate; it is not re-validated except by simulation.
// Both legs always resolve to the same token pair. Directions are
// resolved per pool: capital may sit on either side of a record.
type Opportunity struct {
	Kind           OpportunityKind
	BuyPool        pool.Record
	SellPool       pool.Record
	MidPool        *pool.Record // triangular only: the B->C hop
	TokenMint      string
	BuyDirection   pool.Direction // spends capital on BuyPool
	SellDirection  pool.Direction // returns capital on SellPool
	InputAmount    uint64
	ExpectedProfit int64
	ProfitBps      int64
	Timestamp      time.Time
}

// Config holds the detector thresholds. Temporal and triangular
// margins are deliberately configurable rather than hard-coded.
type Config struct {
	MinProfitBps      int64
	TemporalDeltaBps  int64
	TriangularMargin  int64 // bps over break-even the cycle must clear
	TradeSize         uint64
	QuoteMint         string // the pair leg treated as capital (wrapped SOL)
}

// Detector scans snapshots and keeps the per-pool quote cache the
// temporal strategy compares against.
type Detector struct {
	cfg       Config
	lastQuote map[string]quote.Quote // pool address -> prior cycle quote
	now       func() time.Time
}

// New creates a detector.
func New(cfg Config) *Detector {
	return &Detector{
		cfg:       cfg,
		lastQuote: make(map[string]quote.Quote),
		now:       time.Now,
	}
}

// FindSpatial enumerates buy-on-X sell-on-Y candidates across every
// ordered pool pair in the snapshot. Profit is measured in the capital
// mint: spend InputAmount on X, sell the purchased tokens on Y. Pools
// may carry capital on either side; directions are resolved per record.
func (d *Detector) FindSpatial(snapshot []pool.Record) []Opportunity {
	if d.cfg.TradeSize == 0 {
		return nil
	}
	var found []Opportunity
	for i := range snapshot {
		token, ok := tokenSide(snapshot[i], d.cfg.QuoteMint)
		if !ok {
			continue
		}
		buyDir := directionInto(snapshot[i], token)
		buyQ, err := quote.Compute(&snapshot[i], buyDir, d.cfg.TradeSize)
		if err != nil || buyQ.AmountOut == 0 {
			continue
		}
		for j := range snapshot {
			if i == j {
				continue
			}
			sellDir := directionInto(snapshot[j], d.cfg.QuoteMint)
			sellQ, err := quote.Compute(&snapshot[j], sellDir, buyQ.AmountOut)
			if err != nil {
				continue
			}
			if opp, ok := d.candidate(KindSpatial, snapshot[i], snapshot[j], token, buyDir, sellDir, sellQ.AmountOut); ok {
				found = append(found, opp)
			}
		}
	}
	return found
}

// FindTemporal re-quotes every pool against its cached prior quote. A
// dislocation larger than the configured delta on one venue is traded
// as buy-on-dislocated-pool, sell-on-best-other-pool before the move
// propagates. The cache is refreshed after comparison.
func (d *Detector) FindTemporal(snapshot []pool.Record) []Opportunity {
	if d.cfg.TradeSize == 0 {
		return nil
	}
	var found []Opportunity
	for i := range snapshot {
		token, ok := tokenSide(snapshot[i], d.cfg.QuoteMint)
		if !ok {
			continue
		}
		buyDir := directionInto(snapshot[i], token)
		cur, err := quote.Compute(&snapshot[i], buyDir, d.cfg.TradeSize)
		if err != nil {
			continue
		}
		prev, seen := d.lastQuote[snapshot[i].Address]
		d.lastQuote[snapshot[i].Address] = cur
		if !seen || prev.AmountOut == 0 {
			continue
		}

		// Price moved in the buyer's favor on this venue.
		deltaBps := (int64(cur.AmountOut) - int64(prev.AmountOut)) * 10000 / int64(prev.AmountOut)
		if deltaBps < d.cfg.TemporalDeltaBps {
			continue
		}

		sellPool, sellDir, proceeds, ok := d.bestExit(snapshot, i, cur.AmountOut)
		if !ok {
			continue
		}
		if opp, ok := d.candidate(KindTemporal, snapshot[i], sellPool, token, buyDir, sellDir, proceeds); ok {
			found = append(found, opp)
		}
	}
	return found
}

// bestExit finds the pool with the highest sell-back-to-capital
// proceeds for amount tokens, excluding index skip. First-seen order
// wins ties.
func (d *Detector) bestExit(snapshot []pool.Record, skip int, amount uint64) (pool.Record, pool.Direction, uint64, bool) {
	var (
		best     pool.Record
		bestDir  pool.Direction
		bestOut  uint64
		foundAny bool
	)
	for j := range snapshot {
		if j == skip {
			continue
		}
		dir := directionInto(snapshot[j], d.cfg.QuoteMint)
		q, err := quote.Compute(&snapshot[j], dir, amount)
		if err != nil {
			continue
		}
		if !foundAny || q.AmountOut > bestOut {
			best, bestDir, bestOut, foundAny = snapshot[j], dir, q.AmountOut, true
		}
	}
	return best, bestDir, bestOut, foundAny
}

// FindTriangular chains capital -> B -> C -> capital across up to
// three pools. snapshots maps pair keys to their pool snapshot; the
// cycle is kept when its rate product clears 1 plus the configured
// margin. Enumeration order follows the sorted pair keys, keeping the
// scan deterministic.
func (d *Detector) FindTriangular(pairs []pool.PairKey, snapshots map[pool.PairKey][]pool.Record) []Opportunity {
	if d.cfg.TradeSize == 0 {
		return nil
	}
	capital := d.cfg.QuoteMint
	var found []Opportunity

	for _, k1 := range pairs {
		b, ok := otherMint(k1, capital)
		if !ok {
			continue
		}
		for _, p1 := range snapshots[k1] {
			q1, err := quote.Compute(&p1, directionInto(p1, b), d.cfg.TradeSize)
			if err != nil || q1.AmountOut == 0 {
				continue
			}
			for _, k2 := range pairs {
				c, ok := otherMint(k2, b)
				if !ok || c == capital || c == b {
					continue
				}
				k3 := pool.NewPairKey(c, capital)
				for _, p2 := range snapshots[k2] {
					q2, err := quote.Compute(&p2, directionInto(p2, c), q1.AmountOut)
					if err != nil || q2.AmountOut == 0 {
						continue
					}
					for _, p3 := range snapshots[k3] {
						q3, err := quote.Compute(&p3, directionInto(p3, capital), q2.AmountOut)
						if err != nil {
							continue
						}
						profit := int64(q3.AmountOut) - int64(d.cfg.TradeSize)
						profitBps := profit * 10000 / int64(d.cfg.TradeSize)
						if profitBps < d.cfg.TriangularMargin {
							continue
						}
						mid := p2
						found = append(found, Opportunity{
							Kind:           KindTriangular,
							BuyPool:        p1,
							SellPool:       p3,
							MidPool:        &mid,
							TokenMint:      b,
							BuyDirection:   directionInto(p1, b),
							SellDirection:  directionInto(p3, capital),
							InputAmount:    d.cfg.TradeSize,
							ExpectedProfit: profit,
							ProfitBps:      profitBps,
							Timestamp:      d.now(),
						})
					}
				}
			}
		}
	}
	return found
}

// candidate applies the min-profit filter and assembles an Opportunity
// whose buy leg spends InputAmount of the capital mint and whose sell
// leg returns proceeds of the same mint. Callers guarantee a non-zero
// trade size.
func (d *Detector) candidate(kind OpportunityKind, buy, sell pool.Record, token string, buyDir, sellDir pool.Direction, proceeds uint64) (Opportunity, bool) {
	profit := int64(proceeds) - int64(d.cfg.TradeSize)
	profitBps := profit * 10000 / int64(d.cfg.TradeSize)
	if profitBps < d.cfg.MinProfitBps {
		return Opportunity{}, false
	}
	return Opportunity{
		Kind:           kind,
		BuyPool:        buy,
		SellPool:       sell,
		TokenMint:      token,
		BuyDirection:   buyDir,
		SellDirection:  sellDir,
		InputAmount:    d.cfg.TradeSize,
		ExpectedProfit: profit,
		ProfitBps:      profitBps,
		Timestamp:      d.now(),
	}, true
}

// Best merges candidate lists and returns the single highest-profitBps
// opportunity. Ties break by first-seen order.
func Best(lists ...[]Opportunity) (Opportunity, bool) {
	var (
		best  Opportunity
		found bool
	)
	for _, list := range lists {
		for _, opp := range list {
			if !found || opp.ProfitBps > best.ProfitBps {
				best, found = opp, true
			}
		}
	}
	return best, found
}

// tokenSide returns the mint paired against capital in rec, if capital
// is one of the record's sides.
func tokenSide(rec pool.Record, capital string) (string, bool) {
	switch capital {
	case rec.QuoteMint:
		return rec.BaseMint, true
	case rec.BaseMint:
		return rec.QuoteMint, true
	default:
		return "", false
	}
}

// otherMint returns the mint paired with m in key, if m is present.
func otherMint(key pool.PairKey, m string) (string, bool) {
	switch m {
	case key.MintA:
		return key.MintB, true
	case key.MintB:
		return key.MintA, true
	default:
		return "", false
	}
}

// directionInto returns the direction whose output token is want.
func directionInto(rec pool.Record, want string) pool.Direction {
	if rec.BaseMint == want {
		return pool.QuoteIn
	}
	return pool.BaseIn
}
