package stats

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// lamportsPerSOL converts raw lamport amounts into SOL for reporting.
var lamportsPerSOL = decimal.NewFromInt(1_000_000_000)

// Ledger accumulates per-session trading results. Amounts are kept in
// exact decimal SOL so the final summary never suffers float drift.
type Ledger struct {
	mu sync.Mutex

	started    time.Time
	attempts   int
	wins       int
	losses     int
	fallbacks  int
	suppressed int
	netProfit  decimal.Decimal
	grossWin   decimal.Decimal
	grossLoss  decimal.Decimal
}

// NewLedger creates an empty ledger stamped with the session start.
func NewLedger() *Ledger {
	return &Ledger{started: time.Now()}
}

// RecordTrade books one completed execution.
func (l *Ledger) RecordTrade(profitLamports int64, viaFallback bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := decimal.NewFromInt(profitLamports).Div(lamportsPerSOL)
	l.attempts++
	l.netProfit = l.netProfit.Add(p)
	if viaFallback {
		l.fallbacks++
	}
	if profitLamports >= 0 {
		l.wins++
		l.grossWin = l.grossWin.Add(p)
	} else {
		l.losses++
		l.grossLoss = l.grossLoss.Add(p)
	}
}

// RecordFailure books an execution that terminated without a trade.
func (l *Ledger) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	l.losses++
}

// RecordSuppressed books a dedup-suppressed opportunity.
func (l *Ledger) RecordSuppressed() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.suppressed++
}

// Summary is a point-in-time snapshot of the ledger.
type Summary struct {
	Uptime     time.Duration
	Attempts   int
	Wins       int
	Losses     int
	Fallbacks  int
	Suppressed int
	NetSOL     decimal.Decimal
	GrossWin   decimal.Decimal
	GrossLoss  decimal.Decimal
}

// Snapshot returns the current totals.
func (l *Ledger) Snapshot() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Summary{
		Uptime:     time.Since(l.started),
		Attempts:   l.attempts,
		Wins:       l.wins,
		Losses:     l.losses,
		Fallbacks:  l.fallbacks,
		Suppressed: l.suppressed,
		NetSOL:     l.netProfit,
		GrossWin:   l.grossWin,
		GrossLoss:  l.grossLoss,
	}
}
