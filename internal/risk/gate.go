// Package risk guards execution with ordered pre-trade checks and a
// consecutive-failure circuit breaker. The gate issues no network
// calls; the wallet balance is injected by an external poller.
package risk

import (
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"solana-arb-lab/internal/detector"
)

// Reason explains why the gate blocked an opportunity.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonPositionTooLarge    Reason = "PositionTooLarge"
	ReasonStaleData           Reason = "StaleData"
	ReasonInsufficientBalance Reason = "InsufficientBalance"
	ReasonCircuitOpen         Reason = "CircuitOpen"
)

// Decision is the gate verdict for one opportunity.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Config holds the gate thresholds.
type Config struct {
	MaxTradeSize     uint64        // lamports of capital per trade
	FreshnessWindow  time.Duration // max age of a pool snapshot
	FeeMargin        uint64        // lamports reserved for tx fees
	FailureThreshold uint32        // consecutive failures before the breaker opens
	Cooldown         time.Duration // open-state duration before a trial is allowed
}

// Gate owns the process-lifetime risk state: the failure streak (via
// the circuit breaker), and the cached wallet balance with its
// snapshot age. Mutation happens only through the public methods.
type Gate struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker[struct{}]

	mu          sync.Mutex
	balance     uint64
	balanceAt   time.Time
	haveBalance bool
}

// NewGate creates a gate. The breaker trips after cfg.FailureThreshold
// consecutive failures and allows a single trial after cfg.Cooldown.
func NewGate(cfg Config) *Gate {
	return &Gate{
		cfg: cfg,
		breaker: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        "execution",
			MaxRequests: 1,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
		}),
	}
}

// recordedFailure drives the breaker's failure counting.
type recordedFailure struct{}

func (recordedFailure) Error() string { return "recorded execution failure" }

// CanExecute runs the checks in strict order; the first failure wins.
func (g *Gate) CanExecute(opp *detector.Opportunity, now time.Time) Decision {
	if opp.InputAmount > g.cfg.MaxTradeSize {
		return Decision{Reason: ReasonPositionTooLarge}
	}

	cutoff := now.Add(-g.cfg.FreshnessWindow).UnixMilli()
	if opp.BuyPool.UpdatedAt < cutoff || opp.SellPool.UpdatedAt < cutoff {
		return Decision{Reason: ReasonStaleData}
	}
	if opp.MidPool != nil && opp.MidPool.UpdatedAt < cutoff {
		return Decision{Reason: ReasonStaleData}
	}

	g.mu.Lock()
	balance, have := g.balance, g.haveBalance
	g.mu.Unlock()
	if !have || balance < opp.InputAmount+g.cfg.FeeMargin {
		return Decision{Reason: ReasonInsufficientBalance}
	}

	if g.breaker.State() == gobreaker.StateOpen {
		return Decision{Reason: ReasonCircuitOpen}
	}

	return Decision{Allowed: true}
}

// RecordSuccess resets the failure streak. After a cooldown it also
// closes a half-open breaker.
func (g *Gate) RecordSuccess() {
	g.breaker.Execute(func() (struct{}, error) { return struct{}{}, nil })
}

// RecordFailure increments the failure streak; reaching the threshold
// opens the breaker and stamps the cooldown start.
func (g *Gate) RecordFailure() {
	g.breaker.Execute(func() (struct{}, error) { return struct{}{}, recordedFailure{} })
}

// SetBalance injects the latest wallet balance snapshot.
func (g *Gate) SetBalance(lamports uint64, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balance = lamports
	g.balanceAt = at
	g.haveBalance = true
}

// Balance returns the cached balance and its snapshot time.
func (g *Gate) Balance() (uint64, time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balance, g.balanceAt, g.haveBalance
}
