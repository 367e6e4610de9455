// Package orchestrator runs the evaluation loop.
// Each cycle: snapshot → detect → gate → execute → book.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-arb-lab/internal/detector"
	"solana-arb-lab/internal/execution"
	"solana-arb-lab/internal/pool"
	"solana-arb-lab/internal/risk"
	"solana-arb-lab/internal/stats"
)

// Options for creating an Orchestrator.
type Options struct {
	Registry *pool.Registry
	Detector *detector.Detector
	Gate     *risk.Gate
	Engine   *execution.Engine
	Metrics  *stats.Metrics
	Ledger   *stats.Ledger
	Logger   *zap.Logger

	// CycleInterval is the fixed delay between evaluation cycles.
	CycleInterval time.Duration
}

// Orchestrator drives detection and execution. One cycle runs at a
// time; cancellation is honored between cycles, never inside one, so a
// submitted leg is always seen through.
type Orchestrator struct {
	reg     *pool.Registry
	det     *detector.Detector
	gate    *risk.Gate
	engine  *execution.Engine
	metrics *stats.Metrics
	ledger  *stats.Ledger
	logger  *zap.Logger

	interval time.Duration
	now      func() time.Time
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		reg:      opts.Registry,
		det:      opts.Detector,
		gate:     opts.Gate,
		engine:   opts.Engine,
		metrics:  opts.Metrics,
		ledger:   opts.Ledger,
		logger:   opts.Logger,
		interval: opts.CycleInterval,
		now:      time.Now,
	}
}

// Run loops until the context is cancelled. The cycle in flight when
// cancellation arrives completes before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("evaluation loop started",
		zap.Duration("interval", o.interval),
		zap.Int("pools", o.reg.Len()))

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("evaluation loop stopped")
			return nil
		default:
		}

		o.Cycle(ctx)

		select {
		case <-ctx.Done():
			o.logger.Info("evaluation loop stopped")
			return nil
		case <-time.After(o.interval):
		}
	}
}

// Cycle runs one full evaluation pass.
func (o *Orchestrator) Cycle(ctx context.Context) {
	start := o.now()
	o.metrics.CyclesTotal.Inc()
	o.metrics.RegisteredPools.Set(float64(o.reg.Len()))

	pairs := o.reg.Pairs()
	snapshots := make(map[pool.PairKey][]pool.Record, len(pairs))
	for _, key := range pairs {
		snapshots[key] = o.reg.Snapshot(key)
	}

	// Spatial scans are independent per pair; temporal ones share the
	// detector's quote cache and stay sequential.
	var (
		mu    sync.Mutex
		found []detector.Opportunity
	)
	g, _ := errgroup.WithContext(ctx)
	for _, key := range pairs {
		snapshot := snapshots[key]
		g.Go(func() error {
			opps := o.det.FindSpatial(snapshot)
			mu.Lock()
			found = append(found, opps...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, key := range pairs {
		found = append(found, o.det.FindTemporal(snapshots[key])...)
	}
	found = append(found, o.det.FindTriangular(pairs, snapshots)...)

	for _, opp := range found {
		o.metrics.OpportunitiesFound.WithLabelValues(opp.Kind.String()).Inc()
	}

	best, ok := detector.Best(found)
	if !ok {
		o.metrics.BestProfitBps.Set(0)
		o.finishCycle(start)
		return
	}
	o.metrics.BestProfitBps.Set(float64(best.ProfitBps))

	decision := o.gate.CanExecute(&best, o.now())
	if !decision.Allowed {
		o.metrics.TradesBlocked.WithLabelValues(string(decision.Reason)).Inc()
		o.logger.Debug("trade blocked",
			zap.String("reason", string(decision.Reason)),
			zap.Int64("profit_bps", best.ProfitBps))
		o.finishCycle(start)
		return
	}

	o.execute(ctx, best)
	o.finishCycle(start)
}

func (o *Orchestrator) execute(ctx context.Context, opp detector.Opportunity) {
	res, err := o.engine.Execute(ctx, opp)
	switch {
	case errors.Is(err, execution.ErrDuplicateSuppressed):
		o.ledger.RecordSuppressed()
		o.metrics.ExecutionsTotal.WithLabelValues("suppressed").Inc()
		return
	case err != nil:
		o.gate.RecordFailure()
		o.ledger.RecordFailure()
		o.metrics.ExecutionsTotal.WithLabelValues("failure").Inc()
		var simErr *execution.SimulationError
		if errors.As(err, &simErr) {
			o.metrics.SimulationsFailed.Inc()
		}
		o.logger.Warn("execution failed",
			zap.String("state", res.State.String()),
			zap.Error(err))
		return
	}

	o.gate.RecordSuccess()
	o.ledger.RecordTrade(res.RealizedProfit, res.FallbackSig != "")
	o.metrics.ExecutionsTotal.WithLabelValues("success").Inc()
	o.metrics.RealizedLamports.Add(float64(res.RealizedProfit))
	if res.Leg1Sig != "" {
		o.metrics.LegsSubmitted.WithLabelValues("leg1").Inc()
	}
	if res.Leg2Sig != "" {
		o.metrics.LegsSubmitted.WithLabelValues("leg2").Inc()
	}
	if res.FallbackSig != "" {
		o.metrics.LegsSubmitted.WithLabelValues("fallback").Inc()
		o.metrics.FallbacksTotal.Inc()
	}
}

func (o *Orchestrator) finishCycle(start time.Time) {
	o.metrics.CycleDuration.Observe(o.now().Sub(start).Seconds())
	o.metrics.LastSuccessfulCycle.Set(float64(o.now().Unix()))
}
