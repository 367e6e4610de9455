package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-arb-lab/internal/config"
	"solana-arb-lab/internal/detector"
	"solana-arb-lab/internal/execution"
	"solana-arb-lab/internal/logging"
	"solana-arb-lab/internal/orchestrator"
	"solana-arb-lab/internal/pool"
	"solana-arb-lab/internal/refresh"
	"solana-arb-lab/internal/risk"
	"solana-arb-lab/internal/solana"
	"solana-arb-lab/internal/stats"
	"solana-arb-lab/internal/txbuild"
	"solana-arb-lab/internal/wallet"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	dryRun := flag.Bool("dry-run", false, "Force dry-run mode regardless of configuration")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if err := run(*configPath, *dryRun, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, forceDryRun, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if forceDryRun {
		cfg.Execution.DryRun = true
	}

	logger, err := logging.New(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting arbitrage bot",
		zap.String("rpc", cfg.RPCURL),
		zap.Bool("dry_run", cfg.Execution.DryRun),
		zap.Int("pools", len(cfg.Pools)))

	// Wallet. Dry runs without a key get a throwaway keypair so the
	// builder still has a fee payer to compile against.
	var signer *wallet.Keypair
	if cfg.PrivateKey != "" {
		signer, err = wallet.FromBase58(cfg.PrivateKey)
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
	} else {
		signer, err = wallet.Ephemeral()
		if err != nil {
			return err
		}
		logger.Warn("no private key configured, using an ephemeral wallet")
	}
	logger.Info("wallet loaded", zap.String("pubkey", signer.Pubkey().String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rpc := solana.NewHTTPClient(cfg.RPCURL)
	ws, err := solana.NewWSClient(ctx, cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer ws.Close()

	// Registry seeded from config.
	registry := pool.NewRegistry()
	refresher := refresh.NewRefresher(registry, logger.Named("refresh"))
	for _, pc := range cfg.Pools {
		rec, err := pc.Record()
		if err != nil {
			return err
		}
		rec.UpdatedAt = time.Now().UnixMilli()
		if _, err := registry.Upsert(rec); err != nil {
			return err
		}
		if err := refresher.Watch(rec); err != nil {
			return err
		}
	}

	metrics := stats.NewMetrics("")
	ledger := stats.NewLedger()

	gate := risk.NewGate(risk.Config{
		MaxTradeSize:     cfg.Risk.MaxTradeSize,
		FreshnessWindow:  cfg.Risk.FreshnessWindow,
		FeeMargin:        cfg.Risk.FeeMargin,
		FailureThreshold: cfg.Risk.FailureThreshold,
		Cooldown:         cfg.Risk.Cooldown,
	})

	det := detector.New(detector.Config{
		MinProfitBps:     cfg.Detector.MinProfitBps,
		TemporalDeltaBps: cfg.Detector.TemporalDeltaBps,
		TriangularMargin: cfg.Detector.TriangularMargin,
		TradeSize:        cfg.Detector.TradeSize,
		QuoteMint:        cfg.Detector.QuoteMint,
	})

	builder := txbuild.NewBuilder(rpc, cfg.Compute.UnitLimit, cfg.Compute.UnitPrice)
	engine := execution.NewEngine(execution.Config{
		DryRun:         cfg.Execution.DryRun,
		SettleDelay:    cfg.Execution.SettleDelay,
		ConfirmTimeout: cfg.Execution.ConfirmTimeout,
		PollInterval:   cfg.Execution.PollInterval,
		DedupCooldown:  cfg.Execution.DedupCooldown,
	}, rpc, builder, signer, registry, logger.Named("execution"))

	orch := orchestrator.New(orchestrator.Options{
		Registry:      registry,
		Detector:      det,
		Gate:          gate,
		Engine:        engine,
		Metrics:       metrics,
		Ledger:        ledger,
		Logger:        logger.Named("orchestrator"),
		CycleInterval: cfg.CycleInterval,
	})

	// Metrics endpoint.
	mux := http.NewServeMux()
	mux.Handle("/metrics", stats.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}()

	balanceSink := gateAndGauge{gate: gate, gauge: metrics}
	poller := refresh.NewPoller(rpc, refresher, cfg.RefreshInterval,
		metrics.AccountUpdates.WithLabelValues("poll"), logger.Named("poller"))
	subscriber := refresh.NewSubscriber(ws, refresher,
		metrics.AccountUpdates.WithLabelValues("ws"), logger.Named("subscriber"))
	balances := wallet.NewPoller(rpc, balanceSink, signer.Pubkey().String(), cfg.BalanceInterval, logger.Named("balance"))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(poller.Run(ctx)) })
	g.Go(func() error { return ignoreCancel(subscriber.Run(ctx)) })
	g.Go(func() error { return ignoreCancel(balances.Run(ctx)) })
	g.Go(func() error { return orch.Run(ctx) })

	err = g.Wait()

	s := ledger.Snapshot()
	logger.Info("session summary",
		zap.Duration("uptime", s.Uptime),
		zap.Int("attempts", s.Attempts),
		zap.Int("wins", s.Wins),
		zap.Int("losses", s.Losses),
		zap.Int("fallbacks", s.Fallbacks),
		zap.Int("suppressed", s.Suppressed),
		zap.String("net_sol", s.NetSOL.String()))

	return err
}

// gateAndGauge fans the balance feed out to the risk gate and the
// wallet gauge.
type gateAndGauge struct {
	gate  *risk.Gate
	gauge *stats.Metrics
}

func (s gateAndGauge) SetBalance(lamports uint64, at time.Time) {
	s.gate.SetBalance(lamports, at)
	s.gauge.WalletLamports.Set(float64(lamports))
}

// ignoreCancel maps context cancellation to a clean exit so shutdown
// is not reported as an error.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
