// Package execution turns a detected opportunity into signed
// transactions: simulate, submit, confirm, and unwind a stranded
// position through a fallback venue when the second leg dies.
package execution

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-arb-lab/internal/detector"
	"solana-arb-lab/internal/pool"
	"solana-arb-lab/internal/quote"
	"solana-arb-lab/internal/solana"
	"solana-arb-lab/internal/txbuild"
)

// State names the execution phases. Every run terminates in StateDone
// or StateFailed; the intermediate states exist for logging and tests.
type State int

const (
	StateIdle State = iota
	StateLeg1Pending
	StateLeg1Failed
	StateLeg2Pending
	StateLeg2Failed
	StateFallbackPending
	StateDone
	StateFailed
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLeg1Pending:
		return "leg1-pending"
	case StateLeg1Failed:
		return "leg1-failed"
	case StateLeg2Pending:
		return "leg2-pending"
	case StateLeg2Failed:
		return "leg2-failed"
	case StateFallbackPending:
		return "fallback-pending"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of one execution attempt.
type Result struct {
	Success     bool
	State       State
	Leg1Sig     string
	Leg2Sig     string
	FallbackSig string
	// RealizedProfit is capital lamports out minus capital lamports
	// in. Negative when the fallback unwound at a loss. In dry-run it
	// is the quoted expectation, nothing was submitted.
	RealizedProfit int64
	DryRun         bool
}

// Config tunes the execution engine.
type Config struct {
	// DryRun prices both legs and books the expected profit without
	// building or submitting any transaction.
	DryRun bool
	// SettleDelay is the pause between leg confirmation and the
	// balance read that sizes the next leg.
	SettleDelay time.Duration
	// ConfirmTimeout bounds signature status polling per leg.
	ConfirmTimeout time.Duration
	// PollInterval is the status polling cadence.
	PollInterval time.Duration
	// DedupCooldown suppresses repeat executions of the same venue
	// pair and opportunity kind.
	DedupCooldown time.Duration
}

// Engine executes two-leg arbitrage opportunities sequentially. It is
// not safe for concurrent Execute calls; the evaluation loop runs one
// opportunity at a time.
type Engine struct {
	cfg     Config
	rpc     solana.RPCClient
	builder *txbuild.Builder
	signer  txbuild.Signer
	reg     *pool.Registry
	logger  *zap.Logger

	mu       sync.Mutex
	lastExec map[string]time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewEngine creates an execution engine.
func NewEngine(cfg Config, rpc solana.RPCClient, builder *txbuild.Builder, signer txbuild.Signer, reg *pool.Registry, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		rpc:      rpc,
		builder:  builder,
		signer:   signer,
		reg:      reg,
		logger:   logger,
		lastExec: make(map[string]time.Time),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// dedupKey collapses opportunities hitting the same venue pair.
func dedupKey(opp detector.Opportunity) string {
	return opp.BuyPool.Venue.String() + "|" + opp.SellPool.Venue.String() + "|" + opp.Kind.String()
}

// Execute runs the full two-leg sequence for one opportunity.
func (e *Engine) Execute(ctx context.Context, opp detector.Opportunity) (Result, error) {
	key := dedupKey(opp)
	e.mu.Lock()
	if last, ok := e.lastExec[key]; ok && e.now().Sub(last) < e.cfg.DedupCooldown {
		e.mu.Unlock()
		return Result{State: StateIdle}, fmt.Errorf("%w: %s", ErrDuplicateSuppressed, key)
	}
	e.lastExec[key] = e.now()
	e.mu.Unlock()

	log := e.logger.With(
		zap.String("kind", opp.Kind.String()),
		zap.String("buy_pool", opp.BuyPool.Address),
		zap.String("sell_pool", opp.SellPool.Address),
		zap.Uint64("input", opp.InputAmount),
	)

	if e.cfg.DryRun {
		return e.dryRun(opp, log)
	}

	res := Result{State: StateLeg1Pending}

	// Leg 1: spend capital, receive token.
	buyQuote, err := quote.Compute(&opp.BuyPool, opp.BuyDirection, opp.InputAmount)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("leg1 quote: %w", err)
	}
	leg1Sig, err := e.runLeg(ctx, "leg1", opp.BuyPool, opp.BuyDirection, opp.InputAmount, buyQuote.AmountOut)
	if err != nil {
		res.State = StateLeg1Failed
		log.Warn("first leg failed, nothing at risk", zap.Error(err))
		return res, err
	}
	res.Leg1Sig = leg1Sig
	res.State = StateLeg2Pending

	// Size the second leg from the real position, not the estimate.
	sellAmount := buyQuote.AmountOut
	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		res.State = StateFailed
		return res, err
	}
	if got, err := e.tokenBalance(ctx, opp.TokenMint); err != nil {
		log.Warn("post-leg1 balance read failed, using quoted amount", zap.Error(err))
	} else if got > 0 {
		sellAmount = got
	}

	// Leg 2: sell the token back into capital.
	sellQuote, err := quote.Compute(&opp.SellPool, opp.SellDirection, sellAmount)
	if err == nil {
		leg2Sig, legErr := e.runLeg(ctx, "leg2", opp.SellPool, opp.SellDirection, sellAmount, sellQuote.AmountOut)
		if legErr == nil {
			res.Leg2Sig = leg2Sig
			res.State = StateDone
			res.Success = true
			res.RealizedProfit = int64(sellQuote.AmountOut) - int64(opp.InputAmount)
			log.Info("arbitrage complete",
				zap.String("leg1", leg1Sig),
				zap.String("leg2", leg2Sig),
				zap.Int64("profit", res.RealizedProfit))
			return res, nil
		}
		err = legErr
	}
	res.State = StateLeg2Failed
	log.Warn("second leg failed, holding position", zap.Error(err))

	// Exactly one fallback attempt on an alternate venue.
	res.State = StateFallbackPending
	fbSig, fbOut, fbErr := e.fallbackSell(ctx, opp, sellAmount)
	if fbErr != nil {
		res.State = StateFailed
		log.Error("fallback failed, position stranded", zap.Error(fbErr))
		return res, fmt.Errorf("leg2: %v; fallback: %w", err, fbErr)
	}
	res.FallbackSig = fbSig
	res.State = StateDone
	res.Success = true
	res.RealizedProfit = int64(fbOut) - int64(opp.InputAmount)
	log.Info("position unwound via fallback",
		zap.String("fallback", fbSig),
		zap.Int64("profit", res.RealizedProfit))
	return res, nil
}

// dryRun prices both legs and books the expected outcome. Nothing is
// built, signed, or submitted.
func (e *Engine) dryRun(opp detector.Opportunity, log *zap.Logger) (Result, error) {
	res := Result{State: StateLeg1Pending, DryRun: true}

	buyQuote, err := quote.Compute(&opp.BuyPool, opp.BuyDirection, opp.InputAmount)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("leg1 quote: %w", err)
	}
	res.State = StateLeg2Pending
	sellQuote, err := quote.Compute(&opp.SellPool, opp.SellDirection, buyQuote.AmountOut)
	if err != nil {
		res.State = StateFailed
		return res, fmt.Errorf("leg2 quote: %w", err)
	}

	res.State = StateDone
	res.Success = true
	res.RealizedProfit = int64(sellQuote.AmountOut) - int64(opp.InputAmount)
	log.Info("dry run, expected profit booked",
		zap.Uint64("buy_out", buyQuote.AmountOut),
		zap.Int64("profit", res.RealizedProfit))
	return res, nil
}

// fallbackSell re-sells the held token on the best alternate pool.
func (e *Engine) fallbackSell(ctx context.Context, opp detector.Opportunity, amount uint64) (string, uint64, error) {
	capital := opp.SellPool.QuoteMint
	if capital == opp.TokenMint {
		capital = opp.SellPool.BaseMint
	}
	key := pool.NewPairKey(opp.TokenMint, capital)

	var best *pool.Record
	var bestDir pool.Direction
	var bestOut uint64
	for _, rec := range e.reg.Snapshot(key) {
		if rec.Address == opp.SellPool.Address {
			continue
		}
		rec := rec
		dir := pool.BaseIn
		if rec.QuoteMint == opp.TokenMint {
			dir = pool.QuoteIn
		}
		q, err := quote.Compute(&rec, dir, amount)
		if err != nil {
			continue
		}
		if q.AmountOut > bestOut {
			best, bestDir, bestOut = &rec, dir, q.AmountOut
		}
	}
	if best == nil {
		return "", 0, ErrNoFallbackPool
	}

	sig, err := e.runLeg(ctx, "fallback", *best, bestDir, amount, bestOut)
	if err != nil {
		return "", 0, err
	}
	return sig, bestOut, nil
}

// runLeg builds, simulates, signs, submits, and confirms one swap.
// A dirty simulation aborts before anything is signed.
func (e *Engine) runLeg(ctx context.Context, leg string, rec pool.Record, dir pool.Direction, amountIn, expectedOut uint64) (string, error) {
	ixs, err := e.builder.BuildSwap(ctx, txbuild.SwapParams{
		Pool:        rec,
		Direction:   dir,
		AmountIn:    amountIn,
		ExpectedOut: expectedOut,
		User:        e.signer.Pubkey(),
	})
	if err != nil {
		return "", fmt.Errorf("%s build: %w", leg, err)
	}

	bh, err := e.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("%s blockhash: %w", leg, err)
	}

	msg, err := txbuild.CompileMessage(e.signer.Pubkey(), bh.Blockhash, ixs)
	if err != nil {
		return "", fmt.Errorf("%s compile: %w", leg, err)
	}

	unsigned := base64.StdEncoding.EncodeToString(txbuild.UnsignedTransaction(msg))
	sim, err := e.rpc.SimulateTransaction(ctx, unsigned)
	if err != nil {
		return "", fmt.Errorf("%s simulate: %w", leg, err)
	}
	if sim.Failed() {
		return "", &SimulationError{Leg: leg, Err: sim.Err, Logs: sim.Logs}
	}

	wire, sig, err := txbuild.SignTransaction(msg, e.signer)
	if err != nil {
		return "", fmt.Errorf("%s sign: %w", leg, err)
	}

	sent, err := e.rpc.SendTransaction(ctx, base64.StdEncoding.EncodeToString(wire))
	if err != nil {
		return "", fmt.Errorf("%s send: %w", leg, err)
	}
	if sent != "" {
		sig = sent
	}

	if err := e.confirm(ctx, leg, sig); err != nil {
		return "", err
	}
	return sig, nil
}

// confirm polls signature status until confirmed, errored, or timeout.
func (e *Engine) confirm(ctx context.Context, leg, sig string) error {
	deadline := e.now().Add(e.cfg.ConfirmTimeout)
	for {
		statuses, err := e.rpc.GetSignatureStatuses(ctx, []string{sig})
		if err == nil && len(statuses) == 1 {
			st := statuses[0]
			if st != nil && st.Err != nil {
				return &ConfirmationError{Leg: leg, Signature: sig, Err: st.Err}
			}
			if st.Confirmed() {
				return nil
			}
		}
		if e.now().After(deadline) {
			return &ConfirmationError{Leg: leg, Signature: sig}
		}
		if err := e.sleep(ctx, e.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// tokenBalance reads the wallet's token account balance for mint.
func (e *Engine) tokenBalance(ctx context.Context, mint string) (uint64, error) {
	mintPk, err := txbuild.PubkeyFromBase58(mint)
	if err != nil {
		return 0, err
	}
	tokenProgram, err := txbuild.TokenProgramForMint(ctx, rpcFetcher{e.rpc}, mint)
	if err != nil {
		return 0, err
	}
	ata, err := txbuild.AssociatedTokenAddress(e.signer.Pubkey(), mintPk, tokenProgram)
	if err != nil {
		return 0, err
	}

	info, err := e.rpc.GetAccountInfo(ctx, ata.String())
	if err != nil {
		return 0, err
	}
	if info == nil {
		return 0, fmt.Errorf("token account %s not found", ata)
	}
	raw, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return 0, err
	}
	if len(raw) < 72 {
		return 0, fmt.Errorf("token account %s: short data", ata)
	}
	return binary.LittleEndian.Uint64(raw[64:72]), nil
}

// rpcFetcher adapts the RPC client to the builder's fetch interface.
type rpcFetcher struct {
	rpc solana.RPCClient
}

func (f rpcFetcher) GetAccountInfo(ctx context.Context, pk string) (*solana.AccountInfo, error) {
	return f.rpc.GetAccountInfo(ctx, pk)
}

func (f rpcFetcher) GetMultipleAccounts(ctx context.Context, pks []string) ([]*solana.AccountInfo, error) {
	return f.rpc.GetMultipleAccounts(ctx, pks)
}
