package refresh

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"solana-arb-lab/internal/solana"
)

// getMultipleAccountsLimit is the node-side batch cap.
const getMultipleAccountsLimit = 100

// AccountReader is the RPC slice the poller needs.
type AccountReader interface {
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*solana.AccountInfo, error)
}

// Poller refreshes every watched account on a fixed interval. It is
// the fallback path when the websocket stream lags or disconnects.
type Poller struct {
	rpc       AccountReader
	refresher *Refresher
	interval  time.Duration
	updates   prometheus.Counter
	logger    *zap.Logger
}

// NewPoller creates an account poller. updates counts every applied
// account refresh.
func NewPoller(rpc AccountReader, refresher *Refresher, interval time.Duration, updates prometheus.Counter, logger *zap.Logger) *Poller {
	return &Poller{
		rpc:       rpc,
		refresher: refresher,
		interval:  interval,
		updates:   updates,
		logger:    logger,
	}
}

// Run polls until the context is cancelled. The first sweep happens
// immediately so records are fresh before the first evaluation cycle.
func (p *Poller) Run(ctx context.Context) error {
	p.sweep(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Poller) sweep(ctx context.Context) {
	accounts := p.refresher.Accounts()
	for start := 0; start < len(accounts); start += getMultipleAccountsLimit {
		end := start + getMultipleAccountsLimit
		if end > len(accounts) {
			end = len(accounts)
		}
		batch := accounts[start:end]

		infos, err := p.rpc.GetMultipleAccounts(ctx, batch)
		if err != nil {
			p.logger.Warn("account sweep failed", zap.Error(err), zap.Int("batch", len(batch)))
			return
		}
		for i, info := range infos {
			if info == nil {
				p.logger.Warn("watched account missing", zap.String("account", batch[i]))
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(info.Data)
			if err != nil {
				p.logger.Warn("undecodable account data", zap.String("account", batch[i]), zap.Error(err))
				continue
			}
			if err := p.refresher.Apply(batch[i], raw); err != nil {
				p.logger.Warn("refresh apply failed", zap.String("account", batch[i]), zap.Error(err))
				continue
			}
			p.updates.Inc()
		}
	}
}
