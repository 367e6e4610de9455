package refresh

import (
	"context"
	"encoding/base64"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-arb-lab/internal/solana"
)

// Subscriber streams account changes over websocket into the
// refresher, one subscription per watched account.
type Subscriber struct {
	ws        solana.WSClient
	refresher *Refresher
	updates   prometheus.Counter
	logger    *zap.Logger
}

// NewSubscriber creates a websocket subscriber. updates counts every
// applied account refresh.
func NewSubscriber(ws solana.WSClient, refresher *Refresher, updates prometheus.Counter, logger *zap.Logger) *Subscriber {
	return &Subscriber{ws: ws, refresher: refresher, updates: updates, logger: logger}
}

// Run subscribes to every watched account and consumes notifications
// until the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, account := range s.refresher.Accounts() {
		ch, err := s.ws.SubscribeAccount(ctx, account)
		if err != nil {
			return err
		}
		account := account
		g.Go(func() error {
			return s.consume(ctx, account, ch)
		})
	}

	return g.Wait()
}

func (s *Subscriber) consume(ctx context.Context, account string, ch <-chan solana.AccountNotification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			raw, err := base64.StdEncoding.DecodeString(n.Data)
			if err != nil {
				s.logger.Warn("undecodable notification", zap.String("account", account), zap.Error(err))
				continue
			}
			if err := s.refresher.Apply(account, raw); err != nil {
				s.logger.Warn("refresh apply failed", zap.String("account", account), zap.Error(err))
				continue
			}
			s.updates.Inc()
		}
	}
}
