// Package wallet holds key custody and the lamport balance feed. The
// private key stays inside this package; everything else sees only the
// Signer interface.
package wallet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"solana-arb-lab/internal/txbuild"
)

// ErrBadKey is returned for key material of the wrong length.
var ErrBadKey = errors.New("private key must be a 32-byte seed or 64-byte keypair")

// Keypair is an ed25519 signing key implementing txbuild.Signer.
type Keypair struct {
	priv ed25519.PrivateKey
	pub  txbuild.Pubkey
}

// FromBase58 parses base58 key material. Both the 32-byte seed form
// and the 64-byte expanded form are accepted.
func FromBase58(encoded string) (*Keypair, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(raw)
	default:
		return nil, fmt.Errorf("%w: got %d bytes", ErrBadKey, len(raw))
	}

	var pub txbuild.Pubkey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{priv: priv, pub: pub}, nil
}

// Ephemeral generates a throwaway keypair, used as the fee payer when
// running without configured key material.
func Ephemeral() (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	var pub txbuild.Pubkey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &Keypair{priv: priv, pub: pub}, nil
}

// Pubkey returns the public key.
func (k *Keypair) Pubkey() txbuild.Pubkey { return k.pub }

// Sign signs the message bytes.
func (k *Keypair) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(k.priv, message), nil
}

// BalanceReader is the RPC slice the poller needs.
type BalanceReader interface {
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}

// BalanceSink receives fresh lamport balances with their read time.
type BalanceSink interface {
	SetBalance(lamports uint64, at time.Time)
}

// Poller periodically reads the wallet balance and pushes it to the
// sink. Read failures keep the last pushed value.
type Poller struct {
	rpc      BalanceReader
	sink     BalanceSink
	pubkey   string
	interval time.Duration
	logger   *zap.Logger
}

// NewPoller creates a balance poller.
func NewPoller(rpc BalanceReader, sink BalanceSink, pubkey string, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		rpc:      rpc,
		sink:     sink,
		pubkey:   pubkey,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until the context is cancelled. The first read happens
// immediately so the risk gate is seeded before the first cycle.
func (p *Poller) Run(ctx context.Context) error {
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	lamports, err := p.rpc.GetBalance(ctx, p.pubkey)
	if err != nil {
		p.logger.Warn("balance read failed", zap.Error(err))
		return
	}
	p.sink.SetBalance(lamports, time.Now())
	p.logger.Debug("balance updated", zap.Uint64("lamports", lamports))
}
