package txbuild

import (
	"context"
	"errors"
	"fmt"

	"solana-arb-lab/internal/pool"
	"solana-arb-lab/internal/solana"
)

// ErrMissingOnchainAccount is returned when an account the swap
// instruction requires (market blob, tick array) does not exist.
var ErrMissingOnchainAccount = errors.New("required on-chain account is missing")

// ErrUnsupportedVenue is returned for a venue with no registered builder.
var ErrUnsupportedVenue = errors.New("no instruction builder for venue")

// AccountFetcher is the read-only RPC surface builders use to resolve
// linked accounts (order-book blobs, mint owners, tick arrays).
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*solana.AccountInfo, error)
}

// SwapParams describes one leg to build.
type SwapParams struct {
	Pool      pool.Record
	Direction pool.Direction
	AmountIn  uint64
	// MinOut is the on-chain minimum-out bound. Kept at 0: slippage is
	// handled by pre-submission simulation, not by on-chain reverts.
	MinOut uint64
	// ExpectedOut is the quoted output, used by venues whose payload
	// encodes the target amount rather than the input (pump.fun buy).
	ExpectedOut uint64
	User        Pubkey
}

// inMint returns the input mint for the direction.
func (p *SwapParams) inMint() string {
	if p.Direction == pool.BaseIn {
		return p.Pool.BaseMint
	}
	return p.Pool.QuoteMint
}

// outMint returns the output mint for the direction.
func (p *SwapParams) outMint() string {
	if p.Direction == pool.BaseIn {
		return p.Pool.QuoteMint
	}
	return p.Pool.BaseMint
}

// venueBuilder builds the venue-specific swap instructions. The
// closed set of implementations mirrors the venue enum; dispatch goes
// through the Builder table, never a runtime type switch.
type venueBuilder interface {
	// buildSwap returns the swap instructions for one leg. The user's
	// token accounts are assumed to exist; the common preamble
	// guarantees that.
	buildSwap(ctx context.Context, p SwapParams) ([]Instruction, error)

	// nativeQuote reports whether the venue spends/receives native SOL
	// directly instead of a wrapped-SOL token account.
	nativeQuote() bool
}

// Builder assembles complete instruction lists: compute budget,
// account preamble, venue swap, unwrap postamble.
type Builder struct {
	fetcher AccountFetcher
	table   map[pool.Venue]venueBuilder

	computeUnitLimit uint32
	computeUnitPrice uint64
}

// NewBuilder creates a builder with all five venue variants registered.
func NewBuilder(fetcher AccountFetcher, computeUnitLimit uint32, computeUnitPrice uint64) *Builder {
	b := &Builder{
		fetcher:          fetcher,
		computeUnitLimit: computeUnitLimit,
		computeUnitPrice: computeUnitPrice,
	}
	b.table = map[pool.Venue]venueBuilder{
		pool.VenueRaydiumAMM:  &raydiumAMMBuilder{fetcher: fetcher},
		pool.VenueRaydiumCPMM: &raydiumCPMMBuilder{fetcher: fetcher},
		pool.VenueRaydiumCLMM: &raydiumCLMMBuilder{fetcher: fetcher},
		pool.VenuePumpFun:     &pumpFunBuilder{},
		pool.VenuePumpSwap:    &pumpSwapBuilder{fetcher: fetcher},
	}
	return b
}

// BuildSwap assembles the full instruction list for one leg.
func (b *Builder) BuildSwap(ctx context.Context, p SwapParams) ([]Instruction, error) {
	vb, ok := b.table[p.Pool.Venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVenue, p.Pool.Venue)
	}

	ixs := []Instruction{
		SetComputeUnitLimit(b.computeUnitLimit),
		SetComputeUnitPrice(b.computeUnitPrice),
	}

	pre, post, err := b.buildAccountPrePost(ctx, p, vb.nativeQuote())
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, pre...)

	swap, err := vb.buildSwap(ctx, p)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, swap...)
	ixs = append(ixs, post...)

	return ixs, nil
}

// buildAccountPrePost ensures both token accounts exist, wraps native
// SOL on the input side, and unwraps it on the output side.
func (b *Builder) buildAccountPrePost(ctx context.Context, p SwapParams, nativeQuote bool) (pre, post []Instruction, err error) {
	wsol := WSOLMint.String()

	for _, m := range []string{p.inMint(), p.outMint()} {
		if nativeQuote && m == wsol {
			// Venue trades native SOL: no wrapped account needed.
			continue
		}
		mint, err := PubkeyFromBase58(m)
		if err != nil {
			return nil, nil, err
		}
		tokenProgram, err := TokenProgramForMint(ctx, b.fetcher, m)
		if err != nil {
			return nil, nil, err
		}
		ata, err := AssociatedTokenAddress(p.User, mint, tokenProgram)
		if err != nil {
			return nil, nil, err
		}
		pre = append(pre, CreateATAIdempotent(p.User, ata, p.User, mint, tokenProgram))

		if m != wsol {
			continue
		}
		if m == p.inMint() {
			pre = append(pre,
				SystemTransfer(p.User, ata, p.AmountIn),
				SyncNative(ata),
			)
		}
		if m == p.outMint() {
			post = append(post, CloseAccount(ata, p.User, p.User))
		}
	}

	return pre, post, nil
}

// TokenProgramForMint inspects mint ownership to select the legacy or
// Token-2022 interface. Wrapped SOL short-circuits to the legacy
// program without an RPC round trip.
func TokenProgramForMint(ctx context.Context, fetcher AccountFetcher, mint string) (Pubkey, error) {
	if mint == WSOLMint.String() {
		return TokenProgram, nil
	}
	info, err := fetcher.GetAccountInfo(ctx, mint)
	if err != nil {
		return Pubkey{}, fmt.Errorf("fetch mint %s: %w", mint, err)
	}
	if info == nil {
		return Pubkey{}, fmt.Errorf("%w: mint %s", ErrMissingOnchainAccount, mint)
	}
	if info.Owner == Token2022Program.String() {
		return Token2022Program, nil
	}
	return TokenProgram, nil
}

// userATA derives the user's token account for a base58 mint under
// the detected token program.
func userATA(ctx context.Context, fetcher AccountFetcher, user Pubkey, mint string) (Pubkey, Pubkey, error) {
	mintPk, err := PubkeyFromBase58(mint)
	if err != nil {
		return Pubkey{}, Pubkey{}, err
	}
	tokenProgram, err := TokenProgramForMint(ctx, fetcher, mint)
	if err != nil {
		return Pubkey{}, Pubkey{}, err
	}
	ata, err := AssociatedTokenAddress(user, mintPk, tokenProgram)
	if err != nil {
		return Pubkey{}, Pubkey{}, err
	}
	return ata, tokenProgram, nil
}
