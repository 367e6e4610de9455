package txbuild

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"solana-arb-lab/internal/pool"
)

// raydiumAMMSwapBaseIn is the fixed-layout opcode for a swap that
// specifies the exact input amount.
const raydiumAMMSwapBaseIn = 9

// serumMarketLen is the byte length of an order-book market blob.
const serumMarketLen = 388

// serumMarket is the slice of the order-book market blob the swap
// instruction needs. Offsets follow the fixed market state layout:
// 5 bytes padding, then accountFlags(8) ownAddress(32)
// vaultSignerNonce(8) baseMint(32) quoteMint(32) baseVault(32)
// baseDepositsTotal(8) baseFeesAccrued(8) quoteVault(32) ...
type serumMarket struct {
	VaultSignerNonce uint64
	BaseVault        Pubkey
	QuoteVault       Pubkey
	RequestQueue     Pubkey
	EventQueue       Pubkey
	Bids             Pubkey
	Asks             Pubkey
}

func parseSerumMarket(data []byte) (*serumMarket, error) {
	if len(data) < serumMarketLen {
		return nil, fmt.Errorf("market blob too short: %d bytes", len(data))
	}
	read32 := func(off int) Pubkey {
		var pk Pubkey
		copy(pk[:], data[off:off+32])
		return pk
	}
	return &serumMarket{
		VaultSignerNonce: binary.LittleEndian.Uint64(data[45:53]),
		BaseVault:        read32(117),
		QuoteVault:       read32(165),
		RequestQueue:     read32(221),
		EventQueue:       read32(253),
		Bids:             read32(285),
		Asks:             read32(317),
	}, nil
}

// raydiumAMMBuilder builds swaps against the constant-product AMM
// whose liquidity is linked to an external order book.
type raydiumAMMBuilder struct {
	fetcher AccountFetcher
}

func (b *raydiumAMMBuilder) nativeQuote() bool { return false }

func (b *raydiumAMMBuilder) buildSwap(ctx context.Context, p SwapParams) ([]Instruction, error) {
	m, ok := p.Pool.Meta.(pool.RaydiumAMMMeta)
	if !ok {
		return nil, fmt.Errorf("pool %s: missing AMM payload", p.Pool.Address)
	}

	info, err := b.fetcher.GetAccountInfo(ctx, m.MarketID)
	if err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", m.MarketID, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: market %s", ErrMissingOnchainAccount, m.MarketID)
	}
	blob, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return nil, fmt.Errorf("decode market %s: %w", m.MarketID, err)
	}
	market, err := parseSerumMarket(blob)
	if err != nil {
		return nil, fmt.Errorf("parse market %s: %w", m.MarketID, err)
	}

	marketPk, err := PubkeyFromBase58(m.MarketID)
	if err != nil {
		return nil, err
	}
	marketProgram, err := PubkeyFromBase58(m.MarketProgram)
	if err != nil {
		return nil, err
	}

	// The vault signer is derived from the nonce the market stores, not
	// searched: the market creator fixed the bump at listing time.
	var nonce [8]byte
	binary.LittleEndian.PutUint64(nonce[:], market.VaultSignerNonce)
	vaultSigner, err := CreateProgramAddress([][]byte{marketPk[:], nonce[:]}, marketProgram)
	if err != nil {
		return nil, fmt.Errorf("derive vault signer for %s: %w", m.MarketID, err)
	}

	authority, _, err := FindProgramAddress([][]byte{[]byte("amm authority")}, RaydiumAMMProgram)
	if err != nil {
		return nil, err
	}

	ammID, err := PubkeyFromBase58(p.Pool.Address)
	if err != nil {
		return nil, err
	}
	openOrders, err := PubkeyFromBase58(m.OpenOrders)
	if err != nil {
		return nil, err
	}
	targetOrders, err := PubkeyFromBase58(m.TargetOrders)
	if err != nil {
		return nil, err
	}
	poolBaseVault, err := PubkeyFromBase58(m.BaseVault)
	if err != nil {
		return nil, err
	}
	poolQuoteVault, err := PubkeyFromBase58(m.QuoteVault)
	if err != nil {
		return nil, err
	}

	sourceATA, _, err := userATA(ctx, b.fetcher, p.User, p.inMint())
	if err != nil {
		return nil, err
	}
	destATA, _, err := userATA(ctx, b.fetcher, p.User, p.outMint())
	if err != nil {
		return nil, err
	}

	// opcode(1) | amountIn u64 LE | minAmountOut u64 LE
	data := []byte{raydiumAMMSwapBaseIn}
	data = appendU64(data, p.AmountIn)
	data = appendU64(data, p.MinOut)

	ix := Instruction{
		ProgramID: RaydiumAMMProgram,
		Accounts: []AccountMeta{
			meta(TokenProgram),
			metaW(ammID),
			meta(authority),
			metaW(openOrders),
			metaW(targetOrders),
			metaW(poolBaseVault),
			metaW(poolQuoteVault),
			meta(marketProgram),
			metaW(marketPk),
			metaW(market.Bids),
			metaW(market.Asks),
			metaW(market.EventQueue),
			metaW(market.BaseVault),
			metaW(market.QuoteVault),
			meta(vaultSigner),
			metaW(sourceATA),
			metaW(destATA),
			metaSigner(p.User),
		},
		Data: data,
	}

	return []Instruction{ix}, nil
}
