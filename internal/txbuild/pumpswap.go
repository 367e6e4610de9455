package txbuild

import (
	"context"
	"fmt"

	"solana-arb-lab/internal/pool"
)

// pumpSwapBuilder builds swaps against the post-migration AMM. It
// shares the buy/sell discriminators with the bonding-curve program
// but trades wrapped SOL through regular token accounts.
type pumpSwapBuilder struct {
	fetcher AccountFetcher
}

func (b *pumpSwapBuilder) nativeQuote() bool { return false }

func (b *pumpSwapBuilder) buildSwap(ctx context.Context, p SwapParams) ([]Instruction, error) {
	m, ok := p.Pool.Meta.(pool.PumpSwapMeta)
	if !ok {
		return nil, fmt.Errorf("pool %s: missing swap payload", p.Pool.Address)
	}

	poolPk, err := PubkeyFromBase58(p.Pool.Address)
	if err != nil {
		return nil, err
	}
	globalConfig, err := PubkeyFromBase58(m.GlobalConfig)
	if err != nil {
		return nil, err
	}
	baseVault, err := PubkeyFromBase58(m.BaseVault)
	if err != nil {
		return nil, err
	}
	quoteVault, err := PubkeyFromBase58(m.QuoteVault)
	if err != nil {
		return nil, err
	}
	protocolFeeRecipient, err := PubkeyFromBase58(m.ProtocolFeeRecipient)
	if err != nil {
		return nil, err
	}

	baseMint, err := PubkeyFromBase58(p.Pool.BaseMint)
	if err != nil {
		return nil, err
	}
	quoteMint, err := PubkeyFromBase58(p.Pool.QuoteMint)
	if err != nil {
		return nil, err
	}

	// Either side may be a Token-2022 mint; detect both.
	userBaseATA, baseTokenProgram, err := userATA(ctx, b.fetcher, p.User, p.Pool.BaseMint)
	if err != nil {
		return nil, err
	}
	userQuoteATA, quoteTokenProgram, err := userATA(ctx, b.fetcher, p.User, p.Pool.QuoteMint)
	if err != nil {
		return nil, err
	}

	feeRecipientATA, err := AssociatedTokenAddress(protocolFeeRecipient, quoteMint, quoteTokenProgram)
	if err != nil {
		return nil, err
	}

	eventAuthority, _, err := FindProgramAddress(
		[][]byte{[]byte("__event_authority")}, PumpSwapProgram)
	if err != nil {
		return nil, err
	}

	var data []byte
	if p.Direction == pool.QuoteIn {
		// buy(base_amount_out, max_quote_amount_in)
		data = append([]byte(nil), pumpBuyDisc...)
		data = appendU64(data, p.ExpectedOut)
		data = appendU64(data, p.AmountIn)
	} else {
		// sell(base_amount_in, min_quote_amount_out)
		data = append([]byte(nil), pumpSellDisc...)
		data = appendU64(data, p.AmountIn)
		data = appendU64(data, p.MinOut)
	}

	ix := Instruction{
		ProgramID: PumpSwapProgram,
		Accounts: []AccountMeta{
			meta(poolPk),
			metaSignerW(p.User),
			meta(globalConfig),
			meta(baseMint),
			meta(quoteMint),
			metaW(userBaseATA),
			metaW(userQuoteATA),
			metaW(baseVault),
			metaW(quoteVault),
			meta(protocolFeeRecipient),
			metaW(feeRecipientATA),
			meta(baseTokenProgram),
			meta(quoteTokenProgram),
			meta(SystemProgram),
			meta(AssociatedTokenProgram),
			meta(eventAuthority),
			meta(PumpSwapProgram),
		},
		Data: data,
	}

	return []Instruction{ix}, nil
}
