package txbuild

import (
	"context"
	"fmt"

	"solana-arb-lab/internal/pool"
)

// Anchor discriminators for the bonding-curve program.
var (
	pumpBuyDisc  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	pumpSellDisc = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// PumpFunFeeRecipient collects the protocol fee on every curve trade.
var PumpFunFeeRecipient = MustPubkey("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")

// pumpFunBuilder builds trades against pre-migration bonding curves.
// The curve holds native SOL, so the quote side never wraps.
type pumpFunBuilder struct{}

func (b *pumpFunBuilder) nativeQuote() bool { return true }

func (b *pumpFunBuilder) buildSwap(_ context.Context, p SwapParams) ([]Instruction, error) {
	m, ok := p.Pool.Meta.(pool.PumpFunMeta)
	if !ok {
		return nil, fmt.Errorf("pool %s: missing bonding-curve payload", p.Pool.Address)
	}

	bondingCurve, err := PubkeyFromBase58(p.Pool.Address)
	if err != nil {
		return nil, err
	}
	mint, err := PubkeyFromBase58(p.Pool.BaseMint)
	if err != nil {
		return nil, err
	}
	creator, err := PubkeyFromBase58(m.Creator)
	if err != nil {
		return nil, err
	}

	global, _, err := FindProgramAddress([][]byte{[]byte("global")}, PumpFunProgram)
	if err != nil {
		return nil, err
	}
	creatorVault, _, err := FindProgramAddress(
		[][]byte{[]byte("creator-vault"), creator[:]}, PumpFunProgram)
	if err != nil {
		return nil, err
	}
	eventAuthority, _, err := FindProgramAddress(
		[][]byte{[]byte("__event_authority")}, PumpFunProgram)
	if err != nil {
		return nil, err
	}

	// Curve tokens always live under the legacy token program.
	associatedBondingCurve, err := AssociatedTokenAddress(bondingCurve, mint, TokenProgram)
	if err != nil {
		return nil, err
	}
	associatedUser, err := AssociatedTokenAddress(p.User, mint, TokenProgram)
	if err != nil {
		return nil, err
	}

	buy := p.Direction == pool.QuoteIn

	var data []byte
	if buy {
		// buy(amount: target tokens out, max_sol_cost)
		data = append([]byte(nil), pumpBuyDisc...)
		data = appendU64(data, p.ExpectedOut)
		data = appendU64(data, p.AmountIn)
	} else {
		// sell(amount: tokens in, min_sol_output)
		data = append([]byte(nil), pumpSellDisc...)
		data = appendU64(data, p.AmountIn)
		data = appendU64(data, p.MinOut)
	}

	accounts := []AccountMeta{
		meta(global),
		metaW(PumpFunFeeRecipient),
		meta(mint),
		metaW(bondingCurve),
		metaW(associatedBondingCurve),
		metaW(associatedUser),
		metaSignerW(p.User),
		meta(SystemProgram),
	}
	if buy {
		accounts = append(accounts,
			meta(TokenProgram),
			metaW(creatorVault),
		)
	} else {
		accounts = append(accounts,
			metaW(creatorVault),
			meta(TokenProgram),
		)
	}
	accounts = append(accounts,
		meta(eventAuthority),
		meta(PumpFunProgram),
	)

	ix := Instruction{
		ProgramID: PumpFunProgram,
		Accounts:  accounts,
		Data:      data,
	}

	return []Instruction{ix}, nil
}
