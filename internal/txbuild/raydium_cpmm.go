package txbuild

import (
	"context"
	"fmt"

	"solana-arb-lab/internal/pool"
)

// cpmmSwapBaseInputDisc is the 8-byte discriminator of the exact-input
// swap, sha256("global:swap_base_input")[:8].
var cpmmSwapBaseInputDisc = []byte{143, 190, 90, 218, 196, 30, 51, 222}

// raydiumCPMMBuilder builds swaps against the standalone
// constant-product venue with program-derived vault authority.
type raydiumCPMMBuilder struct {
	fetcher AccountFetcher
}

func (b *raydiumCPMMBuilder) nativeQuote() bool { return false }

func (b *raydiumCPMMBuilder) buildSwap(ctx context.Context, p SwapParams) ([]Instruction, error) {
	m, ok := p.Pool.Meta.(pool.CPMMMeta)
	if !ok {
		return nil, fmt.Errorf("pool %s: missing CPMM payload", p.Pool.Address)
	}

	poolPk, err := PubkeyFromBase58(p.Pool.Address)
	if err != nil {
		return nil, err
	}
	config, err := PubkeyFromBase58(m.Config)
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

	authority, _, err := FindProgramAddress(
		[][]byte{[]byte("vault_and_lp_mint_auth_seed")}, RaydiumCPMMProgram)
	if err != nil {
		return nil, err
	}
	observation, _, err := FindProgramAddress(
		[][]byte{[]byte("observation"), poolPk[:]}, RaydiumCPMMProgram)
	if err != nil {
		return nil, err
	}

	inputATA, inputTokenProgram, err := userATA(ctx, b.fetcher, p.User, p.inMint())
	if err != nil {
		return nil, err
	}
	outputATA, outputTokenProgram, err := userATA(ctx, b.fetcher, p.User, p.outMint())
	if err != nil {
		return nil, err
	}

	inputMint, err := PubkeyFromBase58(p.inMint())
	if err != nil {
		return nil, err
	}
	outputMint, err := PubkeyFromBase58(p.outMint())
	if err != nil {
		return nil, err
	}

	inputVault, outputVault := baseVault, quoteVault
	if p.Direction == pool.QuoteIn {
		inputVault, outputVault = quoteVault, baseVault
	}

	data := append([]byte(nil), cpmmSwapBaseInputDisc...)
	data = appendU64(data, p.AmountIn)
	data = appendU64(data, p.MinOut)

	ix := Instruction{
		ProgramID: RaydiumCPMMProgram,
		Accounts: []AccountMeta{
			metaSigner(p.User),
			meta(authority),
			meta(config),
			metaW(poolPk),
			metaW(inputATA),
			metaW(outputATA),
			metaW(inputVault),
			metaW(outputVault),
			meta(inputTokenProgram),
			meta(outputTokenProgram),
			meta(inputMint),
			meta(outputMint),
			metaW(observation),
		},
		Data: data,
	}

	return []Instruction{ix}, nil
}
