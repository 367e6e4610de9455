package txbuild

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"solana-arb-lab/internal/pool"
)

// clmmSwapDisc is the 8-byte discriminator of the concentrated swap,
// sha256("global:swap")[:8].
var clmmSwapDisc = []byte{248, 198, 158, 145, 225, 117, 135, 200}

// ticksPerArray is the fixed tick count each tick-array account covers.
const ticksPerArray = 88

// Sqrt price bounds in Q64.64. The swap passes bound+1 / bound-1 as the
// price limit so the program sweeps the full range.
var (
	clmmMinSqrtPriceX64 = new(big.Int).SetUint64(4295048016)
	clmmMaxSqrtPriceX64 = mustBig("79226673515401279992447579055")
)

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("invalid big integer literal: " + s)
	}
	return v
}

// tickArrayStart returns the start index of the array containing tick,
// flooring toward negative infinity.
func tickArrayStart(tick int32, spacing uint16) int32 {
	span := int32(spacing) * ticksPerArray
	start := tick / span
	if tick < 0 && tick%span != 0 {
		start--
	}
	return start * span
}

// tickArrayAddress derives the tick-array account for a start index.
func tickArrayAddress(poolPk Pubkey, start int32) (Pubkey, error) {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(start))
	pk, _, err := FindProgramAddress(
		[][]byte{[]byte("tick_array"), poolPk[:], idx[:]}, RaydiumCLMMProgram)
	return pk, err
}

// u128LE renders a non-negative big integer as 16 little-endian bytes.
func u128LE(v *big.Int) []byte {
	var be [16]byte
	v.FillBytes(be[:])
	le := make([]byte, 16)
	for i := range be {
		le[i] = be[15-i]
	}
	return le
}

// raydiumCLMMBuilder builds swaps against the concentrated-liquidity
// venue. Crossing arrays must exist on chain before the swap runs.
type raydiumCLMMBuilder struct {
	fetcher AccountFetcher
}

func (b *raydiumCLMMBuilder) nativeQuote() bool { return false }

func (b *raydiumCLMMBuilder) buildSwap(ctx context.Context, p SwapParams) ([]Instruction, error) {
	m, ok := p.Pool.Meta.(pool.CLMMMeta)
	if !ok {
		return nil, fmt.Errorf("pool %s: missing CLMM payload", p.Pool.Address)
	}
	if m.TickSpacing == 0 {
		return nil, fmt.Errorf("pool %s: zero tick spacing", p.Pool.Address)
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
	observation, err := PubkeyFromBase58(m.Observation)
	if err != nil {
		return nil, err
	}

	// Selling base pushes the price down, so the sweep walks toward
	// lower tick arrays; buying base walks upward.
	zeroForOne := p.Direction == pool.BaseIn
	span := int32(m.TickSpacing) * ticksPerArray
	step := span
	if zeroForOne {
		step = -span
	}

	start := tickArrayStart(m.TickCurrent, m.TickSpacing)
	tickArrays := make([]Pubkey, 0, 3)
	tickArrayAddrs := make([]string, 0, 3)
	for i := int32(0); i < 3; i++ {
		pk, err := tickArrayAddress(poolPk, start+i*step)
		if err != nil {
			return nil, err
		}
		tickArrays = append(tickArrays, pk)
		tickArrayAddrs = append(tickArrayAddrs, pk.String())
	}

	infos, err := b.fetcher.GetMultipleAccounts(ctx, tickArrayAddrs)
	if err != nil {
		return nil, fmt.Errorf("fetch tick arrays for %s: %w", p.Pool.Address, err)
	}
	for i, info := range infos {
		if info == nil {
			return nil, fmt.Errorf("%w: tick array %s", ErrMissingOnchainAccount, tickArrayAddrs[i])
		}
	}

	inputATA, _, err := userATA(ctx, b.fetcher, p.User, p.inMint())
	if err != nil {
		return nil, err
	}
	outputATA, _, err := userATA(ctx, b.fetcher, p.User, p.outMint())
	if err != nil {
		return nil, err
	}

	inputVault, outputVault := baseVault, quoteVault
	if !zeroForOne {
		inputVault, outputVault = quoteVault, baseVault
	}

	limit := new(big.Int).Add(clmmMinSqrtPriceX64, big.NewInt(1))
	if !zeroForOne {
		limit = new(big.Int).Sub(clmmMaxSqrtPriceX64, big.NewInt(1))
	}

	data := append([]byte(nil), clmmSwapDisc...)
	data = appendU64(data, p.AmountIn)
	data = appendU64(data, p.MinOut)
	data = append(data, u128LE(limit)...)
	data = append(data, 1) // is_base_input: exact-in semantics

	accounts := []AccountMeta{
		metaSigner(p.User),
		meta(config),
		metaW(poolPk),
		metaW(inputATA),
		metaW(outputATA),
		metaW(inputVault),
		metaW(outputVault),
		metaW(observation),
		meta(TokenProgram),
		metaW(tickArrays[0]),
	}
	if m.ExBitmap != "" {
		exBitmap, err := PubkeyFromBase58(m.ExBitmap)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, metaW(exBitmap))
	}
	accounts = append(accounts, metaW(tickArrays[1]), metaW(tickArrays[2]))

	ix := Instruction{
		ProgramID: RaydiumCLMMProgram,
		Accounts:  accounts,
		Data:      data,
	}

	return []Instruction{ix}, nil
}
