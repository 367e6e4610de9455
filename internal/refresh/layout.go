package refresh

import (
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"

	"solana-arb-lab/internal/pool"
)

// SPL token account layout: mint(32) owner(32) amount(8) ...
const (
	tokenAccountLen       = 165
	tokenAccountAmountOff = 64
)

// decodeTokenAmount reads the balance of an SPL token account.
func decodeTokenAmount(data []byte) (uint64, error) {
	if len(data) < tokenAccountLen {
		return 0, fmt.Errorf("token account too short: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[tokenAccountAmountOff:]), nil
}

// Bonding-curve account layout: discriminator(8), then five u64
// reserve fields, a completion flag, and the creator key.
const bondingCurveLen = 8 + 5*8 + 1 + 32

// decodeBondingCurve parses the curve state into the venue payload.
func decodeBondingCurve(data []byte) (pool.PumpFunMeta, error) {
	if len(data) < bondingCurveLen {
		return pool.PumpFunMeta{}, fmt.Errorf("bonding curve too short: %d bytes", len(data))
	}
	u64 := func(off int) uint64 { return binary.LittleEndian.Uint64(data[off:]) }
	return pool.PumpFunMeta{
		VirtualTokenReserves: u64(8),
		VirtualSolReserves:   u64(16),
		RealTokenReserves:    u64(24),
		RealSolReserves:      u64(32),
		Complete:             data[48] != 0,
		Creator:              base58.Encode(data[49 : 49+32]),
	}, nil
}

// Concentrated pool state offsets: discriminator(8) bump(1) config(32)
// owner(32) mints(2x32) vaults(2x32) observation(32) decimals(2x1)
// tick_spacing(2) liquidity(16) sqrt_price_x64(16) tick_current(4).
const (
	clmmSqrtPriceOff = 253
	clmmTickOff      = 269
	clmmStateMinLen  = clmmTickOff + 4
)

// clmmState is the live pricing slice of the concentrated pool state.
type clmmState struct {
	SqrtPriceX64 pool.Uint128
	TickCurrent  int32
}

func decodeCLMMState(data []byte) (clmmState, error) {
	if len(data) < clmmStateMinLen {
		return clmmState{}, fmt.Errorf("pool state too short: %d bytes", len(data))
	}
	return clmmState{
		SqrtPriceX64: pool.Uint128{
			Lo: binary.LittleEndian.Uint64(data[clmmSqrtPriceOff:]),
			Hi: binary.LittleEndian.Uint64(data[clmmSqrtPriceOff+8:]),
		},
		TickCurrent: int32(binary.LittleEndian.Uint32(data[clmmTickOff:])),
	}, nil
}
