// Package pool defines the venue-tagged liquidity pool model and the
// in-memory registry the evaluation loop reads from.
package pool

import "fmt"

// Venue identifies the on-chain program a pool belongs to.
type Venue int

const (
	VenueRaydiumAMM  Venue = iota // constant product with external order book
	VenueRaydiumCPMM              // self-contained constant product
	VenueRaydiumCLMM              // concentrated liquidity
	VenuePumpFun                  // bonding curve
	VenuePumpSwap                 // constant product with external fee program
)

// String returns the venue name used in logs and dedup keys.
func (v Venue) String() string {
	switch v {
	case VenueRaydiumAMM:
		return "raydium-amm"
	case VenueRaydiumCPMM:
		return "raydium-cpmm"
	case VenueRaydiumCLMM:
		return "raydium-clmm"
	case VenuePumpFun:
		return "pumpfun"
	case VenuePumpSwap:
		return "pumpswap"
	default:
		return fmt.Sprintf("venue(%d)", int(v))
	}
}

// Kind is the pricing model family a venue implements.
type Kind int

const (
	KindConstantProduct Kind = iota
	KindConstantProductExternalBook
	KindConcentratedLiquidity
	KindBondingCurve
)

// Kind returns the pricing model for the venue.
func (v Venue) Kind() Kind {
	switch v {
	case VenueRaydiumAMM:
		return KindConstantProductExternalBook
	case VenueRaydiumCLMM:
		return KindConcentratedLiquidity
	case VenuePumpFun:
		return KindBondingCurve
	default:
		return KindConstantProduct
	}
}

// Direction selects which side of the pair is the input token.
type Direction int

const (
	// BaseIn sells base for quote.
	BaseIn Direction = iota
	// QuoteIn sells quote for base.
	QuoteIn
)

// String returns the direction name used in logs.
func (d Direction) String() string {
	if d == BaseIn {
		return "base-in"
	}
	return "quote-in"
}

// Meta is the venue-specific payload of a Record. The set of
// implementations is closed; each venue carries exactly one shape.
type Meta interface {
	venue() Venue
}

// RaydiumAMMMeta carries the Raydium AMM v4 account set. The linked
// order-book market is resolved at build time from MarketID.
type RaydiumAMMMeta struct {
	BaseVault     string
	QuoteVault    string
	OpenOrders    string
	TargetOrders  string
	MarketID      string
	MarketProgram string
}

func (RaydiumAMMMeta) venue() Venue { return VenueRaydiumAMM }

// CPMMMeta carries the Raydium CPMM account set.
type CPMMMeta struct {
	Config     string
	BaseVault  string
	QuoteVault string
}

func (CPMMMeta) venue() Venue { return VenueRaydiumCPMM }

// CLMMMeta carries the concentrated-liquidity pool state. SqrtPriceX64
// is the fixed-point sqrt price scaled by 2^64; the quote engine only
// prices within the currently active tick range.
type CLMMMeta struct {
	Config       string
	BaseVault    string
	QuoteVault   string
	Observation  string
	ExBitmap     string
	TickSpacing  uint16
	TickCurrent  int32
	SqrtPriceX64 Uint128
}

func (CLMMMeta) venue() Venue { return VenueRaydiumCLMM }

// PumpFunMeta carries the bonding-curve state. Virtual reserves move
// along the curve as cumulative volume changes; real reserves back
// withdrawals after migration.
type PumpFunMeta struct {
	Creator              string
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	Complete             bool
}

func (PumpFunMeta) venue() Venue { return VenuePumpFun }

// PumpSwapMeta carries the pump AMM account set, including the protocol
// fee destination that lives outside the pool program.
type PumpSwapMeta struct {
	GlobalConfig         string
	BaseVault            string
	QuoteVault           string
	ProtocolFeeRecipient string
}

func (PumpSwapMeta) venue() Venue { return VenuePumpSwap }

// Record describes one liquidity source. Reserves are raw integer base
// units. A Record is mutated only through Registry.Upsert; readers get
// copies via Snapshot.
type Record struct {
	Address       string // base58 pool account
	Venue         Venue
	BaseMint      string
	QuoteMint     string
	BaseReserve   uint64
	QuoteReserve  uint64
	FeeBps        uint16
	BaseDecimals  uint8
	QuoteDecimals uint8
	UpdatedAt     int64 // unix ms, monotonic per pool
	Meta          Meta
}

// Validate checks structural invariants: the payload shape must match
// the venue tag and the pair must be fully specified.
func (r *Record) Validate() error {
	if r.Address == "" {
		return fmt.Errorf("pool %s: empty address", r.Venue)
	}
	if r.BaseMint == "" || r.QuoteMint == "" {
		return fmt.Errorf("pool %s: incomplete mint pair", r.Address)
	}
	if r.Meta == nil {
		return fmt.Errorf("pool %s: missing venue payload", r.Address)
	}
	if got := r.Meta.venue(); got != r.Venue {
		return fmt.Errorf("pool %s: payload for %s does not match venue %s", r.Address, got, r.Venue)
	}
	return nil
}

// Uint128 is a little-endian pair of 64-bit limbs, enough for Q64.64
// sqrt prices without pulling in big.Int at the model layer.
type Uint128 struct {
	Lo uint64
	Hi uint64
}

// IsZero reports whether both limbs are zero.
func (u Uint128) IsZero() bool { return u.Lo == 0 && u.Hi == 0 }
