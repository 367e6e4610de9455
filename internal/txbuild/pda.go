package txbuild

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// pdaMarker is appended to the hash input of every program-derived
// address, per the Solana runtime convention.
var pdaMarker = []byte("ProgramDerivedAddress")

// ErrInvalidSeeds is returned when seeds hash onto the ed25519 curve
// and therefore cannot form a program-derived address.
var ErrInvalidSeeds = errors.New("seeds produce an on-curve point")

// CreateProgramAddress derives the address for an exact seed set.
// Fails if the result lands on the curve; callers that control the
// bump (vault signers with a stored nonce) use this directly.
func CreateProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, error) {
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > 32 {
			return Pubkey{}, fmt.Errorf("seed too long: %d bytes", len(seed))
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write(pdaMarker)

	var pk Pubkey
	copy(pk[:], h.Sum(nil))
	if isOnCurve(pk[:]) {
		return Pubkey{}, ErrInvalidSeeds
	}
	return pk, nil
}

// FindProgramAddress searches bump seeds from 255 downward for the
// first off-curve address, returning the address and the bump used.
func FindProgramAddress(seeds [][]byte, program Pubkey) (Pubkey, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		full := make([][]byte, len(seeds), len(seeds)+1)
		copy(full, seeds)
		full = append(full, []byte{byte(bump)})

		pk, err := CreateProgramAddress(full, program)
		if err == nil {
			return pk, uint8(bump), nil
		}
	}
	return Pubkey{}, 0, fmt.Errorf("no valid bump for seeds")
}

// AssociatedTokenAddress derives the canonical token account of owner
// for mint under the given token program (legacy or Token-2022).
func AssociatedTokenAddress(owner, mint, tokenProgram Pubkey) (Pubkey, error) {
	pk, _, err := FindProgramAddress(
		[][]byte{owner[:], tokenProgram[:], mint[:]},
		AssociatedTokenProgram,
	)
	if err != nil {
		return Pubkey{}, fmt.Errorf("derive token account for %s: %w", mint, err)
	}
	return pk, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
