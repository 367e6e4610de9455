package txbuild

import "encoding/binary"

// Compute-budget instruction tags.
const (
	computeBudgetSetLimit = 2
	computeBudgetSetPrice = 3
)

// SPL token instruction tags used by the preamble.
const (
	tokenIxCloseAccount = 9
	tokenIxSyncNative   = 17
)

// systemIxTransfer is the system-program transfer tag (u32 LE).
const systemIxTransfer = 2

// SetComputeUnitLimit caps the compute units of the transaction.
func SetComputeUnitLimit(units uint32) Instruction {
	data := make([]byte, 5)
	data[0] = computeBudgetSetLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}

// SetComputeUnitPrice sets the priority fee in micro-lamports per unit.
func SetComputeUnitPrice(microLamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = computeBudgetSetPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return Instruction{ProgramID: ComputeBudgetProgram, Data: data}
}

// SystemTransfer moves lamports between system accounts.
func SystemTransfer(from, to Pubkey, lamports uint64) Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], systemIxTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	return Instruction{
		ProgramID: SystemProgram,
		Accounts: []AccountMeta{
			metaSignerW(from),
			metaW(to),
		},
		Data: data,
	}
}

// CreateATAIdempotent creates the associated token account if it does
// not exist yet; a no-op when it already does (instruction tag 1).
func CreateATAIdempotent(payer, ata, owner, mint, tokenProgram Pubkey) Instruction {
	return Instruction{
		ProgramID: AssociatedTokenProgram,
		Accounts: []AccountMeta{
			metaSignerW(payer),
			metaW(ata),
			meta(owner),
			meta(mint),
			meta(SystemProgram),
			meta(tokenProgram),
		},
		Data: []byte{1},
	}
}

// SyncNative updates a wrapped-SOL token account balance after a
// lamport transfer into it.
func SyncNative(account Pubkey) Instruction {
	return Instruction{
		ProgramID: TokenProgram,
		Accounts:  []AccountMeta{metaW(account)},
		Data:      []byte{tokenIxSyncNative},
	}
}

// CloseAccount closes a token account, unwrapping any wrapped SOL back
// to the owner.
func CloseAccount(account, dest, owner Pubkey) Instruction {
	return Instruction{
		ProgramID: TokenProgram,
		Accounts: []AccountMeta{
			metaW(account),
			metaW(dest),
			metaSigner(owner),
		},
		Data: []byte{tokenIxCloseAccount},
	}
}

// appendU64 appends a little-endian u64 to an instruction payload.
func appendU64(data []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(data, b[:]...)
}

// appendU128 appends a little-endian u128 from (lo, hi) limbs.
func appendU128(data []byte, lo, hi uint64) []byte {
	data = appendU64(data, lo)
	return appendU64(data, hi)
}
