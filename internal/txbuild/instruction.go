package txbuild

// AccountMeta declares how an instruction touches one account.
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is one program invocation with its fixed account
// ordering and binary payload. Account order is part of the wire
// contract: the on-chain programs read accounts positionally.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Meta helpers keep builder account lists readable.
func meta(pk Pubkey) AccountMeta       { return AccountMeta{Pubkey: pk} }
func metaW(pk Pubkey) AccountMeta      { return AccountMeta{Pubkey: pk, IsWritable: true} }
func metaSigner(pk Pubkey) AccountMeta { return AccountMeta{Pubkey: pk, IsSigner: true} }
func metaSignerW(pk Pubkey) AccountMeta {
	return AccountMeta{Pubkey: pk, IsSigner: true, IsWritable: true}
}
