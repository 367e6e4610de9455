package txbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetComputeUnitLimitPayload(t *testing.T) {
	ix := SetComputeUnitLimit(400_000)
	assert.Equal(t, ComputeBudgetProgram, ix.ProgramID)
	assert.Empty(t, ix.Accounts)
	// tag 2, then 400000 = 0x00061a80 little-endian
	assert.Equal(t, []byte{2, 0x80, 0x1a, 0x06, 0x00}, ix.Data)
}

func TestSetComputeUnitPricePayload(t *testing.T) {
	ix := SetComputeUnitPrice(10_000)
	assert.Equal(t, ComputeBudgetProgram, ix.ProgramID)
	// tag 3, then 10000 = 0x2710 little-endian u64
	assert.Equal(t, []byte{3, 0x10, 0x27, 0, 0, 0, 0, 0, 0}, ix.Data)
}

func TestSystemTransferPayload(t *testing.T) {
	from, to := testKey(1), testKey(2)
	ix := SystemTransfer(from, to, 1_000_000)

	assert.Equal(t, SystemProgram, ix.ProgramID)
	require.Len(t, ix.Accounts, 2)
	assert.True(t, ix.Accounts[0].IsSigner)
	assert.True(t, ix.Accounts[0].IsWritable)
	assert.Equal(t, to, ix.Accounts[1].Pubkey)
	assert.False(t, ix.Accounts[1].IsSigner)

	// tag 2 u32 LE, then 1000000 = 0x000f4240 LE u64
	assert.Equal(t, []byte{2, 0, 0, 0, 0x40, 0x42, 0x0f, 0, 0, 0, 0, 0}, ix.Data)
}

func TestCreateATAIdempotentLayout(t *testing.T) {
	payer, ata, owner, mint := testKey(1), testKey(2), testKey(3), testKey(4)
	ix := CreateATAIdempotent(payer, ata, owner, mint, TokenProgram)

	assert.Equal(t, AssociatedTokenProgram, ix.ProgramID)
	assert.Equal(t, []byte{1}, ix.Data)
	require.Len(t, ix.Accounts, 6)
	assert.Equal(t, payer, ix.Accounts[0].Pubkey)
	assert.True(t, ix.Accounts[0].IsSigner)
	assert.Equal(t, ata, ix.Accounts[1].Pubkey)
	assert.True(t, ix.Accounts[1].IsWritable)
	assert.Equal(t, SystemProgram, ix.Accounts[4].Pubkey)
	assert.Equal(t, TokenProgram, ix.Accounts[5].Pubkey)
}

func TestSyncNativeAndCloseAccountPayloads(t *testing.T) {
	acct, owner := testKey(1), testKey(2)

	sync := SyncNative(acct)
	assert.Equal(t, TokenProgram, sync.ProgramID)
	assert.Equal(t, []byte{17}, sync.Data)
	require.Len(t, sync.Accounts, 1)
	assert.True(t, sync.Accounts[0].IsWritable)

	closeIx := CloseAccount(acct, owner, owner)
	assert.Equal(t, []byte{9}, closeIx.Data)
	require.Len(t, closeIx.Accounts, 3)
	assert.True(t, closeIx.Accounts[2].IsSigner)
}
