package txbuild

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) Pubkey {
	var pk Pubkey
	pk[0] = b
	return pk
}

func TestWriteCompactU16(t *testing.T) {
	cases := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{300, []byte{0xac, 0x02}},
		{16384, []byte{0x80, 0x80, 0x01}},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		writeCompactU16(&buf, tc.n)
		assert.Equal(t, tc.want, buf.Bytes(), "n=%d", tc.n)
	}
}

func TestCompileMessageOrdersAccounts(t *testing.T) {
	feePayer := testKey(1)
	program := testKey(2)
	writable := testKey(3)
	readonly := testKey(4)
	roSigner := testKey(5)
	blockhash := testKey(9).String()

	ix := Instruction{
		ProgramID: program,
		Accounts: []AccountMeta{
			metaW(writable),
			meta(readonly),
			metaSigner(roSigner),
		},
		Data: []byte{0xaa},
	}

	msg, err := CompileMessage(feePayer, blockhash, []Instruction{ix})
	require.NoError(t, err)

	// writable signers, readonly signers, writable non-signers,
	// readonly non-signers
	require.Equal(t, []Pubkey{feePayer, roSigner, writable, program, readonly}, msg.AccountKeys())
	assert.Equal(t, 2, msg.NumRequiredSignatures())
	assert.Equal(t, uint8(1), msg.numReadonlySignedAccounts)
	assert.Equal(t, uint8(2), msg.numReadonlyUnsignedAccounts)
}

func TestCompileMessageMergesPrivileges(t *testing.T) {
	feePayer := testKey(1)
	program := testKey(2)
	shared := testKey(3)
	blockhash := testKey(9).String()

	ixs := []Instruction{
		{ProgramID: program, Accounts: []AccountMeta{meta(shared)}},
		{ProgramID: program, Accounts: []AccountMeta{metaW(shared)}},
	}

	msg, err := CompileMessage(feePayer, blockhash, ixs)
	require.NoError(t, err)

	// shared appears once, in the writable non-signer bucket
	require.Equal(t, []Pubkey{feePayer, shared, program}, msg.AccountKeys())
}

func TestSerializeRoundTripsHeader(t *testing.T) {
	feePayer := testKey(1)
	program := testKey(2)
	blockhash := testKey(9)

	ix := Instruction{
		ProgramID: program,
		Accounts:  []AccountMeta{metaSignerW(feePayer)},
		Data:      []byte{1, 2, 3},
	}

	msg, err := CompileMessage(feePayer, blockhash.String(), []Instruction{ix})
	require.NoError(t, err)

	raw := msg.Serialize()
	require.Equal(t, byte(1), raw[0]) // numRequiredSignatures
	require.Equal(t, byte(0), raw[1])
	require.Equal(t, byte(1), raw[2]) // program is readonly unsigned
	require.Equal(t, byte(2), raw[3]) // account count, compact-u16

	// 3 header + 1 count + 2*32 keys = blockhash offset
	assert.Equal(t, blockhash[:], raw[68:100])

	// one instruction: count, programIDIndex, account count, index,
	// data length, data
	assert.Equal(t, []byte{1, 1, 1, 0, 3, 1, 2, 3}, raw[100:])
}

type ed25519Signer struct {
	pub  Pubkey
	priv ed25519.PrivateKey
}

func (s *ed25519Signer) Pubkey() Pubkey { return s.pub }
func (s *ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

func newTestSigner(t *testing.T) *ed25519Signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var pk Pubkey
	copy(pk[:], pub)
	return &ed25519Signer{pub: pk, priv: priv}
}

func TestSignTransactionWireFormat(t *testing.T) {
	signer := newTestSigner(t)
	program := testKey(2)
	blockhash := testKey(9).String()

	ix := Instruction{ProgramID: program, Data: []byte{7}}
	msg, err := CompileMessage(signer.Pubkey(), blockhash, []Instruction{ix})
	require.NoError(t, err)

	wire, sig58, err := SignTransaction(msg, signer)
	require.NoError(t, err)

	// shortvec(1) + 64-byte signature + message
	msgBytes := msg.Serialize()
	require.Equal(t, 1+64+len(msgBytes), len(wire))
	require.Equal(t, byte(1), wire[0])
	assert.Equal(t, msgBytes, wire[65:])

	sig, err := base58.Decode(sig58)
	require.NoError(t, err)
	assert.Equal(t, wire[1:65], sig)
	assert.True(t, ed25519.Verify(signer.priv.Public().(ed25519.PublicKey), msgBytes, sig))
}

func TestSignTransactionRejectsWrongFeePayer(t *testing.T) {
	signer := newTestSigner(t)
	program := testKey(2)
	blockhash := testKey(9).String()

	msg, err := CompileMessage(testKey(1), blockhash, []Instruction{{ProgramID: program}})
	require.NoError(t, err)

	_, _, err = SignTransaction(msg, signer)
	require.Error(t, err)
}

func TestUnsignedTransactionZeroSignature(t *testing.T) {
	feePayer := testKey(1)
	program := testKey(2)
	blockhash := testKey(9).String()

	msg, err := CompileMessage(feePayer, blockhash, []Instruction{{ProgramID: program}})
	require.NoError(t, err)

	wire := UnsignedTransaction(msg)
	require.Equal(t, byte(1), wire[0])
	assert.Equal(t, make([]byte, 64), wire[1:65])
	assert.Equal(t, msg.Serialize(), wire[65:])
}
