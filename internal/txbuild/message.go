package txbuild

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// Signer is the key-custody capability injected into the builder.
// Private key material never enters this package.
type Signer interface {
	Pubkey() Pubkey
	Sign(message []byte) ([]byte, error)
}

// Message is a compiled legacy transaction message.
type Message struct {
	numRequiredSignatures       uint8
	numReadonlySignedAccounts   uint8
	numReadonlyUnsignedAccounts uint8
	accountKeys                 []Pubkey
	recentBlockhash             Pubkey
	instructions                []compiledInstruction
}

type compiledInstruction struct {
	programIDIndex uint8
	accountIndexes []uint8
	data           []byte
}

// CompileMessage flattens instructions into a legacy message. The fee
// payer always occupies index 0; remaining accounts are ordered
// writable signers, readonly signers, writable non-signers, readonly
// non-signers, deduplicated with privileges merged.
func CompileMessage(feePayer Pubkey, recentBlockhash string, instructions []Instruction) (*Message, error) {
	bh, err := PubkeyFromBase58(recentBlockhash)
	if err != nil {
		return nil, fmt.Errorf("parse blockhash: %w", err)
	}

	merged := map[Pubkey]*AccountMeta{
		feePayer: {Pubkey: feePayer, IsSigner: true, IsWritable: true},
	}
	var order []Pubkey
	order = append(order, feePayer)

	for _, ix := range instructions {
		if _, seen := merged[ix.ProgramID]; !seen {
			merged[ix.ProgramID] = &AccountMeta{Pubkey: ix.ProgramID}
			order = append(order, ix.ProgramID)
		}
		for _, acc := range ix.Accounts {
			m, seen := merged[acc.Pubkey]
			if !seen {
				cp := acc
				merged[acc.Pubkey] = &cp
				order = append(order, acc.Pubkey)
				continue
			}
			m.IsSigner = m.IsSigner || acc.IsSigner
			m.IsWritable = m.IsWritable || acc.IsWritable
		}
	}

	// Bucket by privilege, preserving first-seen order inside each
	// bucket so compilation stays deterministic.
	var signerW, signerRO, nonSignerW, nonSignerRO []Pubkey
	for _, pk := range order {
		m := merged[pk]
		switch {
		case m.IsSigner && m.IsWritable:
			signerW = append(signerW, pk)
		case m.IsSigner:
			signerRO = append(signerRO, pk)
		case m.IsWritable:
			nonSignerW = append(nonSignerW, pk)
		default:
			nonSignerRO = append(nonSignerRO, pk)
		}
	}

	keys := make([]Pubkey, 0, len(order))
	keys = append(keys, signerW...)
	keys = append(keys, signerRO...)
	keys = append(keys, nonSignerW...)
	keys = append(keys, nonSignerRO...)

	index := make(map[Pubkey]uint8, len(keys))
	for i, pk := range keys {
		if i > 255 {
			return nil, fmt.Errorf("too many accounts: %d", len(keys))
		}
		index[pk] = uint8(i)
	}

	msg := &Message{
		numRequiredSignatures:       uint8(len(signerW) + len(signerRO)),
		numReadonlySignedAccounts:   uint8(len(signerRO)),
		numReadonlyUnsignedAccounts: uint8(len(nonSignerRO)),
		accountKeys:                 keys,
		recentBlockhash:             bh,
	}

	for _, ix := range instructions {
		ci := compiledInstruction{
			programIDIndex: index[ix.ProgramID],
			data:           ix.Data,
		}
		for _, acc := range ix.Accounts {
			ci.accountIndexes = append(ci.accountIndexes, index[acc.Pubkey])
		}
		msg.instructions = append(msg.instructions, ci)
	}

	return msg, nil
}

// Serialize renders the message bytes that get signed.
func (m *Message) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(m.numRequiredSignatures)
	buf.WriteByte(m.numReadonlySignedAccounts)
	buf.WriteByte(m.numReadonlyUnsignedAccounts)

	writeCompactU16(&buf, len(m.accountKeys))
	for _, pk := range m.accountKeys {
		buf.Write(pk[:])
	}

	buf.Write(m.recentBlockhash[:])

	writeCompactU16(&buf, len(m.instructions))
	for _, ix := range m.instructions {
		buf.WriteByte(ix.programIDIndex)
		writeCompactU16(&buf, len(ix.accountIndexes))
		buf.Write(ix.accountIndexes)
		writeCompactU16(&buf, len(ix.data))
		buf.Write(ix.data)
	}

	return buf.Bytes()
}

// NumRequiredSignatures returns the signer count of the message.
func (m *Message) NumRequiredSignatures() int {
	return int(m.numRequiredSignatures)
}

// AccountKeys returns the flattened account list.
func (m *Message) AccountKeys() []Pubkey {
	return m.accountKeys
}

// SignTransaction signs the message with the single fee-payer signer
// and returns the wire-format transaction bytes along with the base58
// signature string.
func SignTransaction(msg *Message, signer Signer) ([]byte, string, error) {
	if msg.NumRequiredSignatures() != 1 {
		return nil, "", fmt.Errorf("expected 1 required signature, message wants %d", msg.NumRequiredSignatures())
	}
	if len(msg.accountKeys) == 0 || msg.accountKeys[0] != signer.Pubkey() {
		return nil, "", fmt.Errorf("signer %s is not the fee payer", signer.Pubkey())
	}

	msgBytes := msg.Serialize()
	sig, err := signer.Sign(msgBytes)
	if err != nil {
		return nil, "", fmt.Errorf("sign message: %w", err)
	}
	if len(sig) != 64 {
		return nil, "", fmt.Errorf("signature must be 64 bytes, got %d", len(sig))
	}

	var buf bytes.Buffer
	writeCompactU16(&buf, 1)
	buf.Write(sig)
	buf.Write(msgBytes)
	return buf.Bytes(), base58.Encode(sig), nil
}

// UnsignedTransaction renders the transaction with an all-zero
// signature slot, the form simulateTransaction accepts when signature
// verification is disabled.
func UnsignedTransaction(msg *Message) []byte {
	msgBytes := msg.Serialize()
	var buf bytes.Buffer
	writeCompactU16(&buf, 1)
	buf.Write(make([]byte, 64))
	buf.Write(msgBytes)
	return buf.Bytes()
}

// writeCompactU16 encodes a shortvec length prefix.
func writeCompactU16(buf *bytes.Buffer, n int) {
	v := uint16(n)
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}
