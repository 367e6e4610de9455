package solana

import "context"

// CommitmentConfirmed is the commitment level used for simulation and
// confirmation polling throughout the engine.
const CommitmentConfirmed = "confirmed"

// RPCClient defines the Solana JSON-RPC surface the engine depends on.
type RPCClient interface {
	// GetAccountInfo retrieves account info by public key. Returns nil
	// if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetMultipleAccounts retrieves several accounts in one call.
	// Missing accounts come back as nil entries.
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*AccountInfo, error)

	// GetBalance retrieves the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetLatestBlockhash retrieves the blockhash transactions must
	// reference, plus the slot height it stays valid until.
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)

	// SimulateTransaction simulates a base64-encoded signed transaction.
	SimulateTransaction(ctx context.Context, txBase64 string) (*SimulationResult, error)

	// SendTransaction submits a base64-encoded signed transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	// Unknown signatures come back as nil entries.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}
