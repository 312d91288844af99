package network

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// LedgerService is the primary interface for ledger interaction.
// Every read and submission made during a registration goes through it.
type LedgerService interface {
	// GetAccount returns the account at address, or ErrAccountNotFound.
	GetAccount(ctx context.Context, address solana.PublicKey) (*Account, error)

	// GetBalance returns the lamport balance of address.
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)

	// GetSlot returns the current slot at the client's commitment.
	GetSlot(ctx context.Context) (uint64, error)

	// GetLatestBlockhash returns a fresh blockhash for signing.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)

	// SendTransaction broadcasts a signed transaction without local simulation
	// and returns its signature.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)

	// GetSignatureStatus returns the status of sig, or nil if the node has not seen it.
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)

	// GetTransactionLogs returns the program log lines recorded for sig.
	GetTransactionLogs(ctx context.Context, sig solana.Signature) ([]string, error)
}

// Account is a raw ledger account.
type Account struct {
	Address    solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
}

// SignatureStatus reports how far a submitted transaction has progressed.
type SignatureStatus struct {
	Slot          uint64
	Confirmations *uint64
	// Err is the ledger's execution error, nil on success.
	Err interface{}
	// Commitment is "processed", "confirmed" or "finalized".
	Commitment string
}

// Landed reports whether the status has reached at least confirmed commitment.
func (s *SignatureStatus) Landed() bool {
	return s != nil && (s.Commitment == "confirmed" || s.Commitment == "finalized")
}
