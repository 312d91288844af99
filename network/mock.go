package network

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// MockLedger is a test double for LedgerService.
// All function fields must be set before the corresponding method is called.
type MockLedger struct {
	GetAccountFn         func(ctx context.Context, address solana.PublicKey) (*Account, error)
	GetBalanceFn         func(ctx context.Context, address solana.PublicKey) (uint64, error)
	GetSlotFn            func(ctx context.Context) (uint64, error)
	GetLatestBlockhashFn func(ctx context.Context) (solana.Hash, error)
	SendTransactionFn    func(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	GetSignatureStatusFn func(ctx context.Context, sig solana.Signature) (*SignatureStatus, error)
	GetTransactionLogsFn func(ctx context.Context, sig solana.Signature) ([]string, error)
}

// Compile-time interface check.
var _ LedgerService = (*MockLedger)(nil)

func (m *MockLedger) GetAccount(ctx context.Context, address solana.PublicKey) (*Account, error) {
	return m.GetAccountFn(ctx, address)
}
func (m *MockLedger) GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	return m.GetBalanceFn(ctx, address)
}
func (m *MockLedger) GetSlot(ctx context.Context) (uint64, error) {
	return m.GetSlotFn(ctx)
}
func (m *MockLedger) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	return m.GetLatestBlockhashFn(ctx)
}
func (m *MockLedger) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return m.SendTransactionFn(ctx, tx)
}
func (m *MockLedger) GetSignatureStatus(ctx context.Context, sig solana.Signature) (*SignatureStatus, error) {
	return m.GetSignatureStatusFn(ctx, sig)
}
func (m *MockLedger) GetTransactionLogs(ctx context.Context, sig solana.Signature) ([]string, error) {
	return m.GetTransactionLogsFn(ctx, sig)
}
