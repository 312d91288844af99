package matrix

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/matrixkit/matrixkit-go/network"
)

// StateReader fetches and decodes matrix program accounts. It never writes.
type StateReader struct {
	ledger   network.LedgerService
	protocol *Protocol
	logger   zerolog.Logger
}

// NewStateReader creates a reader for the accounts of protocol.
func NewStateReader(ledger network.LedgerService, protocol *Protocol, logger zerolog.Logger) *StateReader {
	return &StateReader{
		ledger:   ledger,
		protocol: protocol,
		logger:   logger.With().Str("component", "state_reader").Logger(),
	}
}

// FetchUserRecord loads the user account at address. ErrNotFound signals an
// unregistered participant; every other error means the data cannot be
// trusted.
func (r *StateReader) FetchUserRecord(ctx context.Context, address solana.PublicKey) (*UserRecord, error) {
	acct, err := r.fetchOwned(ctx, address)
	if err != nil {
		return nil, err
	}
	rec, err := DecodeUserRecord(acct.Data, r.protocol.Descriptor.UserAccountName)
	if err != nil {
		return nil, fmt.Errorf("%w (account %s)", err, address)
	}
	r.logger.Debug().
		Stringer("account", address).
		Bool("registered", rec.IsRegistered).
		Uint8("filled_slots", rec.Chain.FilledSlots).
		Int("uplines", len(rec.Upline.Entries)).
		Msg("fetched user record")
	return rec, nil
}

// FetchUserByWallet derives the identity account of wallet and loads it.
func (r *StateReader) FetchUserByWallet(ctx context.Context, wallet solana.PublicKey) (solana.PublicKey, *UserRecord, error) {
	addr, err := r.protocol.UserAccount(wallet)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	rec, err := r.FetchUserRecord(ctx, addr)
	return addr, rec, err
}

// FetchProgramState loads the program state account at address.
func (r *StateReader) FetchProgramState(ctx context.Context, address solana.PublicKey) (*ProgramState, error) {
	acct, err := r.fetchOwned(ctx, address)
	if err != nil {
		return nil, err
	}
	st, err := DecodeProgramState(acct.Data, r.protocol.Descriptor.StateAccountName)
	if err != nil {
		return nil, fmt.Errorf("%w (account %s)", err, address)
	}
	return st, nil
}

// AccountExists reports whether any account lives at address.
func (r *StateReader) AccountExists(ctx context.Context, address solana.PublicKey) (bool, error) {
	_, err := r.ledger.GetAccount(ctx, address)
	if errors.Is(err, network.ErrAccountNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *StateReader) fetchOwned(ctx context.Context, address solana.PublicKey) (*network.Account, error) {
	acct, err := r.ledger.GetAccount(ctx, address)
	if errors.Is(err, network.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("matrix: fetch %s: %w", address, err)
	}
	if !acct.Owner.Equals(r.protocol.ProgramID) {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrWrongOwner, address, acct.Owner)
	}
	return acct, nil
}
