package alt

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/matrixkit/matrixkit-go/network"
	"github.com/matrixkit/matrixkit-go/retry"
)

// Submitter signs, submits and waits for confirmation of a transaction made
// of instructions. The manager never moves on until the call returns.
type Submitter interface {
	SubmitAndConfirm(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error)
}

// Manager creates and populates lookup tables owned by one authority, which
// also pays for them.
type Manager struct {
	ledger    network.LedgerService
	submitter Submitter
	authority solana.PublicKey
	policy    retry.Policy
	logger    zerolog.Logger
}

// NewManager returns a manager acting for authority. policy bounds the
// polling for table visibility after create and extend.
func NewManager(ledger network.LedgerService, submitter Submitter, authority solana.PublicKey, policy retry.Policy, logger zerolog.Logger) *Manager {
	return &Manager{
		ledger:    ledger,
		submitter: submitter,
		authority: authority,
		policy:    policy,
		logger:    logger.With().Str("component", "lookup_table").Logger(),
	}
}

// Create allocates an empty table anchored to the current slot and returns
// its handle once the table is readable.
func (m *Manager) Create(ctx context.Context) (*Handle, error) {
	slot, err := m.ledger.GetSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("alt: fetch slot: %w", err)
	}
	addr, bump, err := DeriveTableAddress(m.authority, slot)
	if err != nil {
		return nil, err
	}
	ix, err := NewCreateInstruction(addr, m.authority, m.authority, slot, bump)
	if err != nil {
		return nil, fmt.Errorf("alt: build create instruction: %w", err)
	}

	sig, err := m.submitter.SubmitAndConfirm(ctx, []solana.Instruction{ix})
	if err != nil {
		return nil, fmt.Errorf("alt: create table %s: %w", addr, err)
	}
	m.logger.Info().Stringer("table", addr).Uint64("slot", slot).Stringer("signature", sig).Msg("lookup table created")

	st, err := retry.Do(ctx, m.logger, func(int) (*State, error) {
		st, err := m.fetch(ctx, addr)
		if err != nil && !errors.Is(err, network.ErrAccountNotFound) {
			return nil, retry.Permanent(err)
		}
		return st, err
	}, retry.WithPolicy(m.policy), retry.WithMessage("awaiting lookup table creation"))
	if errors.Is(err, retry.ErrExhausted) {
		return nil, fmt.Errorf("%w: %s: %w", ErrTableNotVisible, addr, err)
	}
	if err != nil {
		return nil, fmt.Errorf("alt: await table %s: %w", addr, err)
	}

	h, err := m.handle(addr, st)
	if err != nil {
		return nil, err
	}
	h.Created = true
	return h, nil
}

// Load attaches an existing table. It must be active and controlled by the
// manager's authority so it can be extended.
func (m *Manager) Load(ctx context.Context, address solana.PublicKey) (*Handle, error) {
	st, err := m.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	h, err := m.handle(address, st)
	if err != nil {
		return nil, err
	}
	m.logger.Info().Stringer("table", address).Int("addresses", h.Len()).Msg("lookup table attached")
	return h, nil
}

// Extend appends addresses to the table in batches of at most batchSize.
// Each batch is confirmed before the next is submitted, and the final length
// and content are verified before returning the updated handle.
func (m *Manager) Extend(ctx context.Context, h *Handle, addresses []solana.PublicKey, batchSize int) (*Handle, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: handle", ErrNilParam)
	}
	if batchSize < 1 || batchSize > MaxExtendBatch {
		return nil, fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidBatchSize, batchSize, MaxExtendBatch)
	}

	seen := make(map[solana.PublicKey]bool, h.Len()+len(addresses))
	for _, a := range h.Addresses {
		seen[a] = true
	}
	for i, a := range addresses {
		if seen[a] {
			return nil, fmt.Errorf("%w: %s at position %d", ErrDuplicateAddress, a, i)
		}
		seen[a] = true
	}
	if h.Len()+len(addresses) > h.Capacity {
		return nil, fmt.Errorf("%w: %d held + %d new > %d", ErrCapacityExceeded, h.Len(), len(addresses), h.Capacity)
	}

	out := h.clone()
	if len(addresses) == 0 {
		return out, nil
	}

	batches := (len(addresses) + batchSize - 1) / batchSize
	for b := 0; b < batches; b++ {
		start := b * batchSize
		end := min(start+batchSize, len(addresses))
		chunk := addresses[start:end]

		ix, err := NewExtendInstruction(out.Address, m.authority, m.authority, chunk)
		if err != nil {
			return nil, err
		}
		sig, err := m.submitter.SubmitAndConfirm(ctx, []solana.Instruction{ix})
		if err != nil {
			return nil, fmt.Errorf("alt: extend %s batch %d/%d: %w", out.Address, b+1, batches, err)
		}
		out.Addresses = append(out.Addresses, chunk...)
		m.logger.Debug().
			Stringer("table", out.Address).
			Int("batch", b+1).
			Int("batches", batches).
			Int("size", len(chunk)).
			Stringer("signature", sig).
			Msg("extend batch confirmed")
	}

	return m.Verify(ctx, out)
}

// Verify polls the table until it holds exactly h's addresses. A table that
// stays short after the policy's attempts yields ErrLengthMismatch; one that
// holds different addresses yields ErrContentMismatch.
func (m *Manager) Verify(ctx context.Context, h *Handle) (*Handle, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: handle", ErrNilParam)
	}
	want := h.Len()

	st, err := retry.Do(ctx, m.logger, func(int) (*State, error) {
		st, err := m.fetch(ctx, h.Address)
		if errors.Is(err, network.ErrAccountNotFound) {
			return nil, err
		}
		if err != nil {
			return nil, retry.Permanent(err)
		}
		if !st.Active() {
			return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrTableDeactivated, h.Address))
		}
		if len(st.Addresses) != want {
			return nil, fmt.Errorf("%w: %s holds %d addresses, want %d", ErrLengthMismatch, h.Address, len(st.Addresses), want)
		}
		return st, nil
	}, retry.WithPolicy(m.policy), retry.WithMessage("awaiting lookup table extension"))
	if err != nil {
		return nil, fmt.Errorf("alt: verify %s: %w", h.Address, err)
	}

	for i, a := range st.Addresses {
		if !a.Equals(h.Addresses[i]) {
			return nil, fmt.Errorf("%w: index %d holds %s, want %s", ErrContentMismatch, i, a, h.Addresses[i])
		}
	}
	m.logger.Debug().Stringer("table", h.Address).Int("addresses", want).Msg("lookup table verified")
	return h.clone(), nil
}

func (m *Manager) fetch(ctx context.Context, address solana.PublicKey) (*State, error) {
	acct, err := m.ledger.GetAccount(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("alt: fetch %s: %w", address, err)
	}
	if !acct.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrNotLookupTable, address, acct.Owner)
	}
	return DecodeState(acct.Data)
}

func (m *Manager) handle(address solana.PublicKey, st *State) (*Handle, error) {
	if !st.Active() {
		return nil, fmt.Errorf("%w: %s", ErrTableDeactivated, address)
	}
	if st.Authority == nil || !st.Authority.Equals(m.authority) {
		return nil, fmt.Errorf("%w: %s is not controlled by %s", ErrAuthorityMismatch, address, m.authority)
	}
	return &Handle{
		Address:   address,
		Authority: m.authority,
		Addresses: st.Addresses,
		Capacity:  Capacity,
	}, nil
}
