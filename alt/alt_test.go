package alt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixkit/matrixkit-go/network"
	"github.com/matrixkit/matrixkit-go/retry"
)

func makeAddr(seed byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = seed
	}
	return pk
}

func makeAddrs(n int, offset int) []solana.PublicKey {
	out := make([]solana.PublicKey, n)
	for i := range out {
		var pk solana.PublicKey
		binary.BigEndian.PutUint32(pk[:4], uint32(offset+i+1))
		out[i] = pk
	}
	return out
}

// fakeChain applies lookup-table instructions as a ledger would and records
// the order of submissions and confirmations.
type fakeChain struct {
	mu     sync.Mutex
	slot   uint64
	tables map[solana.PublicKey]*State
	// lag hides the effect of each extension for this many reads.
	lag     int
	pending map[solana.PublicKey]int
	events  []string
	// failOn makes the n-th submission (1-based) fail.
	failOn int
	calls  int
	// hidden keeps every table unreadable; foreign reports tables owned by
	// another program.
	hidden  bool
	foreign bool
	reads   int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		slot:    1000,
		tables:  map[solana.PublicKey]*State{},
		pending: map[solana.PublicKey]int{},
	}
}

func (c *fakeChain) ledger() *network.MockLedger {
	return &network.MockLedger{
		GetSlotFn: func(context.Context) (uint64, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.slot, nil
		},
		GetAccountFn: func(_ context.Context, addr solana.PublicKey) (*network.Account, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.reads++
			st, ok := c.tables[addr]
			if !ok || c.hidden {
				return nil, network.ErrAccountNotFound
			}
			if c.foreign {
				return &network.Account{Address: addr, Owner: makeAddr(9)}, nil
			}
			visible := *st
			if c.pending[addr] > 0 {
				c.pending[addr]--
				visible.Addresses = st.Addresses[:visible.LastExtendedSlotStart]
			}
			data, err := EncodeState(&visible)
			if err != nil {
				return nil, err
			}
			return &network.Account{Address: addr, Owner: ProgramID, Data: data}, nil
		},
	}
}

func (c *fakeChain) SubmitAndConfirm(_ context.Context, ixs []solana.Instruction) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	n := c.calls
	c.events = append(c.events, fmt.Sprintf("submit %d", n))
	if c.failOn == n {
		return solana.Signature{}, errors.New("transaction dropped")
	}

	for _, ix := range ixs {
		data, err := ix.Data()
		if err != nil {
			return solana.Signature{}, err
		}
		table := ix.Accounts()[0].PublicKey
		switch binary.LittleEndian.Uint32(data[:4]) {
		case instructionCreate:
			authority := ix.Accounts()[1].PublicKey
			c.tables[table] = &State{DeactivationSlot: math.MaxUint64, Authority: &authority}
		case instructionExtend:
			st := c.tables[table]
			count := binary.LittleEndian.Uint64(data[4:12])
			st.LastExtendedSlotStart = uint8(len(st.Addresses))
			for i := uint64(0); i < count; i++ {
				off := 12 + i*32
				st.Addresses = append(st.Addresses, solana.PublicKeyFromBytes(data[off:off+32]))
			}
			c.pending[table] = c.lag
		}
	}
	c.events = append(c.events, fmt.Sprintf("confirm %d", n))
	var sig solana.Signature
	sig[0] = byte(n)
	return sig, nil
}

func testPolicy() retry.Policy {
	return retry.NewPolicy(retry.WithAttempts(5), retry.WithDelay(0))
}

func newTestManager(chain *fakeChain, authority solana.PublicKey) *Manager {
	return NewManager(chain.ledger(), chain, authority, testPolicy(), zerolog.Nop())
}

func TestCreateInstructionLayout(t *testing.T) {
	authority := makeAddr(1)
	table, bump, err := DeriveTableAddress(authority, 4242)
	require.NoError(t, err)

	ix, err := NewCreateInstruction(table, authority, authority, 4242, bump)
	require.NoError(t, err)
	data, err := ix.Data()
	require.NoError(t, err)

	require.Len(t, data, 13)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(4242), binary.LittleEndian.Uint64(data[4:12]))
	assert.Equal(t, bump, data[12])
	assert.Equal(t, ProgramID, ix.ProgramID())

	accts := ix.Accounts()
	require.Len(t, accts, 4)
	assert.True(t, accts[0].IsWritable)
	assert.True(t, accts[1].IsSigner)
	assert.True(t, accts[2].IsSigner && accts[2].IsWritable)
	assert.Equal(t, solana.SystemProgramID, accts[3].PublicKey)
}

func TestDeriveTableAddressDependsOnSlot(t *testing.T) {
	a, _, err := DeriveTableAddress(makeAddr(1), 1)
	require.NoError(t, err)
	b, _, err := DeriveTableAddress(makeAddr(1), 2)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestExtendInstructionLayout(t *testing.T) {
	addrs := makeAddrs(3, 0)
	ix, err := NewExtendInstruction(makeAddr(9), makeAddr(1), makeAddr(1), addrs)
	require.NoError(t, err)
	data, err := ix.Data()
	require.NoError(t, err)

	require.Len(t, data, 12+3*32)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(data[4:12]))
	assert.Equal(t, addrs[1][:], data[12+32:12+64])

	_, err = NewExtendInstruction(makeAddr(9), makeAddr(1), makeAddr(1), nil)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestStateRoundTrip(t *testing.T) {
	authority := makeAddr(7)
	st := &State{
		DeactivationSlot: math.MaxUint64,
		LastExtendedSlot: 99,
		Authority:        &authority,
		Addresses:        makeAddrs(4, 0),
	}
	data, err := EncodeState(st)
	require.NoError(t, err)
	assert.Len(t, data, MetaSize+4*32)

	got, err := DecodeState(data)
	require.NoError(t, err)
	assert.Equal(t, st, got)
	assert.True(t, got.Active())
}

func TestDecodeStateErrors(t *testing.T) {
	_, err := DecodeState(make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvalidTableState)

	_, err = DecodeState(make([]byte, MetaSize+5))
	assert.ErrorIs(t, err, ErrInvalidTableState)

	// Type 0 is an uninitialized table.
	_, err = DecodeState(make([]byte, MetaSize))
	assert.ErrorIs(t, err, ErrInvalidTableState)
}

func TestManagerCreate(t *testing.T) {
	chain := newFakeChain()
	authority := makeAddr(1)
	m := newTestManager(chain, authority)

	h, err := m.Create(context.Background())
	require.NoError(t, err)

	want, _, err := DeriveTableAddress(authority, 1000)
	require.NoError(t, err)
	assert.Equal(t, want, h.Address)
	assert.Equal(t, authority, h.Authority)
	assert.Equal(t, Capacity, h.Capacity)
	assert.True(t, h.Created)
	assert.Zero(t, h.Len())
}

func TestManagerCreateFailures(t *testing.T) {
	t.Run("create not landing", func(t *testing.T) {
		chain := newFakeChain()
		chain.failOn = 1
		h, err := newTestManager(chain, makeAddr(1)).Create(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "transaction dropped")
		assert.Nil(t, h)
		assert.Zero(t, chain.reads, "nothing is polled after a failed submission")
	})

	t.Run("never visible", func(t *testing.T) {
		chain := newFakeChain()
		chain.hidden = true
		h, err := newTestManager(chain, makeAddr(1)).Create(context.Background())
		assert.ErrorIs(t, err, ErrTableNotVisible)
		assert.ErrorIs(t, err, retry.ErrExhausted)
		assert.ErrorIs(t, err, network.ErrAccountNotFound)
		assert.Nil(t, h)
		assert.Equal(t, 5, chain.reads)
	})

	t.Run("foreign owner stops polling", func(t *testing.T) {
		chain := newFakeChain()
		chain.foreign = true
		h, err := newTestManager(chain, makeAddr(1)).Create(context.Background())
		assert.ErrorIs(t, err, ErrNotLookupTable)
		assert.NotErrorIs(t, err, ErrTableNotVisible)
		assert.NotErrorIs(t, err, retry.ErrExhausted)
		assert.Nil(t, h)
		assert.Equal(t, 1, chain.reads)
	})
}

func TestManagerExtendBatchesSequentially(t *testing.T) {
	tests := []struct {
		n, batch, wantCalls int
	}{
		{1, 30, 1},
		{30, 30, 1},
		{31, 30, 2},
		{17, 5, 4},
		{20, 1, 20},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%d_by_%d", tc.n, tc.batch), func(t *testing.T) {
			chain := newFakeChain()
			m := newTestManager(chain, makeAddr(1))
			h, err := m.Create(context.Background())
			require.NoError(t, err)
			chain.events = nil
			chain.calls = 0

			addrs := makeAddrs(tc.n, 0)
			out, err := m.Extend(context.Background(), h, addrs, tc.batch)
			require.NoError(t, err)
			assert.Equal(t, addrs, out.Addresses)
			assert.Zero(t, h.Len(), "input handle is not mutated")

			require.Len(t, chain.events, 2*tc.wantCalls)
			for k := 1; k <= tc.wantCalls; k++ {
				assert.Equal(t, fmt.Sprintf("submit %d", k), chain.events[2*(k-1)])
				assert.Equal(t, fmt.Sprintf("confirm %d", k), chain.events[2*(k-1)+1])
			}
		})
	}
}

func TestManagerExtendWaitsForVisibility(t *testing.T) {
	chain := newFakeChain()
	m := newTestManager(chain, makeAddr(1))
	h, err := m.Create(context.Background())
	require.NoError(t, err)

	chain.lag = 3
	out, err := m.Extend(context.Background(), h, makeAddrs(10, 0), 4)
	require.NoError(t, err)
	assert.Equal(t, 10, out.Len())
}

func TestManagerExtendLengthMismatch(t *testing.T) {
	chain := newFakeChain()
	m := newTestManager(chain, makeAddr(1))
	h, err := m.Create(context.Background())
	require.NoError(t, err)

	chain.lag = 100
	_, err = m.Extend(context.Background(), h, makeAddrs(3, 0), 30)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.ErrorIs(t, err, retry.ErrExhausted)
}

func TestManagerExtendValidation(t *testing.T) {
	chain := newFakeChain()
	m := newTestManager(chain, makeAddr(1))
	h, err := m.Create(context.Background())
	require.NoError(t, err)
	h, err = m.Extend(context.Background(), h, makeAddrs(2, 0), 30)
	require.NoError(t, err)
	callsBefore := chain.calls

	dupInBatch := append(makeAddrs(2, 10), makeAddrs(1, 10)...)
	_, err = m.Extend(context.Background(), h, dupInBatch, 30)
	assert.ErrorIs(t, err, ErrDuplicateAddress)

	_, err = m.Extend(context.Background(), h, makeAddrs(1, 1), 30)
	assert.ErrorIs(t, err, ErrDuplicateAddress, "address already in the table")

	_, err = m.Extend(context.Background(), h, makeAddrs(Capacity-1, 100), 30)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = m.Extend(context.Background(), h, makeAddrs(1, 50), 0)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
	_, err = m.Extend(context.Background(), h, makeAddrs(1, 50), MaxExtendBatch+1)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	_, err = m.Extend(context.Background(), nil, makeAddrs(1, 50), 10)
	assert.ErrorIs(t, err, ErrNilParam)

	assert.Equal(t, callsBefore, chain.calls, "nothing submitted for rejected extensions")
}

func TestManagerExtendStopsOnFailedBatch(t *testing.T) {
	chain := newFakeChain()
	m := newTestManager(chain, makeAddr(1))
	h, err := m.Create(context.Background())
	require.NoError(t, err)

	chain.failOn = chain.calls + 2
	_, err = m.Extend(context.Background(), h, makeAddrs(9, 0), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 2/3")
	assert.Equal(t, chain.failOn, chain.calls, "third batch never submitted")
}

func TestManagerVerifyContentMismatch(t *testing.T) {
	chain := newFakeChain()
	m := newTestManager(chain, makeAddr(1))
	h, err := m.Create(context.Background())
	require.NoError(t, err)
	h, err = m.Extend(context.Background(), h, makeAddrs(3, 0), 30)
	require.NoError(t, err)

	forged := h.clone()
	forged.Addresses[1] = makeAddr(200)
	_, err = m.Verify(context.Background(), forged)
	assert.ErrorIs(t, err, ErrContentMismatch)
}

func TestManagerLoad(t *testing.T) {
	chain := newFakeChain()
	owner := makeAddr(1)
	m := newTestManager(chain, owner)
	h, err := m.Create(context.Background())
	require.NoError(t, err)
	_, err = m.Extend(context.Background(), h, makeAddrs(4, 0), 30)
	require.NoError(t, err)

	loaded, err := m.Load(context.Background(), h.Address)
	require.NoError(t, err)
	assert.False(t, loaded.Created)
	assert.Equal(t, makeAddrs(4, 0), loaded.Addresses)

	missing := loaded.Missing(makeAddrs(6, 0))
	assert.Equal(t, makeAddrs(2, 4), missing)

	other := newTestManager(chain, makeAddr(2))
	_, err = other.Load(context.Background(), h.Address)
	assert.ErrorIs(t, err, ErrAuthorityMismatch)

	chain.tables[h.Address].DeactivationSlot = 5
	_, err = m.Load(context.Background(), h.Address)
	assert.ErrorIs(t, err, ErrTableDeactivated)

	_, err = m.Load(context.Background(), makeAddr(99))
	assert.ErrorIs(t, err, network.ErrAccountNotFound)
}

func TestManagerLoadRejectsForeignAccount(t *testing.T) {
	ledger := &network.MockLedger{
		GetAccountFn: func(_ context.Context, addr solana.PublicKey) (*network.Account, error) {
			return &network.Account{Address: addr, Owner: solana.SystemProgramID}, nil
		},
	}
	m := NewManager(ledger, newFakeChain(), makeAddr(1), testPolicy(), zerolog.Nop())
	_, err := m.Load(context.Background(), makeAddr(3))
	assert.ErrorIs(t, err, ErrNotLookupTable)
}

func TestHandleHelpers(t *testing.T) {
	h := &Handle{Address: makeAddr(9), Addresses: makeAddrs(3, 0), Capacity: Capacity}

	idx, ok := h.Index(makeAddrs(3, 0)[2])
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.False(t, h.Contains(makeAddr(200)))

	tables := h.AddressTables()
	require.Len(t, tables, 1)
	assert.Equal(t, solana.PublicKeySlice(h.Addresses), tables[h.Address])
}
