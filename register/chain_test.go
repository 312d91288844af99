package register

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/matrixkit/matrixkit-go/alt"
	"github.com/matrixkit/matrixkit-go/matrix"
	"github.com/matrixkit/matrixkit-go/network"
	"github.com/matrixkit/matrixkit-go/retry"
	"github.com/matrixkit/matrixkit-go/tx"
)

func makeAddr(seed byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = seed
	}
	return pk
}

func testProtocol(t *testing.T) *matrix.Protocol {
	t.Helper()
	d, err := matrix.Builtin("v1")
	require.NoError(t, err)
	p := &matrix.Protocol{
		ProgramID:              makeAddr(200),
		TokenMint:              makeAddr(201),
		State:                  makeAddr(202),
		TokenProgram:           solana.TokenProgramID,
		AssociatedTokenProgram: solana.SPLAssociatedTokenAccountProgramID,
		Addresses:              map[string]solana.PublicKey{},
		Descriptor:             d,
		DepositLamports:        100_000_000,
	}
	for i, key := range d.RequiredAddresses() {
		p.Addresses[key] = makeAddr(byte(210 + i))
	}
	require.NoError(t, p.Validate())
	return p
}

func testOptions() Options {
	fast := retry.NewPolicy(retry.WithAttempts(3), retry.WithDelay(0))
	return Options{
		Tx: tx.Config{
			ComputeUnitLimit: 1_400_000,
			ComputeUnitPrice: 10_000,
			Confirm:          fast,
		},
		TablePolicy: fast,
		ExtendBatch: 20,
		FeeReserve:  10_000_000,
	}
}

// chain is an in-memory ledger that executes lookup-table and register
// instructions the way the deployed programs would.
type chain struct {
	t        *testing.T
	mu       sync.Mutex
	protocol *matrix.Protocol
	accounts map[solana.PublicKey]*network.Account
	statuses map[solana.Signature]*network.SignatureStatus
	balance  uint64
	slot     uint64
	sent     []*solana.Transaction
	// events records "submit" and "confirm" in ledger order.
	events []string
	// registerErr makes the register instruction fail on chain.
	registerErr interface{}
	// skipRegister lands the register transaction without creating the user.
	skipRegister bool
	reads        int
}

func newChain(t *testing.T, p *matrix.Protocol) *chain {
	return &chain{
		t:        t,
		protocol: p,
		accounts: map[solana.PublicKey]*network.Account{},
		statuses: map[solana.Signature]*network.SignatureStatus{},
		balance:  10_000_000_000,
		slot:     500,
	}
}

func (c *chain) ledger() *network.MockLedger {
	return &network.MockLedger{
		GetAccountFn: func(_ context.Context, addr solana.PublicKey) (*network.Account, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.reads++
			acct, ok := c.accounts[addr]
			if !ok {
				return nil, network.ErrAccountNotFound
			}
			cp := *acct
			return &cp, nil
		},
		GetBalanceFn: func(context.Context, solana.PublicKey) (uint64, error) {
			return c.balance, nil
		},
		GetSlotFn: func(context.Context) (uint64, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.slot++
			return c.slot, nil
		},
		GetLatestBlockhashFn: func(context.Context) (solana.Hash, error) {
			return solana.Hash{7, 7, 7}, nil
		},
		SendTransactionFn: c.send,
		GetSignatureStatusFn: func(_ context.Context, sig solana.Signature) (*network.SignatureStatus, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			st, ok := c.statuses[sig]
			if !ok {
				return nil, nil
			}
			if st.Err == nil {
				c.events = append(c.events, "confirm")
			}
			return st, nil
		},
		GetTransactionLogsFn: func(context.Context, solana.Signature) ([]string, error) {
			return []string{"Program log: slot already taken"}, nil
		},
	}
}

func (c *chain) send(_ context.Context, txn *solana.Transaction) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, txn)
	c.events = append(c.events, "submit")
	sig := txn.Signatures[0]
	status := &network.SignatureStatus{Slot: c.slot, Commitment: "finalized"}

	keys := txn.Message.AccountKeys
	for _, ix := range txn.Message.Instructions {
		program := keys[ix.ProgramIDIndex]
		switch {
		case program.Equals(alt.ProgramID):
			c.applyTable(keys[ix.Accounts[0]], keys[ix.Accounts[1]], ix.Data)
		case program.Equals(c.protocol.ProgramID):
			if c.registerErr != nil {
				status.Err = c.registerErr
				continue
			}
			if !c.skipRegister {
				c.applyRegister(keys[0], ix.Data)
			}
		}
	}
	c.statuses[sig] = status
	return sig, nil
}

func (c *chain) applyTable(table, authority solana.PublicKey, data []byte) {
	switch binary.LittleEndian.Uint32(data[:4]) {
	case 0:
		c.putTable(table, &alt.State{DeactivationSlot: math.MaxUint64, Authority: &authority})
	case 2:
		st := c.table(table)
		count := binary.LittleEndian.Uint64(data[4:12])
		st.LastExtendedSlotStart = uint8(len(st.Addresses))
		for i := uint64(0); i < count; i++ {
			off := 12 + i*32
			st.Addresses = append(st.Addresses, solana.PublicKeyFromBytes(data[off:off+32]))
		}
		c.putTable(table, st)
	}
}

func (c *chain) applyRegister(payer solana.PublicKey, data []byte) {
	disc := matrix.InstructionDiscriminator(c.protocol.Descriptor.RegisterInstruction)
	require.True(c.t, bytes.HasPrefix(data, disc[:]))
	addr, err := c.protocol.UserAccount(payer)
	require.NoError(c.t, err)
	c.storeUser(addr, &matrix.UserRecord{IsRegistered: true, Owner: payer})
}

func (c *chain) table(addr solana.PublicKey) *alt.State {
	st, err := alt.DecodeState(c.accounts[addr].Data)
	require.NoError(c.t, err)
	return st
}

func (c *chain) putTable(addr solana.PublicKey, st *alt.State) {
	data, err := alt.EncodeState(st)
	require.NoError(c.t, err)
	c.accounts[addr] = &network.Account{Address: addr, Owner: alt.ProgramID, Data: data}
}

func (c *chain) storeUser(addr solana.PublicKey, rec *matrix.UserRecord) {
	data, err := matrix.EncodeAccount(c.protocol.Descriptor.UserAccountName, rec)
	require.NoError(c.t, err)
	c.accounts[addr] = &network.Account{Address: addr, Owner: c.protocol.ProgramID, Data: data}
}

// putUser stores rec as the user account of wallet and returns its address.
func (c *chain) putUser(wallet solana.PublicKey, rec *matrix.UserRecord) solana.PublicKey {
	addr, err := c.protocol.UserAccount(wallet)
	require.NoError(c.t, err)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeUser(addr, rec)
	return addr
}

// putAncestors registers n ancestors and returns their upline entries oldest
// first, as the program stores them.
func (c *chain) putAncestors(n int) []matrix.UplineEntry {
	entries := make([]matrix.UplineEntry, n)
	for i := range entries {
		w := makeAddr(byte(50 + i))
		entries[i] = matrix.UplineEntry{
			Account: c.putUser(w, &matrix.UserRecord{IsRegistered: true, Owner: w}),
			Wallet:  w,
		}
	}
	return entries
}

func referrerRecord(owner solana.PublicKey, entries []matrix.UplineEntry, filled uint8) *matrix.UserRecord {
	return &matrix.UserRecord{
		IsRegistered: true,
		Owner:        owner,
		Upline:       matrix.Upline{ID: 1, Depth: uint8(len(entries)), Entries: entries},
		Chain:        matrix.MatrixState{ID: 1, FilledSlots: filled},
	}
}

func (c *chain) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}
