// Package alt creates, extends and verifies address lookup tables, the
// on-ledger index that lets a versioned transaction reference accounts by a
// one-byte position.
package alt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ProgramID is the address lookup table program.
var ProgramID = solana.MustPublicKeyFromBase58("AddressLookupTab1e1111111111111111111111111")

// Instruction tags of the lookup-table program.
const (
	instructionCreate uint32 = 0
	instructionExtend uint32 = 2
)

const (
	// Capacity is the maximum number of addresses a table can hold.
	Capacity = 256

	// MaxExtendBatch is the number of addresses that fit one extend
	// transaction alongside its signatures and accounts.
	MaxExtendBatch = 30
)

// DeriveTableAddress returns the table address for authority anchored at
// recentSlot, with its bump seed.
func DeriveTableAddress(authority solana.PublicKey, recentSlot uint64) (solana.PublicKey, uint8, error) {
	slot := make([]byte, 8)
	binary.LittleEndian.PutUint64(slot, recentSlot)
	addr, bump, err := solana.FindProgramAddress([][]byte{authority[:], slot}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("alt: derive table address: %w", err)
	}
	return addr, bump, nil
}

// NewCreateInstruction allocates table at recentSlot. The table address must
// come from DeriveTableAddress with the same authority and slot.
func NewCreateInstruction(table, authority, payer solana.PublicKey, recentSlot uint64, bump uint8) (solana.Instruction, error) {
	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	if err := enc.WriteUint32(instructionCreate, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(recentSlot, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(bump); err != nil {
		return nil, err
	}

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(table).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, buf.Bytes()), nil
}

// NewExtendInstruction appends addresses to table.
func NewExtendInstruction(table, authority, payer solana.PublicKey, addresses []solana.PublicKey) (solana.Instruction, error) {
	if len(addresses) == 0 {
		return nil, fmt.Errorf("%w: empty address batch", ErrInvalidBatchSize)
	}

	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	if err := enc.WriteUint32(instructionExtend, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(uint64(len(addresses)), bin.LE); err != nil {
		return nil, err
	}
	for _, addr := range addresses {
		if err := enc.WriteBytes(addr[:], false); err != nil {
			return nil, err
		}
	}

	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(table).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, buf.Bytes()), nil
}
