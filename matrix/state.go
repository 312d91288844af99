package matrix

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// DiscriminatorSize is the length of the account and instruction tags
// prefixed by the program.
const DiscriminatorSize = 8

// SlotCount is the number of child positions in a matrix.
const SlotCount = 3

// AccountDiscriminator returns the tag that prefixes accounts of type name.
func AccountDiscriminator(name string) [DiscriminatorSize]byte {
	return discriminator("account:" + name)
}

// InstructionDiscriminator returns the tag that prefixes the data of the
// instruction name.
func InstructionDiscriminator(name string) [DiscriminatorSize]byte {
	return discriminator("global:" + name)
}

func discriminator(preimage string) [DiscriminatorSize]byte {
	var d [DiscriminatorSize]byte
	sum := sha256.Sum256([]byte(preimage))
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// UplineEntry is one ancestor as recorded at the ancestor's registration.
type UplineEntry struct {
	Account solana.PublicKey
	Wallet  solana.PublicKey
}

// Upline is the ancestor chain of a participant.
type Upline struct {
	ID    uint32
	Depth uint8
	// Entries are stored in the order the program appended them.
	Entries []UplineEntry
}

// MatrixState is the three-slot placement structure of a participant.
type MatrixState struct {
	ID          uint32
	Slots       [SlotCount]solana.PublicKey
	FilledSlots uint8
}

// RewardState tracks reward accounting for a participant.
type RewardState struct {
	Earned     uint64
	Claimed    uint64
	LastPeriod uint64
}

// UserRecord is the per-participant account kept by the matrix program.
type UserRecord struct {
	IsRegistered bool
	Owner        solana.PublicKey
	Upline       Upline
	Chain        MatrixState
	Rewards      RewardState
}

// IsBase reports whether the participant has no ancestors.
func (r *UserRecord) IsBase() bool {
	return len(r.Upline.Entries) == 0
}

// Validate checks the record invariants.
func (r *UserRecord) Validate() error {
	if r.Chain.FilledSlots > SlotCount {
		return fmt.Errorf("%w: filled slots %d exceeds %d", ErrCorruptRecord, r.Chain.FilledSlots, SlotCount)
	}
	if len(r.Upline.Entries) != int(r.Upline.Depth) {
		return fmt.Errorf("%w: upline depth %d but %d entries", ErrCorruptRecord, r.Upline.Depth, len(r.Upline.Entries))
	}
	return nil
}

// ProgramState is the singleton state account of the matrix program.
type ProgramState struct {
	Owner         solana.PublicKey
	NextUplineID  uint32
	NextChainID   uint32
	CurrentPeriod uint64
	TotalUsers    uint64
}

// DecodeAccount checks the discriminator for account type name and decodes
// the remainder of data into v. Trailing bytes are ignored since the program
// allocates accounts with spare space.
func DecodeAccount(data []byte, name string, v interface{}) error {
	if len(data) < DiscriminatorSize {
		return fmt.Errorf("%w: %d bytes is shorter than the discriminator", ErrDecode, len(data))
	}
	want := AccountDiscriminator(name)
	if !bytes.Equal(data[:DiscriminatorSize], want[:]) {
		return fmt.Errorf("%w: expected %s", ErrBadDiscriminator, name)
	}
	if err := bin.NewBorshDecoder(data[DiscriminatorSize:]).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}
	return nil
}

// EncodeAccount is the inverse of DecodeAccount.
func EncodeAccount(name string, v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	disc := AccountDiscriminator(name)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("matrix: encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// DecodeUserRecord decodes and validates a user account.
func DecodeUserRecord(data []byte, name string) (*UserRecord, error) {
	var rec UserRecord
	if err := DecodeAccount(data, name, &rec); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DecodeProgramState decodes the program state account.
func DecodeProgramState(data []byte, name string) (*ProgramState, error) {
	var st ProgramState
	if err := DecodeAccount(data, name, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
