package alt

import (
	"bytes"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// MetaSize is the fixed header preceding the address list in a table account.
const MetaSize = 56

const stateTypeLookupTable uint32 = 1

// State is a decoded lookup-table account.
type State struct {
	DeactivationSlot      uint64
	LastExtendedSlot      uint64
	LastExtendedSlotStart uint8
	Authority             *solana.PublicKey
	Addresses             []solana.PublicKey
}

// Active reports whether the table has not been deactivated.
func (s *State) Active() bool {
	return s.DeactivationSlot == math.MaxUint64
}

// DecodeState parses lookup-table account data.
func DecodeState(data []byte) (*State, error) {
	if len(data) < MetaSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidTableState, len(data))
	}
	if (len(data)-MetaSize)%solana.PublicKeyLength != 0 {
		return nil, fmt.Errorf("%w: address area of %d bytes", ErrInvalidTableState, len(data)-MetaSize)
	}

	dec := bin.NewBinDecoder(data[:MetaSize])
	typ, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTableState, err)
	}
	if typ != stateTypeLookupTable {
		return nil, fmt.Errorf("%w: state type %d", ErrInvalidTableState, typ)
	}

	st := &State{}
	if st.DeactivationSlot, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTableState, err)
	}
	if st.LastExtendedSlot, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTableState, err)
	}
	if st.LastExtendedSlotStart, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTableState, err)
	}
	hasAuthority, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTableState, err)
	}
	if hasAuthority == 1 {
		raw, err := dec.ReadNBytes(solana.PublicKeyLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidTableState, err)
		}
		authority := solana.PublicKeyFromBytes(raw)
		st.Authority = &authority
	}

	body := data[MetaSize:]
	st.Addresses = make([]solana.PublicKey, 0, len(body)/solana.PublicKeyLength)
	for off := 0; off < len(body); off += solana.PublicKeyLength {
		st.Addresses = append(st.Addresses, solana.PublicKeyFromBytes(body[off:off+solana.PublicKeyLength]))
	}
	return st, nil
}

// EncodeState is the inverse of DecodeState.
func EncodeState(st *State) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBinEncoder(&buf)
	if err := enc.WriteUint32(stateTypeLookupTable, bin.LE); err != nil {
		return nil, fmt.Errorf("alt: encode state: %w", err)
	}
	if err := enc.WriteUint64(st.DeactivationSlot, bin.LE); err != nil {
		return nil, fmt.Errorf("alt: encode state: %w", err)
	}
	if err := enc.WriteUint64(st.LastExtendedSlot, bin.LE); err != nil {
		return nil, fmt.Errorf("alt: encode state: %w", err)
	}
	if err := enc.WriteUint8(st.LastExtendedSlotStart); err != nil {
		return nil, fmt.Errorf("alt: encode state: %w", err)
	}
	if st.Authority != nil {
		buf.WriteByte(1)
		buf.Write(st.Authority[:])
	} else {
		buf.WriteByte(0)
	}
	buf.Write(make([]byte, MetaSize-buf.Len()))
	for _, addr := range st.Addresses {
		buf.Write(addr[:])
	}
	return buf.Bytes(), nil
}
