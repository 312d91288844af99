package alt

import (
	"github.com/gagliardetto/solana-go"
)

// Handle is a lookup table as seen by this client: its address, authority
// and the ordered addresses it holds. A handle serves one registration.
type Handle struct {
	Address   solana.PublicKey
	Authority solana.PublicKey
	Addresses []solana.PublicKey
	// Capacity is the maximum number of addresses the table can hold.
	Capacity int
	// Created is true when the table was allocated for this registration
	// rather than attached.
	Created bool
}

// Len returns the number of addresses in the table.
func (h *Handle) Len() int { return len(h.Addresses) }

// Index returns the position of addr in the table.
func (h *Handle) Index(addr solana.PublicKey) (int, bool) {
	for i, a := range h.Addresses {
		if a.Equals(addr) {
			return i, true
		}
	}
	return -1, false
}

// Contains reports whether addr is in the table.
func (h *Handle) Contains(addr solana.PublicKey) bool {
	_, ok := h.Index(addr)
	return ok
}

// Missing returns the addresses not yet in the table, deduplicated and in
// input order.
func (h *Handle) Missing(addrs []solana.PublicKey) []solana.PublicKey {
	held := make(map[solana.PublicKey]bool, len(h.Addresses))
	for _, a := range h.Addresses {
		held[a] = true
	}
	var out []solana.PublicKey
	for _, a := range addrs {
		if !held[a] {
			held[a] = true
			out = append(out, a)
		}
	}
	return out
}

// AddressTables returns the table in the form solana-go expects when
// compiling a versioned message.
func (h *Handle) AddressTables() map[solana.PublicKey]solana.PublicKeySlice {
	return map[solana.PublicKey]solana.PublicKeySlice{
		h.Address: append(solana.PublicKeySlice(nil), h.Addresses...),
	}
}

func (h *Handle) clone() *Handle {
	c := *h
	c.Addresses = append([]solana.PublicKey(nil), h.Addresses...)
	return &c
}
