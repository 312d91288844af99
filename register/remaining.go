package register

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// groupSize is the number of accounts per ancestor group.
const groupSize = 3

// AccountSet is the remaining-accounts tail of the register instruction:
// the read-only protocol prefix followed by writable ancestor groups.
type AccountSet struct {
	Metas     solana.AccountMetaSlice
	PrefixLen int
}

// Len returns the total number of accounts.
func (s *AccountSet) Len() int { return len(s.Metas) }

// Groups returns the number of ancestor groups.
func (s *AccountSet) Groups() int { return (len(s.Metas) - s.PrefixLen) / groupSize }

// Addresses returns the account keys in order.
func (s *AccountSet) Addresses() []solana.PublicKey {
	out := make([]solana.PublicKey, len(s.Metas))
	for i, m := range s.Metas {
		out[i] = m.PublicKey
	}
	return out
}

// BuildRemainingAccounts concatenates prefix and the flattened groups.
func BuildRemainingAccounts(prefix []solana.PublicKey, groups []Group) (*AccountSet, error) {
	metas := make(solana.AccountMetaSlice, 0, len(prefix)+groupSize*len(groups))
	for i, addr := range prefix {
		if addr.IsZero() {
			return nil, fmt.Errorf("%w: prefix account %d is empty", ErrInconsistentAccounts, i)
		}
		metas = append(metas, solana.Meta(addr))
	}
	for _, g := range groups {
		metas = append(metas, g.Metas()...)
	}

	set := &AccountSet{Metas: metas, PrefixLen: len(prefix)}
	if tail := set.Len() - set.PrefixLen; tail%groupSize != 0 {
		return nil, fmt.Errorf("%w: %d accounts after a %d-account prefix", ErrInconsistentAccounts, tail, set.PrefixLen)
	}
	return set, nil
}
