package matrix

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Protocol binds a descriptor to the concrete addresses of one deployment.
// Components take a Protocol instead of embedding literal addresses.
type Protocol struct {
	ProgramID              solana.PublicKey
	TokenMint              solana.PublicKey
	State                  solana.PublicKey
	TokenProgram           solana.PublicKey
	AssociatedTokenProgram solana.PublicKey
	Addresses              map[string]solana.PublicKey
	Descriptor             *Descriptor
	DepositLamports        uint64
}

// Validate checks that the descriptor is sound and every address it refers
// to is configured.
func (p *Protocol) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: protocol", ErrNilParam)
	}
	if err := p.Descriptor.Validate(); err != nil {
		return err
	}
	for name, key := range map[string]solana.PublicKey{
		"program id":               p.ProgramID,
		"token mint":               p.TokenMint,
		"state":                    p.State,
		"token program":            p.TokenProgram,
		"associated token program": p.AssociatedTokenProgram,
	} {
		if key.IsZero() {
			return fmt.Errorf("%w: %s", ErrMissingAddress, name)
		}
	}
	for _, key := range p.Descriptor.RequiredAddresses() {
		if _, err := p.Address(key); err != nil {
			return err
		}
	}
	return nil
}

// Address returns the configured protocol address named key.
func (p *Protocol) Address(key string) (solana.PublicKey, error) {
	addr, ok := p.Addresses[key]
	if !ok || addr.IsZero() {
		return solana.PublicKey{}, fmt.Errorf("%w: %q", ErrMissingAddress, key)
	}
	return addr, nil
}

// UserAccount derives the identity account of wallet under this program.
func (p *Protocol) UserAccount(wallet solana.PublicKey) (solana.PublicKey, error) {
	return DeriveUserAccount(p.Descriptor.UserSeed, wallet, p.ProgramID)
}

// TokenAccount derives the associated token account of wallet for the
// protocol mint.
func (p *Protocol) TokenAccount(wallet solana.PublicKey) (solana.PublicKey, error) {
	return DeriveTokenAccount(wallet, p.TokenMint, p.TokenProgram, p.AssociatedTokenProgram)
}

// RemainingPrefix resolves the descriptor's fixed remaining-accounts prefix.
func (p *Protocol) RemainingPrefix() ([]solana.PublicKey, error) {
	prefix := make([]solana.PublicKey, 0, len(p.Descriptor.RemainingPrefix))
	for _, key := range p.Descriptor.RemainingPrefix {
		addr, err := p.Address(key)
		if err != nil {
			return nil, err
		}
		prefix = append(prefix, addr)
	}
	return prefix, nil
}
