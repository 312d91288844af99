package matrix

import (
	"bytes"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// RegisterParams are the per-registration inputs of the register instruction.
type RegisterParams struct {
	Payer          solana.PublicKey
	ReferrerWallet solana.PublicKey
	Deposit        uint64
}

// registerArgs is the borsh-encoded argument block following the discriminator.
type registerArgs struct {
	Deposit uint64
}

// BuildRegisterInstruction assembles the register call: the descriptor's
// fixed accounts in declared order followed by remaining verbatim.
func BuildRegisterInstruction(p *Protocol, params RegisterParams, remaining solana.AccountMetaSlice) (solana.Instruction, error) {
	if p == nil || p.Descriptor == nil {
		return nil, fmt.Errorf("%w: protocol", ErrNilParam)
	}
	if params.ReferrerWallet.IsZero() {
		return nil, fmt.Errorf("%w: referrer wallet", ErrNilParam)
	}
	resolved, err := p.resolveSources(params)
	if err != nil {
		return nil, err
	}
	metas, err := resolved.metas("register", p.Descriptor.RegisterAccounts, len(remaining))
	if err != nil {
		return nil, err
	}
	metas = append(metas, remaining...)

	var buf bytes.Buffer
	disc := InstructionDiscriminator(p.Descriptor.RegisterInstruction)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(&buf).Encode(registerArgs{Deposit: params.Deposit}); err != nil {
		return nil, fmt.Errorf("matrix: encode register args: %w", err)
	}

	return solana.NewInstruction(p.ProgramID, metas, buf.Bytes()), nil
}

// BuildClaimInstruction assembles the reward claim for the user owned by
// payer. The call carries no arguments beyond the discriminator.
func BuildClaimInstruction(p *Protocol, payer solana.PublicKey) (solana.Instruction, error) {
	if p == nil || p.Descriptor == nil {
		return nil, fmt.Errorf("%w: protocol", ErrNilParam)
	}
	if len(p.Descriptor.ClaimAccounts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrClaimUnsupported, p.Descriptor.Version)
	}
	resolved, err := p.resolveSources(RegisterParams{Payer: payer})
	if err != nil {
		return nil, err
	}
	metas, err := resolved.metas("claim", p.Descriptor.ClaimAccounts, 0)
	if err != nil {
		return nil, err
	}
	disc := InstructionDiscriminator(p.Descriptor.ClaimInstruction)
	return solana.NewInstruction(p.ProgramID, metas, disc[:]), nil
}

type sourceSet struct {
	protocol *Protocol
	fixed    map[string]solana.PublicKey
}

func (p *Protocol) resolveSources(params RegisterParams) (*sourceSet, error) {
	if params.Payer.IsZero() {
		return nil, fmt.Errorf("%w: payer", ErrNilParam)
	}
	user, err := p.UserAccount(params.Payer)
	if err != nil {
		return nil, err
	}
	payerToken, err := p.TokenAccount(params.Payer)
	if err != nil {
		return nil, err
	}
	set := &sourceSet{
		protocol: p,
		fixed: map[string]solana.PublicKey{
			SourcePayer:             params.Payer,
			SourceState:             p.State,
			SourceUser:              user,
			SourceTokenMint:         p.TokenMint,
			SourcePayerTokenAccount: payerToken,
		},
	}
	// Referrer sources stay unresolved for instructions without a referrer.
	if !params.ReferrerWallet.IsZero() {
		referrer, err := p.UserAccount(params.ReferrerWallet)
		if err != nil {
			return nil, err
		}
		set.fixed[SourceReferrer] = referrer
		set.fixed[SourceReferrerWallet] = params.ReferrerWallet
	}
	return set, nil
}

func (s *sourceSet) metas(kind string, specs []AccountSpec, extra int) (solana.AccountMetaSlice, error) {
	metas := make(solana.AccountMetaSlice, 0, len(specs)+extra)
	for _, spec := range specs {
		addr, err := s.lookup(spec.Source)
		if err != nil {
			return nil, fmt.Errorf("matrix: %s account %q: %w", kind, spec.Name, err)
		}
		metas = append(metas, solana.NewAccountMeta(addr, spec.Writable, spec.Signer))
	}
	return metas, nil
}

func (s *sourceSet) lookup(src string) (solana.PublicKey, error) {
	if addr, ok := s.fixed[src]; ok {
		return addr, nil
	}
	if key, ok := strings.CutPrefix(src, SourceAddressPrefix); ok {
		return s.protocol.Address(key)
	}
	if name, ok := strings.CutPrefix(src, SourceProgramPrefix); ok {
		switch name {
		case "system":
			return solana.SystemProgramID, nil
		case "token":
			return s.protocol.TokenProgram, nil
		case "associated_token":
			return s.protocol.AssociatedTokenProgram, nil
		case "rent":
			return solana.SysVarRentPubkey, nil
		}
	}
	return solana.PublicKey{}, fmt.Errorf("%w: unknown source %q", ErrInvalidDescriptor, src)
}
