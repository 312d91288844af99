// Package register drives a single referral registration from precondition
// checks through confirmation. It resolves the referrer's upline chain,
// lays out the remaining accounts the program expects and picks between a
// legacy and a lookup-table transaction.
package register

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/matrixkit/matrixkit-go/matrix"
)

// Group is the account triple the program expects for one ancestor.
type Group struct {
	Account      solana.PublicKey
	Wallet       solana.PublicKey
	TokenAccount solana.PublicKey
}

// Metas returns the group in program order, all writable.
func (g Group) Metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.Meta(g.Account).WRITE(),
		solana.Meta(g.Wallet).WRITE(),
		solana.Meta(g.TokenAccount).WRITE(),
	}
}

// Resolver turns a referrer's stored upline list into account groups.
type Resolver struct {
	reader   *matrix.StateReader
	protocol *matrix.Protocol
	logger   zerolog.Logger
}

// NewResolver returns a resolver reading ancestors through reader.
func NewResolver(reader *matrix.StateReader, protocol *matrix.Protocol, logger zerolog.Logger) *Resolver {
	return &Resolver{
		reader:   reader,
		protocol: protocol,
		logger:   logger.With().Str("component", "upline_resolver").Logger(),
	}
}

// NeedsUplines reports whether registering under referrer fills its last
// slot and therefore has to carry every ancestor. Base participants never do.
func (r *Resolver) NeedsUplines(referrer *matrix.UserRecord) bool {
	if referrer == nil || referrer.IsBase() {
		return false
	}
	return referrer.Chain.FilledSlots == r.protocol.Descriptor.UplineSlotThreshold
}

// Resolve returns one group per ancestor of referrer, in the order the
// program expects. The chain is checked for shape before any ledger call, and
// a single unresolvable ancestor fails the whole chain.
func (r *Resolver) Resolve(ctx context.Context, referrer *matrix.UserRecord) ([]Group, error) {
	if referrer == nil {
		return nil, fmt.Errorf("%w: referrer", ErrNilParam)
	}
	if !r.NeedsUplines(referrer) {
		return nil, nil
	}

	entries := referrer.Upline.Entries
	if limit := r.protocol.Descriptor.MaxUplineDepth; len(entries) > limit {
		return nil, fmt.Errorf("%w: %d ancestors, limit %d", ErrUplineTooDeep, len(entries), limit)
	}
	seen := make(map[solana.PublicKey]int, len(entries))
	for i, e := range entries {
		if e.Account.IsZero() || e.Wallet.IsZero() {
			return nil, fmt.Errorf("%w: ancestor %d has an empty address", ErrUnresolvableAncestor, i)
		}
		if j, dup := seen[e.Account]; dup {
			return nil, fmt.Errorf("%w: ancestor %s listed at %d and %d", ErrUnresolvableAncestor, e.Account, j, i)
		}
		seen[e.Account] = i
	}

	groups := make([]Group, 0, len(entries))
	for i, e := range entries {
		g, err := r.resolveOne(ctx, i, e)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	if r.protocol.Descriptor.ReverseUplines {
		slices.Reverse(groups)
	}
	r.logger.Debug().Int("groups", len(groups)).Bool("reversed", r.protocol.Descriptor.ReverseUplines).Msg("upline chain resolved")
	return groups, nil
}

func (r *Resolver) resolveOne(ctx context.Context, i int, e matrix.UplineEntry) (Group, error) {
	rec, err := r.reader.FetchUserRecord(ctx, e.Account)
	switch {
	case errors.Is(err, matrix.ErrNotFound):
		return Group{}, fmt.Errorf("%w: ancestor %d (%s) has no account", ErrAncestorNotRegistered, i, e.Account)
	case err != nil:
		return Group{}, fmt.Errorf("%w: ancestor %d (%s): %w", ErrUnresolvableAncestor, i, e.Account, err)
	case !rec.IsRegistered:
		return Group{}, fmt.Errorf("%w: ancestor %d (%s) reports unregistered", ErrAncestorNotRegistered, i, e.Account)
	}

	wallet := rec.Owner
	if wallet.IsZero() {
		return Group{}, fmt.Errorf("%w: ancestor %d (%s) has no owner", ErrUnresolvableAncestor, i, e.Account)
	}
	if !wallet.Equals(e.Wallet) {
		r.logger.Warn().
			Stringer("ancestor", e.Account).
			Stringer("stored_wallet", e.Wallet).
			Stringer("owner", wallet).
			Msg("ancestor wallet differs from upline entry, using current owner")
	}

	token, err := r.protocol.TokenAccount(wallet)
	if err != nil {
		return Group{}, fmt.Errorf("%w: ancestor %d token account: %w", ErrUnresolvableAncestor, i, err)
	}

	exists, err := r.reader.AccountExists(ctx, token)
	switch {
	case err != nil:
		r.logger.Debug().Err(err).Stringer("token_account", token).Msg("could not check ancestor token account")
	case !exists:
		r.logger.Warn().Stringer("ancestor", e.Account).Stringer("token_account", token).Msg("ancestor token account missing, program will create it")
	}

	return Group{Account: e.Account, Wallet: wallet, TokenAccount: token}, nil
}
