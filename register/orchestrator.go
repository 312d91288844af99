package register

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/matrixkit/matrixkit-go/alt"
	"github.com/matrixkit/matrixkit-go/journal"
	"github.com/matrixkit/matrixkit-go/matrix"
	"github.com/matrixkit/matrixkit-go/network"
	"github.com/matrixkit/matrixkit-go/retry"
	"github.com/matrixkit/matrixkit-go/tx"
	"github.com/matrixkit/matrixkit-go/wallet"
)

// Journal records attempts and the lookup tables they create. *journal.Store
// satisfies it.
type Journal interface {
	RecordAttempt(a *journal.Attempt) error
	RecordTable(t *journal.TableRecord) error
	MarkTableComplete(address string, count int) error
}

// Options tune the transactions and polling of a registration.
type Options struct {
	Tx          tx.Config
	TablePolicy retry.Policy
	// ExtendBatch is the number of addresses per lookup-table extension.
	ExtendBatch int
	// FeeReserve is required on top of the deposit before anything is built.
	FeeReserve uint64
}

// Request names who registers and under whom.
type Request struct {
	Payer          solana.PrivateKey
	ReferrerWallet solana.PublicKey
	// Deposit overrides the protocol's default deposit when non-zero.
	Deposit uint64
	// LookupTable attaches an existing table instead of creating one.
	LookupTable *solana.PublicKey
}

// Orchestrator runs registrations for one protocol deployment. Each call to
// Register is independent and shares no mutable state with another.
type Orchestrator struct {
	ledger   network.LedgerService
	protocol *matrix.Protocol
	opts     Options
	reader   *matrix.StateReader
	resolver *Resolver
	logger   zerolog.Logger

	// Journal is optional.
	Journal Journal
}

// NewOrchestrator validates protocol and returns an orchestrator for it.
func NewOrchestrator(ledger network.LedgerService, protocol *matrix.Protocol, opts Options, logger zerolog.Logger) (*Orchestrator, error) {
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger", ErrNilParam)
	}
	if err := protocol.Validate(); err != nil {
		return nil, err
	}
	if opts.ExtendBatch < 1 || opts.ExtendBatch > alt.MaxExtendBatch {
		return nil, fmt.Errorf("%w: %d (must be 1..%d)", alt.ErrInvalidBatchSize, opts.ExtendBatch, alt.MaxExtendBatch)
	}
	logger = logger.With().Str("component", "registration").Str("descriptor", protocol.Descriptor.Version).Logger()
	reader := matrix.NewStateReader(ledger, protocol, logger)
	return &Orchestrator{
		ledger:   ledger,
		protocol: protocol,
		opts:     opts,
		reader:   reader,
		resolver: NewResolver(reader, protocol, logger),
		logger:   logger,
	}, nil
}

// run is the state of one registration.
type run struct {
	o         *Orchestrator
	req       Request
	res       *Result
	logger    zerolog.Logger
	assembler *tx.Assembler
	deposit   uint64
	referrer  *matrix.UserRecord
	groups    []Group
	remaining *AccountSet
	ix        solana.Instruction
	table     *alt.Handle
}

// Register walks the registration state machine. On failure the returned
// Result reports the stage that aborted and the error is an *AbortError
// wrapping the cause.
func (o *Orchestrator) Register(ctx context.Context, req Request) (*Result, error) {
	r := &run{
		o:       o,
		req:     req,
		res:     &Result{Stage: StageInit},
		logger:  o.logger,
		deposit: o.protocol.DepositLamports,
	}
	if req.Deposit != 0 {
		r.deposit = req.Deposit
	}
	started := time.Now().UTC()

	steps := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageInit, r.init},
		{StageCheckUserNotRegistered, r.checkUserNotRegistered},
		{StageCheckBalance, r.checkBalance},
		{StageCheckReferrerRegistered, r.checkReferrerRegistered},
		{StageDetermineSlot, r.determineSlot},
		{StageResolveUplines, r.resolveUplines},
		{StageBuildRemainingAccounts, r.buildRemainingAccounts},
		{StageChooseMode, r.chooseMode},
		{StagePrepareLookupTable, r.prepareLookupTable},
		{StageAssembleAndSubmit, r.assembleAndSubmit},
		{StageConfirmAndVerify, r.confirmAndVerify},
	}

	var err error
	for _, step := range steps {
		r.res.Stage = step.stage
		if err = ctx.Err(); err == nil {
			err = step.fn(ctx)
		}
		if err != nil {
			err = &AbortError{Stage: step.stage, Err: err}
			r.res.FailedStage = step.stage
			r.res.Stage = StageAborted
			r.res.Category = Classify(err)
			r.logger.Error().Err(err).Stringer("stage", step.stage).Str("category", string(r.res.Category)).Msg("registration aborted")
			break
		}
	}
	if err == nil {
		r.res.Stage = StageDone
		r.logger.Info().
			Stringer("user", r.res.User).
			Int("slot", r.res.Slot).
			Stringer("mode", r.res.Mode).
			Stringer("signature", r.res.Signature).
			Msg("registration complete")
	}

	o.recordAttempt(r.res, started, err)
	return r.res, err
}

func (r *run) init(context.Context) error {
	if len(r.req.Payer) == 0 {
		return fmt.Errorf("%w: payer key", ErrNilParam)
	}
	if r.req.ReferrerWallet.IsZero() {
		return fmt.Errorf("%w: referrer wallet", ErrNilParam)
	}
	payer := r.req.Payer.PublicKey()
	if payer.Equals(r.req.ReferrerWallet) {
		return fmt.Errorf("%w: %s", ErrSelfReferral, payer)
	}

	user, err := r.o.protocol.UserAccount(payer)
	if err != nil {
		return err
	}
	referrer, err := r.o.protocol.UserAccount(r.req.ReferrerWallet)
	if err != nil {
		return err
	}
	r.res.Payer = payer
	r.res.User = user
	r.res.ReferrerWallet = r.req.ReferrerWallet
	r.res.Referrer = referrer
	r.logger = r.logger.With().Stringer("payer", payer).Stringer("referrer_wallet", r.req.ReferrerWallet).Logger()
	r.assembler = tx.NewAssembler(r.o.ledger, r.req.Payer, r.o.opts.Tx, r.logger)
	r.logger.Info().Stringer("user", user).Stringer("referrer", referrer).Uint64("deposit", r.deposit).Msg("registration started")
	return nil
}

func (r *run) checkUserNotRegistered(ctx context.Context) error {
	rec, err := r.o.reader.FetchUserRecord(ctx, r.res.User)
	if errors.Is(err, matrix.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.IsRegistered {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, r.res.User)
	}
	return nil
}

func (r *run) checkBalance(ctx context.Context) error {
	balance, err := wallet.EnsureBalance(ctx, r.o.ledger, r.res.Payer, r.deposit+r.o.opts.FeeReserve)
	if err != nil {
		return err
	}
	r.logger.Debug().Uint64("balance", balance).Msg("payer balance sufficient")
	return nil
}

func (r *run) checkReferrerRegistered(ctx context.Context) error {
	rec, err := r.o.reader.FetchUserRecord(ctx, r.res.Referrer)
	if errors.Is(err, matrix.ErrNotFound) {
		return fmt.Errorf("%w: %s has no account", ErrReferrerNotRegistered, r.res.Referrer)
	}
	if err != nil {
		return err
	}
	if !rec.IsRegistered {
		return fmt.Errorf("%w: %s", ErrReferrerNotRegistered, r.res.Referrer)
	}
	if !rec.Owner.Equals(r.req.ReferrerWallet) {
		r.logger.Warn().Stringer("owner", rec.Owner).Msg("referrer record owner differs from referrer wallet")
	}
	r.referrer = rec
	return nil
}

func (r *run) determineSlot(context.Context) error {
	filled := r.referrer.Chain.FilledSlots
	if filled >= matrix.SlotCount {
		return fmt.Errorf("%w: %s has %d of %d slots filled", ErrReferrerMatrixFull, r.res.Referrer, filled, matrix.SlotCount)
	}
	r.res.Slot = int(filled) + 1
	r.logger.Info().
		Int("slot", r.res.Slot).
		Bool("base_referrer", r.referrer.IsBase()).
		Bool("needs_uplines", r.o.resolver.NeedsUplines(r.referrer)).
		Msg("slot determined")
	return nil
}

func (r *run) resolveUplines(ctx context.Context) error {
	groups, err := r.o.resolver.Resolve(ctx, r.referrer)
	if err != nil {
		return err
	}
	r.groups = groups
	r.res.Uplines = len(groups)
	if len(groups) > 0 {
		r.logger.Info().Int("uplines", len(groups)).Msg("upline chain included")
	}
	return nil
}

func (r *run) buildRemainingAccounts(context.Context) error {
	prefix, err := r.o.protocol.RemainingPrefix()
	if err != nil {
		return err
	}
	set, err := BuildRemainingAccounts(prefix, r.groups)
	if err != nil {
		return err
	}
	if set.Groups() != len(r.groups) {
		return fmt.Errorf("%w: %d groups laid out for %d uplines", ErrInconsistentAccounts, set.Groups(), len(r.groups))
	}
	r.remaining = set
	r.res.RemainingAccounts = set.Len()

	ix, err := matrix.BuildRegisterInstruction(r.o.protocol, matrix.RegisterParams{
		Payer:          r.res.Payer,
		ReferrerWallet: r.req.ReferrerWallet,
		Deposit:        r.deposit,
	}, set.Metas)
	if err != nil {
		return err
	}
	r.ix = ix
	return nil
}

func (r *run) chooseMode(context.Context) error {
	r.res.Mode = tx.ChooseMode(r.remaining.Len(), r.o.protocol.Descriptor.DirectAccountCeiling)
	if r.res.Mode == tx.ModeDirect && r.req.LookupTable != nil {
		r.logger.Info().Stringer("table", *r.req.LookupTable).Msg("lookup table not needed, ignoring")
	}
	r.logger.Info().
		Stringer("mode", r.res.Mode).
		Int("remaining_accounts", r.remaining.Len()).
		Int("ceiling", r.o.protocol.Descriptor.DirectAccountCeiling).
		Msg("transaction mode chosen")
	return nil
}

func (r *run) prepareLookupTable(ctx context.Context) error {
	if r.res.Mode != tx.ModeCompressed {
		return nil
	}
	mgr := alt.NewManager(r.o.ledger, r.assembler, r.res.Payer, r.o.opts.TablePolicy, r.logger)

	var (
		h   *alt.Handle
		err error
	)
	if r.req.LookupTable != nil {
		h, err = mgr.Load(ctx, *r.req.LookupTable)
	} else {
		h, err = mgr.Create(ctx)
	}
	if err != nil {
		return err
	}
	r.res.LookupTable = h.Address

	needed := tx.LookupAddresses([]solana.Instruction{r.ix})
	r.o.recordTable(&journal.TableRecord{
		Address:   h.Address.String(),
		Authority: h.Authority.String(),
		CreatedAt: time.Now().UTC(),
		Expected:  len(needed),
		Count:     h.Len(),
		Created:   h.Created,
	})

	missing := h.Missing(needed)
	r.logger.Info().
		Stringer("table", h.Address).
		Int("needed", len(needed)).
		Int("missing", len(missing)).
		Msg("populating lookup table")
	if len(missing) > 0 {
		if h, err = mgr.Extend(ctx, h, missing, r.o.opts.ExtendBatch); err != nil {
			return err
		}
	} else if h, err = mgr.Verify(ctx, h); err != nil {
		return err
	}

	r.table = h
	r.o.markTableComplete(h)
	return nil
}

func (r *run) assembleAndSubmit(ctx context.Context) error {
	txn, err := r.assembler.Assemble(ctx, []solana.Instruction{r.ix}, r.res.Mode, r.table)
	if err != nil {
		return err
	}
	sig, err := r.assembler.Submit(ctx, txn)
	if err != nil {
		return err
	}
	r.res.Signature = sig
	return nil
}

func (r *run) confirmAndVerify(ctx context.Context) error {
	if err := r.assembler.Confirm(ctx, r.res.Signature); err != nil {
		return err
	}
	rec, err := r.o.reader.FetchUserRecord(ctx, r.res.User)
	if errors.Is(err, matrix.ErrNotFound) {
		return fmt.Errorf("%w: %s has no account", ErrNotRegisteredAfterSubmit, r.res.User)
	}
	if err != nil {
		return err
	}
	if !rec.IsRegistered {
		return fmt.Errorf("%w: %s", ErrNotRegisteredAfterSubmit, r.res.User)
	}
	r.res.Record = rec
	return nil
}

func (o *Orchestrator) recordAttempt(res *Result, started time.Time, cause error) {
	if o.Journal == nil {
		return
	}
	a := &journal.Attempt{
		StartedAt:         started,
		FinishedAt:        time.Now().UTC(),
		Payer:             keyString(res.Payer),
		ReferrerWallet:    keyString(res.ReferrerWallet),
		User:              keyString(res.User),
		Stage:             res.Stage.String(),
		Succeeded:         cause == nil,
		Slot:              res.Slot,
		Uplines:           res.Uplines,
		RemainingAccounts: res.RemainingAccounts,
		Mode:              res.Mode.String(),
		LookupTable:       keyString(res.LookupTable),
	}
	if cause != nil {
		a.Stage = res.FailedStage.String()
		a.Category = string(res.Category)
		a.Error = cause.Error()
	}
	if res.Signature != (solana.Signature{}) {
		a.Signature = res.Signature.String()
	}
	if err := o.Journal.RecordAttempt(a); err != nil {
		o.logger.Warn().Err(err).Msg("could not journal attempt")
	}
}

func (o *Orchestrator) recordTable(t *journal.TableRecord) {
	if o.Journal == nil {
		return
	}
	if err := o.Journal.RecordTable(t); err != nil {
		o.logger.Warn().Err(err).Str("table", t.Address).Msg("could not journal lookup table")
	}
}

func (o *Orchestrator) markTableComplete(h *alt.Handle) {
	if o.Journal == nil {
		return
	}
	if err := o.Journal.MarkTableComplete(h.Address.String(), h.Len()); err != nil {
		o.logger.Warn().Err(err).Stringer("table", h.Address).Msg("could not journal lookup table completion")
	}
}

func keyString(k solana.PublicKey) string {
	if k.IsZero() {
		return ""
	}
	return k.String()
}
