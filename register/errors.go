package register

import (
	"errors"
	"fmt"

	"github.com/matrixkit/matrixkit-go/alt"
	"github.com/matrixkit/matrixkit-go/matrix"
	"github.com/matrixkit/matrixkit-go/network"
	"github.com/matrixkit/matrixkit-go/tx"
	"github.com/matrixkit/matrixkit-go/wallet"
)

var (
	// ErrAlreadyRegistered indicates the payer already has a registered user account.
	ErrAlreadyRegistered = errors.New("register: user already registered")

	// ErrReferrerNotRegistered indicates the referrer has no registered user account.
	ErrReferrerNotRegistered = errors.New("register: referrer not registered")

	// ErrReferrerMatrixFull indicates all three referrer slots are filled.
	ErrReferrerMatrixFull = errors.New("register: referrer matrix full")

	// ErrSelfReferral indicates the payer named itself as referrer.
	ErrSelfReferral = errors.New("register: payer cannot refer itself")

	// ErrUplineTooDeep indicates the referrer's chain exceeds the descriptor's depth limit.
	ErrUplineTooDeep = errors.New("register: upline chain too deep")

	// ErrAncestorNotRegistered indicates an ancestor record is missing or
	// reports unregistered.
	ErrAncestorNotRegistered = errors.New("register: ancestor not registered")

	// ErrUnresolvableAncestor indicates an ancestor's wallet or token account
	// cannot be derived.
	ErrUnresolvableAncestor = errors.New("register: ancestor cannot be resolved")

	// ErrInconsistentAccounts indicates the remaining-accounts set violates
	// its group layout.
	ErrInconsistentAccounts = errors.New("register: inconsistent remaining accounts")

	// ErrNotRegisteredAfterSubmit indicates the transaction landed but the
	// user account does not report registered.
	ErrNotRegisteredAfterSubmit = errors.New("register: user not registered after confirmation")

	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("register: required parameter is nil")
)

// Category classifies an abort for reporting.
type Category string

const (
	CategoryPrecondition Category = "precondition"
	CategoryAncestor     Category = "ancestor"
	CategoryLookupTable  Category = "lookup_table"
	CategorySubmission   Category = "submission"
	CategoryInternal     Category = "internal"
	CategoryUnknown      Category = "unknown"
)

// AbortError wraps the cause of an aborted registration with the stage it
// failed in. The cause is kept verbatim.
type AbortError struct {
	Stage Stage
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("register: aborted at %s: %v", e.Stage, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// Classify returns the category of err.
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	var abort *AbortError
	if errors.As(err, &abort) && abort.Stage == StagePrepareLookupTable {
		return CategoryLookupTable
	}

	var execErr *tx.ExecutionError
	switch {
	case errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrReferrerNotRegistered),
		errors.Is(err, ErrReferrerMatrixFull),
		errors.Is(err, ErrSelfReferral),
		errors.Is(err, ErrUplineTooDeep),
		errors.Is(err, wallet.ErrInsufficientBalance):
		return CategoryPrecondition

	case errors.Is(err, ErrAncestorNotRegistered),
		errors.Is(err, ErrUnresolvableAncestor):
		return CategoryAncestor

	case errors.Is(err, alt.ErrLengthMismatch),
		errors.Is(err, alt.ErrContentMismatch),
		errors.Is(err, alt.ErrTableNotVisible),
		errors.Is(err, alt.ErrTableDeactivated),
		errors.Is(err, alt.ErrAuthorityMismatch),
		errors.Is(err, alt.ErrCapacityExceeded):
		return CategoryLookupTable

	case errors.As(err, &execErr),
		errors.Is(err, tx.ErrConfirmationTimeout),
		errors.Is(err, network.ErrBroadcastRejected),
		errors.Is(err, ErrNotRegisteredAfterSubmit):
		return CategorySubmission

	case errors.Is(err, ErrInconsistentAccounts),
		errors.Is(err, tx.ErrTableIncomplete),
		errors.Is(err, tx.ErrMultipleSigners),
		errors.Is(err, tx.ErrTransactionTooLarge),
		errors.Is(err, matrix.ErrCorruptRecord),
		errors.Is(err, matrix.ErrDecode),
		errors.Is(err, matrix.ErrBadDiscriminator),
		errors.Is(err, matrix.ErrWrongOwner),
		errors.Is(err, matrix.ErrInvalidDescriptor),
		errors.Is(err, matrix.ErrMissingAddress):
		return CategoryInternal
	}
	return CategoryUnknown
}
