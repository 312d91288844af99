package matrix

import "errors"

var (
	// ErrNotFound indicates the requested account does not exist on the ledger.
	// For a registrant this means "not yet registered" and is not fatal.
	ErrNotFound = errors.New("matrix: account not found")

	// ErrWrongOwner indicates the account is not owned by the matrix program.
	ErrWrongOwner = errors.New("matrix: account owned by unexpected program")

	// ErrBadDiscriminator indicates the account data does not start with the
	// expected account discriminator.
	ErrBadDiscriminator = errors.New("matrix: account discriminator mismatch")

	// ErrDecode indicates the account data could not be decoded.
	ErrDecode = errors.New("matrix: decode account data")

	// ErrCorruptRecord indicates a decoded record violates its invariants.
	ErrCorruptRecord = errors.New("matrix: corrupt record")

	// ErrInvalidDescriptor indicates the interface descriptor is malformed.
	ErrInvalidDescriptor = errors.New("matrix: invalid descriptor")

	// ErrUnknownDescriptor indicates no built-in descriptor has the requested version.
	ErrUnknownDescriptor = errors.New("matrix: unknown descriptor version")

	// ErrMissingAddress indicates a descriptor refers to a protocol address
	// that the configuration does not supply.
	ErrMissingAddress = errors.New("matrix: missing protocol address")

	// ErrClaimUnsupported indicates the descriptor declares no claim accounts.
	ErrClaimUnsupported = errors.New("matrix: descriptor has no claim instruction")

	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("matrix: required parameter is nil")
)
