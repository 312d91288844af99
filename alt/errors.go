package alt

import "errors"

var (
	// ErrDuplicateAddress indicates an address appears twice in a batch or is
	// already held by the table.
	ErrDuplicateAddress = errors.New("alt: duplicate address")

	// ErrCapacityExceeded indicates an extension would exceed the table capacity.
	ErrCapacityExceeded = errors.New("alt: table capacity exceeded")

	// ErrLengthMismatch indicates the table never reached the expected length.
	ErrLengthMismatch = errors.New("alt: table length mismatch")

	// ErrContentMismatch indicates the table holds different addresses than submitted.
	ErrContentMismatch = errors.New("alt: table content mismatch")

	// ErrTableDeactivated indicates the table has been deactivated.
	ErrTableDeactivated = errors.New("alt: table deactivated")

	// ErrInvalidBatchSize indicates the extend batch size is out of range.
	ErrInvalidBatchSize = errors.New("alt: invalid batch size")

	// ErrInvalidTableState indicates the account data is not a lookup table.
	ErrInvalidTableState = errors.New("alt: invalid lookup table state")

	// ErrNotLookupTable indicates the account is not owned by the lookup-table program.
	ErrNotLookupTable = errors.New("alt: account is not a lookup table")

	// ErrAuthorityMismatch indicates the table is controlled by another authority.
	ErrAuthorityMismatch = errors.New("alt: table authority mismatch")

	// ErrTableNotVisible indicates a created table never became readable.
	ErrTableNotVisible = errors.New("alt: table not visible")

	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("alt: required parameter is nil")
)
