package journal

import "errors"

var (
	// ErrNilParam indicates a required parameter is nil.
	ErrNilParam = errors.New("journal: required parameter is nil")

	// ErrTableNotFound indicates no lookup table is recorded under the address.
	ErrTableNotFound = errors.New("journal: table not found")

	// ErrInvalidRecord indicates a record is missing its key fields.
	ErrInvalidRecord = errors.New("journal: invalid record")
)
