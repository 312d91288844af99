package network

import "errors"

var (
	// ErrConnectionFailed indicates the client could not reach the RPC node.
	ErrConnectionFailed = errors.New("network: connection failed")

	// ErrAccountNotFound indicates the requested account does not exist on the ledger.
	ErrAccountNotFound = errors.New("network: account not found")

	// ErrBroadcastRejected indicates the node rejected the submitted transaction.
	ErrBroadcastRejected = errors.New("network: broadcast rejected")

	// ErrInvalidResponse indicates the node returned a malformed or unexpected response.
	ErrInvalidResponse = errors.New("network: invalid response")

	// ErrInvalidConfig indicates the RPC configuration is unusable.
	ErrInvalidConfig = errors.New("network: invalid configuration")
)
