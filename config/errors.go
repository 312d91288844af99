// Copyright (c) 2024 The matrixkit developers
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"localnet\", \"devnet\", \"testnet\", or \"mainnet-beta\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrInvalidLogFormat indicates the log format is not recognized.
	ErrInvalidLogFormat = errors.New("config: invalid log format (must be \"console\" or \"json\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigFile indicates the configuration file is not valid JSON.
	ErrInvalidConfigFile = errors.New("config: invalid configuration file")

	// ErrMissingField indicates a required field is empty.
	ErrMissingField = errors.New("config: required field is empty")

	// ErrInvalidAddress indicates an address is not valid base58.
	ErrInvalidAddress = errors.New("config: invalid address")

	// ErrDescriptorChoice indicates both descriptor and descriptor_file are set.
	ErrDescriptorChoice = errors.New("config: descriptor and descriptor_file are mutually exclusive")

	// ErrInvalidRetry indicates a retry attempt count or delay is out of range.
	ErrInvalidRetry = errors.New("config: retry attempts must be positive and delays non-negative")

	// ErrInvalidBatchSize indicates the lookup-table extend batch is out of range.
	ErrInvalidBatchSize = errors.New("config: extend batch out of range")

	// ErrInvalidComputeBudget indicates the compute unit limit is out of range.
	ErrInvalidComputeBudget = errors.New("config: compute unit limit out of range")
)
