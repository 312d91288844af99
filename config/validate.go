// Copyright (c) 2024 The matrixkit developers
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"strings"

	"github.com/matrixkit/matrixkit-go/alt"
)

// MaxComputeUnits is the ledger's per-transaction compute ceiling.
const MaxComputeUnits = 1_400_000

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validNetworks = map[string]bool{
	"localnet":     true,
	"devnet":       true,
	"testnet":      true,
	"mainnet-beta": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if !validNetworks[cfg.Network] {
		return ErrInvalidNetwork
	}

	// Protocol parses every address and checks the descriptor's needs.
	if _, err := cfg.Protocol(); err != nil {
		return err
	}

	rt := cfg.Runtime
	if rt.DataDir == "" {
		return ErrEmptyDataDir
	}
	if !validLogLevels[strings.ToLower(rt.LogLevel)] {
		return ErrInvalidLogLevel
	}
	if rt.LogFormat != "console" && rt.LogFormat != "json" {
		return ErrInvalidLogFormat
	}
	if rt.ConfirmAttempts < 1 || rt.TableAttempts < 1 || rt.ConfirmDelay < 0 || rt.TableDelay < 0 {
		return ErrInvalidRetry
	}
	if rt.ExtendBatch < 1 || rt.ExtendBatch > alt.MaxExtendBatch {
		return fmt.Errorf("%w: got %d, must be 1..%d", ErrInvalidBatchSize, rt.ExtendBatch, alt.MaxExtendBatch)
	}
	if rt.ComputeUnitLimit == 0 || rt.ComputeUnitLimit > MaxComputeUnits {
		return fmt.Errorf("%w: got %d, must be 1..%d", ErrInvalidComputeBudget, rt.ComputeUnitLimit, MaxComputeUnits)
	}

	return nil
}
