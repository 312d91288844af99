package network

import (
	"fmt"
	"strconv"
)

// RPCConfig holds the connection parameters for a ledger JSON-RPC endpoint.
type RPCConfig struct {
	URL               string  `json:"url"`
	Network           string  `json:"network"`
	Commitment        string  `json:"commitment"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	BroadcastRetries  uint    `json:"broadcast_retries"`
}

// NetworkPresets contains default RPC configurations for known clusters.
// Mainnet is intentionally omitted to require explicit configuration.
var NetworkPresets = map[string]RPCConfig{
	"localnet": {URL: "http://127.0.0.1:8899", Commitment: "confirmed", RequestsPerSecond: 0},
	"devnet":   {URL: "https://api.devnet.solana.com", Commitment: "confirmed", RequestsPerSecond: 4},
	"testnet":  {URL: "https://api.testnet.solana.com", Commitment: "confirmed", RequestsPerSecond: 4},
}

// ResolveConfig merges RPC configuration from three sources with decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (MATRIX_RPC_URL, MATRIX_COMMITMENT, MATRIX_RPC_RPS)
//  3. Network presets (lowest priority, localnet/devnet/testnet only)
//
// For mainnet, explicit configuration is required -- there is no preset.
func ResolveConfig(flags *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	result := RPCConfig{Network: network, Commitment: "confirmed"}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if env != nil {
		if v, ok := env["MATRIX_RPC_URL"]; ok && v != "" {
			result.URL = v
		}
		if v, ok := env["MATRIX_COMMITMENT"]; ok && v != "" {
			result.Commitment = v
		}
		if v, ok := env["MATRIX_RPC_RPS"]; ok && v != "" {
			rps, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("network: invalid MATRIX_RPC_RPS %q: %w", v, err)
			}
			result.RequestsPerSecond = rps
		}
	}

	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.Commitment != "" {
			result.Commitment = flags.Commitment
		}
		if flags.RequestsPerSecond > 0 {
			result.RequestsPerSecond = flags.RequestsPerSecond
		}
		if flags.BroadcastRetries > 0 {
			result.BroadcastRetries = flags.BroadcastRetries
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("network: %s requires explicit RPC configuration (set --rpc-url, MATRIX_RPC_URL, or rpc_url in the config file)", network)
	}
	if !validCommitments[result.Commitment] {
		return nil, fmt.Errorf("%w: commitment %q", ErrInvalidConfig, result.Commitment)
	}

	return &result, nil
}

var validCommitments = map[string]bool{
	"processed": true,
	"confirmed": true,
	"finalized": true,
}
