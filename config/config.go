// Copyright (c) 2024 The matrixkit developers
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package config loads the protocol configuration file and the runtime
// settings layered over it from .env files and MATRIX_* variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"

	"github.com/matrixkit/matrixkit-go/matrix"
	"github.com/matrixkit/matrixkit-go/network"
	"github.com/matrixkit/matrixkit-go/retry"
)

// EnvPrefix is prepended to every runtime variable name.
const EnvPrefix = "MATRIX_"

// Config is one deployment of the matrix program plus the runtime knobs of
// this client. The JSON file supplies the deployment; Runtime comes from the
// environment.
type Config struct {
	ProgramID       string            `json:"program_id"`
	TokenMint       string            `json:"token_mint"`
	State           string            `json:"state"`
	Addresses       map[string]string `json:"addresses"`
	Descriptor      string            `json:"descriptor,omitempty"`
	DescriptorFile  string            `json:"descriptor_file,omitempty"`
	DepositLamports uint64            `json:"deposit_lamports"`
	RPCURL          string            `json:"rpc_url,omitempty"`
	Network         string            `json:"network"`

	Runtime Runtime `json:"-"`

	// dir is the directory of the loaded file; relative descriptor paths
	// resolve against it.
	dir string
}

// Runtime holds settings that vary per machine rather than per deployment.
type Runtime struct {
	RPCURL           string        `env:"RPC_URL"`
	Commitment       string        `env:"COMMITMENT"`
	RequestsPerSec   float64       `env:"RPC_RPS"`
	BroadcastRetries uint          `env:"BROADCAST_RETRIES"`
	LogLevel         string        `env:"LOG_LEVEL"`
	LogFormat        string        `env:"LOG_FORMAT"`
	DataDir          string        `env:"DATA_DIR"`
	ComputeUnitLimit uint32        `env:"CU_LIMIT"`
	ComputeUnitPrice uint64        `env:"CU_PRICE"`
	FeeReserve       uint64        `env:"FEE_RESERVE"`
	ConfirmAttempts  int           `env:"CONFIRM_ATTEMPTS"`
	ConfirmDelay     time.Duration `env:"CONFIRM_DELAY"`
	TableAttempts    int           `env:"TABLE_ATTEMPTS"`
	TableDelay       time.Duration `env:"TABLE_DELAY"`
	ExtendBatch      int           `env:"EXTEND_BATCH"`
	// KeyPassphrase opens sealed payer keypair files.
	KeyPassphrase string `env:"KEY_PASSPHRASE"`
}

// DefaultRuntime returns the runtime settings used for unset variables.
// DataDir is left empty.
func DefaultRuntime() Runtime {
	return Runtime{
		BroadcastRetries: 3,
		LogLevel:         "info",
		LogFormat:        "console",
		ComputeUnitLimit: MaxComputeUnits,
		ComputeUnitPrice: 10_000,
		FeeReserve:       10_000_000,
		ConfirmAttempts:  30,
		ConfirmDelay:     2 * time.Second,
		TableAttempts:    10,
		TableDelay:       2 * time.Second,
		ExtendBatch:      20,
	}
}

// DefaultConfig returns a devnet Config with default runtime settings.
func DefaultConfig() Config {
	cfg := Config{
		Network:   "devnet",
		Addresses: map[string]string{},
		Runtime:   DefaultRuntime(),
	}
	cfg.Runtime.DataDir = DefaultDataDir()
	return cfg
}

// DefaultDataDir returns ~/.matrixkit, or .matrixkit when the home directory
// cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".matrixkit"
	}
	return filepath.Join(home, ".matrixkit")
}

// JournalPath returns the journal database location inside the data directory.
func (c Config) JournalPath() string {
	return filepath.Join(c.Runtime.DataDir, "journal.db")
}

// LoadConfig reads the JSON configuration file at path over DefaultConfig.
// Runtime settings are not read; call ApplyEnv for those.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}
	if cfg.Addresses == nil {
		cfg.Addresses = map[string]string{}
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// SaveConfig writes the deployment part of cfg as indented JSON.
func SaveConfig(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables already set are kept. An empty path loads ./.env if present.
func LoadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv fills cfg.Runtime from MATRIX_* variables in environ. A nil
// environ reads the process environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	rt := DefaultRuntime()
	if err := env.ParseWithOptions(&rt, opts); err != nil {
		return fmt.Errorf("config: parse environment: %w", err)
	}
	if rt.DataDir == "" {
		rt.DataDir = cfg.Runtime.DataDir
	}
	if rt.DataDir == "" {
		rt.DataDir = DefaultDataDir()
	}
	cfg.Runtime = rt
	return nil
}

// ResolveRPC layers the RPC endpoint: network preset, then the file's
// rpc_url, then MATRIX_* runtime settings, then flagURL.
func (c Config) ResolveRPC(flagURL string) (*network.RPCConfig, error) {
	layered := map[string]string{}
	url := c.Runtime.RPCURL
	if url == "" {
		url = c.RPCURL
	}
	if url != "" {
		layered["MATRIX_RPC_URL"] = url
	}
	if c.Runtime.Commitment != "" {
		layered["MATRIX_COMMITMENT"] = c.Runtime.Commitment
	}
	if c.Runtime.RequestsPerSec > 0 {
		layered["MATRIX_RPC_RPS"] = strconv.FormatFloat(c.Runtime.RequestsPerSec, 'f', -1, 64)
	}
	flags := &network.RPCConfig{URL: flagURL, BroadcastRetries: c.Runtime.BroadcastRetries}
	return network.ResolveConfig(flags, layered, c.Network)
}

// DefaultDescriptor is used when the file names neither a built-in
// descriptor nor a descriptor file.
const DefaultDescriptor = "v1"

// LoadDescriptor returns the built-in or file descriptor named by cfg.
func (c Config) LoadDescriptor() (*matrix.Descriptor, error) {
	if c.Descriptor != "" && c.DescriptorFile != "" {
		return nil, ErrDescriptorChoice
	}
	if c.DescriptorFile == "" {
		version := c.Descriptor
		if version == "" {
			version = DefaultDescriptor
		}
		return matrix.Builtin(version)
	}
	path := c.DescriptorFile
	if !filepath.IsAbs(path) && c.dir != "" {
		path = filepath.Join(c.dir, path)
	}
	return matrix.LoadDescriptor(path)
}

// Protocol parses every address and binds them to the descriptor.
func (c Config) Protocol() (*matrix.Protocol, error) {
	desc, err := c.LoadDescriptor()
	if err != nil {
		return nil, err
	}
	p := &matrix.Protocol{
		TokenProgram:           solana.TokenProgramID,
		AssociatedTokenProgram: solana.SPLAssociatedTokenAccountProgramID,
		Addresses:              make(map[string]solana.PublicKey, len(c.Addresses)),
		Descriptor:             desc,
		DepositLamports:        c.DepositLamports,
	}
	for _, f := range []struct {
		name  string
		value string
		dst   *solana.PublicKey
	}{
		{"program_id", c.ProgramID, &p.ProgramID},
		{"token_mint", c.TokenMint, &p.TokenMint},
		{"state", c.State, &p.State},
	} {
		key, err := parseAddress(f.name, f.value)
		if err != nil {
			return nil, err
		}
		*f.dst = key
	}
	for name, v := range c.Addresses {
		key, err := parseAddress("addresses."+name, v)
		if err != nil {
			return nil, err
		}
		p.Addresses[name] = key
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseAddress(field, v string) (solana.PublicKey, error) {
	if v == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	key, err := solana.PublicKeyFromBase58(v)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s: %w", ErrInvalidAddress, field, err)
	}
	return key, nil
}

// ConfirmPolicy returns the retry policy for transaction confirmation.
func (r Runtime) ConfirmPolicy() retry.Policy {
	return retry.NewPolicy(
		retry.WithAttempts(r.ConfirmAttempts),
		retry.WithDelay(r.ConfirmDelay),
		retry.WithMessage("awaiting confirmation"),
	)
}

// TablePolicy returns the retry policy for lookup-table visibility polling.
func (r Runtime) TablePolicy() retry.Policy {
	return retry.NewPolicy(
		retry.WithAttempts(r.TableAttempts),
		retry.WithDelay(r.TableDelay),
		retry.WithMessage("awaiting lookup table"),
	)
}
