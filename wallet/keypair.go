// Package wallet loads the payer keypair that signs registration and
// lookup-table transactions, and checks that it can fund them.
package wallet

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// LoadKeypair reads a payer keypair from path. Two encodings are accepted:
// the solana-keygen JSON array of 64 byte values, and a single base58 string
// as exported by browser wallets. Sealed files need LoadKeypairWithPassphrase.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	raw, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	if IsSealed(raw) {
		return nil, ErrPassphraseRequired
	}
	return ParseKeypair(raw)
}

func readKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeyFileNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("wallet: read keypair: %w", err)
	}
	return raw, nil
}

// ParseKeypair decodes keypair bytes in either supported encoding.
func ParseKeypair(raw []byte) (solana.PrivateKey, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKeyFile)
	}

	var key []byte
	if raw[0] == '[' {
		var values []int
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFile, err)
		}
		key = make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range (%d)", ErrInvalidKeyFile, i, v)
			}
			key[i] = byte(v)
		}
	} else {
		decoded, err := base58.Decode(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFile, err)
		}
		key = decoded
	}
	return checkKey(key)
}

// checkKey verifies that key is a 64-byte ed25519 keypair whose public half
// matches its seed.
func checkKey(key []byte) (solana.PrivateKey, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:]) {
		return nil, ErrKeyMismatch
	}
	return solana.PrivateKey(bytes.Clone(key)), nil
}

// BalanceReader is the subset of the ledger needed for funding checks.
type BalanceReader interface {
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
}

// EnsureBalance returns ErrInsufficientBalance if owner holds fewer than required lamports.
func EnsureBalance(ctx context.Context, ledger BalanceReader, owner solana.PublicKey, required uint64) (uint64, error) {
	balance, err := ledger.GetBalance(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("wallet: fetch balance: %w", err)
	}
	if balance < required {
		return balance, fmt.Errorf("%w: need %d lamports, have %d", ErrInsufficientBalance, required, balance)
	}
	return balance, nil
}
