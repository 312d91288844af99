package wallet

import "errors"

var (
	// ErrKeyFileNotFound indicates the keypair file does not exist.
	ErrKeyFileNotFound = errors.New("wallet: keypair file not found")

	// ErrInvalidKeyFile indicates the keypair file is neither a JSON byte array nor base58.
	ErrInvalidKeyFile = errors.New("wallet: invalid keypair file")

	// ErrInvalidKeyLength indicates the decoded key is not 64 bytes.
	ErrInvalidKeyLength = errors.New("wallet: keypair must be 64 bytes")

	// ErrKeyMismatch indicates the public half does not match the private seed.
	ErrKeyMismatch = errors.New("wallet: public key does not match private seed")

	// ErrInsufficientBalance indicates the payer cannot cover the required lamports.
	ErrInsufficientBalance = errors.New("wallet: insufficient balance")

	// ErrPassphraseRequired indicates a sealed keypair was loaded without a passphrase.
	ErrPassphraseRequired = errors.New("wallet: sealed keypair needs a passphrase")

	// ErrDecryptionFailed indicates a wrong passphrase or corrupted sealed keypair.
	ErrDecryptionFailed = errors.New("wallet: keypair decryption failed (wrong passphrase or corrupted data)")

	// ErrChecksumMismatch indicates the decrypted keypair failed its checksum.
	ErrChecksumMismatch = errors.New("wallet: keypair checksum mismatch")
)
