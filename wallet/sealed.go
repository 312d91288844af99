package wallet

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for keypair sealing.
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32

	saltLen     = 16
	nonceLen    = 12
	checksumLen = 4
)

// sealMagic prefixes every sealed keypair file.
var sealMagic = []byte("mkseal1\n")

// IsSealed reports whether raw is a sealed keypair.
func IsSealed(raw []byte) bool {
	return bytes.HasPrefix(raw, sealMagic)
}

// SealKeypair encrypts key under passphrase with Argon2id and AES-256-GCM.
//
// Output format: magic || salt(16B) || nonce(12B) || AES-GCM(key || SHA256(key)[:4])
func SealKeypair(key solana.PrivateKey, passphrase string) ([]byte, error) {
	if len(key) != 64 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKeyLength, len(key))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate salt: %w", err)
	}
	gcm, err := sealCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: failed to generate nonce: %w", err)
	}

	sum := sha256.Sum256(key)
	plaintext := make([]byte, 0, len(key)+checksumLen)
	plaintext = append(plaintext, key...)
	plaintext = append(plaintext, sum[:checksumLen]...)

	out := make([]byte, 0, len(sealMagic)+saltLen+nonceLen+len(plaintext)+gcm.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// OpenSealedKeypair decrypts a SealKeypair result and checks the key.
func OpenSealedKeypair(sealed []byte, passphrase string) (solana.PrivateKey, error) {
	if !IsSealed(sealed) {
		return nil, fmt.Errorf("%w: not a sealed keypair", ErrInvalidKeyFile)
	}
	body := sealed[len(sealMagic):]
	if len(body) < saltLen+nonceLen+checksumLen {
		return nil, ErrDecryptionFailed
	}
	salt := body[:saltLen]
	nonce := body[saltLen : saltLen+nonceLen]

	gcm, err := sealCipher(passphrase, salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, nonce, body[saltLen+nonceLen:], nil)
	if err != nil || len(plaintext) < checksumLen {
		return nil, ErrDecryptionFailed
	}

	key := plaintext[:len(plaintext)-checksumLen]
	sum := sha256.Sum256(key)
	if !bytes.Equal(plaintext[len(key):], sum[:checksumLen]) {
		return nil, ErrChecksumMismatch
	}
	return checkKey(key)
}

// LoadKeypairWithPassphrase reads a keypair file that may be sealed. Plain
// files ignore passphrase.
func LoadKeypairWithPassphrase(path, passphrase string) (solana.PrivateKey, error) {
	raw, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	if !IsSealed(raw) {
		return ParseKeypair(raw)
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	return OpenSealedKeypair(raw, passphrase)
}

// SealKeypairFile reads the plain keypair at src and writes it sealed to dst.
func SealKeypairFile(src, dst, passphrase string) (solana.PublicKey, error) {
	if passphrase == "" {
		return solana.PublicKey{}, ErrPassphraseRequired
	}
	key, err := LoadKeypair(src)
	if err != nil {
		return solana.PublicKey{}, err
	}
	sealed, err := SealKeypair(key, passphrase)
	if err != nil {
		return solana.PublicKey{}, err
	}
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("wallet: create sealed keypair: %w", err)
	}
	if _, err := f.Write(sealed); err != nil {
		f.Close()
		os.Remove(dst)
		return solana.PublicKey{}, fmt.Errorf("wallet: write sealed keypair: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return solana.PublicKey{}, fmt.Errorf("wallet: write sealed keypair: %w", err)
	}
	return key.PublicKey(), nil
}

func sealCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	derived := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("wallet: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: GCM creation failed: %w", err)
	}
	return gcm, nil
}
