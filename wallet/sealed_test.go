package wallet

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealAndOpen(t *testing.T) {
	key := solana.PrivateKey(testKey(3))

	sealed, err := SealKeypair(key, "correct horse")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, string(sealed), string(key[:8]))

	got, err := OpenSealedKeypair(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	// Salt and nonce are random, so sealing twice differs.
	again, err := SealKeypair(key, "correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)
}

func TestOpenSealedErrors(t *testing.T) {
	key := solana.PrivateKey(testKey(4))
	sealed, err := SealKeypair(key, "pw")
	require.NoError(t, err)

	_, err = OpenSealedKeypair(sealed, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = OpenSealedKeypair(tampered, "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = OpenSealedKeypair(sealed[:len(sealMagic)+10], "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = OpenSealedKeypair([]byte("[1,2,3]"), "pw")
	assert.ErrorIs(t, err, ErrInvalidKeyFile)

	_, err = SealKeypair(key[:32], "pw")
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestLoadKeypairWithPassphrase(t *testing.T) {
	key := solana.PrivateKey(testKey(5))
	sealed, err := SealKeypair(key, "pw")
	require.NoError(t, err)
	sealedPath := writeFile(t, sealed)

	_, err = LoadKeypair(sealedPath)
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	_, err = LoadKeypairWithPassphrase(sealedPath, "")
	assert.ErrorIs(t, err, ErrPassphraseRequired)

	got, err := LoadKeypairWithPassphrase(sealedPath, "pw")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	// Plain files load regardless of passphrase.
	plain, err := json.Marshal(toInts(key))
	require.NoError(t, err)
	got, err = LoadKeypairWithPassphrase(writeFile(t, plain), "ignored")
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestSealKeypairFile(t *testing.T) {
	key := solana.PrivateKey(testKey(6))
	plain, err := json.Marshal(toInts(key))
	require.NoError(t, err)
	src := writeFile(t, plain)
	dst := filepath.Join(t.TempDir(), "id.sealed")

	pub, err := SealKeypairFile(src, dst, "pw")
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), pub)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := LoadKeypairWithPassphrase(dst, "pw")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	before, err := os.ReadFile(dst)
	require.NoError(t, err)
	_, err = SealKeypairFile(src, dst, "pw")
	assert.ErrorIs(t, err, os.ErrExist)
	after, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, before, after, "existing destination is not overwritten")

	// A destination that appears as a plain file is left alone too.
	taken := filepath.Join(t.TempDir(), "taken")
	require.NoError(t, os.WriteFile(taken, []byte("keep"), 0600))
	_, err = SealKeypairFile(src, taken, "pw")
	assert.ErrorIs(t, err, os.ErrExist)
	kept, err := os.ReadFile(taken)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(kept))

	_, err = SealKeypairFile(src, filepath.Join(t.TempDir(), "x"), "")
	assert.ErrorIs(t, err, ErrPassphraseRequired)
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
