package matrix

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DeriveUserAccount returns the identity account bound to wallet.
func DeriveUserAccount(seed string, wallet, programID solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(seed), wallet[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("matrix: derive user account for %s: %w", wallet, err)
	}
	return addr, nil
}

// DeriveTokenAccount returns the associated token account holding mint for wallet.
func DeriveTokenAccount(wallet, mint, tokenProgram, ataProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{wallet[:], tokenProgram[:], mint[:]}, ataProgram)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("matrix: derive token account for %s: %w", wallet, err)
	}
	return addr, nil
}
