package matrix

import (
	"encoding/hex"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeAddr(seed byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = seed
	}
	return pk
}

func sampleRecord() *UserRecord {
	return &UserRecord{
		IsRegistered: true,
		Owner:        makeAddr(1),
		Upline: Upline{
			ID:    7,
			Depth: 2,
			Entries: []UplineEntry{
				{Account: makeAddr(2), Wallet: makeAddr(3)},
				{Account: makeAddr(4), Wallet: makeAddr(5)},
			},
		},
		Chain: MatrixState{
			ID:          9,
			Slots:       [SlotCount]solana.PublicKey{makeAddr(6), makeAddr(7)},
			FilledSlots: 2,
		},
		Rewards: RewardState{Earned: 1000, Claimed: 400, LastPeriod: 3},
	}
}

func TestInstructionDiscriminator(t *testing.T) {
	// Anchor's well-known tag for an instruction named "initialize".
	d := InstructionDiscriminator("initialize")
	assert.Equal(t, "afaf6d1f0d989bed", hex.EncodeToString(d[:]))
	assert.NotEqual(t, d, AccountDiscriminator("initialize"))
}

func TestUserRecordRoundTrip(t *testing.T) {
	rec := sampleRecord()
	data, err := EncodeAccount("UserAccount", rec)
	require.NoError(t, err)

	// Programs allocate spare space after the record.
	data = append(data, make([]byte, 64)...)

	got, err := DecodeUserRecord(data, "UserAccount")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.False(t, got.IsBase())
}

func TestDecodeUserRecordErrors(t *testing.T) {
	overfilled := sampleRecord()
	overfilled.Chain.FilledSlots = 4
	overfilledData, err := EncodeAccount("UserAccount", overfilled)
	require.NoError(t, err)

	shortUpline := sampleRecord()
	shortUpline.Upline.Depth = 3
	shortUplineData, err := EncodeAccount("UserAccount", shortUpline)
	require.NoError(t, err)

	good, err := EncodeAccount("UserAccount", sampleRecord())
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too short", []byte{1, 2, 3}, ErrDecode},
		{"wrong discriminator", append([]byte{0, 0, 0, 0, 0, 0, 0, 0}, good[8:]...), ErrBadDiscriminator},
		{"truncated", good[:40], ErrDecode},
		{"filled slots above three", overfilledData, ErrCorruptRecord},
		{"depth mismatch", shortUplineData, ErrCorruptRecord},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeUserRecord(tc.data, "UserAccount")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestBaseRecord(t *testing.T) {
	rec := &UserRecord{IsRegistered: true, Owner: makeAddr(1)}
	require.NoError(t, rec.Validate())
	assert.True(t, rec.IsBase())
}

func TestDecodeProgramState(t *testing.T) {
	st := &ProgramState{Owner: makeAddr(9), NextUplineID: 12, NextChainID: 30, CurrentPeriod: 4, TotalUsers: 88}
	data, err := EncodeAccount("ProgramState", st)
	require.NoError(t, err)

	got, err := DecodeProgramState(data, "ProgramState")
	require.NoError(t, err)
	assert.Equal(t, st, got)

	_, err = DecodeProgramState(data, "UserAccount")
	assert.ErrorIs(t, err, ErrBadDiscriminator)
}
