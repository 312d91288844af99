package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListAttempts(t *testing.T) {
	store := tempStore(t)

	first := &Attempt{Payer: "payer-1", Stage: "Done", Succeeded: true, Mode: "direct", StartedAt: time.Unix(100, 0).UTC()}
	second := &Attempt{Payer: "payer-2", Stage: "CheckReferrerRegistered", Category: "precondition", Error: "referrer not registered"}
	require.NoError(t, store.RecordAttempt(first))
	require.NoError(t, store.RecordAttempt(second))
	assert.Equal(t, uint64(1), first.ID)
	assert.Equal(t, uint64(2), second.ID)

	attempts, err := store.ListAttempts()
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, first, attempts[0])
	assert.Equal(t, "referrer not registered", attempts[1].Error)
}

func TestRecordAttemptOverwrite(t *testing.T) {
	store := tempStore(t)
	a := &Attempt{Payer: "p", Stage: "Init"}
	require.NoError(t, store.RecordAttempt(a))

	a.Stage = "Done"
	a.Succeeded = true
	require.NoError(t, store.RecordAttempt(a))

	attempts, err := store.ListAttempts()
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, "Done", attempts[0].Stage)
}

func TestTables(t *testing.T) {
	store := tempStore(t)

	rec := &TableRecord{Address: "table-b", Authority: "auth", Expected: 17, Created: true}
	require.NoError(t, store.RecordTable(rec))
	require.NoError(t, store.RecordTable(&TableRecord{Address: "table-a", Expected: 5}))

	require.NoError(t, store.MarkTableComplete("table-b", 17))
	got, err := store.GetTable("table-b")
	require.NoError(t, err)
	assert.True(t, got.Complete)
	assert.Equal(t, 17, got.Count)
	assert.True(t, got.Created)

	tables, err := store.ListTables()
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "table-a", tables[0].Address)
	assert.False(t, tables[0].Complete)
}

func TestTableErrors(t *testing.T) {
	store := tempStore(t)

	_, err := store.GetTable("missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.ErrorIs(t, store.MarkTableComplete("missing", 1), ErrTableNotFound)
	assert.ErrorIs(t, store.RecordTable(&TableRecord{}), ErrInvalidRecord)
	assert.ErrorIs(t, store.RecordTable(nil), ErrNilParam)
	assert.ErrorIs(t, store.RecordAttempt(nil), ErrNilParam)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.RecordAttempt(&Attempt{Payer: "p"}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	attempts, err := store.ListAttempts()
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	require.NoError(t, store.RecordAttempt(&Attempt{Payer: "q"}))
	attempts, err = store.ListAttempts()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), attempts[1].ID)
}
