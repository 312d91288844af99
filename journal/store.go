// Package journal keeps a local record of registration attempts and of the
// lookup tables they created. Tables are never closed automatically, so the
// journal is how an operator finds abandoned ones.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketAttempts = []byte("attempts")
	bucketTables   = []byte("tables")
)

// Attempt is the outcome of one registration run.
type Attempt struct {
	ID                uint64
	StartedAt         time.Time
	FinishedAt        time.Time
	Payer             string
	ReferrerWallet    string
	User              string
	Stage             string
	Succeeded         bool
	Category          string
	Error             string
	Slot              int
	Uplines           int
	RemainingAccounts int
	Mode              string
	LookupTable       string
	Signature         string
}

// TableRecord tracks a lookup table created or attached by an attempt.
type TableRecord struct {
	Address   string
	Authority string
	CreatedAt time.Time
	// Expected is the number of addresses the registration needed.
	Expected int
	// Count is the number of addresses verified on the ledger.
	Count    int
	Complete bool
	Created  bool
}

// Store wraps a bbolt database holding the journal.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the journal at dbPath.
// The parent directory is created if it does not exist.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("journal: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAttempts, bucketTables} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("journal: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RecordAttempt stores a. A zero ID is replaced by the next sequence number;
// a non-zero ID overwrites the earlier record.
func (s *Store) RecordAttempt(a *Attempt) error {
	if a == nil {
		return fmt.Errorf("%w: attempt", ErrNilParam)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAttempts)
		if a.ID == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return fmt.Errorf("journal: next attempt id: %w", err)
			}
			a.ID = seq
		}
		data, err := encodeGob(a)
		if err != nil {
			return fmt.Errorf("journal: encode attempt: %w", err)
		}
		return b.Put(idKey(a.ID), data)
	})
}

// ListAttempts returns every attempt in ID order.
func (s *Store) ListAttempts() ([]*Attempt, error) {
	var out []*Attempt
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAttempts).ForEach(func(_, v []byte) error {
			var a Attempt
			if err := decodeGob(v, &a); err != nil {
				return fmt.Errorf("journal: decode attempt: %w", err)
			}
			out = append(out, &a)
			return nil
		})
	})
	return out, err
}

// RecordTable stores or replaces the record for t.Address.
func (s *Store) RecordTable(t *TableRecord) error {
	if t == nil {
		return fmt.Errorf("%w: table", ErrNilParam)
	}
	if t.Address == "" {
		return fmt.Errorf("%w: table address is empty", ErrInvalidRecord)
	}
	data, err := encodeGob(t)
	if err != nil {
		return fmt.Errorf("journal: encode table: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTables).Put([]byte(t.Address), data)
	})
}

// GetTable returns the record for address.
func (s *Store) GetTable(address string) (*TableRecord, error) {
	var t TableRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTables).Get([]byte(address))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrTableNotFound, address)
		}
		return decodeGob(data, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkTableComplete records that address holds count verified addresses.
func (s *Store) MarkTableComplete(address string, count int) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTables)
		data := b.Get([]byte(address))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrTableNotFound, address)
		}
		var t TableRecord
		if err := decodeGob(data, &t); err != nil {
			return fmt.Errorf("journal: decode table: %w", err)
		}
		t.Count = count
		t.Complete = true
		updated, err := encodeGob(&t)
		if err != nil {
			return fmt.Errorf("journal: encode table: %w", err)
		}
		return b.Put([]byte(address), updated)
	})
}

// ListTables returns every recorded table ordered by address.
func (s *Store) ListTables() ([]*TableRecord, error) {
	var out []*TableRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTables).ForEach(func(_, v []byte) error {
			var t TableRecord
			if err := decodeGob(v, &t); err != nil {
				return fmt.Errorf("journal: decode table: %w", err)
			}
			out = append(out, &t)
			return nil
		})
	})
	return out, err
}

// idKey encodes an attempt id as an 8-byte big-endian key for sorted storage.
func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
