package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Accounts are keyed by lowercased name so the uniqueness check matches the
// directory's case-insensitive name semantics.
const accountKeyPrefix = "account:"

// BadgerStore is an AccountStore backed by a badger database.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (creating if necessary) a badger-backed account store at path.
// An empty path opens an in-memory store, used by tests.
func Open(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: opening %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func accountKey(name string) []byte {
	return []byte(accountKeyPrefix + strings.ToLower(name))
}

// LoadAll returns every persisted account record.
func (s *BadgerStore) LoadAll() ([]Record, error) {
	var records []Record

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(accountKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("store: decoding account: %w", err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Insert persists rec, failing with ErrNameTaken if the name is already in
// use under case-insensitive comparison.
func (s *BadgerStore) Insert(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encoding account: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := accountKey(rec.Name)
		if _, err := txn.Get(key); err == nil {
			return ErrNameTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

// Close flushes and closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
