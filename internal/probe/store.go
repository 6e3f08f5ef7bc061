// SPDX-License-Identifier: MIT

package probe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Store persists probe results with a TTL so repeated audits do not hammer
// the forges. Keys are the normalized repository URLs.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenStore opens (or creates) the Badger database at path. The ttl bounds
// how long a result is served before the repository is probed again.
func OpenStore(path string, ttl time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open probe store: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{db: db, ttl: ttl}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the stored result for url, or false when absent or expired.
func (s *Store) Get(url string) (Result, bool) {
	var out Result
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(url))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if err != nil {
		return Result{}, false
	}
	return out, true
}

// Put stores the result under its URL with the store TTL.
func (s *Store) Put(res Result) error {
	buf, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(key(res.URL), buf).WithTTL(s.ttl))
	})
}

func key(url string) []byte {
	return []byte("probe:" + url)
}
