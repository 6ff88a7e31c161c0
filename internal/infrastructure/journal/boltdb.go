// Package journal persists mutation records so the outcome of every optimistic
// write can be inspected after the fact.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/taskwarlock/domain"
)

var (
	recordsBucket = []byte("mutations")
	indexBucket   = []byte("mutation_ids")
)

// Store wraps BoltDB. Records are keyed by creation time so that cursor order
// is chronological; a second bucket maps mutation ids to those keys.
type Store struct {
	db *bolt.DB
}

// Open initializes the BoltDB file and ensures the buckets exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Put inserts a record or overwrites the one with the same id.
func (s *Store) Put(rec domain.MutationRecord) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if rec.ID == "" {
		return domain.ErrInvalidPayload
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		index := tx.Bucket(indexBucket)
		key := index.Get([]byte(rec.ID))
		if key == nil {
			key = buildKey(rec)
			if err := index.Put([]byte(rec.ID), key); err != nil {
				return err
			}
		}
		return tx.Bucket(recordsBucket).Put(key, payload)
	})
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (domain.MutationRecord, error) {
	var rec domain.MutationRecord
	if s == nil || s.db == nil {
		return rec, bolt.ErrDatabaseNotOpen
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(indexBucket).Get([]byte(id))
		if key == nil {
			return domain.ErrMutationNotFound
		}
		v := tx.Bucket(recordsBucket).Get(key)
		if v == nil {
			return domain.ErrMutationNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	return rec, err
}

// List returns up to limit records, newest first.
func (s *Store) List(limit int) ([]domain.MutationRecord, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	records := []domain.MutationRecord{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(recordsBucket).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var rec domain.MutationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	return records, err
}

// Size returns the number of journaled records.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes settled records created before olderThan and reports how many went.
// Unsettled records are kept regardless of age.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(recordsBucket)
		index := tx.Bucket(indexBucket)

		// Deleting under a live cursor skips keys, so collect first.
		var keys [][]byte
		var ids []string
		c := records.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec domain.MutationRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			// Keys are chronological, nothing further on can be old enough.
			if !rec.CreatedAt.Before(olderThan) {
				break
			}
			if !rec.State.Settled() {
				continue
			}
			keys = append(keys, append([]byte(nil), k...))
			ids = append(ids, rec.ID)
		}

		for i, k := range keys {
			if err := records.Delete(k); err != nil {
				return err
			}
			if err := index.Delete([]byte(ids[i])); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildKey(rec domain.MutationRecord) []byte {
	return []byte(fmt.Sprintf("%020d_%s", rec.CreatedAt.UnixNano(), rec.ID))
}
