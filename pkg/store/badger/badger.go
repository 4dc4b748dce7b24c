// Package badger implements store.Store on BadgerDB. One database holds
// both business records and model artifacts under distinct key prefixes.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/tinyseg/tinyseg/pkg/store"
)

var (
	businessPrefix = []byte("business/")
	modelPrefix    = []byte("model/")
)

// Store implements store.Store using BadgerDB.
type Store struct {
	db *badger.DB
}

// Config holds BadgerDB configuration.
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = laptop-friendly
	// defaults). Model artifacts and business records are tiny, so the
	// floor here is far below what a metrics workload would need.
	MaxMemoryMB int64
}

// New opens a BadgerDB-backed store.
func New(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Conservative memory bounds: BadgerDB's defaults assume a much larger
	// working set than a per-business model registry ever has.
	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db}, nil
}

// modelKey hashes the business name so artifact keys stay fixed-width
// regardless of what callers name their businesses.
func modelKey(business string) []byte {
	key := make([]byte, len(modelPrefix)+8)
	copy(key, modelPrefix)
	binary.BigEndian.PutUint64(key[len(modelPrefix):], xxhash.Sum64String(business))
	return key
}

func businessKey(name string) []byte {
	return append(append([]byte(nil), businessPrefix...), name...)
}

func (s *Store) get(key []byte, v interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

func (s *Store) put(key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
}

func (s *Store) delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// LoadModel fetches a business's fitted artifact.
func (s *Store) LoadModel(ctx context.Context, business string) (*store.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var a store.Artifact
	if err := s.get(modelKey(business), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveModel overwrites a business's artifact.
func (s *Store) SaveModel(ctx context.Context, business string, a *store.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.put(modelKey(business), a)
}

// DeleteModel removes a business's artifact.
func (s *Store) DeleteModel(ctx context.Context, business string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete(modelKey(business))
}

// GetBusiness fetches a business record.
func (s *Store) GetBusiness(ctx context.Context, name string) (*store.Business, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var b store.Business
	if err := s.get(businessKey(name), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PutBusiness overwrites a business record.
func (s *Store) PutBusiness(ctx context.Context, b *store.Business) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.put(businessKey(b.Name), b)
}

// ListBusinesses returns all business records sorted by name.
func (s *Store) ListBusinesses(ctx context.Context) ([]*store.Business, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []*store.Business
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: businessPrefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var b store.Business
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			})
			if err != nil {
				return err
			}
			out = append(out, &b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteBusiness removes a business record.
func (s *Store) DeleteBusiness(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.delete(businessKey(name))
}

// Stats counts stored records by prefix.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &store.Stats{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.IteratorOptions{PrefetchValues: false}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			switch {
			case bytes.HasPrefix(key, businessPrefix):
				stats.Businesses++
			case bytes.HasPrefix(key, modelPrefix):
				stats.Models++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunGC runs one round of BadgerDB value-log garbage collection.
func (s *Store) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Close shuts down the database.
func (s *Store) Close() error {
	return s.db.Close()
}
