// Package memory provides an in-memory store backend. Data is lost on
// restart. Useful for testing and development, including as the fake store
// for exercising the engine's load/retrain paths.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/tinyseg/tinyseg/pkg/store"
)

// Store keeps artifacts and business records in maps.
type Store struct {
	artifacts  map[string][]byte
	businesses map[string][]byte
	mu         sync.RWMutex
}

// New creates an in-memory store backend.
func New() *Store {
	return &Store{
		artifacts:  make(map[string][]byte),
		businesses: make(map[string][]byte),
	}
}

// LoadModel fetches a business's fitted artifact.
func (s *Store) LoadModel(ctx context.Context, business string) (*store.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.artifacts[business]
	if !ok {
		return nil, store.ErrNotFound
	}
	var a store.Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveModel overwrites a business's artifact.
func (s *Store) SaveModel(ctx context.Context, business string, a *store.Artifact) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[business] = raw
	return nil
}

// DeleteModel removes a business's artifact.
func (s *Store) DeleteModel(ctx context.Context, business string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, business)
	return nil
}

// GetBusiness fetches a business record.
func (s *Store) GetBusiness(ctx context.Context, name string) (*store.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.businesses[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	var b store.Business
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PutBusiness overwrites a business record.
func (s *Store) PutBusiness(ctx context.Context, b *store.Business) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[b.Name] = raw
	return nil
}

// ListBusinesses returns all business records sorted by name.
func (s *Store) ListBusinesses(ctx context.Context) ([]*store.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*store.Business, 0, len(s.businesses))
	for _, raw := range s.businesses {
		var b store.Business
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteBusiness removes a business record.
func (s *Store) DeleteBusiness(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.businesses, name)
	return nil
}

// Stats reports record counts.
func (s *Store) Stats(ctx context.Context) (*store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &store.Stats{
		Businesses: len(s.businesses),
		Models:     len(s.artifacts),
	}, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }
