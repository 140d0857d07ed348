package core

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds the datasets loaded in this process, keyed by id.
// It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*StoredDataset
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		datasets: make(map[string]*StoredDataset),
		now:      time.Now,
	}
}

// Put stores a dataset under a new id and returns the stored entry.
func (s *Store) Put(fileName, sheet string, sheets []string, ds *Dataset) *StoredDataset {
	now := s.now()
	entry := &StoredDataset{
		ID:         uuid.NewString(),
		FileName:   fileName,
		Sheet:      sheet,
		Sheets:     sheets,
		Dataset:    ds,
		LoadedAt:   now,
		LastAccess: now,
	}

	s.mu.Lock()
	s.datasets[entry.ID] = entry
	s.mu.Unlock()
	return entry
}

// Get returns a dataset by id and refreshes its last access time.
// Returns false if not found.
func (s *Store) Get(id string) (*StoredDataset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.datasets[id]
	if ok {
		entry.LastAccess = s.now()
	}
	return entry, ok
}

// Delete removes a dataset. It reports whether the id existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.datasets[id]
	delete(s.datasets, id)
	return ok
}

// All returns summaries of every stored dataset, oldest first.
func (s *Store) All() []DatasetSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]DatasetSummary, 0, len(s.datasets))
	for _, entry := range s.datasets {
		result = append(result, entry.Summary())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].LoadedAt.Equal(result[j].LoadedAt) {
			return result[i].LoadedAt.Before(result[j].LoadedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Len returns the number of stored datasets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.datasets)
}

// Expire removes datasets not accessed within ttl and returns how many
// were removed.
func (s *Store) Expire(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.datasets {
		if entry.LastAccess.Before(cutoff) {
			delete(s.datasets, id)
			removed++
		}
	}
	return removed
}
