package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/ports"
)

// MemoryStore implements the same contract as PostgresStore without a
// database: identical uniqueness and batch semantics. Used for local runs
// and tests.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location ID, value: readings keyed by Reading.Key()
	data map[string]map[string]entities.Reading
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]entities.Reading),
	}
}

func (s *MemoryStore) Persist(ctx context.Context, readings []entities.Reading) (entities.PersistResult, error) {
	var result entities.PersistResult
	if len(readings) == 0 {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range readings {
		byKey, ok := s.data[r.LocationID]
		if !ok {
			byKey = make(map[string]entities.Reading)
			s.data[r.LocationID] = byKey
		}

		key := r.Key()
		if _, exists := byKey[key]; exists {
			result.SkippedDuplicate++
			continue
		}
		byKey[key] = r
		result.Inserted++
	}

	return result, nil
}

func (s *MemoryStore) QueryRange(ctx context.Context, locationID string, from, to time.Time) ([]entities.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []entities.Reading
	for _, r := range s.data[locationID] {
		if r.ObservedAt.Before(from) || r.ObservedAt.After(to) {
			continue
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ObservedAt.Before(results[j].ObservedAt)
	})
	return results, nil
}

func (s *MemoryStore) LatestReading(ctx context.Context, locationID string) (*entities.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *entities.Reading
	for _, r := range s.data[locationID] {
		r := r
		if latest == nil || r.ObservedAt.After(latest.ObservedAt) {
			latest = &r
		}
	}
	return latest, nil
}

func (s *MemoryStore) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ ports.Store = (*MemoryStore)(nil)
