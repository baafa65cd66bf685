package recordstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in a slice guarded by a mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	index   map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

func (s *MemoryStore) Query(ctx context.Context, recordType string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Record{}
	for _, r := range s.records {
		if r.Type != recordType {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, recs ...Record) error {
	for _, r := range recs {
		if err := validate(r); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range recs {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		if i, ok := s.index[r.Name]; ok {
			r.CreatedAt = s.records[i].CreatedAt
			s.records[i] = r
			continue
		}
		s.index[r.Name] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }
