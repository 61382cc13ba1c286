package vectorstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process. Used for tests and single-process CLI runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]Record)}
}

func (s *MemoryStore) Upsert(_ context.Context, records []Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) Query(_ context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	if err := validateQuery(vector, topK, filter); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0)
	for _, r := range s.records {
		if !filter.Matches(r) {
			continue
		}
		matches = append(matches, Match{Record: r, Score: CosineSimilarity(vector, r.Vector)})
	}
	return rank(matches, topK), nil
}

func (s *MemoryStore) Delete(_ context.Context, req DeleteRequest) error {
	if err := validateDelete(req); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(req.IDs) > 0 {
		for _, id := range req.IDs {
			delete(s.records, id)
		}
		return nil
	}
	for id, r := range s.records {
		if req.Filter.Matches(r) {
			delete(s.records, id)
		}
	}
	return nil
}

// Count returns the number of records matching filter.
func (s *MemoryStore) Count(filter Filter) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, r := range s.records {
		if filter.Matches(r) {
			n++
		}
	}
	return n
}
