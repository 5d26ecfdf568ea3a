package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/schema"
)

// MemoryStore keeps records in process memory. It backs tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateRecord(_ context.Context, c schema.Collection, fields map[string]any) (string, error) {
	if err := checkCollection(c); err != nil {
		return "", err
	}
	if err := checkFieldKeys(fields); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.records[id] = &Record{
		ID:         id,
		Collection: c,
		Revision:   1,
		Fields:     withoutNils(cloneFields(fields)),
	}
	s.order = append(s.order, id)
	return id, nil
}

func (s *MemoryStore) UpdateRecord(_ context.Context, id string, revision int64, fields map[string]any) (int64, error) {
	if err := checkFieldKeys(fields); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return 0, eris.Wrapf(model.ErrNotFound, "memory: record %s", id)
	}
	if rec.Revision != revision {
		return 0, eris.Wrapf(model.ErrStaleWrite, "memory: record %s at revision %d, write based on %d", id, rec.Revision, revision)
	}
	merge(rec.Fields, cloneFields(fields))
	rec.Revision++
	return rec.Revision, nil
}

func (s *MemoryStore) GetRecord(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, eris.Wrapf(model.ErrNotFound, "memory: record %s", id)
	}
	out := *rec
	out.Fields = cloneFields(rec.Fields)
	return &out, nil
}

func (s *MemoryStore) QueryRecords(_ context.Context, c schema.Collection, filter Filter) ([]Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Collection != c || !matches(rec.Fields, filter) {
			continue
		}
		cp := *rec
		cp.Fields = cloneFields(rec.Fields)
		out = append(out, cp)
	}
	return out, nil
}
