package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore is an in-memory implementation of driven.VectorStore.
// It is used by tests and ephemeral sessions; nothing survives the process.
type VectorStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
	seq         int64
}

type collection struct {
	dims    int
	records map[string]domain.VectorRecord
}

// NewVectorStore creates a new in-memory vector store.
func NewVectorStore() *VectorStore {
	return &VectorStore{
		collections: make(map[string]*collection),
	}
}

// Upsert inserts or replaces records under a single lock.
func (s *VectorStore) Upsert(_ context.Context, name string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	dims, err := domain.BatchDimensions(records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &collection{records: make(map[string]domain.VectorRecord)}
		s.collections[name] = c
	}
	if len(c.records) > 0 && c.dims != dims {
		return &domain.DimensionMismatchError{Scope: "collection " + name, Expected: c.dims, Got: dims}
	}
	c.dims = dims

	for docID, last := range domain.LastChunkIndexes(records) {
		for id, r := range c.records {
			if r.DocumentID == docID && r.ChunkIndex > last {
				delete(c.records, id)
			}
		}
	}

	for _, r := range records {
		r.Embedding = slices.Clone(r.Embedding)
		if prev, ok := c.records[r.ID()]; ok {
			r.Seq = prev.Seq
		} else {
			s.seq++
			r.Seq = s.seq
		}
		c.records[r.ID()] = r
	}
	return nil
}

// Search returns the k records nearest to query by cosine similarity.
func (s *VectorStore) Search(
	_ context.Context, name string, query domain.Embedding, k int,
) (domain.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok || len(c.records) == 0 {
		return nil, domain.ErrEmptyCollection
	}
	if query.Dimensions() != c.dims {
		return nil, &domain.DimensionMismatchError{Scope: "collection " + name, Expected: c.dims, Got: query.Dimensions()}
	}

	scored := make([]domain.ScoredRecord, 0, len(c.records))
	for _, r := range c.records {
		scored = append(scored, domain.ScoredRecord{
			Record:     r,
			Similarity: domain.CosineSimilarity(query, r.Embedding),
		})
	}
	return domain.RankResults(scored, k), nil
}

// Delete removes all records of a document.
func (s *VectorStore) Delete(_ context.Context, name, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return 0, nil
	}
	removed := 0
	for id, r := range c.records {
		if r.DocumentID == documentID {
			delete(c.records, id)
			removed++
		}
	}
	if len(c.records) == 0 {
		c.dims = 0
	}
	return removed, nil
}

// Count returns the number of records in a collection.
func (s *VectorStore) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.collections[name]; ok {
		return len(c.records), nil
	}
	return 0, nil
}

// Collections lists all collections sorted by name.
func (s *VectorStore) Collections(_ context.Context) ([]domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]domain.CollectionInfo, 0, len(s.collections))
	for name, c := range s.collections {
		infos = append(infos, domain.CollectionInfo{Name: name, Dimensions: c.dims, Count: len(c.records)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Drop removes a collection.
func (s *VectorStore) Drop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

// Close is a no-op for the memory store.
func (s *VectorStore) Close() error {
	return nil
}
