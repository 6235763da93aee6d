package domain

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// Embedding is a fixed-length vector produced from exactly one chunk.
type Embedding []float32

// Dimensions returns the vector length.
func (e Embedding) Dimensions() int {
	return len(e)
}

// VectorRecord is the persisted unit of the vector store.
// Records are keyed by (DocumentID, ChunkIndex).
type VectorRecord struct {
	// DocumentID is the owning document identity.
	DocumentID string

	// ChunkIndex is the chunk's position within the document.
	ChunkIndex int

	// DocumentType is the type the document was loaded as.
	DocumentType DocumentType

	// Text is the chunk text.
	Text string

	// Embedding is the chunk vector.
	Embedding Embedding

	// Seq is the store-assigned ingestion order. Earlier records have lower
	// values. Re-ingesting a key keeps its original Seq.
	Seq int64
}

// ID returns the record identity.
func (r VectorRecord) ID() string {
	return RecordID(r.DocumentID, r.ChunkIndex)
}

// ScoredRecord pairs a record with its similarity to a query.
type ScoredRecord struct {
	Record     VectorRecord
	Similarity float64
}

// RetrievalResult is ordered by descending similarity; ties keep ingestion order.
type RetrievalResult []ScoredRecord

// CollectionInfo summarises a vector store collection.
type CollectionInfo struct {
	// Name is the collection name.
	Name string

	// Dimensions is the fixed vector size, or 0 when the collection is empty.
	Dimensions int

	// Count is the number of stored records.
	Count int
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Zero vectors have similarity 0. Vectors of different length are the
// caller's error and also yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// RankResults sorts by descending similarity, breaking ties by ascending
// Seq, and truncates to k when k > 0.
func RankResults(results []ScoredRecord, k int) RetrievalResult {
	slices.SortStableFunc(results, func(a, b ScoredRecord) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.Seq, b.Record.Seq)
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return RetrievalResult(results)
}

// BatchDimensions returns the common dimension of the records' embeddings.
// Records with an empty embedding or a dimension differing from the first
// record are rejected.
func BatchDimensions(records []VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	dims := records[0].Embedding.Dimensions()
	for _, r := range records {
		if r.DocumentID == "" {
			return 0, fmt.Errorf("%w: record %d has no document id", ErrInvalidInput, r.ChunkIndex)
		}
		n := r.Embedding.Dimensions()
		if n == 0 {
			return 0, fmt.Errorf("%w: record %s has no embedding", ErrInvalidInput, r.ID())
		}
		if n != dims {
			return 0, &DimensionMismatchError{Scope: "batch", Expected: dims, Got: n}
		}
	}
	return dims, nil
}

// LastChunkIndexes returns the highest chunk index per document in records.
// Stored chunks beyond it are stale once the batch is written.
func LastChunkIndexes(records []VectorRecord) map[string]int {
	last := make(map[string]int)
	for _, r := range records {
		if i, ok := last[r.DocumentID]; !ok || r.ChunkIndex > i {
			last[r.DocumentID] = r.ChunkIndex
		}
	}
	return last
}
