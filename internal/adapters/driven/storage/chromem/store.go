// Package chromem provides a vector store backed by an embedded chromem-go
// database persisted to a local directory.
//
// chromem-go stores normalised vectors and has no transactions. The store
// keeps each vector's norm in the record metadata to restore it on read,
// serialises writers behind a lock, and keeps collection dimensions, the
// last chunk index per document and the ingestion sequence in a reserved
// metadata collection.
//
// Upsert removes a document's stale chunks only after the new ones are
// written, and a failed write puts back the records it overwrote. The
// restore itself writes to disk, so an I/O error during it can still leave
// a document partially updated; the lock only shields readers in this
// process.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// metaCollection holds bookkeeping documents. It is hidden from Collections.
const metaCollection = "_ragdesk_meta"

// Record metadata keys.
const (
	keyDocumentID   = "document_id"
	keyChunkIndex   = "chunk_index"
	keyDocumentType = "document_type"
	keySeq          = "seq"
	keyNorm         = "norm"
	keyCollection   = "collection"
	keyDimensions   = "dimensions"
	keyLast         = "last"
	keyValue        = "value"
)

// metaEmbedding is attached to bookkeeping documents, which are never searched.
var metaEmbedding = []float32{1}

// Store implements driven.VectorStore on chromem-go.
type Store struct {
	mu   sync.RWMutex
	db   *chromem.DB
	meta *chromem.Collection
	path string
}

// NewStore opens or creates a persistent database in dir.
// If dir is empty, defaults to ~/.ragdesk/data/chromem.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".ragdesk", "data", "chromem")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem database: %w", err)
	}
	meta, err := db.GetOrCreateCollection(metaCollection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("opening metadata collection: %w", err)
	}

	return &Store{db: db, meta: meta, path: dir}, nil
}

// Path returns the database directory.
func (s *Store) Path() string {
	return s.path
}

// Upsert writes the batch under the store lock so concurrent searches see
// it entirely or not at all.
func (s *Store) Upsert(ctx context.Context, name string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if name == metaCollection {
		return fmt.Errorf("%w: collection name %q is reserved", domain.ErrInvalidInput, name)
	}
	dims, err := domain.BatchDimensions(records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored := s.dimensions(ctx, name); stored != 0 && s.count(name) > 0 && stored != dims {
		return &domain.DimensionMismatchError{Scope: "collection " + name, Expected: stored, Got: dims}
	}

	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("opening collection %s: %w", name, err)
	}

	seq := s.seq(ctx)
	previous := make(map[string]chromem.Document)
	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadatas := make([]map[string]string, len(records))
	contents := make([]string, len(records))
	for i, r := range records {
		recordSeq := int64(0)
		if doc, err := col.GetByID(ctx, r.ID()); err == nil {
			previous[doc.ID] = doc
			recordSeq, _ = strconv.ParseInt(doc.Metadata[keySeq], 10, 64)
		}
		if recordSeq == 0 {
			seq++
			recordSeq = seq
		}

		ids[i] = r.ID()
		embeddings[i] = slices.Clone(r.Embedding)
		contents[i] = r.Text
		metadatas[i] = map[string]string{
			keyDocumentID:   r.DocumentID,
			keyChunkIndex:   strconv.Itoa(r.ChunkIndex),
			keyDocumentType: string(r.DocumentType),
			keySeq:          strconv.FormatInt(recordSeq, 10),
			keyNorm:         strconv.FormatFloat(norm(r.Embedding), 'g', -1, 64),
		}
	}

	// chromem skips every document when ctx is already done and reports success.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := col.Add(ctx, ids, embeddings, metadatas, contents); err != nil {
		err = fmt.Errorf("adding records to %s: %w", name, err)
		return errors.Join(err, restore(ctx, col, ids, previous))
	}

	lasts := domain.LastChunkIndexes(records)
	for docID, last := range lasts {
		if err := s.removeChunks(ctx, col, name, docID, last+1); err != nil {
			return err
		}
	}

	if err := s.setMeta(ctx, collectionKey(name), map[string]string{keyDimensions: strconv.Itoa(dims)}); err != nil {
		return err
	}
	for docID, last := range lasts {
		err := s.setMeta(ctx, documentKey(name, docID), map[string]string{
			keyCollection: name,
			keyLast:       strconv.Itoa(last),
		})
		if err != nil {
			return err
		}
	}
	return s.setMeta(ctx, seqKey, map[string]string{keyValue: strconv.FormatInt(seq, 10)})
}

// Search ranks every record of the collection against query.
func (s *Store) Search(
	ctx context.Context, name string, query domain.Embedding, k int,
) (domain.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.collection(name)
	if col == nil || col.Count() == 0 {
		return nil, domain.ErrEmptyCollection
	}
	if dims := s.dimensions(ctx, name); query.Dimensions() != dims {
		return nil, &domain.DimensionMismatchError{Scope: "collection " + name, Expected: dims, Got: query.Dimensions()}
	}

	results, err := col.QueryEmbedding(ctx, slices.Clone(query), col.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}

	scored := make([]domain.ScoredRecord, 0, len(results))
	for _, res := range results {
		r := recordFrom(res.ID, res.Metadata, res.Content, res.Embedding)
		scored = append(scored, domain.ScoredRecord{
			Record:     r,
			Similarity: domain.CosineSimilarity(query, r.Embedding),
		})
	}
	return domain.RankResults(scored, k), nil
}

// Delete removes all records of a document.
func (s *Store) Delete(ctx context.Context, name, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.collection(name)
	if col == nil {
		return 0, nil
	}

	before := col.Count()
	if err := s.removeChunks(ctx, col, name, documentID, 0); err != nil {
		return 0, err
	}
	if err := s.deleteMeta(ctx, documentKey(name, documentID)); err != nil {
		return 0, err
	}
	if col.Count() == 0 {
		if err := s.setMeta(ctx, collectionKey(name), map[string]string{keyDimensions: "0"}); err != nil {
			return 0, err
		}
	}
	return before - col.Count(), nil
}

// Count returns the number of records in a collection.
func (s *Store) Count(_ context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count(name), nil
}

// Collections lists all collections sorted by name.
func (s *Store) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var infos []domain.CollectionInfo
	for name, col := range s.db.ListCollections() {
		if name == metaCollection {
			continue
		}
		info := domain.CollectionInfo{Name: name, Count: col.Count()}
		if info.Count > 0 {
			info.Dimensions = s.dimensions(ctx, name)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Drop removes a collection, its records and its bookkeeping.
func (s *Store) Drop(ctx context.Context, name string) error {
	if name == metaCollection {
		return fmt.Errorf("%w: collection name %q is reserved", domain.ErrInvalidInput, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection(name) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	if err := s.meta.Delete(ctx, map[string]string{keyCollection: name}, nil); err != nil {
		return fmt.Errorf("deleting metadata of %s: %w", name, err)
	}
	return s.deleteMeta(ctx, collectionKey(name))
}

// Close is a no-op; chromem-go persists on every write.
func (s *Store) Close() error {
	return nil
}

func (s *Store) collection(name string) *chromem.Collection {
	if name == metaCollection {
		return nil
	}
	return s.db.GetCollection(name, nil)
}

func (s *Store) count(name string) int {
	if col := s.collection(name); col != nil {
		return col.Count()
	}
	return 0
}

// restore undoes a failed Add: records that did not exist before are removed
// and overwritten ones are written back.
func restore(ctx context.Context, col *chromem.Collection, ids []string, previous map[string]chromem.Document) error {
	var added []string
	for _, id := range ids {
		if _, ok := previous[id]; !ok {
			added = append(added, id)
		}
	}
	var errs []error
	if len(added) > 0 {
		if err := col.Delete(ctx, nil, nil, added...); err != nil {
			errs = append(errs, fmt.Errorf("removing partial records: %w", err))
		}
	}
	if len(previous) > 0 {
		docs := make([]chromem.Document, 0, len(previous))
		for _, doc := range previous {
			docs = append(docs, doc)
		}
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			errs = append(errs, fmt.Errorf("restoring records: %w", err))
		}
	}
	return errors.Join(errs...)
}

// removeChunks deletes the stored chunks of a document from index from
// up to the last index recorded for it.
func (s *Store) removeChunks(ctx context.Context, col *chromem.Collection, name, docID string, from int) error {
	md, ok := s.getMeta(ctx, documentKey(name, docID))
	if !ok {
		return nil
	}
	last, err := strconv.Atoi(md[keyLast])
	if err != nil {
		return fmt.Errorf("reading metadata of %s: %w", docID, err)
	}

	var ids []string
	for i := from; i <= last; i++ {
		id := domain.RecordID(docID, i)
		if _, err := col.GetByID(ctx, id); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", docID, err)
	}
	return nil
}

func (s *Store) dimensions(ctx context.Context, name string) int {
	md, ok := s.getMeta(ctx, collectionKey(name))
	if !ok {
		return 0
	}
	dims, _ := strconv.Atoi(md[keyDimensions])
	return dims
}

func (s *Store) seq(ctx context.Context) int64 {
	md, ok := s.getMeta(ctx, seqKey)
	if !ok {
		return 0
	}
	seq, _ := strconv.ParseInt(md[keyValue], 10, 64)
	return seq
}

func (s *Store) getMeta(ctx context.Context, id string) (map[string]string, bool) {
	doc, err := s.meta.GetByID(ctx, id)
	if err != nil {
		return nil, false
	}
	return doc.Metadata, true
}

func (s *Store) deleteMeta(ctx context.Context, id string) error {
	if _, ok := s.getMeta(ctx, id); !ok {
		return nil
	}
	if err := s.meta.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("deleting metadata %s: %w", id, err)
	}
	return nil
}

func (s *Store) setMeta(ctx context.Context, id string, md map[string]string) error {
	err := s.meta.Add(ctx, []string{id}, [][]float32{metaEmbedding}, []map[string]string{md}, []string{id})
	if err != nil {
		return fmt.Errorf("writing metadata %s: %w", id, err)
	}
	return nil
}

const seqKey = "seq"

func collectionKey(name string) string {
	return "collection/" + name
}

func documentKey(name, docID string) string {
	return "document/" + name + "/" + docID
}

// recordFrom rebuilds a record from a stored chromem document, scaling the
// normalised embedding back to its original length.
func recordFrom(id string, md map[string]string, content string, embedding []float32) domain.VectorRecord {
	r := domain.VectorRecord{
		DocumentID:   md[keyDocumentID],
		DocumentType: domain.DocumentType(md[keyDocumentType]),
		Text:         content,
	}
	r.ChunkIndex, _ = strconv.Atoi(md[keyChunkIndex])
	r.Seq, _ = strconv.ParseInt(md[keySeq], 10, 64)

	scale, err := strconv.ParseFloat(md[keyNorm], 64)
	if err != nil || scale == 0 {
		scale = 1
	}
	r.Embedding = make(domain.Embedding, len(embedding))
	for i, x := range embedding {
		r.Embedding[i] = float32(float64(x) * scale)
	}
	if r.DocumentID == "" {
		r.DocumentID = id
	}
	return r
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
