// Package qdrant provides a vector store backed by a Qdrant server over gRPC.
//
// Each ragdesk collection maps to one Qdrant collection using cosine
// distance. Point ids are name-based UUIDs of the record key, so re-upserting
// a chunk overwrites its point. Qdrant normalises stored vectors; the
// original norm is kept in the payload and applied on read.
//
// A batch is written with one Upsert call, which Qdrant applies as a unit.
// Removing a document's stale chunks is a separate call, and the lock that
// keeps readers from seeing a half-written batch only covers this process.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/ragdesk/internal/core/domain"
	"github.com/custodia-labs/ragdesk/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Payload keys.
const (
	keyDocumentID   = "document_id"
	keyChunkIndex   = "chunk_index"
	keyDocumentType = "document_type"
	keyText         = "text"
	keySeq          = "seq"
	keyNorm         = "norm"
)

// tieSlack is how many results beyond k are fetched so equal scores at the
// cut-off can be re-ordered by ingestion sequence.
const tieSlack = 16

// pointNamespace scopes the UUIDs derived from record keys.
var pointNamespace = uuid.MustParse("6f1c8f4e-5d0b-4f55-9a43-2b8f2f7f6a10")

// Config holds connection settings.
type Config struct {
	// Host is the Qdrant host (default: localhost).
	Host string

	// Port is the gRPC port (default: 6334).
	Port int
}

// Store implements driven.VectorStore on Qdrant.
type Store struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient

	mu      sync.RWMutex
	lastSeq int64
}

// NewStore creates a client for the Qdrant server. The connection is
// established lazily on the first call.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Host == "" {
		cfg.Host = domain.DefaultQdrantHost
	}
	if cfg.Port == 0 {
		cfg.Port = domain.DefaultQdrantPort
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", addr, err)
	}

	return &Store{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
	}, nil
}

// Upsert writes the batch with a single Upsert call after removing stale
// chunks of every document in it.
func (s *Store) Upsert(ctx context.Context, name string, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	dims, err := domain.BatchDimensions(records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureCollection(ctx, name, dims); err != nil {
		return err
	}

	ids := make([]*pb.PointId, len(records))
	for i, r := range records {
		ids[i] = pointID(r.ID())
	}
	existing, err := s.storedSeqs(ctx, name, ids)
	if err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		seq, ok := existing[ids[i].GetUuid()]
		if !ok {
			seq = s.nextSeq()
		}
		points[i] = &pb.PointStruct{
			Id: ids[i],
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: r.Embedding}},
			},
			Payload: payload(r, seq),
		}
	}

	for docID, last := range domain.LastChunkIndexes(records) {
		if _, err := s.deleteWhere(ctx, name, staleFilter(docID, last)); err != nil {
			return fmt.Errorf("removing stale chunks of %s: %w", docID, err)
		}
	}

	wait := true
	_, err = s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting into %s: %w", name, classify(err))
	}
	return nil
}

// Search returns the k nearest records.
func (s *Store) Search(
	ctx context.Context, name string, query domain.Embedding, k int,
) (domain.RetrievalResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dims, count, err := s.shape(ctx, name)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrEmptyCollection
	}
	if query.Dimensions() != dims {
		return nil, &domain.DimensionMismatchError{Scope: "collection " + name, Expected: dims, Got: query.Dimensions()}
	}

	limit := uint64(k + tieSlack)
	if k <= 0 {
		limit = uint64(count)
	}
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: name,
		Vector:         query,
		Limit:          limit,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		WithVectors:    &pb.WithVectorsSelector{SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", name, classify(err))
	}

	scored := make([]domain.ScoredRecord, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		r := recordFrom(p.GetPayload(), p.GetVectors().GetVector().GetData())
		scored = append(scored, domain.ScoredRecord{
			Record:     r,
			Similarity: domain.CosineSimilarity(query, r.Embedding),
		})
	}
	return domain.RankResults(scored, k), nil
}

// Delete removes all points of a document.
func (s *Store) Delete(ctx context.Context, name, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.deleteWhere(ctx, name, documentFilter(documentID))
	if err != nil {
		return 0, fmt.Errorf("deleting %s: %w", documentID, err)
	}
	return n, nil
}

// Count returns the number of points in a collection.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count(ctx, name, nil)
}

// Collections lists all collections sorted by name.
func (s *Store) Collections(ctx context.Context) ([]domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", classify(err))
	}

	infos := make([]domain.CollectionInfo, 0, len(resp.GetCollections()))
	for _, c := range resp.GetCollections() {
		dims, count, err := s.shape(ctx, c.GetName())
		if err != nil {
			return nil, err
		}
		info := domain.CollectionInfo{Name: c.GetName(), Count: count}
		if count > 0 {
			info.Dimensions = dims
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Drop deletes the Qdrant collection.
func (s *Store) Drop(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name})
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("dropping %s: %w", name, classify(err))
	}
	return nil
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// ensureCollection creates the collection for dims, or recreates an empty
// one fixed to another size. A non-empty collection of another size is a
// dimension mismatch.
func (s *Store) ensureCollection(ctx context.Context, name string, dims int) error {
	stored, count, err := s.shape(ctx, name)
	if err != nil {
		return err
	}
	if stored == dims {
		return nil
	}
	if count > 0 {
		return &domain.DimensionMismatchError{Scope: "collection " + name, Expected: stored, Got: dims}
	}
	if stored != 0 {
		if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
			return fmt.Errorf("recreating %s: %w", name, classify(err))
		}
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{Size: uint64(dims), Distance: pb.Distance_Cosine},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, classify(err))
	}
	return nil
}

// shape returns the configured vector size and point count of a
// collection. A missing collection has neither.
func (s *Store) shape(ctx context.Context, name string) (int, int, error) {
	resp, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: name})
	if status.Code(err) == codes.NotFound {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("reading collection %s: %w", name, classify(err))
	}
	dims := int(resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())

	count, err := s.count(ctx, name, nil)
	if err != nil {
		return 0, 0, err
	}
	return dims, count, nil
}

func (s *Store) count(ctx context.Context, name string, filter *pb.Filter) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{CollectionName: name, Filter: filter, Exact: &exact})
	if status.Code(err) == codes.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", name, classify(err))
	}
	return int(resp.GetResult().GetCount()), nil
}

func (s *Store) deleteWhere(ctx context.Context, name string, filter *pb.Filter) (int, error) {
	n, err := s.count(ctx, name, filter)
	if err != nil || n == 0 {
		return 0, err
	}

	wait := true
	_, err = s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: name,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// storedSeqs returns the seq of the ids that already exist, keyed by UUID.
func (s *Store) storedSeqs(ctx context.Context, name string, ids []*pb.PointId) (map[string]int64, error) {
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: name,
		Ids:            ids,
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: []string{keySeq}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading existing points of %s: %w", name, classify(err))
	}

	seqs := make(map[string]int64, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		seqs[p.GetId().GetUuid()] = p.GetPayload()[keySeq].GetIntegerValue()
	}
	return seqs, nil
}

// nextSeq hands out increasing sequence numbers seeded from the clock so
// order also holds across restarts.
func (s *Store) nextSeq() int64 {
	seq := time.Now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

func pointID(key string) *pb.PointId {
	return &pb.PointId{
		PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewSHA1(pointNamespace, []byte(key)).String()},
	}
}

func payload(r domain.VectorRecord, seq int64) map[string]*pb.Value {
	return map[string]*pb.Value{
		keyDocumentID:   {Kind: &pb.Value_StringValue{StringValue: r.DocumentID}},
		keyChunkIndex:   {Kind: &pb.Value_IntegerValue{IntegerValue: int64(r.ChunkIndex)}},
		keyDocumentType: {Kind: &pb.Value_StringValue{StringValue: string(r.DocumentType)}},
		keyText:         {Kind: &pb.Value_StringValue{StringValue: r.Text}},
		keySeq:          {Kind: &pb.Value_IntegerValue{IntegerValue: seq}},
		keyNorm:         {Kind: &pb.Value_DoubleValue{DoubleValue: norm(r.Embedding)}},
	}
}

// recordFrom rebuilds a record from a point, scaling the normalised vector
// back to its original length.
func recordFrom(p map[string]*pb.Value, vector []float32) domain.VectorRecord {
	scale := p[keyNorm].GetDoubleValue()
	if scale == 0 {
		scale = 1
	}
	embedding := make(domain.Embedding, len(vector))
	for i, x := range vector {
		embedding[i] = float32(float64(x) * scale)
	}
	return domain.VectorRecord{
		DocumentID:   p[keyDocumentID].GetStringValue(),
		ChunkIndex:   int(p[keyChunkIndex].GetIntegerValue()),
		DocumentType: domain.DocumentType(p[keyDocumentType].GetStringValue()),
		Text:         p[keyText].GetStringValue(),
		Embedding:    embedding,
		Seq:          p[keySeq].GetIntegerValue(),
	}
}

func documentFilter(docID string) *pb.Filter {
	return &pb.Filter{Must: []*pb.Condition{keywordCondition(keyDocumentID, docID)}}
}

// staleFilter matches chunks of docID with an index above last.
func staleFilter(docID string, last int) *pb.Filter {
	above := float64(last)
	return &pb.Filter{Must: []*pb.Condition{
		keywordCondition(keyDocumentID, docID),
		{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   keyChunkIndex,
			Range: &pb.Range{Gt: &above},
		}}},
	}}
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
		Key:   key,
		Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
	}}}
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// classify marks connection failures as transient.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return fmt.Errorf("%w: %w", domain.ErrServiceTransient, err)
	default:
		return err
	}
}
